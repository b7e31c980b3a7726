package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jacentio/origami/internal/ident"
)

// Resource is one materialized record of a model. Its properties are the keys
// of the converted record; writes go through Set so the original record stays
// in sync. Linked properties named in the include options hold nested resources.
type Resource struct {
	typ      string
	model    *Model
	store    *Store
	original Record
	include  []string

	keys   []string
	values map[string]any
}

// NewResource materializes raw as a resource of the named model. raw must be a
// Record or a map[string]any.
func NewResource(s *Store, typ string, raw any, opts Options) (*Resource, error) {
	m, err := s.Model(typ)
	if err != nil {
		return nil, err
	}
	return newResource(s, m, raw, opts, newTrail(s.config.MaxDepth))
}

func newResource(s *Store, m *Model, raw any, opts Options, t *trail) (*Resource, error) {
	rec, err := asRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("%w for type %s", err, m.name)
	}

	r := &Resource{
		typ:      m.name,
		model:    m,
		store:    s,
		original: rec,
		include:  dedupe(opts.Include),
	}

	converted := rec
	if c, ok := m.backend.(RecordConverter); ok {
		if converted, err = c.ConvertRecord(rec, opts); err != nil {
			return nil, fmt.Errorf("convert %s record: %w", m.name, err)
		}
	}
	r.assign(converted)

	if len(r.include) > 0 {
		key := ident.Key(m.name, rec)
		t.enter(key)
		defer t.leave(key)
		if err := r.convertNested(opts, t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func asRecord(raw any) (Record, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("%w: no resource supplied", ErrInvalidArgument)
	case Record:
		if v == nil {
			return nil, fmt.Errorf("%w: no resource supplied", ErrInvalidArgument)
		}
		return v, nil
	case map[string]any:
		if v == nil {
			return nil, fmt.Errorf("%w: no resource supplied", ErrInvalidArgument)
		}
		return Record(v), nil
	default:
		return nil, fmt.Errorf("%w: resource is not an object (%T)", ErrInvalidArgument, raw)
	}
}

// assign builds the property slots: schema order first, then any other keys sorted.
func (r *Resource) assign(rec Record) {
	r.values = make(map[string]any, len(rec))
	for _, name := range r.model.layout.order {
		if v, ok := rec[name]; ok {
			r.keys = append(r.keys, name)
			r.values[name] = v
		}
	}

	var extra []string
	for name := range rec {
		if _, inSchema := r.model.layout.index[name]; !inSchema {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		r.keys = append(r.keys, name)
		r.values[name] = rec[name]
	}
}

// convertNested replaces requested link values with child resources.
func (r *Resource) convertNested(opts Options, t *trail) error {
	for _, l := range r.linked() {
		raw, ok := r.values[l.prop]
		if !ok || raw == nil {
			continue
		}

		child, err := r.store.Model(l.model)
		if err != nil {
			return fmt.Errorf("hydrate %s.%s: %w", r.typ, l.prop, err)
		}
		childOpts := Options{Include: forward(r.include, l.prop), Params: opts.Params}

		if !l.many {
			rec, err := asRecord(raw)
			if err != nil {
				return fmt.Errorf("hydrate %s.%s: %w", r.typ, l.prop, err)
			}
			if !t.allows(ident.Key(l.model, rec)) {
				r.model.logger.Debug("link left raw", "property", l.prop, "depth", t.depth)
				continue
			}
			nested, err := newResource(r.store, child, rec, childOpts, t)
			if err != nil {
				return fmt.Errorf("hydrate %s.%s: %w", r.typ, l.prop, err)
			}
			r.values[l.prop] = nested
			continue
		}

		items, err := asList(raw)
		if err != nil {
			return fmt.Errorf("hydrate %s.%s: %w", r.typ, l.prop, err)
		}
		recs := make([]Record, len(items))
		guarded := false
		for i, item := range items {
			if recs[i], err = asRecord(item); err != nil {
				return fmt.Errorf("hydrate %s.%s[%d]: %w", r.typ, l.prop, i, err)
			}
			if !t.allows(ident.Key(l.model, recs[i])) {
				guarded = true
			}
		}
		if guarded {
			r.model.logger.Debug("link left raw", "property", l.prop, "depth", t.depth)
			continue
		}

		nested := make([]*Resource, len(recs))
		for i, rec := range recs {
			if nested[i], err = newResource(r.store, child, rec, childOpts, t); err != nil {
				return fmt.Errorf("hydrate %s.%s[%d]: %w", r.typ, l.prop, i, err)
			}
		}
		r.values[l.prop] = nested
	}
	return nil
}

// linked returns the schema links requested through include.
func (r *Resource) linked() []link {
	var out []link
	for _, l := range r.model.layout.links {
		if requested(r.include, l.prop) {
			out = append(out, l)
		}
	}
	return out
}

func asList(raw any) ([]any, error) {
	switch v := raw.(type) {
	case []any:
		return v, nil
	case []Record:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, nil
	case []map[string]any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: linked list is not a list (%T)", ErrInvalidArgument, raw)
	}
}

// Type returns the model name of the resource.
func (r *Resource) Type() string { return r.typ }

// Model returns the model the resource belongs to.
func (r *Resource) Model() *Model { return r.model }

// Original returns the raw record the resource was built from. Property writes
// are reflected in it.
func (r *Resource) Original() Record { return r.original }

// Include returns the include fields the resource was built with.
func (r *Resource) Include() []string { return append([]string(nil), r.include...) }

// HiddenFields returns the hidden property names of the resource's schema.
func (r *Resource) HiddenFields() []string { return r.model.HiddenFields() }

// Keys returns the property names in order.
func (r *Resource) Keys() []string { return append([]string(nil), r.keys...) }

// Len returns the number of properties.
func (r *Resource) Len() int { return len(r.keys) }

// Has reports whether the resource has the named property.
func (r *Resource) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Get returns the current value of a property, or nil.
func (r *Resource) Get(name string) any { return r.values[name] }

// Lookup returns the current value of a property and whether it exists.
func (r *Resource) Lookup(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// ID returns the id property formatted as a string, or "".
func (r *Resource) ID() string {
	v, ok := r.values["id"]
	if !ok || v == nil {
		return ""
	}
	if s, isStr := v.(string); isStr {
		return s
	}
	return fmt.Sprint(v)
}

// Nested returns a hydrated single link.
func (r *Resource) Nested(name string) (*Resource, bool) {
	n, ok := r.values[name].(*Resource)
	return n, ok
}

// NestedMany returns a hydrated list link.
func (r *Resource) NestedMany(name string) ([]*Resource, bool) {
	n, ok := r.values[name].([]*Resource)
	return n, ok
}

// Set updates a property. The backend is notified of the change first; by
// default the new value is written into the original record.
func (r *Resource) Set(name string, v any) error {
	old, ok := r.values[name]
	if !ok {
		return fmt.Errorf("%w: '%s' on model '%s'", ErrUnknownProperty, name, r.typ)
	}
	r.propertyChanged(name, v, old)
	r.values[name] = v
	return nil
}

func (r *Resource) propertyChanged(name string, newValue, oldValue any) {
	if o, ok := r.model.backend.(PropertyObserver); ok {
		o.PropertyChanged(r, name, newValue, oldValue)
		return
	}
	r.original[name] = newValue
}

// ToObject returns a deep copy of the properties. Nested resources are
// serialized recursively.
func (r *Resource) ToObject() Record {
	out := make(Record, len(r.keys))
	for _, k := range r.keys {
		out[k] = cloneValue(r.values[k])
	}
	return out
}

// Save persists property changes when the backend supports it.
func (r *Resource) Save(ctx context.Context) error {
	if s, ok := r.model.backend.(ResourceSaver); ok {
		return s.SaveResource(ctx, r)
	}
	return nil
}

// Delete deletes the resource when the backend supports it.
func (r *Resource) Delete(ctx context.Context) error {
	if d, ok := r.model.backend.(ResourceDeleter); ok {
		return d.DeleteResource(ctx, r)
	}
	return nil
}

// requested reports whether include asks for prop, directly or as the head of a path.
func requested(include []string, prop string) bool {
	for _, inc := range include {
		if inc == prop || strings.HasPrefix(inc, prop+".") {
			return true
		}
	}
	return false
}

// forward returns the include list for the children of prop: the same list,
// plus the tails of paths that start at prop.
func forward(include []string, prop string) []string {
	out := append([]string(nil), include...)
	for _, inc := range include {
		if tail, ok := strings.CutPrefix(inc, prop+"."); ok && tail != "" {
			out = append(out, tail)
		}
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// trail tracks the records being hydrated on the current path.
type trail struct {
	max   int
	depth int
	seen  map[string]bool
}

func newTrail(max int) *trail {
	return &trail{max: max, seen: make(map[string]bool)}
}

// allows reports whether a record may be hydrated below the current path.
func (t *trail) allows(key string) bool {
	return t.depth < t.max && !t.seen[key]
}

func (t *trail) enter(key string) {
	t.depth++
	t.seen[key] = true
}

func (t *trail) leave(key string) {
	t.depth--
	delete(t.seen, key)
}

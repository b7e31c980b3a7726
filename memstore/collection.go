package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/jacentio/origami/internal/ident"
	"github.com/jacentio/origami/store"
)

// LimitParam caps the number of records Find returns when set in
// store.Options.Params.
const LimitParam = "limit"

type entry struct {
	seq  uint64
	data []byte
}

type bucket struct {
	mu    sync.RWMutex
	items map[string]entry
}

// Collection holds the records of one model. It implements store.Backend,
// store.IDFinder, store.ResourceSaver and store.ResourceDeleter.
type Collection struct {
	driver  *Driver
	model   atomic.Pointer[store.Model]
	buckets []*bucket
	seq     atomic.Uint64

	// writeMu serializes writers; readers only take bucket locks.
	writeMu sync.Mutex
}

func newCollection(d *Driver, shards int) *Collection {
	c := &Collection{driver: d, buckets: make([]*bucket, shards)}
	for i := range c.buckets {
		c.buckets[i] = &bucket{items: make(map[string]entry)}
	}
	return c
}

func (c *Collection) bind(m *store.Model) { c.model.Store(m) }

// Len returns the number of stored records, soft deleted ones included.
func (c *Collection) Len() int {
	n := 0
	for _, b := range c.buckets {
		b.mu.RLock()
		n += len(b.items)
		b.mu.RUnlock()
	}
	return n
}

func (c *Collection) bucketFor(id string) *bucket {
	return c.buckets[ident.Shard(id, len(c.buckets))]
}

func (c *Collection) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.driver.isConnected() {
		return ErrNotConnected
	}
	return nil
}

// Create implements store.Backend.
func (c *Collection) Create(ctx context.Context, rec store.Record, opts store.Options) (store.Record, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}
	m := c.model.Load()

	id := idOf(rec)
	if id == "" {
		id = c.driver.newID()
	}
	data, err := encode(withID(rec, id))
	if err != nil {
		return nil, err
	}
	// Stored form, so unique checks compare like with like.
	stored, err := decode(data)
	if err != nil {
		return nil, err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, ok := c.get(id); ok {
		return nil, m.ValidationError(m.Messages().Duplicate("id"), "id", store.RuleDuplicate)
	}
	if field, clash, err := c.uniqueClash(m, stored, id); err != nil {
		return nil, err
	} else if clash {
		return nil, m.ValidationError(m.Messages().Duplicate(field), field, store.RuleDuplicate)
	}

	c.put(id, entry{seq: c.seq.Add(1), data: data})
	return stored, nil
}

// Find implements store.Backend. Records are returned in insertion order.
func (c *Collection) Find(ctx context.Context, q store.Query, opts store.Options) ([]store.Record, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}
	matched, err := c.scan(q, limitOf(opts))
	if err != nil || len(matched) == 0 {
		return nil, err
	}
	out := make([]store.Record, len(matched))
	for i, m := range matched {
		out[i] = m.rec
	}
	return out, nil
}

// FindOne implements store.Backend.
func (c *Collection) FindOne(ctx context.Context, q store.Query, opts store.Options) (store.Record, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}
	matched, err := c.scan(q, 1)
	if err != nil || len(matched) == 0 {
		return nil, err
	}
	return matched[0].rec, nil
}

// FindByID implements store.IDFinder with a direct bucket lookup.
func (c *Collection) FindByID(ctx context.Context, id string, opts store.Options) (store.Record, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}
	e, ok := c.get(id)
	if !ok {
		return nil, nil
	}
	return decode(e.data)
}

// Update implements store.Backend. Soft deleted records are skipped and
// reported as nil entries.
func (c *Collection) Update(ctx context.Context, q store.Query, set store.Record, opts store.Options) ([]store.Record, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	matched, err := c.scan(q, 0)
	if err != nil || len(matched) == 0 {
		return nil, err
	}

	staged := make([]*pending, len(matched))
	held := map[string]map[string]bool{}
	for i, mt := range matched {
		p, err := c.stage(mt, set)
		if err != nil {
			return nil, err
		}
		if p == nil {
			continue
		}
		// Two matches taking the same unique value clash with each other.
		for field, v := range p.unique {
			key := fmt.Sprint(v)
			if held[field][key] {
				m := c.model.Load()
				return nil, m.ValidationError(m.Messages().Duplicate(field), field, store.RuleDuplicate)
			}
			if held[field] == nil {
				held[field] = map[string]bool{}
			}
			held[field][key] = true
		}
		staged[i] = p
	}

	out := make([]store.Record, 0, len(matched))
	for _, p := range staged {
		if p == nil {
			out = append(out, nil)
			continue
		}
		c.put(p.id, p.entry)
		out = append(out, p.rec)
	}
	return out, nil
}

// UpdateOne implements store.Backend.
func (c *Collection) UpdateOne(ctx context.Context, q store.Query, set store.Record, opts store.Options) (store.Record, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	matched, err := c.scan(q, 1)
	if err != nil || len(matched) == 0 {
		return nil, err
	}
	p, err := c.stage(matched[0], set)
	if err != nil || p == nil {
		return nil, err
	}
	c.put(p.id, p.entry)
	return p.rec, nil
}

// SaveResource implements store.ResourceSaver by replacing the stored record
// with the resource's original record.
func (c *Collection) SaveResource(ctx context.Context, r *store.Resource) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	id := r.ID()
	if id == "" {
		return fmt.Errorf("%w: resource has no id", store.ErrInvalidArgument)
	}
	data, err := encode(r.Original())
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	seq := c.seq.Add(1)
	if e, ok := c.get(id); ok {
		seq = e.seq
	}
	c.put(id, entry{seq: seq, data: data})
	return nil
}

// DeleteResource implements store.ResourceDeleter with a soft delete by id.
func (c *Collection) DeleteResource(ctx context.Context, r *store.Resource) error {
	_, err := r.Model().DeleteByID(ctx, r.ID(), store.Options{})
	return err
}

type match struct {
	id  string
	seq uint64
	rec store.Record
}

// scan returns the records matching q in insertion order, at most limit when
// limit > 0.
func (c *Collection) scan(q store.Query, limit int) ([]match, error) {
	var matched []match
	for _, b := range c.buckets {
		b.mu.RLock()
		for id, e := range b.items {
			rec, err := decode(e.data)
			if err != nil {
				b.mu.RUnlock()
				return nil, err
			}
			if store.Matches(rec, q) {
				matched = append(matched, match{id: id, seq: e.seq, rec: rec})
			}
		}
		b.mu.RUnlock()
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

type pending struct {
	id     string
	entry  entry
	rec    store.Record
	unique map[string]any
}

// stage merges set over a matched record and checks the unique properties set
// touches. A nil result means the record is already soft deleted. The caller
// holds writeMu.
func (c *Collection) stage(mt match, set store.Record) (*pending, error) {
	if store.IsDeleted(mt.rec) {
		return nil, nil
	}
	for k, v := range set {
		if k == "id" {
			continue
		}
		mt.rec[k] = v
	}
	data, err := encode(mt.rec)
	if err != nil {
		return nil, err
	}
	stored, err := decode(data)
	if err != nil {
		return nil, err
	}

	p := &pending{id: mt.id, entry: entry{seq: mt.seq, data: data}, rec: stored}
	if store.IsDeleted(stored) {
		return p, nil
	}

	m := c.model.Load()
	changed := store.Record{}
	for _, prop := range m.Schema().Properties {
		if !prop.Unique || prop.Name == "id" {
			continue
		}
		if _, ok := set[prop.Name]; ok && stored[prop.Name] != nil {
			changed[prop.Name] = stored[prop.Name]
		}
	}
	if len(changed) == 0 {
		return p, nil
	}
	if field, clash, err := c.uniqueClash(m, changed, mt.id); err != nil {
		return nil, err
	} else if clash {
		return nil, m.ValidationError(m.Messages().Duplicate(field), field, store.RuleDuplicate)
	}
	p.unique = changed
	return p, nil
}

// uniqueClash reports the first unique property of rec already held by another
// active record. The caller holds writeMu.
func (c *Collection) uniqueClash(m *store.Model, rec store.Record, id string) (string, bool, error) {
	for _, p := range m.Schema().Properties {
		if !p.Unique || p.Name == "id" {
			continue
		}
		v, ok := rec[p.Name]
		if !ok || v == nil {
			continue
		}
		matched, err := c.scan(store.Query{p.Name: v}, 0)
		if err != nil {
			return "", false, err
		}
		for _, other := range matched {
			if other.id != id && !store.IsDeleted(other.rec) {
				return p.Name, true, nil
			}
		}
	}
	return "", false, nil
}

func (c *Collection) get(id string) (entry, bool) {
	b := c.bucketFor(id)
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.items[id]
	return e, ok
}

func (c *Collection) put(id string, e entry) {
	b := c.bucketFor(id)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[id] = e
}

func idOf(rec store.Record) string {
	switch id := rec["id"].(type) {
	case nil:
		return ""
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

func withID(rec store.Record, id string) store.Record {
	out := make(store.Record, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}
	if _, ok := out["id"]; !ok || idOf(out) == "" {
		out["id"] = id
	}
	return out
}

func limitOf(opts store.Options) int {
	switch n := opts.Params[LimitParam].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

package store

import (
	"context"
	"log/slog"
)

// Model is a schema-bound handle over one entity type. It normalizes queries
// and delegates storage to its backend.
type Model struct {
	name    string
	schema  Schema
	store   *Store
	backend Backend
	layout  layout
	logger  *slog.Logger
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// Schema returns the model schema.
func (m *Model) Schema() Schema { return m.schema }

// Store returns the owning store.
func (m *Model) Store() *Store { return m.store }

// Backend returns the backend the driver supplied for this model.
func (m *Model) Backend() Backend { return m.backend }

// IsTree reports whether the schema is a tree.
func (m *Model) IsTree() bool { return m.schema.Tree }

// HiddenFields returns the names of hidden properties in schema order.
func (m *Model) HiddenFields() []string {
	return append([]string(nil), m.layout.hidden...)
}

// Messages returns the validation message catalog for this model.
func (m *Model) Messages() Messages {
	return Messages{model: m.name}
}

// ValidationError builds a store validation error. An empty field means the
// failure is not tied to a field.
func (m *Model) ValidationError(message, field string, rule Rule) *ValidationError {
	return &ValidationError{
		Message: message,
		Data: []ValidationDetail{
			{Type: "store", Field: field, Rule: rule},
		},
	}
}

// Create stores a new resource.
func (m *Model) Create(ctx context.Context, rec Record) (*Resource, error) {
	if err := m.Validate(rec, false); err != nil {
		return nil, err
	}
	created, err := m.backend.Create(ctx, m.resourceFrom(rec), Options{})
	if err != nil {
		return nil, err
	}
	return m.wrap(created, Options{})
}

// Find queries resources, excluding soft deleted ones. A nil query matches
// every active record. A query with an id is answered by a single record lookup.
func (m *Model) Find(ctx context.Context, q Query, opts Options) ([]*Resource, error) {
	q = NotDeleted(q)

	if hasID(q) {
		m.logger.Debug("find by id shorthand", "id", q["id"])
		rec, err := m.backend.FindOne(ctx, m.queryFrom(q), opts)
		if err != nil || rec == nil {
			return nil, err
		}
		r, err := m.wrap(rec, opts)
		if err != nil {
			return nil, err
		}
		return []*Resource{r}, nil
	}

	recs, err := m.backend.Find(ctx, m.queryFrom(q), opts)
	if err != nil || recs == nil {
		return nil, err
	}
	return m.wrapAll(recs, opts, false)
}

// FindOne returns the first resource matching q, or nil.
func (m *Model) FindOne(ctx context.Context, q Query, opts Options) (*Resource, error) {
	if q == nil {
		q = Query{}
	}
	rec, err := m.backend.FindOne(ctx, m.queryFrom(q), opts)
	if err != nil || rec == nil {
		return nil, err
	}
	return m.wrap(rec, opts)
}

// FindByID returns the resource with the given id, or nil.
func (m *Model) FindByID(ctx context.Context, id string, opts Options) (*Resource, error) {
	var (
		rec Record
		err error
	)
	if f, ok := m.backend.(IDFinder); ok {
		rec, err = f.FindByID(ctx, id, opts)
	} else {
		rec, err = m.backend.FindOne(ctx, m.queryFrom(Query{"id": id}), opts)
	}
	if err != nil || rec == nil {
		return nil, err
	}
	return m.wrap(rec, opts)
}

// Update applies set to every record matching q. Entries of the result are
// nil for records the backend skipped.
func (m *Model) Update(ctx context.Context, q Query, set Record, opts Options) ([]*Resource, error) {
	if err := m.Validate(set, true); err != nil {
		return nil, err
	}
	recs, err := m.backend.Update(ctx, m.queryFrom(q), m.resourceFrom(set), opts)
	if err != nil || recs == nil {
		return nil, err
	}
	return m.wrapAll(recs, opts, true)
}

// UpdateByID applies set to the record with the given id.
func (m *Model) UpdateByID(ctx context.Context, id string, set Record, opts Options) ([]*Resource, error) {
	return m.Update(ctx, Query{"id": id}, set, opts)
}

// UpdateOne applies set to the first record matching q.
func (m *Model) UpdateOne(ctx context.Context, q Query, set Record, opts Options) (*Resource, error) {
	if err := m.Validate(set, true); err != nil {
		return nil, err
	}
	rec, err := m.backend.UpdateOne(ctx, m.queryFrom(q), m.resourceFrom(set), opts)
	if err != nil || rec == nil {
		return nil, err
	}
	return m.wrap(rec, opts)
}

// Delete soft deletes every record matching q by stamping deletedAt.
//
// It fails with a notFound ValidationError when nothing matched. When every
// matched record was skipped by the backend (already deleted) it returns an
// empty slice; otherwise it returns the resources that were marked deleted.
func (m *Model) Delete(ctx context.Context, q Query, opts Options) ([]*Resource, error) {
	return m.delete(ctx, q, "", opts)
}

// DeleteByID soft deletes the record with the given id. A miss fails with a
// notFoundID ValidationError naming the id.
func (m *Model) DeleteByID(ctx context.Context, id string, opts Options) ([]*Resource, error) {
	return m.delete(ctx, Query{"id": id}, id, opts)
}

func (m *Model) delete(ctx context.Context, q Query, id string, opts Options) ([]*Resource, error) {
	set := Record{DeletedAtField: m.store.config.Now().UTC()}

	deleted, err := m.backend.Update(ctx, m.queryFrom(q), m.resourceFrom(set), opts)
	if err != nil {
		return nil, err
	}

	// No resources deleted/updated
	if len(deleted) == 0 {
		if id != "" {
			return nil, m.ValidationError(m.Messages().NotFoundID(id), "id", RuleNotFoundID)
		}
		return nil, m.ValidationError(m.Messages().NotFound(), "", RuleNotFound)
	}

	out := make([]*Resource, 0, len(deleted))
	for _, rec := range deleted {
		if rec == nil {
			continue
		}
		r, err := m.wrap(rec, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	m.logger.Debug("soft deleted", "matched", len(deleted), "changed", len(out))
	return out, nil
}

func (m *Model) wrap(rec Record, opts Options) (*Resource, error) {
	return newResource(m.store, m, rec, opts, newTrail(m.store.config.MaxDepth))
}

func (m *Model) wrapAll(recs []Record, opts Options, keepNil bool) ([]*Resource, error) {
	out := make([]*Resource, 0, len(recs))
	for _, rec := range recs {
		if rec == nil {
			if keepNil {
				out = append(out, nil)
			}
			continue
		}
		r, err := m.wrap(rec, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// resourceFrom converts a record to the backend's local form.
func (m *Model) resourceFrom(rec Record) Record {
	if rec == nil {
		rec = Record{}
	}
	if c, ok := m.backend.(Converter); ok {
		return c.ResourceFrom(rec)
	}
	return rec
}

func (m *Model) queryFrom(q Query) Query {
	return Query(m.resourceFrom(Record(q)))
}

func hasID(q Query) bool {
	switch id := q["id"].(type) {
	case nil:
		return false
	case string:
		return id != ""
	default:
		return true
	}
}

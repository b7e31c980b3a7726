package store

import "context"

// Options are passed through to backend hooks and to resource construction.
type Options struct {
	// Include lists the linked properties to hydrate into nested resources.
	// Dotted paths ("author.company") reach into nested resources.
	Include []string

	// Params carries backend-specific options (limits, sort order, consistency).
	Params map[string]any
}

// Backend is the storage contract every driver implements per model.
// These are the only points where storage I/O happens.
type Backend interface {
	// Create stores a new record and returns it as stored.
	Create(ctx context.Context, rec Record, opts Options) (Record, error)

	// Find returns every record matching q, or nil when none match.
	Find(ctx context.Context, q Query, opts Options) ([]Record, error)

	// FindOne returns the first record matching q, or nil.
	FindOne(ctx context.Context, q Query, opts Options) (Record, error)

	// Update applies set to every record matching q. The result has one entry
	// per matched record; a nil entry means the record was skipped.
	Update(ctx context.Context, q Query, set Record, opts Options) ([]Record, error)

	// UpdateOne applies set to the first record matching q.
	UpdateOne(ctx context.Context, q Query, set Record, opts Options) (Record, error)
}

// Driver connects a Store to a storage system and supplies a Backend per model.
type Driver interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Backend(m *Model) (Backend, error)
}

// IDFinder is implemented by backends with a faster path for id lookups.
type IDFinder interface {
	FindByID(ctx context.Context, id string, opts Options) (Record, error)
}

// Converter is implemented by backends that translate records and queries
// into their local form before they reach a hook.
type Converter interface {
	ResourceFrom(rec Record) Record
}

// RecordConverter is implemented by backends whose raw records need
// converting before they become resource properties.
type RecordConverter interface {
	ConvertRecord(rec Record, opts Options) (Record, error)
}

// PropertyObserver is implemented by backends that track property changes.
// It replaces the default behavior of writing the new value into the original record.
type PropertyObserver interface {
	PropertyChanged(r *Resource, prop string, newValue, oldValue any)
}

// ResourceSaver is implemented by backends that persist resource mutations.
type ResourceSaver interface {
	SaveResource(ctx context.Context, r *Resource) error
}

// ResourceDeleter is implemented by backends that delete through a resource.
type ResourceDeleter interface {
	DeleteResource(ctx context.Context, r *Resource) error
}

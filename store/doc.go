// Package store provides a storage-agnostic data access layer: schema-bound
// models, live resources and a store that owns both.
//
// Origami sits above any single database. Drivers supply the storage I/O; the
// store supplies the behavior every driver must share: resource
// materialization, nested resource hydration, soft deletes and a structured
// validation error catalog.
//
// # Key Features
//
//   - Resources with ordered, change-tracked properties
//   - Nested hydration of linked models requested via include
//   - Soft deletes through a deletedAt timestamp, excluded from default queries
//   - Structured validation errors with a frozen message catalog
//   - Store-scoped model registry
//
// # Backends
//
// A [Driver] returns one [Backend] per registered model:
//
//	type Backend interface {
//	    Create(ctx, rec, opts) (Record, error)
//	    Find(ctx, q, opts) ([]Record, error)
//	    FindOne(ctx, q, opts) (Record, error)
//	    Update(ctx, q, set, opts) ([]Record, error)
//	    UpdateOne(ctx, q, set, opts) (Record, error)
//	}
//
// Backends opt into extra behavior by implementing [IDFinder], [Converter],
// [RecordConverter], [PropertyObserver], [ResourceSaver] or [ResourceDeleter].
//
// # Usage
//
//	s, err := store.New(memstore.New(), store.DefaultConfig())
//	posts, err := s.Register("Post", schema)
//	found, err := posts.Find(ctx, nil, store.Options{Include: []string{"author"}})
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrNotImplemented] - store wired without a driver or backend
//   - [ErrInvalidArgument] - resource built from a missing or non-object record
//   - [ErrModelNotFound] - no model registered under a name
//   - [ErrUnknownProperty] - write to a property the resource does not have
//   - [ErrInvalidSchema] - duplicate or unnamed schema property
//   - [ErrValidation] - matched by every [*ValidationError]
package store

package store

import "errors"

var (
	// ErrNotImplemented is returned when a store is wired without a driver or a
	// driver cannot supply a backend for a model.
	ErrNotImplemented = errors.New("origami: not implemented")

	// ErrInvalidArgument is returned when a resource is built from a missing or non-object record.
	ErrInvalidArgument = errors.New("origami: invalid argument")

	// ErrModelNotFound is returned when no model is registered under a name.
	ErrModelNotFound = errors.New("origami: model not found")

	// ErrUnknownProperty is returned when setting a property the resource was not built with.
	ErrUnknownProperty = errors.New("origami: unknown property")

	// ErrInvalidSchema is returned when a schema declares a property twice or has an empty name.
	ErrInvalidSchema = errors.New("origami: invalid schema")

	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("origami: validation failed")
)

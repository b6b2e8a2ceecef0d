package project

import "errors"

var (
	// ErrModelNotFound indicates an unknown timestamp or model reference.
	ErrModelNotFound = errors.New("project: model not found")

	// ErrModelDeleted indicates an operation on a model that was removed from its project.
	ErrModelDeleted = errors.New("project: model was deleted")

	// ErrInvalidated indicates results that became outdated while being computed.
	ErrInvalidated = errors.New("project: results were invalidated during computation")

	// ErrInvalidTimestamp indicates a string that is not a model timestamp.
	ErrInvalidTimestamp = errors.New("project: invalid timestamp")
)

package entity

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalid         = errors.New("invalid entity")
	ErrConflict        = errors.New("conflict")
	ErrInternal        = errors.New("internal error")
	ErrRunInProgress   = errors.New("another pipeline run is in progress")
	ErrMissingArtifact = errors.New("missing artifact")
)

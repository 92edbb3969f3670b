package types

import "errors"

// Domain errors for type validation
var (
	ErrEmptyContent   = errors.New("content cannot be empty")
	ErrMissingSource  = errors.New("chunk source is required")
	ErrInvalidRank    = errors.New("rank must be >= 1")
	ErrInvalidProject = errors.New("invalid project data")
	ErrUnknownType    = errors.New("unknown chunk type")
)

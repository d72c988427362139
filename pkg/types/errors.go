package types

import "errors"

// Domain errors for type validation
var (
	ErrEmptyProjectID      = errors.New("project ID is required")
	ErrRootPathNotAbsolute = errors.New("project root path must be absolute")
	ErrEmptyContent        = errors.New("content cannot be empty")
	ErrInvalidLineRange    = errors.New("invalid line range")
	ErrMissingSourceFile   = errors.New("source file is required")
)

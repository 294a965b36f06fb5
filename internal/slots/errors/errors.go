package errors

import "errors"

var (
	ErrNotFound = errors.New("slot not found")

	ErrInvalidID = errors.New("invalid slot ID format")

	ErrDuplicate = errors.New("slot already exists for resource at start")

	ErrResourceNotFound = errors.New("resource not found")
)

// Package kb manages the knowledge-base registry, the active store, and
// embedding operations against knowledge-base stores.
package kb

import "errors"

// ErrNotFound marks an unknown knowledge base or document id.
var ErrNotFound = errors.New("not found")

// ErrInvalidOperation marks a disallowed action, such as deleting the default
// knowledge base or embedding empty content.
var ErrInvalidOperation = errors.New("invalid operation")

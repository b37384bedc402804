package interfaces

import "errors"

// Common collaborator errors used across components
var (
	ErrTestNotFound = errors.New("test definition not found")
)

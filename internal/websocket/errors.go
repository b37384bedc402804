package websocket

import "errors"

// Connection-related errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
)

// Registry-related errors
var (
	ErrNilClient         = errors.New("client cannot be nil")
	ErrInvalidClientRole = errors.New("client role must be instructor or student")
	ErrDuplicateClientID = errors.New("client id already registered")
)

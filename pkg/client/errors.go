package client

import "errors"

// Client state errors
var (
	ErrClientClosed = errors.New("client is closed")
	ErrNotConnected = errors.New("client is not connected")
)

package types

import "errors"

// Decoding and validation errors shared across the dispatcher and clients
var (
	ErrMalformedFrame     = errors.New("malformed message frame")
	ErrMissingMessageType = errors.New("message frame missing type field")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidTest        = errors.New("test definition requires an id")
	ErrEmptyTest          = errors.New("test definition requires at least one question")
)

package kv

import "errors"

var (
	// ErrNumberFormat is returned when a delta or a stored value is not a number
	ErrNumberFormat = errors.New("number format error")

	// ErrNoTTLForRefresh is returned when refresh is requested without a TTL
	ErrNoTTLForRefresh = errors.New("refresh requires a ttl")

	// ErrUnknownOperation is returned by Execute for an unrecognized operation
	ErrUnknownOperation = errors.New("unknown operation")
)

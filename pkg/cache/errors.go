package cache

import "errors"

var (
	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")

	// Cache data errors
	ErrSerializationFailed   = errors.New("serialization failed")
	ErrDeserializationFailed = errors.New("deserialization failed")

	// Storage errors
	ErrStorageUnavailable = errors.New("storage backend unavailable")
)

package assets

import "errors"

var (
	// ErrUnsupportedFormat is returned when an asset cannot be decoded.
	ErrUnsupportedFormat = errors.New("unsupported asset format")

	// ErrNotFound is returned for unknown builtin names.
	ErrNotFound = errors.New("asset not found")

	// ErrClosed is returned for loads started after the cache is closed.
	ErrClosed = errors.New("asset cache closed")
)

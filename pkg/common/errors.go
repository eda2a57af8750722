package common

import "errors"

var (
	// Framing errors surfaced by the pickle codec.
	ErrInsufficientData = errors.New("insufficient frame data")
	ErrInvalidString    = errors.New("invalid string data")

	// ErrInvalidArchive is returned when either of the two header framing
	// fields cannot be read in full.
	ErrInvalidArchive = errors.New("invalid archive")

	// ErrMalformedEntry is returned when the header JSON does not decode
	// into a valid filesystem entry.
	ErrMalformedEntry = errors.New("malformed filesystem entry")

	// Path resolution errors. Callers wrap these with the offending path.
	ErrNotFound      = errors.New("entry not found")
	ErrNotADirectory = errors.New("not a directory")
	ErrNotAFile      = errors.New("not a file")
	ErrInvalidPath   = errors.New("invalid path")

	// Symlink security failures. Both fail closed: the target is never
	// truncated or clamped to stay inside the root.
	ErrSymlinkLoop   = errors.New("symlink cycle detected")
	ErrSymlinkEscape = errors.New("symlink escapes archive root")
)

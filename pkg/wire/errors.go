package wire

import "errors"

var (
	// ErrUnknownSection is returned for a section the device does not have.
	ErrUnknownSection = errors.New("unknown section")

	// ErrNoFiles is returned by DeleteFiles when no names are given.
	ErrNoFiles = errors.New("no files given")

	// ErrEmptyFrame is returned when decoding an empty text frame.
	ErrEmptyFrame = errors.New("empty frame")
)

// ErrNotObject is returned when a JSON payload is not an object.
var ErrNotObject = errors.New("payload is not a JSON object")

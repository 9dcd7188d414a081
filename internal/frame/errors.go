package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrStride indicates an agent buffer whose length is not a multiple of Stride.
	ErrStride = errors.New("frame: agent buffer length is not a multiple of stride")

	// ErrDebugInfo indicates a debug payload the engine rendered but that could not be parsed.
	ErrDebugInfo = errors.New("frame: malformed debug info")
)

// DecodeError reports a stride violation in an agent buffer.
type DecodeError struct {
	Length int
	Stride int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: length %d, stride %d (%d trailing values)",
		ErrStride, e.Length, e.Stride, e.Length%e.Stride)
}

func (e *DecodeError) Unwrap() error {
	return ErrStride
}

// DebugInfoError wraps the parse failure of a debug payload.
type DebugInfoError struct {
	Index   int
	Wrapped error
}

func (e *DebugInfoError) Error() string {
	return fmt.Sprintf("%v for agent %d: %v", ErrDebugInfo, e.Index, e.Wrapped)
}

func (e *DebugInfoError) Unwrap() []error {
	return []error{ErrDebugInfo, e.Wrapped}
}

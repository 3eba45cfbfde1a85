// Package errors defines the unified error taxonomy shared by every codec
// adapter and the dispatch layer.  Callers branch on Kind programmatically;
// the human-readable detail is advisory only.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies codec failures for targeted handling.
type Kind int

const (
	// KindUnrecognizedFormat means magic-byte detection matched nothing.
	KindUnrecognizedFormat Kind = iota
	// KindUnsupportedFormat means the format was recognized but its codec
	// is not compiled into this build.
	KindUnsupportedFormat
	// KindDisabledFormat means the codec is compiled in but excluded by the
	// caller's registry.
	KindDisabledFormat
	// KindUnsupportedOperation means the format is usable but the specific
	// request (e.g. lossless on JPEG) is impossible.
	KindUnsupportedOperation
	// KindInvalidInput means a malformed container or header.
	KindInvalidInput
	// KindLimitExceeded means a declared or observed resource bound was
	// surpassed.
	KindLimitExceeded
	// KindCancelled means the operation observed context cancellation.
	KindCancelled
	// KindOOM means an allocation could not be satisfied.
	KindOOM
	// KindNoSuitableEncoder means auto-selection found no candidate.
	KindNoSuitableEncoder
	// KindCodec wraps an underlying codec library failure.
	KindCodec
)

func (k Kind) String() string {
	switch k {
	case KindUnrecognizedFormat:
		return "unrecognized format"
	case KindUnsupportedFormat:
		return "unsupported format"
	case KindDisabledFormat:
		return "disabled format"
	case KindUnsupportedOperation:
		return "unsupported operation"
	case KindInvalidInput:
		return "invalid input"
	case KindLimitExceeded:
		return "limit exceeded"
	case KindCancelled:
		return "cancelled"
	case KindOOM:
		return "out of memory"
	case KindNoSuitableEncoder:
		return "no suitable encoder"
	case KindCodec:
		return "codec error"
	}
	return "unknown"
}

// CodecError is the structured error type used throughout the module.
// Format is the tag of the originating format when known ("" otherwise).
type CodecError struct {
	Kind   Kind
	Format string
	Detail string
	Err    error
}

func (e *CodecError) Error() string {
	msg := e.Kind.String()
	if e.Format != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Format)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *CodecError) Unwrap() error { return e.Err }

// New creates a CodecError with a static detail string.
func New(kind Kind, format, detail string) *CodecError {
	return &CodecError{Kind: kind, Format: format, Detail: detail}
}

// Wrap attaches kind and format context to an existing error.
// Returns nil if err is nil.
func Wrap(kind Kind, format string, err error) error {
	if err == nil {
		return nil
	}
	return &CodecError{Kind: kind, Format: format, Err: err}
}

// Codec wraps an underlying codec library error with its originating format.
// Adapters never leak their native error types across the dispatch boundary
// except through here.
func Codec(format string, err error) error {
	if err == nil {
		return nil
	}
	return &CodecError{Kind: KindCodec, Format: format, Err: err}
}

// KindOf reports the Kind of err, or (0, false) when err is not a CodecError.
func KindOf(err error) (Kind, bool) {
	var ce *CodecError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is a CodecError of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// FormatOf reports the originating format tag of err, if any.
func FormatOf(err error) string {
	var ce *CodecError
	if errors.As(err, &ce) {
		return ce.Format
	}
	return ""
}

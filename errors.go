package framereader

import (
	"errors"

	"github.com/CalebQ42/framereader/internal/decompress"
)

var (
	// ErrTooSmall means the input ended inside a frame header.
	ErrTooSmall = errors.New("input too small")
	// ErrUnexpectedEOF means the input ended inside a frame's body.
	ErrUnexpectedEOF = errors.New("unexpected EOF")
	ErrEmptyBuffer   = errors.New("read into an empty buffer")
	ErrClosed        = errors.New("reader is closed")
	ErrUnknownFormat = errors.New("unknown frame format")

	// Errors coming from the decode engines.
	ErrMemLimit    = decompress.ErrMemLimit
	ErrTruncated   = decompress.ErrTruncated
	ErrUnsupported = decompress.ErrUnsupported
)

// Kind classifies an Error.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindIO
	KindFormat
	KindMemLimit
	KindProtocol
	KindTruncated
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindFormat:
		return "format"
	case KindMemLimit:
		return "memory limit"
	case KindProtocol:
		return "protocol"
	case KindTruncated:
		return "truncated"
	default:
		return "unknown"
	}
}

// Error is returned by every Reader operation that fails. Op names where
// the failure was found: "open", "reopen" and "read" for the Reader's own
// checks, "source" for the underlying reader, "init" when building a decode
// engine and "decode" for failures inside the engine.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// engineError classifies an error returned by a decode engine. A failure of
// the underlying reader noticed by the feed takes precedence, since engines
// tend to turn those into format errors.
func engineError(sourceErr, err error) *Error {
	if sourceErr != nil {
		return &Error{Op: "source", Kind: KindIO, Err: sourceErr}
	}
	kind := KindFormat
	switch {
	case errors.Is(err, decompress.ErrMemLimit):
		kind = KindMemLimit
	case errors.Is(err, decompress.ErrTruncated):
		kind = KindTruncated
	}
	return &Error{Op: "decode", Kind: kind, Err: err}
}

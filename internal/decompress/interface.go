package decompress

import "io"

// Input is where an Engine pulls compressed bytes from. Bytes handed out
// are tentative: the Engine reports the ones it read past the end of its
// frame through Result.Unread.
type Input interface {
	io.Reader
	io.ByteReader
	// Peek returns up to n upcoming bytes without handing them out. It
	// returns fewer only at the end of input.
	Peek(n int) ([]byte, error)
}

// Status is the outcome of a decode step.
type Status uint8

const (
	// StatusOK means the frame continues: the step ran out of output
	// space or needs more input.
	StatusOK Status = iota
	// StatusEnd means the frame's terminator was decoded.
	StatusEnd
)

// Result describes one decode step.
type Result struct {
	N      int // bytes written to the output
	Unread int // bytes pulled from the Input that lie past the frame's end
	Status Status
}

// Engine decodes one frame at a time. An Engine is bound to a memory limit
// when it is created and may be re-armed with Begin once its previous frame
// ended with StatusEnd. After an error it must be closed and replaced.
type Engine interface {
	// Begin reads and validates the frame header from in.
	Begin(in Input) error
	// Decode runs one step into p, which must not be empty.
	Decode(p []byte) (Result, error)
	Close() error
}

package framereader

import (
	"io"

	"github.com/CalebQ42/framereader/internal/rawreader"
)

// Source is the buffered input a Reader decodes from. It is owned by the
// caller: closing a Reader leaves the Source and its io.Reader alone, and
// bytes past the end of a frame stay buffered in it.
type Source = rawreader.Source

// NewSource wraps r. size is the initial buffer size; <= 0 picks a default.
func NewSource(r io.Reader, size int) *Source {
	return rawreader.NewSource(r, size)
}

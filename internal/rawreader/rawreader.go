package rawreader

import (
	"io"
)

// DefaultSize is the initial buffer capacity of a Source.
const DefaultSize = 64 << 10

// Source is a buffered byte source. Bytes between the consumed cursor (off)
// and the filled cursor (end) are buffered, valid, and not yet delivered.
// Consumed bytes are never buffered again.
type Source struct {
	r     io.Reader
	cache []byte
	off   int
	end   int
	pos   int64
	eof   bool
}

// NewSource returns a Source reading from r with a buffer of the given
// initial capacity. A size <= 0 uses DefaultSize.
func NewSource(r io.Reader, size int) *Source {
	if size <= 0 {
		size = DefaultSize
	}
	return &Source{
		r:     r,
		cache: make([]byte, size),
	}
}

// Reset re-arms the Source on r, dropping anything still buffered. The
// buffer itself is kept.
func (s *Source) Reset(r io.Reader) {
	s.r = r
	s.off, s.end = 0, 0
	s.pos = 0
	s.eof = false
}

// Buffered returns the unconsumed span. The slice is only valid until the
// next call to Fill, Advance or Reset.
func (s *Source) Buffered() []byte {
	return s.cache[s.off:s.end]
}

// Len is len(s.Buffered()).
func (s *Source) Len() int {
	return s.end - s.off
}

// Advance consumes n buffered bytes. It panics if n is negative or larger
// than the buffered span.
func (s *Source) Advance(n int) {
	if n < 0 || n > s.end-s.off {
		panic("rawreader: advance out of range")
	}
	s.off += n
	s.pos += int64(n)
	if s.off == s.end {
		s.off, s.end = 0, 0
	}
}

// Offset is the number of bytes consumed since the last Reset.
func (s *Source) Offset() int64 {
	return s.pos
}

// Fill makes sure at least n bytes are buffered without consuming any of
// them. It returns the number of bytes buffered, which is less than n only
// once the underlying reader is exhausted; 0 means there is nothing left at
// all. A read error other than io.EOF is returned as is, along with whatever
// is buffered.
func (s *Source) Fill(n int) (int, error) {
	empty := 0
	for s.end-s.off < n && !s.eof {
		s.makeRoom(n)
		rn, err := s.r.Read(s.cache[s.end:])
		s.end += rn
		if err == io.EOF {
			s.eof = true
			break
		}
		if err != nil {
			return s.end - s.off, err
		}
		if rn > 0 {
			empty = 0
		} else if empty++; empty == maxEmptyReads {
			return s.end - s.off, io.ErrNoProgress
		}
	}
	return s.end - s.off, nil
}

// Same limit bufio uses before giving up on a reader returning 0, nil.
const maxEmptyReads = 100

// makeRoom compacts the buffer, then grows it if n bytes still don't fit.
func (s *Source) makeRoom(n int) {
	if s.off > 0 && len(s.cache)-s.end < n-(s.end-s.off) {
		s.end = copy(s.cache, s.cache[s.off:s.end])
		s.off = 0
	}
	if len(s.cache)-s.off < n {
		newCache := make([]byte, max(n, 2*len(s.cache)))
		s.end = copy(newCache, s.cache[s.off:s.end])
		s.off = 0
		s.cache = newCache
	}
}

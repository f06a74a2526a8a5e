package decompress

import "io"

// tracker sits between a library decoder and the Input, remembering how
// often the Input ran dry during the current frame. Decoders that stop at
// a block boundary report a clean end on a bare io.EOF, so a dry hit is
// the only reliable sign of truncation.
type tracker struct {
	in   Input
	dry  int
	last int
}

func (t *tracker) reset(in Input) {
	t.in = in
	t.dry = 0
	t.last = 0
}

func (t *tracker) Read(p []byte) (int, error) {
	n, err := t.in.Read(p)
	t.last = n
	if err == io.EOF {
		t.dry++
	}
	return n, err
}

func (t *tracker) ReadByte() (byte, error) {
	b, err := t.in.ReadByte()
	if err == io.EOF {
		t.dry++
		t.last = 0
	} else {
		t.last = 1
	}
	return b, err
}

func (t *tracker) Peek(n int) ([]byte, error) {
	return t.in.Peek(n)
}

// result classifies the outcome of a read from a decoder that only ever
// asks for bytes its frame still owns. For those any dry hit means the
// frame was cut short, even when the decoder itself saw a clean end: lz4
// without a content checksum stops quietly at a block boundary.
func (t *tracker) result(n int, err error) (Result, error) {
	switch {
	case err == nil:
		return Result{N: n}, nil
	case t.dry > 0:
		if err == io.EOF {
			err = nil
		}
		return Result{N: n}, truncated(err)
	case err == io.EOF:
		return Result{N: n, Status: StatusEnd}, nil
	}
	return Result{N: n}, err
}

package framereader

import (
	"io"

	"github.com/CalebQ42/framereader/internal/decompress"
	"github.com/CalebQ42/framereader/internal/rawreader"
)

// feed hands a Source's buffered bytes to a decode engine. Nothing it hands
// out is consumed until the step reconciles: served counts the bytes given
// out since the last commit, and the engine's Unread says how many of those
// belong to the next frame.
type feed struct {
	src    *rawreader.Source
	served int
	err    error
}

func (f *feed) reset() {
	f.served = 0
	f.err = nil
}

// more makes sure at least one unserved byte is buffered. Once the
// buffered span is used up everything served is committed, since the
// engine has taken all of it.
func (f *feed) more() error {
	if f.served < f.src.Len() {
		return nil
	}
	f.src.Advance(f.served)
	f.served = 0
	n, err := f.src.Fill(1)
	if n == 0 {
		if err != nil {
			f.err = err
			return err
		}
		return io.EOF
	}
	return nil
}

func (f *feed) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := f.more(); err != nil {
		return 0, err
	}
	n := copy(p, f.src.Buffered()[f.served:])
	f.served += n
	return n, nil
}

func (f *feed) ReadByte() (byte, error) {
	if err := f.more(); err != nil {
		return 0, err
	}
	b := f.src.Buffered()[f.served]
	f.served++
	return b, nil
}

// Peek looks past the served bytes without serving anything.
func (f *feed) Peek(n int) ([]byte, error) {
	_, err := f.src.Fill(f.served + n)
	if err != nil {
		f.err = err
	}
	b := f.src.Buffered()[f.served:]
	if len(b) > n {
		b = b[:n]
	}
	return b, err
}

// commit consumes the bytes the engine really used and returns them to the
// Source's unconsumed span otherwise.
func (f *feed) commit(unread int) {
	if unread > f.served {
		unread = f.served
	}
	f.src.Advance(f.served - unread)
	f.served = 0
}

// step runs one decode step into p.
func (r *Reader) step(p []byte) (int, error) {
	// Prefill so the engine starts with something to chew on.
	n, err := r.src.Fill(4)
	if n == 0 {
		if err != nil {
			return 0, &Error{Op: "source", Kind: KindIO, Err: err}
		}
		return 0, &Error{Op: "read", Kind: KindTruncated, Err: ErrUnexpectedEOF}
	}
	r.feed.reset()
	res, err := r.engine.Decode(p)
	if err != nil {
		// Nothing served by a failed step is consumed.
		r.feed.served = 0
		return res.N, engineError(r.feed.err, err)
	}
	r.feed.commit(res.Unread)
	if res.Status == decompress.StatusEnd {
		r.ended = true
	}
	return res.N, nil
}

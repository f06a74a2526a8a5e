package framereader

import (
	"io"

	"github.com/CalebQ42/framereader/internal/decompress"
)

// Reader decodes one frame of a concatenated stream at a time. Read returns
// io.EOF at the end of the current frame without consuming any of the next
// one; Reopen then moves on to the next frame.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	src    *Source
	feed   feed
	engine decompress.Engine
	err    error
	opts   Options
	frame  int
	codec  Codec
	ended  bool // Read returns io.EOF
	clean  bool // the engine finished its last frame and can be re-armed
	closed bool
}

// Open starts decoding the first frame in src with DefaultOptions. It
// returns io.EOF, and a nil Reader, if src holds no data at all.
func Open(src *Source) (*Reader, error) {
	return OpenWithOptions(src, nil)
}

// OpenWithOptions is Open with the given options. nil means DefaultOptions.
func OpenWithOptions(src *Source, opts *Options) (*Reader, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	r := &Reader{
		opts:  *opts,
		frame: -1,
	}
	r.setSource(src)
	err := r.begin("open")
	if err != nil {
		if r.engine != nil {
			r.engine.Close()
		}
		return nil, err
	}
	return r, nil
}

func (r *Reader) setSource(src *Source) {
	r.src = src
	r.feed.src = src
}

// Reopen moves on to the next frame. If src is not nil it replaces the
// current Source, which is left as is. Reopen returns io.EOF when there
// are no more frames.
//
// The decode engine is re-armed in place if the previous frame was decoded
// to its end, and rebuilt otherwise.
func (r *Reader) Reopen(src *Source) error {
	if r.closed {
		return &Error{Op: "reopen", Kind: KindProtocol, Err: ErrClosed}
	}
	if src != nil {
		r.setSource(src)
	}
	return r.begin("reopen")
}

// sniff makes sure a whole frame header is buffered and works out the
// frame's codec.
func (r *Reader) sniff(op string) (Codec, error) {
	codec := r.opts.Codec
	want := codec.HeaderLen()
	if codec == AutoDetect {
		want = decompress.SniffLen
	}
	n, err := r.src.Fill(want)
	if err != nil {
		return codec, &Error{Op: "source", Kind: KindIO, Err: err}
	}
	if n == 0 {
		return codec, io.EOF
	}
	if codec == AutoDetect {
		var ok bool
		codec, ok = decompress.Detect(r.src.Buffered())
		if !ok {
			if n < want {
				return codec, &Error{Op: op, Kind: KindFormat, Err: ErrTooSmall}
			}
			return codec, &Error{Op: op, Kind: KindFormat, Err: ErrUnknownFormat}
		}
		want = codec.HeaderLen()
		n, err = r.src.Fill(want)
		if err != nil {
			return codec, &Error{Op: "source", Kind: KindIO, Err: err}
		}
	}
	if n < want {
		return codec, &Error{Op: op, Kind: KindFormat, Err: ErrTooSmall}
	}
	return codec, nil
}

func (r *Reader) begin(op string) error {
	codec, err := r.sniff(op)
	if err == io.EOF {
		r.ended = true
		r.err = nil
		return io.EOF
	}
	if err != nil {
		return r.fail(err)
	}
	if r.engine != nil && (!r.clean || codec != r.codec) {
		r.engine.Close()
		r.engine = nil
	}
	if r.engine == nil {
		r.engine, err = decompress.New(codec, r.opts.MemLimit)
		if err != nil {
			return r.fail(&Error{Op: "init", Kind: KindFormat, Err: err})
		}
	}
	r.codec = codec
	r.feed.reset()
	err = r.engine.Begin(&r.feed)
	if err != nil {
		r.feed.served = 0
		return r.fail(engineError(r.feed.err, err))
	}
	r.feed.commit(0)
	r.ended = false
	r.clean = false
	r.err = nil
	r.frame++
	return nil
}

// fail makes err sticky for the current frame.
func (r *Reader) fail(err error) error {
	r.err = err
	r.ended = false
	r.clean = false
	return err
}

// Read decodes into p. It returns 0, io.EOF once the current frame has
// ended; short reads carry no such meaning. An empty p is an error.
func (r *Reader) Read(p []byte) (int, error) {
	switch {
	case r.closed:
		return 0, &Error{Op: "read", Kind: KindProtocol, Err: ErrClosed}
	case r.err != nil:
		return 0, r.err
	case r.ended:
		return 0, io.EOF
	case len(p) == 0:
		return 0, &Error{Op: "read", Kind: KindProtocol, Err: ErrEmptyBuffer}
	}
	var total int
	for total < len(p) && !r.ended {
		n, err := r.step(p[total:])
		total += n
		if err != nil {
			return total, r.fail(err)
		}
	}
	if r.ended {
		r.clean = true
		if total == 0 {
			return 0, io.EOF
		}
	}
	return total, nil
}

// WriteTo writes the rest of the current frame to w.
func (r *Reader) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, 32<<10)
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			wn, werr := w.Write(buf[:n])
			total += int64(wn)
			if werr != nil {
				return total, werr
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Frame is the zero based index of the current frame.
func (r *Reader) Frame() int {
	return r.frame
}

// Codec of the current frame.
func (r *Reader) Codec() Codec {
	return r.codec
}

// InputOffset is how many bytes of the Source have been consumed. Right
// after a frame ends it is the frame's end offset.
func (r *Reader) InputOffset() int64 {
	return r.src.Offset()
}

// Close releases the decode engine. The Source is not closed.
func (r *Reader) Close() error {
	if r.closed {
		return &Error{Op: "close", Kind: KindProtocol, Err: ErrClosed}
	}
	r.closed = true
	var err error
	if r.engine != nil {
		err = r.engine.Close()
		r.engine = nil
	}
	return err
}

package framereader

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Stats sums up a call to Unframe.
type Stats struct {
	Frames int   // frames decoded
	In     int64 // compressed bytes consumed
	Out    int64 // decompressed bytes written
}

func (o *Options) logger() zerolog.Logger {
	if !o.Verbose {
		return zerolog.Nop()
	}
	out := o.LogOutput
	if out == nil {
		out = os.Stderr
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    out != os.Stderr,
	}).With().Timestamp().Logger()
}

// Unframe decodes every frame in src and writes the concatenated output to
// dst. An empty src is not an error.
func Unframe(dst io.Writer, src io.Reader, opts *Options) (Stats, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	return UnframeSource(dst, NewSource(src, opts.BufferSize), opts)
}

// UnframeSource is Unframe reading from a Source, so its buffer can be
// reused with Reset.
func UnframeSource(dst io.Writer, s *Source, opts *Options) (Stats, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	log := opts.logger()
	var st Stats
	r, err := OpenWithOptions(s, opts)
	if err == io.EOF {
		log.Debug().Msg("empty input")
		return st, nil
	}
	if err != nil {
		log.Error().Err(err).Msg("open failed")
		return st, err
	}
	defer r.Close()
	for {
		start := s.Offset()
		n, err := io.Copy(dst, r)
		st.Out += n
		st.In = s.Offset()
		if err != nil {
			log.Error().Err(err).Int("frame", r.Frame()).Int64("offset", start).Msg("decode failed")
			return st, err
		}
		st.Frames++
		log.Info().
			Int("frame", r.Frame()).
			Stringer("codec", r.Codec()).
			Int64("in", s.Offset()-start).
			Int64("out", n).
			Msg("frame decoded")
		err = r.Reopen(nil)
		if err == io.EOF {
			return st, nil
		}
		if err != nil {
			log.Error().Err(err).Int64("offset", s.Offset()).Msg("reopen failed")
			return st, err
		}
	}
}

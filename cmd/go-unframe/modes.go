package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/blake3"

	"github.com/CalebQ42/framereader"
	"github.com/CalebQ42/framereader/internal/threadmanager"
)

func (a *app) openFile(name string) (io.Reader, func(), error) {
	if name == "-" {
		return a.stdin, func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, &failure{file: name, call: "open", err: err}
	}
	return f, func() { f.Close() }, nil
}

// rewindable reports whether in is a regular file that can be read twice.
func rewindable(in io.Reader) (io.Seeker, bool) {
	f, ok := in.(*os.File)
	if !ok {
		return nil, false
	}
	fi, err := f.Stat()
	if err != nil || !fi.Mode().IsRegular() {
		return nil, false
	}
	return f, true
}

// drain writes every remaining frame of r to w.
func (a *app) drain(name string, r *framereader.Reader, w io.Writer) error {
	for {
		n, err := io.Copy(w, r)
		if err != nil {
			call := "write"
			var e *framereader.Error
			if errors.As(err, &e) {
				call = "read"
			}
			return &failure{file: name, call: call, err: err}
		}
		a.log.Debug().Str("file", name).Int("frame", r.Frame()).Int64("out", n).Msg("frame decoded")
		err = r.Reopen(nil)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &failure{file: name, call: "reopen", err: err}
		}
	}
}

// decode writes the decoded input to stdout. A file that can be rewound is
// checked in full first, so nothing is written for a damaged file.
func (a *app) decode(name string) error {
	in, done, err := a.openFile(name)
	if err != nil {
		return err
	}
	defer done()
	src := framereader.NewSource(in, a.cfg.BufferSize)
	r, err := framereader.OpenWithOptions(src, a.options())
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return &failure{file: name, call: "open", err: err}
	}
	defer r.Close()
	if seeker, ok := rewindable(in); ok && !a.stream {
		if err = a.drain(name, r, io.Discard); err != nil {
			return err
		}
		if _, err = seeker.Seek(0, io.SeekStart); err != nil {
			return &failure{file: name, call: "seek", err: err}
		}
		src.Reset(in)
		if err = r.Reopen(src); err != nil {
			if err == io.EOF {
				err = errors.New("file is empty after rewinding")
			}
			return &failure{file: name, call: "reopen", err: err}
		}
	}
	return a.drain(name, r, a.stdout)
}

// testAll checks every file, several at once.
func (a *app) testAll(files []string) error {
	m := threadmanager.NewManager(a.cfg.Jobs)
	// One Source per slot, so each worker keeps reusing its buffer.
	srcs := make([]*framereader.Source, m.Slots())
	for _, name := range files {
		name := name
		m.Go(func(slot int) error {
			in, done, err := a.openFile(name)
			if err != nil {
				return err
			}
			defer done()
			if srcs[slot] == nil {
				srcs[slot] = framereader.NewSource(in, a.cfg.BufferSize)
			} else {
				srcs[slot].Reset(in)
			}
			opts := a.options()
			opts.Verbose = false
			st, err := framereader.UnframeSource(io.Discard, srcs[slot], opts)
			if err != nil {
				a.log.Error().Err(err).Str("file", name).Msg("test failed")
				return &failure{file: name, call: "test", err: err}
			}
			a.log.Info().
				Str("file", name).
				Int("frames", st.Frames).
				Str("in", humanize.IBytes(uint64(st.In))).
				Str("out", humanize.IBytes(uint64(st.Out))).
				Msg("ok")
			return nil
		})
	}
	err := m.Wait()
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			fmt.Fprintln(a.stderr, report(e))
		}
		return errReported
	}
	return err
}

// list prints one line per frame with its sizes and a BLAKE3 digest of its
// decoded contents.
func (a *app) list(name string) error {
	in, done, err := a.openFile(name)
	if err != nil {
		return err
	}
	defer done()
	src := framereader.NewSource(in, a.cfg.BufferSize)
	tw := tabwriter.NewWriter(a.stdout, 0, 8, 2, ' ', tabwriter.AlignRight)
	defer tw.Flush()
	if name != "-" {
		fmt.Fprintf(tw, "%s:\n", name)
	}
	fmt.Fprintln(tw, "Frame\tCodec\tCompressed\tUncompressed\tRatio\tBLAKE3\t")
	r, err := framereader.OpenWithOptions(src, a.options())
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return &failure{file: name, call: "open", err: err}
	}
	defer r.Close()
	var prev, totalOut int64
	for {
		h := blake3.New()
		n, err := io.Copy(h, r)
		if err != nil {
			return &failure{file: name, call: "read", err: err}
		}
		end := r.InputOffset()
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%x\t\n",
			r.Frame()+1, r.Codec(),
			humanize.IBytes(uint64(end-prev)), humanize.IBytes(uint64(n)),
			ratio(end-prev, n), h.Sum(nil)[:8])
		prev = end
		totalOut += n
		err = r.Reopen(nil)
		if err == io.EOF {
			break
		}
		if err != nil {
			return &failure{file: name, call: "reopen", err: err}
		}
	}
	fmt.Fprintf(tw, "%d\t\t%s\t%s\t%s\t\t\n",
		r.Frame()+1, humanize.IBytes(uint64(prev)), humanize.IBytes(uint64(totalOut)), ratio(prev, totalOut))
	return nil
}

func ratio(in, out int64) string {
	if out == 0 {
		return "---"
	}
	return fmt.Sprintf("%.3f", float64(in)/float64(out))
}

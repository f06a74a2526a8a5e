package decompress

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

const (
	gzipHeaderLen = 10
	// Inflate keeps a 32 KiB window plus its Huffman tables.
	flateMem = 48 << 10
)

type GZip struct {
	limit int64
	in    tracker
	rdr   *gzip.Reader
}

func NewGZip(limit int64) *GZip {
	return &GZip{limit: limit}
}

func (g *GZip) Begin(in Input) error {
	g.in.reset(in)
	if g.limit > 0 && flateMem > g.limit {
		return fmt.Errorf("%w: inflate needs %d bytes", ErrMemLimit, flateMem)
	}
	var err error
	if g.rdr == nil {
		g.rdr, err = gzip.NewReader(&g.in)
	} else {
		err = g.rdr.Reset(&g.in)
	}
	if err != nil {
		g.rdr = nil
		if g.in.dry > 0 || errors.Is(err, io.ErrUnexpectedEOF) {
			return truncated(err)
		}
		return err
	}
	g.rdr.Multistream(false)
	return nil
}

func (g *GZip) Decode(p []byte) (Result, error) {
	if g.rdr == nil {
		return Result{}, errors.New("gzip: decode before begin")
	}
	n, err := g.rdr.Read(p)
	return g.in.result(n, err)
}

func (g *GZip) Close() error {
	g.rdr = nil
	g.in.reset(nil)
	return nil
}

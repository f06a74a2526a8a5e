package decompress

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

const zlibHeaderLen = 2

type Zlib struct {
	limit int64
	in    tracker
	rdr   io.ReadCloser
}

func NewZlib(limit int64) *Zlib {
	return &Zlib{limit: limit}
}

func (z *Zlib) Begin(in Input) error {
	z.in.reset(in)
	if z.limit > 0 && flateMem > z.limit {
		return fmt.Errorf("%w: inflate needs %d bytes", ErrMemLimit, flateMem)
	}
	var err error
	if z.rdr == nil {
		z.rdr, err = zlib.NewReader(&z.in)
	} else {
		err = z.rdr.(zlib.Resetter).Reset(&z.in, nil)
	}
	if err != nil {
		z.rdr = nil
		if z.in.dry > 0 || errors.Is(err, io.ErrUnexpectedEOF) {
			return truncated(err)
		}
		return err
	}
	return nil
}

func (z *Zlib) Decode(p []byte) (Result, error) {
	if z.rdr == nil {
		return Result{}, errors.New("zlib: decode before begin")
	}
	n, err := z.rdr.Read(p)
	return z.in.result(n, err)
}

func (z *Zlib) Close() error {
	z.rdr = nil
	z.in.reset(nil)
	return nil
}

package decompress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

const (
	lz4HeaderLen   = 7
	lz4Magic32     = 0x184D2204
	lz4LegacyMagic = 0x184C2102
)

type Lz4 struct {
	limit int64
	in    tracker
	rdr   *lz4.Reader
}

func NewLz4(limit int64) *Lz4 {
	return &Lz4{limit: limit}
}

// lz4BlockSize maps the block maximum size index of the BD byte.
func lz4BlockSize(bd byte) int64 {
	switch (bd >> 4) & 7 {
	case 4:
		return 64 << 10
	case 5:
		return 256 << 10
	case 6:
		return 1 << 20
	case 7:
		return 4 << 20
	}
	return 0
}

func (l *Lz4) Begin(in Input) error {
	l.in.reset(in)
	hdr, _ := in.Peek(lz4HeaderLen)
	if len(hdr) < 4 {
		return truncated(nil)
	}
	switch binary.LittleEndian.Uint32(hdr) {
	case lz4Magic32:
	case lz4LegacyMagic:
		return fmt.Errorf("%w: legacy lz4 frame", ErrUnsupported)
	default:
		return lz4.ErrInvalidFrame
	}
	if len(hdr) == lz4HeaderLen {
		// The reader keeps a decoded and a compressed block in memory.
		need := 2 * lz4BlockSize(hdr[5])
		if l.limit > 0 && need > l.limit {
			return fmt.Errorf("%w: %d byte blocks exceed %d", ErrMemLimit, need, l.limit)
		}
	}
	if l.rdr == nil {
		l.rdr = lz4.NewReader(&l.in)
		if err := l.rdr.Apply(lz4.ConcurrencyOption(1)); err != nil {
			return err
		}
	} else {
		l.rdr.Reset(&l.in)
	}
	// A nil read parses the frame descriptor.
	if _, err := l.rdr.Read(nil); err != nil {
		l.rdr = nil
		if l.in.dry > 0 || errors.Is(err, io.ErrUnexpectedEOF) {
			return truncated(err)
		}
		return err
	}
	return nil
}

func (l *Lz4) Decode(p []byte) (Result, error) {
	if l.rdr == nil {
		return Result{}, errors.New("lz4: decode before begin")
	}
	n, err := l.rdr.Read(p)
	return l.in.result(n, err)
}

func (l *Lz4) Close() error {
	l.rdr = nil
	l.in.reset(nil)
	return nil
}

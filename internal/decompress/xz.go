package decompress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

const xzHeaderLen = xz.HeaderLen

const (
	filterLZMA2 = 0x21
	maxBlockHdr = 1024
)

// Message of the unexported error the library returns when its single
// stream probe finds another byte.
const xzTrailing = "xz: unexpected data after stream"

type Xz struct {
	in  xzInput
	rdr *xz.Reader
}

func NewXz(limit int64) *Xz {
	return &Xz{in: xzInput{limit: limit}}
}

func (x *Xz) Begin(in Input) error {
	x.in.reset(in)
	x.rdr = nil
	rdr, err := xz.ReaderConfig{
		DictCap:      lzma.MinDictCap,
		SingleStream: true,
	}.NewReader(&x.in)
	if err != nil {
		if x.in.dry > 0 || errors.Is(err, io.ErrUnexpectedEOF) {
			return truncated(err)
		}
		return err
	}
	if err = x.in.guard(); err != nil {
		return err
	}
	x.rdr = rdr
	return nil
}

// xzInput follows the layout of the stream as the library reads it, so
// every block header can be sized up before the library sees it. The
// library allocates each block's dictionary from that block's own header.
type xzInput struct {
	tracker
	limit   int64
	scan    xzScan
	refused error
	one     [1]byte
}

func (in *xzInput) reset(i Input) {
	in.tracker.reset(i)
	in.scan.reset()
	in.refused = nil
}

// guard refuses a block whose dictionary exceeds the limit. It only looks
// when the next byte starts a block header or the index.
func (in *xzInput) guard() error {
	if in.refused != nil {
		return in.refused
	}
	if in.limit <= 0 || !in.scan.atBlock() {
		return nil
	}
	b, err := in.Peek(1)
	if err != nil || len(b) == 0 || b[0] == 0 {
		return nil
	}
	size := (int(b[0]) + 1) * 4
	hdr, err := in.Peek(size)
	if err != nil || len(hdr) < size {
		// Cut short: the library reports the truncation itself.
		return nil
	}
	dict, err := xzBlockDict(hdr)
	if err != nil {
		return nil
	}
	if dict > in.limit {
		in.refused = fmt.Errorf("%w: dictionary of %d bytes exceeds %d", ErrMemLimit, dict, in.limit)
		return in.refused
	}
	return nil
}

func (in *xzInput) Read(p []byte) (int, error) {
	if err := in.guard(); err != nil {
		return 0, err
	}
	n, err := in.tracker.Read(p)
	in.scan.feed(p[:n])
	return n, err
}

func (in *xzInput) ReadByte() (byte, error) {
	if err := in.guard(); err != nil {
		return 0, err
	}
	b, err := in.tracker.ReadByte()
	if err == nil {
		in.one[0] = b
		in.scan.feed(in.one[:])
	}
	return b, err
}

// xzBlockDict returns the LZMA2 dictionary size a block header asks for, or
// zero if the block does not use LZMA2.
func xzBlockDict(hdr []byte) (int64, error) {
	if len(hdr) < 8 || len(hdr) > maxBlockHdr {
		return 0, errors.New("bad block header size")
	}
	flags := hdr[1]
	p := hdr[2 : len(hdr)-4]
	if flags&0x40 != 0 {
		if _, n := binary.Uvarint(p); n > 0 {
			p = p[n:]
		} else {
			return 0, errors.New("bad compressed size")
		}
	}
	if flags&0x80 != 0 {
		if _, n := binary.Uvarint(p); n > 0 {
			p = p[n:]
		} else {
			return 0, errors.New("bad uncompressed size")
		}
	}
	for i := 0; i < int(flags&3)+1; i++ {
		id, n := binary.Uvarint(p)
		if n <= 0 {
			return 0, errors.New("bad filter id")
		}
		p = p[n:]
		sz, n := binary.Uvarint(p)
		if n <= 0 || uint64(len(p)-n) < sz {
			return 0, errors.New("bad filter properties")
		}
		props := p[n : n+int(sz)]
		p = p[n+int(sz):]
		if id == filterLZMA2 && len(props) == 1 {
			return lzma.DecodeDictCap(props[0])
		}
	}
	return 0, nil
}

func (x *Xz) Decode(p []byte) (Result, error) {
	if x.rdr == nil {
		return Result{}, errors.New("xz: decode before begin")
	}
	n, err := x.rdr.Read(p)
	switch {
	case x.in.refused != nil:
		return Result{N: n}, x.in.refused
	case err == nil:
		return Result{N: n}, nil
	case err == io.EOF:
		// The probe after the stream is expected to find the end of input
		// once. A second dry hit means a block header was cut off.
		if x.in.dry > 1 {
			return Result{N: n}, truncated(nil)
		}
		return Result{N: n, Status: StatusEnd}, nil
	case err.Error() == xzTrailing && x.in.last == 1 && x.in.dry == 0:
		// The probe pulled the first byte of whatever follows.
		return Result{N: n, Unread: 1, Status: StatusEnd}, nil
	case errors.Is(err, io.ErrUnexpectedEOF) || x.in.dry > 0:
		return Result{N: n}, truncated(err)
	}
	return Result{N: n}, err
}

func (x *Xz) Close() error {
	x.rdr = nil
	x.in.reset(nil)
	return nil
}

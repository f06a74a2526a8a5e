package decompress

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// Codec identifies a frame format.
type Codec uint8

// The frame formats that can be decoded.
const (
	AutoDetect Codec = iota
	XZCompression
	LZ4Compression
	GzipCompression
	ZlibCompression
)

var (
	ErrMemLimit    = errors.New("memory usage limit reached")
	ErrTruncated   = errors.New("compressed data is truncated")
	ErrUnsupported = errors.New("unsupported frame format")
)

// SniffLen is how many bytes Detect needs to recognize every codec.
const SniffLen = 6

var (
	xzMagic  = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}
	lz4Magic = []byte{0x04, 0x22, 0x4D, 0x18}
	gzMagic  = []byte{0x1F, 0x8B}
)

func (c Codec) String() string {
	switch c {
	case AutoDetect:
		return "auto"
	case XZCompression:
		return "xz"
	case LZ4Compression:
		return "lz4"
	case GzipCompression:
		return "gzip"
	case ZlibCompression:
		return "zlib"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCodec is the inverse of Codec.String. The empty string means
// AutoDetect.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		return AutoDetect, nil
	case "xz":
		return XZCompression, nil
	case "lz4":
		return LZ4Compression, nil
	case "gzip", "gz":
		return GzipCompression, nil
	case "zlib":
		return ZlibCompression, nil
	default:
		return 0, fmt.Errorf("unknown codec %q", name)
	}
}

// HeaderLen is the fixed size of the frame header. At least this many
// bytes must be available before a frame can be started.
func (c Codec) HeaderLen() int {
	switch c {
	case XZCompression:
		return xzHeaderLen
	case LZ4Compression:
		return lz4HeaderLen
	case GzipCompression:
		return gzipHeaderLen
	case ZlibCompression:
		return zlibHeaderLen
	default:
		return 0
	}
}

// Detect recognizes a frame by its leading bytes.
func Detect(b []byte) (Codec, bool) {
	switch {
	case bytes.HasPrefix(b, xzMagic):
		return XZCompression, true
	case bytes.HasPrefix(b, lz4Magic):
		return LZ4Compression, true
	case bytes.HasPrefix(b, gzMagic):
		return GzipCompression, true
	case len(b) >= 2 && b[0]&0x0F == 8 && b[0]>>4 <= 7 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0:
		return ZlibCompression, true
	}
	return AutoDetect, false
}

// New returns an Engine for the codec whose working memory is capped at
// limit bytes.
func New(c Codec, limit int64) (Engine, error) {
	switch c {
	case XZCompression:
		return NewXz(limit), nil
	case LZ4Compression:
		return NewLz4(limit), nil
	case GzipCompression:
		return NewGZip(limit), nil
	case ZlibCompression:
		return NewZlib(limit), nil
	default:
		return nil, fmt.Errorf("%w: codec %v", ErrUnsupported, c)
	}
}

// truncated decides whether a failed or finished step was caused by the
// input running dry, and wraps err accordingly.
func truncated(err error) error {
	if err == nil || errors.Is(err, ErrTruncated) {
		return ErrTruncated
	}
	return fmt.Errorf("%w: %v", ErrTruncated, err)
}

package framereader

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rootxz "github.com/therootcompany/xz"
	"github.com/ulikunitz/xz"

	"github.com/CalebQ42/framereader/internal/xztest"
)

var codecs = []Codec{XZ, LZ4, Gzip, Zlib}

// frame compresses each chunk into a single frame of the given codec.
func frame(t testing.TB, c Codec, chunks ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	switch c {
	case XZ:
		w, err = xz.WriterConfig{BlockSize: 1 << 10}.NewWriter(&buf)
	case LZ4:
		lw := lz4.NewWriter(&buf)
		err = lw.Apply(lz4.BlockSizeOption(lz4.Block64Kb), lz4.ChecksumOption(false))
		w = lw
	case Gzip:
		w = gzip.NewWriter(&buf)
	case Zlib:
		w = zlib.NewWriter(&buf)
	default:
		t.Fatalf("no writer for %v", c)
	}
	require.NoError(t, err)
	for _, s := range chunks {
		_, err = w.Write([]byte(s))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// readAll decodes every frame of src, checking that each frame ends exactly
// where ends says it does.
func readAll(t *testing.T, src *Source, opts *Options, ends []int64) string {
	t.Helper()
	r, err := OpenWithOptions(src, opts)
	if err == io.EOF {
		require.Empty(t, ends)
		return ""
	}
	require.NoError(t, err)
	defer r.Close()
	var out strings.Builder
	for i := 0; ; i++ {
		_, err = io.Copy(&out, r)
		require.NoError(t, err)
		if ends != nil {
			require.Less(t, i, len(ends))
			assert.Equal(t, ends[i], r.InputOffset(), "end of frame %d", i)
		}
		err = r.Reopen(nil)
		if err == io.EOF {
			if ends != nil {
				assert.Equal(t, len(ends), i+1)
			}
			return out.String()
		}
		require.NoError(t, err)
	}
}

func concat(t *testing.T, c Codec, parts ...string) ([]byte, []int64) {
	var stream []byte
	var ends []int64
	for _, p := range parts {
		stream = append(stream, frame(t, c, p)...)
		ends = append(ends, int64(len(stream)))
	}
	return stream, ends
}

func TestRoundTrip(t *testing.T) {
	parts := []string{
		"hello",
		"",
		strings.Repeat("squash the frames flat. ", 5000),
		"x",
		strings.Repeat("0123456789", 20000),
	}
	for _, c := range codecs {
		t.Run(c.String(), func(t *testing.T) {
			stream, ends := concat(t, c, parts...)
			got := readAll(t, NewSource(bytes.NewReader(stream), 0), nil, ends)
			assert.Equal(t, strings.Join(parts, ""), got)
		})
	}
}

func TestRoundTripTrickle(t *testing.T) {
	parts := []string{"one", strings.Repeat("two ", 3000), "three"}
	for _, c := range codecs {
		t.Run(c.String(), func(t *testing.T) {
			stream, ends := concat(t, c, parts...)
			// A one byte buffer fed one byte at a time makes every read
			// cross a refill.
			src := NewSource(iotest.OneByteReader(bytes.NewReader(stream)), 1)
			got := readAll(t, src, &Options{Codec: c, MemLimit: DefaultMemLimit}, ends)
			assert.Equal(t, strings.Join(parts, ""), got)
		})
	}
}

func TestFooBarBaz(t *testing.T) {
	for _, c := range codecs {
		t.Run(c.String(), func(t *testing.T) {
			var stream []byte
			stream = append(stream, frame(t, c)...)
			stream = append(stream, frame(t, c, "foo")...)
			stream = append(stream, frame(t, c, "bar", "baz")...)
			got := readAll(t, NewSource(bytes.NewReader(stream), 0), nil, nil)
			assert.Equal(t, "foobarbaz", got)
		})
	}
}

func TestMixedCodecs(t *testing.T) {
	var stream []byte
	for i, c := range codecs {
		stream = append(stream, frame(t, c, strings.Repeat(c.String(), i+1))...)
	}
	r, err := Open(NewSource(bytes.NewReader(stream), 0))
	require.NoError(t, err)
	defer r.Close()
	for i, c := range codecs {
		if i > 0 {
			require.NoError(t, r.Reopen(nil))
		}
		assert.Equal(t, c, r.Codec())
		assert.Equal(t, i, r.Frame())
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat(c.String(), i+1), string(got))
	}
	assert.Equal(t, io.EOF, r.Reopen(nil))
}

func TestEmptyStream(t *testing.T) {
	r, err := Open(NewSource(bytes.NewReader(nil), 0))
	assert.Nil(t, r)
	assert.Equal(t, io.EOF, err)
}

func TestEmptyFrame(t *testing.T) {
	for _, c := range codecs {
		t.Run(c.String(), func(t *testing.T) {
			r, err := Open(NewSource(bytes.NewReader(frame(t, c)), 0))
			require.NoError(t, err)
			n, err := r.Read(make([]byte, 16))
			assert.Equal(t, 0, n)
			assert.Equal(t, io.EOF, err)
			assert.Equal(t, io.EOF, r.Reopen(nil))
		})
	}
}

func TestEndIsIdempotent(t *testing.T) {
	stream := append(frame(t, XZ, "first"), frame(t, XZ, "second")...)
	src := NewSource(bytes.NewReader(stream), 0)
	r, err := Open(src)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "first", string(got))
	off := r.InputOffset()
	buffered := src.Len()
	for i := 0; i < 3; i++ {
		n, err := r.Read(make([]byte, 8))
		assert.Equal(t, 0, n)
		assert.Equal(t, io.EOF, err)
	}
	assert.Equal(t, off, r.InputOffset())
	assert.Equal(t, buffered, src.Len())
}

func TestReuseMatchesFresh(t *testing.T) {
	second := strings.Repeat("reuse ", 4000)
	for _, c := range codecs {
		t.Run(c.String(), func(t *testing.T) {
			f2 := frame(t, c, second)
			stream := append(frame(t, c, "warm up"), f2...)

			r, err := Open(NewSource(bytes.NewReader(stream), 0))
			require.NoError(t, err)
			_, err = io.Copy(io.Discard, r)
			require.NoError(t, err)
			require.NoError(t, r.Reopen(nil))
			reused, err := io.ReadAll(r)
			require.NoError(t, err)

			fresh, err := Open(NewSource(bytes.NewReader(f2), 0))
			require.NoError(t, err)
			want, err := io.ReadAll(fresh)
			require.NoError(t, err)

			assert.Equal(t, want, reused)
			assert.Equal(t, second, string(reused))
		})
	}
}

func TestRewind(t *testing.T) {
	stream, _ := concat(t, XZ, "abc", "def")
	src := NewSource(bytes.NewReader(stream), 0)
	r, err := Open(src)
	require.NoError(t, err)
	var first bytes.Buffer
	for {
		_, err = io.Copy(&first, r)
		require.NoError(t, err)
		if err = r.Reopen(nil); err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	// Start over on a new Source without giving up the Reader.
	require.NoError(t, r.Reopen(NewSource(bytes.NewReader(stream), 0)))
	second, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", first.String())
	assert.Equal(t, "abc", string(second))
	assert.Equal(t, int64(len(stream)), src.Offset())
}

func TestTruncated(t *testing.T) {
	data := strings.Repeat("cut me anywhere. ", 300)
	for _, c := range codecs {
		t.Run(c.String(), func(t *testing.T) {
			full := frame(t, c, data)
			for cut := 1; cut < len(full); cut++ {
				r, err := Open(NewSource(bytes.NewReader(full[:cut]), 0))
				if err == nil {
					_, err = io.Copy(io.Discard, r)
				}
				require.Error(t, err, "cut at %d of %d", cut, len(full))
				// A partial header is malformed rather than cut short.
				want := KindTruncated
				if cut < c.HeaderLen() {
					want = KindFormat
				}
				assert.Equal(t, want, KindOf(err), "cut at %d of %d: %v", cut, len(full), err)
			}
		})
	}
}

// Frames made of many small blocks can be cut right between two blocks, where
// the decoders themselves see a clean end.
func TestTruncatedAtBlockBoundary(t *testing.T) {
	// Enough for a few dozen 1 KiB xz blocks and three 64 KiB lz4 blocks.
	repeat := map[Codec]int{XZ: 1200, LZ4: 6000}
	for _, c := range []Codec{XZ, LZ4} {
		t.Run(c.String(), func(t *testing.T) {
			full := frame(t, c, strings.Repeat("blocks and more blocks ", repeat[c]))
			for cut := len(full) / 2; cut < len(full); cut++ {
				r, err := Open(NewSource(bytes.NewReader(full[:cut]), 0))
				require.NoError(t, err)
				_, err = io.Copy(io.Discard, r)
				require.Error(t, err, "cut at %d of %d", cut, len(full))
				assert.Equal(t, KindTruncated, KindOf(err), "cut at %d of %d: %v", cut, len(full), err)
			}
		})
	}
}

func TestTooSmall(t *testing.T) {
	_, err := Open(NewSource(bytes.NewReader([]byte{0xFD, '7', 'z'}), 0))
	assert.ErrorIs(t, err, ErrTooSmall)
	assert.Equal(t, KindFormat, KindOf(err))
	assert.Equal(t, "open: input too small", err.Error())

	_, err = Open(NewSource(bytes.NewReader(frame(t, Gzip, "abc")[:5]), 0))
	assert.ErrorIs(t, err, ErrTooSmall)
	assert.Equal(t, KindFormat, KindOf(err))

	_, err = OpenWithOptions(NewSource(bytes.NewReader(frame(t, XZ, "abc")[:8]), 0), &Options{Codec: XZ})
	assert.ErrorIs(t, err, ErrTooSmall)
	assert.Equal(t, KindFormat, KindOf(err))

	// Between frames too.
	stream := append(frame(t, LZ4, "abc"), frame(t, LZ4, "def")[:5]...)
	r, err := Open(NewSource(bytes.NewReader(stream), 0))
	require.NoError(t, err)
	_, err = io.Copy(io.Discard, r)
	require.NoError(t, err)
	err = r.Reopen(nil)
	assert.ErrorIs(t, err, ErrTooSmall)
	assert.Equal(t, KindFormat, KindOf(err))
}

func TestUnknownFormat(t *testing.T) {
	_, err := Open(NewSource(strings.NewReader("plain old text, nothing to see"), 0))
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.Equal(t, KindFormat, KindOf(err))
}

func TestWrongCodec(t *testing.T) {
	_, err := OpenWithOptions(NewSource(bytes.NewReader(frame(t, Gzip, "abc")), 0), &Options{Codec: XZ})
	require.Error(t, err)
	assert.Equal(t, KindFormat, KindOf(err))
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "decode", e.Op)
}

func TestTrailingGarbage(t *testing.T) {
	stream := append(frame(t, Gzip, "payload"), "garbage after the frame"...)
	r, err := Open(NewSource(bytes.NewReader(stream), 0))
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
	err = r.Reopen(nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
	// The failure sticks until the next Reopen.
	_, err = r.Read(make([]byte, 4))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestXzPaddingIsNotSkipped(t *testing.T) {
	stream := append(frame(t, XZ, "a"), 0, 0, 0, 0)
	stream = append(stream, frame(t, XZ, "b")...)
	r, err := Open(NewSource(bytes.NewReader(stream), 0))
	require.NoError(t, err)
	_, err = io.Copy(io.Discard, r)
	require.NoError(t, err)
	assert.Error(t, r.Reopen(nil))
}

func TestMemLimit(t *testing.T) {
	var buf bytes.Buffer
	w, err := xz.WriterConfig{DictCap: 16 << 20}.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write([]byte("small payload, big dictionary"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = OpenWithOptions(NewSource(bytes.NewReader(buf.Bytes()), 0), &Options{MemLimit: 8 << 20})
	assert.ErrorIs(t, err, ErrMemLimit)
	assert.Equal(t, KindMemLimit, KindOf(err))

	r, err := OpenWithOptions(NewSource(bytes.NewReader(buf.Bytes()), 0), &Options{MemLimit: 32 << 20})
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "small payload, big dictionary", string(got))
}

func TestMemLimitLaterBlock(t *testing.T) {
	small := []byte(strings.Repeat("a", 5000))
	stream := xztest.Stream(
		xztest.Block{Dict: 0, Data: small},
		// 1 GiB
		xztest.Block{Dict: 36, Data: small},
	)
	r, err := OpenWithOptions(NewSource(bytes.NewReader(stream), 0), &Options{MemLimit: 8 << 20})
	require.NoError(t, err)
	n, err := io.Copy(io.Discard, r)
	assert.ErrorIs(t, err, ErrMemLimit)
	assert.Equal(t, KindMemLimit, KindOf(err))
	assert.LessOrEqual(t, n, int64(len(small)))

	// 2 MiB fits.
	stream = xztest.Stream(
		xztest.Block{Dict: 0, Data: small},
		xztest.Block{Dict: 18, Data: small},
	)
	got := readAll(t, NewSource(bytes.NewReader(stream), 0), &Options{MemLimit: 8 << 20}, []int64{int64(len(stream))})
	assert.Equal(t, string(small)+string(small), got)
}

func TestFailedReadKeepsOffset(t *testing.T) {
	stream := frame(t, Gzip, "payload")
	// First deflate block with the reserved block type.
	stream[10] = 0x07
	r, err := Open(NewSource(bytes.NewReader(stream), 0))
	require.NoError(t, err)
	assert.Equal(t, int64(10), r.InputOffset())
	_, err = r.Read(make([]byte, 64))
	require.Error(t, err)
	assert.Equal(t, KindFormat, KindOf(err))
	assert.Equal(t, int64(10), r.InputOffset())
}

func TestEmptyReadBuffer(t *testing.T) {
	r, err := Open(NewSource(bytes.NewReader(frame(t, Zlib, "abc")), 0))
	require.NoError(t, err)
	_, err = r.Read(nil)
	assert.ErrorIs(t, err, ErrEmptyBuffer)
	assert.Equal(t, KindProtocol, KindOf(err))
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestCloseLeavesSource(t *testing.T) {
	stream := append(frame(t, LZ4, "first"), frame(t, LZ4, "second")...)
	ct := &closeTracker{Reader: bytes.NewReader(stream)}
	src := NewSource(ct, 0)
	r, err := Open(src)
	require.NoError(t, err)
	_, err = io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.False(t, ct.closed)

	_, err = r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, r.Reopen(nil), ErrClosed)
	assert.ErrorIs(t, r.Close(), ErrClosed)

	// What follows the first frame is still there for someone else.
	r2, err := Open(src)
	require.NoError(t, err)
	got, err := io.ReadAll(r2)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestSourceError(t *testing.T) {
	boom := errors.New("boom")
	full := frame(t, Gzip, strings.Repeat("data ", 10000))
	src := NewSource(io.MultiReader(bytes.NewReader(full[:len(full)/2]), iotest.ErrReader(boom)), 16)
	r, err := Open(src)
	require.NoError(t, err)
	_, err = io.Copy(io.Discard, r)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, KindIO, KindOf(err))
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "source", e.Op)

	_, err = Open(NewSource(iotest.ErrReader(boom), 0))
	assert.ErrorIs(t, err, boom)
}

// therootcompany/xz reads concatenated streams on its own, which makes it a
// good second opinion.
func TestXzAgainstOracle(t *testing.T) {
	stream, ends := concat(t, XZ, "alpha", strings.Repeat("beta ", 9000), "", "gamma")
	got := readAll(t, NewSource(bytes.NewReader(stream), 0), nil, ends)

	zr, err := rootxz.NewReader(bytes.NewReader(stream), 0)
	require.NoError(t, err)
	zr.Multistream(true)
	want, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, string(want), got)
}

func TestErrorFormat(t *testing.T) {
	err := &Error{Op: "decode", Kind: KindTruncated, Err: ErrTruncated}
	assert.Equal(t, "decode: compressed data is truncated", err.Error())
	assert.Equal(t, KindTruncated, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(io.EOF))
	assert.Equal(t, "truncated", KindTruncated.String())
}

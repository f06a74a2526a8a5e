package framereader

import "github.com/CalebQ42/framereader/internal/decompress"

// Codec is a frame format.
type Codec = decompress.Codec

const (
	AutoDetect = decompress.AutoDetect
	XZ         = decompress.XZCompression
	LZ4        = decompress.LZ4Compression
	Gzip       = decompress.GzipCompression
	Zlib       = decompress.ZlibCompression
)

// ParseCodec turns a name such as "xz" or "auto" into a Codec.
func ParseCodec(name string) (Codec, error) {
	return decompress.ParseCodec(name)
}

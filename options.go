package framereader

import (
	"io"

	"github.com/CalebQ42/framereader/internal/rawreader"
)

// DefaultMemLimit is enough to decode the output of xz -9.
const DefaultMemLimit = 80 << 20

type Options struct {
	LogOutput  io.Writer //Where the verbose log should write. Defaults to os.Stderr.
	MemLimit   int64     //Ceiling on a decode engine's working memory. 0 disables it.
	BufferSize int       //Initial buffer size of Sources made by Unframe.
	Codec      Codec     //Frame format. AutoDetect sniffs every frame.
	Verbose    bool      //Log every frame. Only used by Unframe.
}

// The default options: auto detection and an 80 MiB memory limit.
func DefaultOptions() *Options {
	return &Options{
		MemLimit:   DefaultMemLimit,
		BufferSize: rawreader.DefaultSize,
		Codec:      AutoDetect,
	}
}

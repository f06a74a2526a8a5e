package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/CalebQ42/framereader"
	"github.com/CalebQ42/framereader/internal/config"
	"github.com/CalebQ42/framereader/internal/decompress"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, report(err))
		}
		os.Exit(1)
	}
}

// errReported means the failures were already printed one by one.
var errReported = errors.New("failures reported")

type app struct {
	cfg    config.Config
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	log    zerolog.Logger
	stream bool
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var (
		cfgPath, codec, memLimit, bufSize string
		jobs                              int
		verbose, test, list, stream, help bool
	)
	flagSet := pflag.NewFlagSet("go-unframe", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&cfgPath, "config", "c", "", "TOML configuration file")
	flagSet.StringVar(&codec, "codec", "auto", "frame format: auto, xz, lz4, gzip or zlib")
	flagSet.StringVarP(&memLimit, "mem-limit", "M", "80MiB", "memory limit of the decoder, 0 for none")
	flagSet.StringVar(&bufSize, "buffer-size", "64KiB", "initial input buffer size")
	flagSet.IntVarP(&jobs, "jobs", "j", 0, "files to test at the same time (default half of the CPUs)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log every frame to stderr")
	flagSet.BoolVarP(&test, "test", "t", false, "only check that the input decodes")
	flagSet.BoolVarP(&list, "list", "l", false, "list the frames of the input")
	flagSet.BoolVar(&stream, "stream", false, "decode in one pass, even if the input can be rewound")
	flagSet.BoolVarP(&help, "help", "h", false, "show help")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if help {
		fmt.Fprintln(stderr, "Usage: go-unframe [options] [file ...]")
		flagSet.PrintDefaults()
		return nil
	}

	a := &app{
		cfg:    config.Default(),
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		log:    zerolog.Nop(),
		stream: stream,
	}
	var err error
	if cfgPath != "" {
		if a.cfg, err = config.Load(cfgPath); err != nil {
			return err
		}
	}
	if flagSet.Changed("codec") {
		if a.cfg.Codec, err = decompress.ParseCodec(codec); err != nil {
			return err
		}
	}
	if flagSet.Changed("mem-limit") {
		if a.cfg.MemLimit, err = config.ParseSize(memLimit); err != nil {
			return fmt.Errorf("mem-limit: %w", err)
		}
	}
	if flagSet.Changed("buffer-size") {
		n, err := config.ParseSize(bufSize)
		if err != nil {
			return fmt.Errorf("buffer-size: %w", err)
		}
		a.cfg.BufferSize = int(n)
	}
	if flagSet.Changed("jobs") {
		a.cfg.Jobs = jobs
	}
	if flagSet.Changed("verbose") {
		a.cfg.Verbose = verbose
	}
	if err = a.cfg.Validate(); err != nil {
		return err
	}
	if a.cfg.Verbose {
		a.log = zerolog.New(zerolog.ConsoleWriter{
			Out:        stderr,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Str("app", "go-unframe").Logger()
	}

	files := flagSet.Args()
	if len(files) == 0 {
		files = []string{"-"}
	}
	switch {
	case test:
		return a.testAll(files)
	case list:
		for _, name := range files {
			if err = a.list(name); err != nil {
				return err
			}
		}
	default:
		for _, name := range files {
			if err = a.decode(name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *app) options() *framereader.Options {
	return &framereader.Options{
		LogOutput:  a.stderr,
		MemLimit:   a.cfg.MemLimit,
		BufferSize: a.cfg.BufferSize,
		Codec:      a.cfg.Codec,
		Verbose:    a.cfg.Verbose,
	}
}

// failure records which call of the tool an error surfaced from.
type failure struct {
	file string
	call string
	err  error
}

func (f *failure) Error() string {
	var e *framereader.Error
	msg := f.call + ": "
	if errors.As(f.err, &e) && e.Op != f.call {
		msg += e.Op + ": "
	}
	if e != nil {
		msg += e.Err.Error()
	} else {
		msg += f.err.Error()
	}
	if f.file != "" && f.file != "-" {
		msg = f.file + ": " + msg
	}
	return msg
}

func (f *failure) Unwrap() error {
	return f.err
}

func report(err error) string {
	return "go-unframe: " + err.Error()
}

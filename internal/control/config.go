package control

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/cbegin/oplstream-go"
)

// Config holds the command-line settings shared by the player commands.
type Config struct {
	NoRepeat    bool
	Backend     string
	WAVPath     string
	RenderDir   string
	Demo        bool
	SampleRate  int
	BlockFrames int
	LogPath     string
	Limit       bool
}

func (c *Config) RegisterFlags(fs *flag.FlagSet, defaultBackend string) {
	fs.BoolVar(&c.NoRepeat, "norepeat", false, "stop each tune at its repeat point")
	fs.StringVar(&c.Backend, "backend", defaultBackend, "audio output: ebiten|oto|wav")
	fs.StringVar(&c.WAVPath, "wav", "oplstream.wav", "output file for -backend wav")
	fs.StringVar(&c.RenderDir, "render", "", "render each tune to a WAV file in this directory and exit")
	fs.BoolVar(&c.Demo, "demo", false, "play the built-in demo tune before any files")
	fs.IntVar(&c.SampleRate, "sample-rate", oplstream.DefaultSampleRate, "output sample rate")
	fs.IntVar(&c.BlockFrames, "block", oplstream.DefaultBlockFrames, "frames per audio block")
	fs.StringVar(&c.LogPath, "log", "", "append log output to this file")
	fs.BoolVar(&c.Limit, "limit", false, "compress the chip output instead of letting loud passages clip")
}

// Files returns the playlist: the positional arguments, after the demo tune
// when -demo is set.
func (c *Config) Files(args []string) []string {
	if c.Demo {
		return append([]string{DemoName}, args...)
	}
	return args
}

// Opener returns the device opener named by -backend.
func (c *Config) Opener() (oplstream.DeviceOpener, error) {
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case "ebiten":
		return oplstream.EbitenDevice, nil
	case "oto":
		return oplstream.OtoDevice, nil
	case "wav":
		return oplstream.WAVDevice(c.WAVPath, true), nil
	default:
		return nil, fmt.Errorf("invalid -backend %q (expected ebiten|oto|wav)", c.Backend)
	}
}

// Logger opens the -log file, or returns fallback when none was given. The
// returned closer must be called on exit.
func (c *Config) Logger(fallback io.Writer) (*log.Logger, io.Closer, error) {
	if c.LogPath == "" {
		return log.New(fallback, "oplstream: ", log.LstdFlags), io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(c.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return log.New(f, "oplstream: ", log.LstdFlags), f, nil
}

// SessionFactory returns a constructor for sessions configured from c.
func (c *Config) SessionFactory(logger *log.Logger) (func() Session, error) {
	open, err := c.Opener()
	if err != nil {
		return nil, err
	}
	opts := []oplstream.SessionOption{
		oplstream.WithSampleRate(c.SampleRate),
		oplstream.WithBlockFrames(c.BlockFrames),
		oplstream.WithDevice(open),
		oplstream.WithLogger(logger),
	}
	if c.Limit {
		opts = append(opts, oplstream.WithLimiter())
	}
	return func() Session {
		return oplstream.NewSession(opts...)
	}, nil
}

// RenderAll writes every tune in files to dir as WAV, each up to its first
// repeat, and returns the exit code.
func RenderAll(files []string, dir string, sampleRate int, out func(string)) int {
	if len(files) == 0 {
		out("ERROR: No OST tunes supplied.")
		return ExitNoFiles
	}
	exit := ExitOK
	fail := func(err error) {
		out("ERROR: " + err.Error())
		if exit == ExitOK {
			exit = ExitCode(err)
		}
	}
	for _, path := range files {
		data, err := LoadFile(path)
		if err == nil {
			err = Validate(data)
		}
		if err != nil {
			fail(err)
			continue
		}
		samples, err := oplstream.Render(data, sampleRate, 0)
		if err != nil {
			fail(fmt.Errorf("cannot render tune '%s': %w", path, err))
			continue
		}
		dst := filepath.Join(dir, wavName(path))
		if err := writeWAVFile(dst, samples, sampleRate); err != nil {
			fail(fmt.Errorf("%w: %w", oplstream.ErrFileRead, err))
			continue
		}
		out(fmt.Sprintf("Rendered '%s' to '%s' (%.1f s).", path, dst, float64(len(samples)/2)/float64(sampleRate)))
	}
	return exit
}

func wavName(path string) string {
	if path == DemoName {
		return "demo.wav"
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".wav"
}

func writeWAVFile(path string, samples []int16, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := oplstream.WriteWAV(f, samples, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

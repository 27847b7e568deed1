package control

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/cbegin/oplstream-go"
	"github.com/cbegin/oplstream-go/internal/ost"
)

// DemoName is the playlist entry for the built-in demo tune.
const DemoName = "<demo>"

// Exit codes.
const (
	ExitOK         = 0
	ExitNoFiles    = 1
	ExitFileError  = 2
	ExitValidation = 3
	ExitPlayback   = 4
)

// LoadFile reads a whole tune.
func LoadFile(path string) ([]byte, error) {
	if path == DemoName {
		return ost.Demo(), nil
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: '%s'", oplstream.ErrFileNotFound, path)
	case err != nil:
		return nil, fmt.Errorf("%w: '%s': %w", oplstream.ErrFileRead, path, err)
	case len(data) == 0:
		return nil, fmt.Errorf("%w: '%s'", oplstream.ErrFileEmpty, path)
	}
	return data, nil
}

// Validate checks a loaded tune before any session is created.
func Validate(data []byte) error {
	if err := ost.Validate(data); err != nil {
		return fmt.Errorf("%w: %w", oplstream.ErrValidationFailed, err)
	}
	return nil
}

// ExitCode maps an error from loading, validating or starting a tune to the
// process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, oplstream.ErrFileNotFound),
		errors.Is(err, oplstream.ErrFileEmpty),
		errors.Is(err, oplstream.ErrFileRead):
		return ExitFileError
	case errors.Is(err, oplstream.ErrValidationFailed):
		return ExitValidation
	}
	return ExitPlayback
}

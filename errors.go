package oplstream

import (
	"errors"

	"github.com/cbegin/oplstream-go/internal/tick"
)

var (
	// ErrInvalidTickRate means the song's tick rate is zero, negative, or
	// faster than the sample rate.
	ErrInvalidTickRate = tick.ErrInvalidTickRate
	// ErrUnsupportedSong is returned by Init when the sequencer rejects the
	// song or reports a tick rate that cannot be scheduled.
	ErrUnsupportedSong   = errors.New("unsupported song")
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	ErrSessionActive     = errors.New("session already initialized")

	ErrFileNotFound     = errors.New("file not found")
	ErrFileEmpty        = errors.New("file is empty")
	ErrFileRead         = errors.New("error reading file")
	ErrValidationFailed = errors.New("validation failed")
)

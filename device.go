package oplstream

import (
	"github.com/cbegin/oplstream-go/internal/audio"
	"github.com/cbegin/oplstream-go/internal/engine"
)

type (
	// Device is a two-deep block queue in front of the audio hardware.
	Device = engine.Device
	// DeviceOpener opens a device that reports each drained block to a
	// notifier, on a goroutine of the device's choosing.
	DeviceOpener  = engine.Opener
	DrainNotifier = engine.DrainNotifier
	Format        = engine.Format
	Block         = engine.Block
)

// EbitenDevice plays through ebiten's audio context. It is the default.
func EbitenDevice(format Format, n DrainNotifier) (Device, error) {
	return audio.OpenEbiten(format, n)
}

// OtoDevice plays through an oto context.
func OtoDevice(format Format, n DrainNotifier) (Device, error) {
	return audio.OpenOto(format, n)
}

// WAVDevice writes the stream to a WAV file at path, truncating it on every
// open. With realtime set blocks are consumed at playback speed.
func WAVDevice(path string, realtime bool) DeviceOpener {
	return audio.WAVOpener(path, realtime)
}

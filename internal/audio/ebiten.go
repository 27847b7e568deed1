package audio

import (
	"fmt"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/cbegin/oplstream-go/internal/engine"
)

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

// sharedAudioContext returns the process-wide ebiten context. ebiten allows
// only one, so every later caller must ask for the same rate.
func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.CurrentContext()
		if audioContext == nil {
			audioContext = ebitaudio.NewContext(sampleRate)
		} else {
			audioSampleRate = audioContext.SampleRate()
		}
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// Ebiten plays blocks through an ebiten audio player.
type Ebiten struct {
	*Queue
	player *ebitaudio.Player
}

// OpenEbiten is an engine.Opener.
func OpenEbiten(format engine.Format, n engine.DrainNotifier) (engine.Device, error) {
	if err := checkFormat(format); err != nil {
		return nil, err
	}
	ctx, err := sharedAudioContext(format.SampleRate)
	if err != nil {
		return nil, err
	}
	q := NewQueue(n)
	pl, err := ctx.NewPlayer(q)
	if err != nil {
		_ = q.Reset()
		return nil, err
	}
	pl.SetBufferSize(blockDuration(format))
	pl.Play()
	return &Ebiten{Queue: q, player: pl}, nil
}

func (e *Ebiten) Reset() error {
	e.player.Pause()
	return e.Queue.Reset()
}

func (e *Ebiten) Close() error {
	err := e.Reset()
	if cerr := e.player.Close(); err == nil {
		err = cerr
	}
	return err
}

func checkFormat(f engine.Format) error {
	if f.Channels != 2 || f.BitDepth != 16 {
		return fmt.Errorf("audio: unsupported format %d ch / %d bit", f.Channels, f.BitDepth)
	}
	if f.SampleRate <= 0 || f.BlockFrames <= 0 {
		return fmt.Errorf("audio: bad format %+v", f)
	}
	return nil
}

func blockDuration(f engine.Format) time.Duration {
	return time.Duration(f.BlockFrames) * time.Second / time.Duration(f.SampleRate)
}

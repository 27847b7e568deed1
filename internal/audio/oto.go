package audio

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/cbegin/oplstream-go/internal/engine"
)

var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
	otoRate int
)

// oto allows one context per process; it is created on first use and kept.
func sharedOtoContext(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		otoCtx, otoRate = ctx, sampleRate
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoRate != sampleRate {
		return nil, fmt.Errorf("oto context already initialized at %d Hz (requested %d Hz)", otoRate, sampleRate)
	}
	return otoCtx, nil
}

// Oto plays blocks through an oto player.
type Oto struct {
	*Queue
	player *oto.Player
}

// OpenOto is an engine.Opener.
func OpenOto(format engine.Format, n engine.DrainNotifier) (engine.Device, error) {
	if err := checkFormat(format); err != nil {
		return nil, err
	}
	ctx, err := sharedOtoContext(format.SampleRate)
	if err != nil {
		return nil, err
	}
	q := NewQueue(n)
	pl := ctx.NewPlayer(q)
	pl.SetBufferSize(format.BlockFrames * engine.BytesPerFrame)
	pl.Play()
	return &Oto{Queue: q, player: pl}, nil
}

func (o *Oto) Reset() error {
	o.player.Pause()
	return o.Queue.Reset()
}

func (o *Oto) Close() error {
	err := o.Reset()
	if cerr := o.player.Close(); err == nil {
		err = cerr
	}
	return err
}

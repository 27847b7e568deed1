package oplstream

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/cbegin/oplstream-go/internal/engine"
	"github.com/cbegin/oplstream-go/internal/opl"
	"github.com/cbegin/oplstream-go/internal/ost"
	"github.com/cbegin/oplstream-go/internal/tick"
)

const renderBlockFrames = 1024

// Render plays an OST song without a device and returns interleaved stereo
// samples. A non-positive duration renders up to the song's first repeat.
func Render(song []byte, sampleRate int, seconds float64) ([]int16, error) {
	chip := opl.New(sampleRate)
	seq := ost.NewPlayer()
	if err := seq.Init(song, chip.Port); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedSong, err)
	}
	sched, err := tick.New(sampleRate, seq.Hertz())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedSong, err)
	}
	frames := int(float64(sampleRate) * seconds)
	if seconds <= 0 {
		frames = int(seq.TotalTicks()) * sched.Interval()
	}

	eng := engine.New(chip, seq, sched, renderBlockFrames)
	block := engine.NewBlock(0, renderBlockFrames)
	out := make([]int16, 0, frames*2)
	for len(out) < frames*2 {
		eng.RefillBlock(block)
		for i := 0; i < block.Frames() && len(out) < frames*2; i++ {
			l, r := block.Frame(i)
			out = append(out, l, r)
		}
	}
	return out, nil
}

// WriteWAV encodes interleaved stereo samples as a 16-bit PCM WAV file.
func WriteWAV(w io.WriteSeeker, samples []int16, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 2, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wav: %w", err)
	}
	return enc.Close()
}

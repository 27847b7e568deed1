package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/cbegin/oplstream-go/internal/engine"
)

// WAV writes every block it is given to a 16-bit stereo WAV stream. With
// realtime set it consumes one block per block duration, like a sound card;
// otherwise blocks are written as fast as they arrive.
type WAV struct {
	queue    *Queue
	enc      *wav.Encoder
	file     io.Closer
	format   engine.Format
	realtime bool

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	closed   bool
	err      error
	buf      goaudio.IntBuffer
}

// WAVOpener returns an engine.Opener that creates path for each session.
func WAVOpener(path string, realtime bool) engine.Opener {
	return func(format engine.Format, n engine.DrainNotifier) (engine.Device, error) {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("audio: create %s: %w", path, err)
		}
		d, err := NewWAV(f, format, n, realtime)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		d.file = f
		return d, nil
	}
}

// NewWAV starts a WAV device writing to w. Closing the device finishes the
// WAV header; it does not close w.
func NewWAV(w io.WriteSeeker, format engine.Format, n engine.DrainNotifier, realtime bool) (*WAV, error) {
	if err := checkFormat(format); err != nil {
		return nil, err
	}
	d := &WAV{
		queue:    NewQueue(n),
		enc:      wav.NewEncoder(w, format.SampleRate, 16, 2, 1),
		format:   format,
		realtime: realtime,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		buf: goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: 2, SampleRate: format.SampleRate},
			SourceBitDepth: 16,
		},
	}
	go d.pump()
	return d, nil
}

func (d *WAV) pump() {
	defer close(d.done)
	var tick <-chan time.Time
	if d.realtime {
		t := time.NewTicker(blockDuration(d.format))
		defer t.Stop()
		tick = t.C
	}
	raw := make([]byte, d.format.BlockFrames*engine.BytesPerFrame)
	for {
		select {
		case <-d.stop:
			return
		case <-d.queue.Ready():
		}
		for d.queue.Buffered() > 0 {
			if tick != nil {
				select {
				case <-d.stop:
					return
				case <-tick:
				}
			}
			n := min(d.queue.Buffered(), len(raw))
			_, _ = d.queue.Read(raw[:n])
			if err := d.write(raw[:n]); err != nil && d.err == nil {
				d.err = err
			}
		}
	}
}

func (d *WAV) write(raw []byte) error {
	samples := len(raw) / 2
	if cap(d.buf.Data) < samples {
		d.buf.Data = make([]int, samples)
	}
	d.buf.Data = d.buf.Data[:samples]
	for i := range d.buf.Data {
		d.buf.Data[i] = int(int16(binary.LittleEndian.Uint16(raw[i*2:])))
	}
	return d.enc.Write(&d.buf)
}

func (d *WAV) Submit(b *engine.Block) error { return d.queue.Submit(b) }

// Reset stops the writer and discards anything not yet written.
func (d *WAV) Reset() error {
	d.stopOnce.Do(func() { close(d.stop) })
	<-d.done
	return d.queue.Reset()
}

func (d *WAV) Close() error {
	err := d.Reset()
	if d.closed {
		return err
	}
	d.closed = true
	err = errors.Join(err, d.err, d.enc.Close())
	if d.file != nil {
		err = errors.Join(err, d.file.Close())
	}
	return err
}

var _ engine.StatsReporter = (*WAV)(nil)

func (d *WAV) Stats() Stats { return d.queue.Stats() }

package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cbegin/oplstream-go/internal/tick"
)

// Synth produces one stereo frame per call from the chip's current state.
type Synth interface {
	Sample() (int16, int16)
}

// Updater plays one song tick. It returns true once the song has reached a
// point it already played (a repeat).
type Updater interface {
	Update() bool
}

// Format describes the fixed PCM layout handed to a device.
type Format struct {
	SampleRate  int
	Channels    int
	BitDepth    int
	BlockFrames int
}

func StereoFormat(sampleRate int, blockFrames int) Format {
	return Format{SampleRate: sampleRate, Channels: 2, BitDepth: 16, BlockFrames: blockFrames}
}

// DrainNotifier is invoked by a device, on a goroutine of its own, each time a
// submitted block has been fully consumed.
type DrainNotifier interface {
	OnBlockDrained(index int)
}

// Device is a two-deep block queue in front of the audio hardware.
type Device interface {
	// Submit appends a block to the play queue. It must not block.
	Submit(b *Block) error
	// Reset discards queued audio. When it returns no notification is running
	// and none will be delivered.
	Reset() error
	Close() error
}

// Opener opens a device that reports drained blocks to n.
type Opener func(format Format, n DrainNotifier) (Device, error)

var ErrNotAttached = errors.New("engine: no device attached")

// DeviceStats is a snapshot of the counters a pull-model device keeps
// about its own feed. Underruns mean a refill missed its deadline.
type DeviceStats struct {
	BytesRead    int64
	SilentBytes  int64
	Underruns    int64
	DroppedDrain int64
}

// StatsReporter is implemented by devices that keep DeviceStats.
type StatsReporter interface {
	Stats() DeviceStats
}

// Stats is a snapshot of engine counters.
type Stats struct {
	Refills      int64
	Frames       int64
	Ticks        int64
	Drains       int64
	OutOfOrder   int64
	SubmitErrors int64
}

// Engine keeps a device fed from two ping-ponged blocks.
type Engine struct {
	mu      sync.Mutex
	synth   Synth
	seq     Updater
	sched   *tick.Scheduler
	dev     Device
	blocks  [2]*Block
	playing int

	stopped    atomic.Bool
	repeat     atomic.Bool
	lastRepeat atomic.Bool

	refills      atomic.Int64
	frames       atomic.Int64
	ticks        atomic.Int64
	drains       atomic.Int64
	outOfOrder   atomic.Int64
	submitErrors atomic.Int64
}

func New(synth Synth, seq Updater, sched *tick.Scheduler, blockFrames int) *Engine {
	if blockFrames <= 0 {
		blockFrames = 1
	}
	return &Engine{
		synth:  synth,
		seq:    seq,
		sched:  sched,
		blocks: [2]*Block{NewBlock(0, blockFrames), NewBlock(1, blockFrames)},
	}
}

// Attach binds the device the engine submits to. Devices are opened with the
// engine as notifier, so attaching happens after open and before Prime.
func (e *Engine) Attach(dev Device) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dev = dev
}

// Prime fills both blocks and submits them in order. Block 0 becomes the
// playing block.
func (e *Engine) Prime() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dev == nil {
		return ErrNotAttached
	}
	for _, b := range e.blocks {
		b.setState(BlockRefilling)
		e.RefillBlock(b)
	}
	e.playing = 0
	for i, b := range e.blocks {
		if i == 0 {
			b.setState(BlockPlaying)
		} else {
			b.setState(BlockQueued)
		}
		if err := e.dev.Submit(b); err != nil {
			for _, b := range e.blocks {
				b.setState(BlockIdle)
			}
			return fmt.Errorf("engine: submit block %d: %w", i, err)
		}
	}
	return nil
}

// OnBlockDrained implements DrainNotifier. The drained block leaves the
// device, the other block is now the one playing, and the released block is
// refilled and queued behind it.
func (e *Engine) OnBlockDrained(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index > 1 {
		e.outOfOrder.Add(1)
		return
	}
	if e.stopped.Load() {
		e.blocks[index].setState(BlockIdle)
		return
	}
	if index != e.playing {
		e.outOfOrder.Add(1)
		return
	}
	e.drains.Add(1)
	drained := e.blocks[index]
	e.playing ^= 1
	e.blocks[e.playing].setState(BlockPlaying)

	drained.setState(BlockRefilling)
	e.RefillBlock(drained)
	if e.stopped.Load() {
		// Stop arrived mid-refill; the device is going away.
		drained.setState(BlockIdle)
		return
	}
	if e.dev == nil {
		drained.setState(BlockIdle)
		e.submitErrors.Add(1)
		return
	}
	drained.setState(BlockQueued)
	if err := e.dev.Submit(drained); err != nil {
		drained.setState(BlockIdle)
		e.submitErrors.Add(1)
	}
}

// RefillBlock renders every frame of b, issuing song updates at the exact
// frame the tick interval elapses.
func (e *Engine) RefillBlock(b *Block) {
	n := b.Frames()
	for i := 0; i < n; i++ {
		l, r := e.synth.Sample()
		b.put(i, l, r)
		if e.sched.Advance() {
			rep := e.seq.Update()
			e.ticks.Add(1)
			e.lastRepeat.Store(rep)
			if rep {
				e.repeat.Store(true)
			}
		}
	}
	e.frames.Add(int64(n))
	e.refills.Add(1)
}

// RequestStop makes later drain notifications no-ops.
func (e *Engine) RequestStop() { e.stopped.Store(true) }

func (e *Engine) Stopped() bool { return e.stopped.Load() }

// Repeat reports whether a repeat has been seen and not yet taken.
func (e *Engine) Repeat() bool { return e.repeat.Load() }

// TakeRepeat returns the latched repeat flag and clears it.
func (e *Engine) TakeRepeat() bool { return e.repeat.Swap(false) }

// LastUpdate returns what the most recent song update reported.
func (e *Engine) LastUpdate() bool { return e.lastRepeat.Load() }

// Playing returns the index of the block the device is consuming.
func (e *Engine) Playing() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

func (e *Engine) Block(i int) *Block { return e.blocks[i] }

func (e *Engine) BlockStates() [2]BlockState {
	return [2]BlockState{e.blocks[0].State(), e.blocks[1].State()}
}

// Frames returns the number of frames rendered so far.
func (e *Engine) Frames() int64 { return e.frames.Load() }

// Ticks returns the number of song updates issued so far.
func (e *Engine) Ticks() int64 { return e.ticks.Load() }

func (e *Engine) Stats() Stats {
	return Stats{
		Refills:      e.refills.Load(),
		Frames:       e.frames.Load(),
		Ticks:        e.ticks.Load(),
		Drains:       e.drains.Load(),
		OutOfOrder:   e.outOfOrder.Load(),
		SubmitErrors: e.submitErrors.Load(),
	}
}

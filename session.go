package oplstream

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/cbegin/oplstream-go/internal/effects"
	"github.com/cbegin/oplstream-go/internal/engine"
	"github.com/cbegin/oplstream-go/internal/opl"
	"github.com/cbegin/oplstream-go/internal/ost"
	"github.com/cbegin/oplstream-go/internal/tick"
)

const (
	DefaultSampleRate  = 44100
	DefaultBlockFrames = 4096
)

// RegisterWriter receives chip register writes from a sequencer.
type RegisterWriter = func(reg uint16, val uint8)

// Sequencer turns song data into register writes, one tick at a time.
type Sequencer interface {
	Init(song []byte, sink RegisterWriter) error
	// Hertz is the song's tick rate; values <= 0 mark a song that cannot play.
	Hertz() int
	// ComputeTotalTime returns the playing time in seconds up to the first
	// repeat without disturbing playback state.
	ComputeTotalTime() uint32
	// Update plays one tick and reports whether a repeat has been reached.
	Update() bool
	Stop()
	Line() int
	Position() int
	Length() int
	PlayTime() uint32
}

// Synthesizer turns register writes into stereo samples.
type Synthesizer interface {
	Port(reg uint16, val uint8)
	Sample() (int16, int16)
}

// tickCounter is implemented by sequencers that can report the exact number
// of ticks before the first repeat.
type tickCounter interface {
	TotalTicks() int64
}

type State int32

const (
	StateUninitialized State = iota
	StatePlaying
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StatePlaying:
		return "playing"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

type SessionOption func(*sessionConfig)

type sessionConfig struct {
	sampleRate  int
	blockFrames int
	open        DeviceOpener
	logger      *log.Logger
	newSeq      func() Sequencer
	newSynth    func(sampleRate int) Synthesizer
	limit       bool
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		sampleRate:  DefaultSampleRate,
		blockFrames: DefaultBlockFrames,
		open:        EbitenDevice,
		logger:      log.New(os.Stderr, "oplstream: ", log.LstdFlags),
		newSeq:      func() Sequencer { return ost.NewPlayer() },
		newSynth:    func(sampleRate int) Synthesizer { return opl.New(sampleRate) },
	}
}

func WithSampleRate(hz int) SessionOption {
	return func(cfg *sessionConfig) {
		if hz > 0 {
			cfg.sampleRate = hz
		}
	}
}

// WithBlockFrames sets the size of each of the two audio blocks.
func WithBlockFrames(frames int) SessionOption {
	return func(cfg *sessionConfig) {
		if frames > 0 {
			cfg.blockFrames = frames
		}
	}
}

func WithDevice(open DeviceOpener) SessionOption {
	return func(cfg *sessionConfig) {
		if open != nil {
			cfg.open = open
		}
	}
}

func WithLogger(l *log.Logger) SessionOption {
	return func(cfg *sessionConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithSequencer replaces the OST sequencer. newSeq is called once per Init.
func WithSequencer(newSeq func() Sequencer) SessionOption {
	return func(cfg *sessionConfig) {
		if newSeq != nil {
			cfg.newSeq = newSeq
		}
	}
}

// WithSynthesizer replaces the OPL chip. newSynth is called once per Init.
func WithSynthesizer(newSynth func(sampleRate int) Synthesizer) SessionOption {
	return func(cfg *sessionConfig) {
		if newSynth != nil {
			cfg.newSynth = newSynth
		}
	}
}

// postProcessor is implemented by synthesizers that accept an effect on
// their mixed output, such as the OPL chip.
type postProcessor interface {
	SetPost(e effects.Effector)
}

// WithLimiter puts a fast compressor on the synthesizer output so dense
// passages are squeezed instead of clipped. Synthesizers without a post
// stage play unprocessed. Option order does not matter.
func WithLimiter() SessionOption {
	return func(cfg *sessionConfig) {
		cfg.limit = true
	}
}

// bound is everything a running session publishes to its queries.
type bound struct {
	seq     Sequencer
	eng     *engine.Engine
	dev     Device
	hz      int
	total   int64
	seconds uint32
}

// Session plays one song: it binds a sequencer to a synthesizer, keeps an
// audio device fed through the double-buffer engine, and reports progress.
// Init and Stop are meant for the control goroutine; queries may be called
// from anywhere at any time.
type Session struct {
	mu    sync.Mutex
	cfg   sessionConfig
	id    uuid.UUID
	state atomic.Int32
	cur   atomic.Pointer[bound]
	dev   Device
}

func NewSession(opts ...SessionOption) *Session {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Session{cfg: cfg, id: uuid.New()}
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) SampleRate() int { return s.cfg.sampleRate }

// Init binds song and starts playback. On any failure everything acquired
// so far is released and the session stays uninitialized.
func (s *Session) Init(song []byte, computeTotalTime bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() != StateUninitialized {
		return ErrSessionActive
	}
	sr := s.cfg.sampleRate

	synth := s.cfg.newSynth(sr)
	if pp, ok := synth.(postProcessor); ok && s.cfg.limit {
		pp.SetPost(effects.NewLimiter(sr))
	}
	seq := s.cfg.newSeq()
	if err := seq.Init(song, synth.Port); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedSong, err)
	}
	hz := seq.Hertz()
	sched, err := tick.New(sr, hz)
	if err != nil {
		seq.Stop()
		return fmt.Errorf("%w: %w", ErrUnsupportedSong, err)
	}

	b := &bound{seq: seq, hz: hz}
	if computeTotalTime {
		b.seconds = seq.ComputeTotalTime()
		if tc, ok := seq.(tickCounter); ok {
			b.total = tc.TotalTicks()
		} else {
			b.total = int64(b.seconds) * int64(hz)
		}
	}

	b.eng = engine.New(synth, seq, sched, s.cfg.blockFrames)
	dev, err := s.cfg.open(engine.StereoFormat(sr, s.cfg.blockFrames), b.eng)
	if err != nil {
		seq.Stop()
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	b.dev = dev
	b.eng.Attach(dev)
	if err := b.eng.Prime(); err != nil {
		b.eng.RequestStop()
		err = errors.Join(err, dev.Reset(), dev.Close())
		seq.Stop()
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	s.dev = dev
	s.cur.Store(b)
	s.state.Store(int32(StatePlaying))
	s.cfg.logger.Printf("session %s: playing, %d Hz ticks every %d frames, %d-frame blocks", s.id, hz, sched.Interval(), s.cfg.blockFrames)
	return nil
}

// Stop halts playback and releases the device. It is safe to call more than
// once and on a session that never started.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() != StatePlaying {
		return nil
	}
	b := s.cur.Load()
	b.eng.RequestStop()
	err := s.dev.Reset()
	err = errors.Join(err, s.dev.Close())
	b.seq.Stop()
	s.dev = nil
	s.state.Store(int32(StateStopped))

	st := b.eng.Stats()
	ds := deviceStats(b.dev)
	s.cfg.logger.Printf("session %s: stopped after %d refills, %d ticks, %d out-of-order drains, %d submit errors, %d underruns, %d dropped drains",
		s.id, st.Refills, st.Ticks, st.OutOfOrder, st.SubmitErrors, ds.Underruns, ds.DroppedDrain)
	if err != nil {
		return fmt.Errorf("stop session %s: %w", s.id, err)
	}
	return nil
}

// CurrentTickPosition returns the number of song ticks played.
func (s *Session) CurrentTickPosition() int64 {
	if b := s.cur.Load(); b != nil {
		return b.eng.Ticks()
	}
	return 0
}

// TotalTickCount returns the ticks up to the first repeat, or 0 when the
// total was not computed.
func (s *Session) TotalTickCount() int64 {
	if b := s.cur.Load(); b != nil {
		return b.total
	}
	return 0
}

// TotalSeconds returns the computed playing time, or 0.
func (s *Session) TotalSeconds() uint32 {
	if b := s.cur.Load(); b != nil {
		return b.seconds
	}
	return 0
}

// ElapsedTimeSeconds returns the audio rendered so far in seconds.
func (s *Session) ElapsedTimeSeconds() float64 {
	if b := s.cur.Load(); b != nil {
		return float64(b.eng.Frames()) / float64(s.cfg.sampleRate)
	}
	return 0
}

// RepeatSignal reports whether the song has reached its repeat point and
// the signal has not been taken yet.
func (s *Session) RepeatSignal() bool {
	if b := s.cur.Load(); b != nil {
		return b.eng.Repeat()
	}
	return false
}

// TakeRepeat returns the repeat signal and clears it.
func (s *Session) TakeRepeat() bool {
	if b := s.cur.Load(); b != nil {
		return b.eng.TakeRepeat()
	}
	return false
}

// Status is a snapshot for display.
type Status struct {
	ID       uuid.UUID
	State    State
	Line     int
	Position int
	Length   int
	PlayTime uint32
	Total    uint32
	Ticks    int64
	Elapsed  float64
	Repeat   bool
	Engine   engine.Stats
	// Device is zero for devices that keep no counters.
	Device   engine.DeviceStats
}

func deviceStats(dev Device) engine.DeviceStats {
	if r, ok := dev.(engine.StatsReporter); ok {
		return r.Stats()
	}
	return engine.DeviceStats{}
}

func (s *Session) Status() Status {
	st := Status{ID: s.id, State: s.State()}
	b := s.cur.Load()
	if b == nil {
		return st
	}
	st.Line = b.seq.Line()
	st.Position = b.seq.Position()
	st.Length = b.seq.Length()
	st.PlayTime = b.seq.PlayTime()
	st.Total = b.seconds
	st.Ticks = b.eng.Ticks()
	st.Elapsed = float64(b.eng.Frames()) / float64(s.cfg.sampleRate)
	st.Repeat = b.eng.Repeat()
	st.Engine = b.eng.Stats()
	st.Device = deviceStats(b.dev)
	return st
}

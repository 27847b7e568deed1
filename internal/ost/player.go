package ost

import (
	"errors"
	"sync/atomic"

	"github.com/cbegin/oplstream-go/internal/opl"
)

// F-numbers for C..B at block = octave.
var fnumTable = [12]uint16{0x157, 0x16B, 0x181, 0x198, 0x1B0, 0x1CA, 0x1E5, 0x202, 0x220, 0x241, 0x263, 0x287}

const (
	maxFnum   = 0x3FF
	maxBlock  = 7
	maxTotalS = 60 * 60 // total time estimates stop at one hour
)

var ErrNotLoaded = errors.New("ost: no song loaded")

type voice struct {
	inst   int // 1-based, 0 none
	fnum   uint16
	block  uint8
	on     bool
	volume uint8
	porta  int
}

// Player sequences an OST song one tick at a time, writing registers to a
// sink. Update, Init and Stop must not run concurrently; the position
// queries may be called from any goroutine.
type Player struct {
	song *Song
	sink func(reg uint16, val uint8)

	speed     int
	tick      int
	order     int
	line      int
	breakLine int
	jumpOrder int
	voices    [Channels]voice
	visited   [MaxOrders]uint64
	repeated  bool
	stopped   bool

	curLine    atomic.Int32
	curOrder   atomic.Int32
	ticks      atomic.Int64
	totalTicks atomic.Int64
}

func NewPlayer() *Player {
	return &Player{}
}

// Init decodes song, resets the chip behind sink and rewinds to the first
// order.
func (p *Player) Init(song []byte, sink func(reg uint16, val uint8)) error {
	s, err := Parse(song)
	if err != nil {
		return err
	}
	p.Load(s, sink)
	return nil
}

// Load is Init for an already decoded song.
func (p *Player) Load(s *Song, sink func(reg uint16, val uint8)) {
	if sink == nil {
		sink = discard
	}
	p.song = s
	p.sink = sink
	p.speed = s.Speed
	p.tick = 0
	p.order = 0
	p.line = 0
	p.breakLine = -1
	p.jumpOrder = -1
	p.voices = [Channels]voice{}
	p.visited = [MaxOrders]uint64{}
	p.repeated = false
	p.stopped = false
	p.ticks.Store(0)
	p.totalTicks.Store(-1)
	p.order = p.resolve(0)
	p.publish()
	p.resetChip()
}

func discard(uint16, uint8) {}

func (p *Player) resetChip() {
	p.sink(opl.RegTest, opl.WaveSelectFlag)
	p.sink(opl.RegOPL3, 0x01)
	p.sink(opl.RegRhythm, 0x00)
	for ch := 0; ch < Channels; ch++ {
		p.sink(opl.RegChKeyOn+opl.ChannelOffset(ch), 0)
	}
}

// Hertz returns the song's tick rate, or 0 before Init.
func (p *Player) Hertz() int {
	if p.song == nil {
		return 0
	}
	return p.song.Hertz()
}

// Update plays one tick. It returns true once playback has reached a line it
// has already played; the flag stays set until the next Init.
func (p *Player) Update() bool {
	if p.song == nil || p.stopped {
		return p.repeated
	}
	if p.tick == 0 {
		p.enterLine()
	} else {
		p.slide()
	}
	p.tick++
	if p.tick >= p.speed {
		p.tick = 0
		p.nextLine()
	}
	p.ticks.Add(1)
	return p.repeated
}

func (p *Player) enterLine() {
	bit := uint64(1) << uint(p.line)
	if p.visited[p.order]&bit != 0 {
		p.repeated = true
	}
	p.visited[p.order] |= bit
	p.publish()

	for i := range p.voices {
		p.voices[i].porta = 0
	}
	pat := &p.song.Patterns[p.song.Orders[p.order]]
	for _, e := range pat.Entries {
		if int(e.Line) < p.line {
			continue
		}
		if int(e.Line) > p.line {
			break
		}
		p.play(e)
	}
}

func (p *Player) play(e Entry) {
	ch := int(e.Channel)
	v := &p.voices[ch]
	if e.Instrument != 0 {
		v.inst = int(e.Instrument)
		v.volume = MaxVolume
		p.loadInstrument(ch)
	}
	switch {
	case e.Note == NoteOff:
		v.on = false
		p.writeFreq(ch)
	case e.Note != NoteNone:
		n := int(e.Note) - 1
		if v.on {
			v.on = false
			p.writeFreq(ch)
		}
		v.fnum = fnumTable[n%12]
		v.block = uint8(n / 12)
		v.on = true
		p.writeFreq(ch)
	}
	switch e.Effect {
	case EffectPortaUp:
		v.porta = int(e.Param)
	case EffectPortaDown:
		v.porta = -int(e.Param)
	case EffectVolume:
		v.volume = e.Param
		p.writeVolume(ch)
	case EffectSpeed:
		p.speed = int(e.Param)
	case EffectBreak:
		p.breakLine = int(e.Param)
	case EffectJump:
		p.jumpOrder = int(e.Param)
	}
}

func (p *Player) loadInstrument(ch int) {
	v := &p.voices[ch]
	in := &p.song.Instruments[v.inst-1]
	groups := [5]uint16{opl.RegOpFlags, opl.RegOpLevel, opl.RegOpAttack, opl.RegOpSustain, opl.RegOpWaveform}
	mod, car := opl.OperatorOffset(ch, 0), opl.OperatorOffset(ch, 1)
	for i, g := range groups {
		p.sink(g+mod, in.Modulator[i])
		p.sink(g+car, in.Carrier[i])
	}
	var pan uint8
	switch in.Pan {
	case 1:
		pan = opl.PanLeft
	case 2:
		pan = opl.PanRight
	default:
		pan = opl.PanLeft | opl.PanRight
	}
	p.sink(opl.RegChFeedback+opl.ChannelOffset(ch), pan|in.Feedback&0x0F)
}

// writeVolume scales the carrier's total level by the channel volume.
func (p *Player) writeVolume(ch int) {
	v := &p.voices[ch]
	if v.inst == 0 {
		return
	}
	lvl := p.song.Instruments[v.inst-1].Carrier[1]
	tl := int(lvl & 0x3F)
	tl = 63 - (63-tl)*int(v.volume)/MaxVolume
	p.sink(opl.RegOpLevel+opl.OperatorOffset(ch, 1), lvl&0xC0|uint8(tl))
}

func (p *Player) writeFreq(ch int) {
	v := &p.voices[ch]
	off := opl.ChannelOffset(ch)
	hi := v.block<<2 | uint8(v.fnum>>8)
	if v.on {
		hi |= opl.KeyOnFlag
	}
	p.sink(opl.RegChFreqLow+off, uint8(v.fnum))
	p.sink(opl.RegChKeyOn+off, hi)
}

// slide applies portamento on the ticks between lines, carrying into
// neighbouring blocks until the F-number is back in the table's octave.
func (p *Player) slide() {
	for ch := range p.voices {
		v := &p.voices[ch]
		if v.porta == 0 || !v.on {
			continue
		}
		f := int(v.fnum) + v.porta
		for f > maxFnum && v.block < maxBlock {
			v.block++
			f >>= 1
		}
		for f < int(fnumTable[0]) && v.block > 0 {
			v.block--
			f <<= 1
		}
		// a slide past zero frequency parks at the bottom of block 0
		f = min(max(f, 1), maxFnum)
		v.fnum = uint16(f)
		p.writeFreq(ch)
	}
}

func (p *Player) nextLine() {
	switch {
	case p.jumpOrder >= 0:
		p.order = p.jumpOrder
		p.line = 0
		if p.breakLine >= 0 {
			p.line = p.breakLine
		}
	case p.breakLine >= 0:
		p.order++
		p.line = p.breakLine
	default:
		p.line++
		if p.line >= PatternLines {
			p.line = 0
			p.order++
		}
	}
	p.jumpOrder, p.breakLine = -1, -1
	if p.order >= len(p.song.Orders) {
		p.order = 0
	}
	p.order = p.resolve(p.order)
	p.publish()
}

// resolve follows jump markers from order o to an order that plays a
// pattern. A cycle of markers falls back to the first playable order.
func (p *Player) resolve(o int) int {
	orders := p.song.Orders
	for range orders {
		if orders[o]&OrderJump == 0 {
			return o
		}
		o = int(orders[o] &^ OrderJump)
	}
	for i, v := range orders {
		if v&OrderJump == 0 {
			return i
		}
	}
	return 0
}

func (p *Player) publish() {
	p.curLine.Store(int32(p.line))
	p.curOrder.Store(int32(p.order))
}

// Stop keys off every channel. Update does nothing afterwards until the
// next Init.
func (p *Player) Stop() {
	if p.song == nil || p.stopped {
		return
	}
	p.stopped = true
	for ch := range p.voices {
		p.voices[ch].on = false
		p.voices[ch].porta = 0
		p.writeFreq(ch)
	}
}

// ComputeTotalTime returns the playing time in seconds up to the first
// repeat. It plays a private copy of the song into a discarding sink, so
// the live position and the chip are untouched.
func (p *Player) ComputeTotalTime() uint32 {
	hz := p.Hertz()
	if hz <= 0 {
		return 0
	}
	ticks := p.TotalTicks()
	return uint32((ticks + int64(hz) - 1) / int64(hz))
}

// TotalTicks returns the number of ticks played before the first repeat,
// computing it on first use.
func (p *Player) TotalTicks() int64 {
	if p.song == nil {
		return 0
	}
	if t := p.totalTicks.Load(); t >= 0 {
		return t
	}
	sim := NewPlayer()
	sim.Load(p.song, discard)
	limit := int64(p.song.Hertz()) * maxTotalS
	var n int64
	for n < limit && !sim.Update() {
		n++
	}
	p.totalTicks.Store(n)
	return n
}

// Line returns the current pattern line.
func (p *Player) Line() int { return int(p.curLine.Load()) }

// Position returns the current order index.
func (p *Player) Position() int { return int(p.curOrder.Load()) }

// Length returns the number of entries in the order list.
func (p *Player) Length() int {
	if p.song == nil {
		return 0
	}
	return len(p.song.Orders)
}

// Ticks returns the number of ticks played since Init.
func (p *Player) Ticks() int64 { return p.ticks.Load() }

// PlayTime returns the elapsed playing time in whole seconds.
func (p *Player) PlayTime() uint32 {
	hz := p.Hertz()
	if hz <= 0 {
		return 0
	}
	return uint32(p.ticks.Load() / int64(hz))
}

// Song returns the loaded song, or nil.
func (p *Player) Song() *Song { return p.song }

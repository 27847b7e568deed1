package opl

import (
	"math"

	"github.com/cbegin/oplstream-go/internal/effects"
	"github.com/cbegin/oplstream-go/internal/lfo"
)

const (
	masterClock = 49716.0
	maxAtten    = 96.0 // dB, envelope floor
	// dB table resolution: 1/8 dB steps down to 128 dB
	dbSteps     = 8
	dbTableSize = 128 * dbSteps
	channelGain = 0.25
	modCycles   = 1.0 // phase deviation of a full-scale modulator, in cycles
)

var multTable = [16]float64{0.5, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 10, 12, 12, 15, 15}

// attack: seconds from silence to full level, decay: seconds across 96 dB
var attackSec, decaySec [16]float64

var dbToAmp [dbTableSize]float64

func init() {
	for r := 1; r < 16; r++ {
		attackSec[r] = 2.826 / math.Pow(2, float64(r-1))
		decaySec[r] = 39.28 / math.Pow(2, float64(r-1))
	}
	for i := range dbToAmp {
		dbToAmp[i] = math.Pow(10, -float64(i)/dbSteps/20)
	}
}

type envPhase int

const (
	envOff envPhase = iota
	envAttack
	envDecay
	envSustain
	envRelease
)

type operator struct {
	am, vib, egt bool
	mult         float64
	tl           float64 // dB
	sl           float64 // dB
	ar, dr, rr   uint8
	wave         uint8

	phase float64 // cycles [0, 1)
	atten float64 // envelope attenuation in dB
	env   envPhase
	prev  [2]float64
}

type channel struct {
	fnum  uint16
	block uint8
	keyOn bool
	fb    uint8
	cnt   uint8
	pan   uint8
}

// Chip is a register-driven two-operator FM synthesizer laid out like an
// OPL3: two banks of nine channels.
type Chip struct {
	sampleRate float64
	regs       [0x200]uint8
	ch         [NumChannels]channel
	ops        [NumChannels * operatorsPerCh]operator
	tremolo    lfo.LFO
	vibrato    lfo.LFO
	deepAM     bool
	deepVib    bool
	waveSelect bool
	opl3       bool
	post       effects.Effector

	attackStep [16]float64
	decayStep  [16]float64
}

func New(sampleRate int) *Chip {
	c := &Chip{sampleRate: float64(sampleRate)}
	for r := 1; r < 16; r++ {
		c.attackStep[r] = maxAtten / (attackSec[r] * c.sampleRate)
		c.decayStep[r] = maxAtten / (decaySec[r] * c.sampleRate)
	}
	c.Reset()
	return c
}

// Reset returns every register and voice to power-on state.
func (c *Chip) Reset() {
	c.regs = [0x200]uint8{}
	c.ch = [NumChannels]channel{}
	for i := range c.ops {
		c.ops[i] = operator{mult: multTable[0], atten: maxAtten}
	}
	c.tremolo = lfo.New(lfo.TremoloHz, c.sampleRate)
	c.vibrato = lfo.New(lfo.VibratoHz, c.sampleRate)
	c.deepAM, c.deepVib, c.waveSelect, c.opl3 = false, false, false, false
	if c.post != nil {
		c.post.Reset()
	}
}

// SetPost installs e on the mixed output, ahead of quantization. nil removes it.
func (c *Chip) SetPost(e effects.Effector) { c.post = e }

// Register returns the last value written to reg.
func (c *Chip) Register(reg uint16) uint8 { return c.regs[reg&0x1FF] }

// Port writes one register.
func (c *Chip) Port(reg uint16, val uint8) {
	reg &= 0x1FF
	c.regs[reg] = val
	bank := int(reg >> 8)
	lo := reg & 0xFF

	switch {
	case reg == RegTest:
		c.waveSelect = val&WaveSelectFlag != 0
		return
	case reg == RegOPL3:
		c.opl3 = val&1 != 0
		return
	case reg == RegRhythm:
		c.deepAM = val&0x80 != 0
		c.deepVib = val&0x40 != 0
		return
	}

	switch lo & 0xF0 {
	case RegChFreqLow, RegChKeyOn, RegChFeedback:
		idx := int(lo & 0x0F)
		if idx >= BankChannels {
			return
		}
		c.writeChannel(bank*BankChannels+idx, lo&0xF0, val)
		return
	}

	base := lo & 0xE0
	idx := lo - base
	if idx >= slotOffsetCount || slotChannel[idx] < 0 {
		return
	}
	ch := bank*BankChannels + int(slotChannel[idx])
	op := &c.ops[ch*operatorsPerCh+int(slotOp[idx])]
	switch base {
	case RegOpFlags:
		op.am = val&0x80 != 0
		op.vib = val&0x40 != 0
		op.egt = val&0x20 != 0
		op.mult = multTable[val&0x0F]
	case RegOpLevel:
		op.tl = float64(val&0x3F) * 0.75
	case RegOpAttack:
		op.ar = val >> 4
		op.dr = val & 0x0F
	case RegOpSustain:
		sl := val >> 4
		if sl == 15 {
			op.sl = 93
		} else {
			op.sl = float64(sl) * 3
		}
		op.rr = val & 0x0F
	case RegOpWaveform:
		op.wave = val & 0x07
	}
}

func (c *Chip) writeChannel(ch int, group uint16, val uint8) {
	cs := &c.ch[ch]
	switch group {
	case RegChFreqLow:
		cs.fnum = cs.fnum&0x300 | uint16(val)
	case RegChKeyOn:
		cs.fnum = cs.fnum&0xFF | uint16(val&0x03)<<8
		cs.block = (val >> 2) & 0x07
		on := val&KeyOnFlag != 0
		if on && !cs.keyOn {
			c.keyOn(ch)
		} else if !on && cs.keyOn {
			c.keyOff(ch)
		}
		cs.keyOn = on
	case RegChFeedback:
		cs.cnt = val & 0x01
		cs.fb = (val >> 1) & 0x07
		cs.pan = val & (PanLeft | PanRight)
	}
}

func (c *Chip) keyOn(ch int) {
	for i := 0; i < operatorsPerCh; i++ {
		op := &c.ops[ch*operatorsPerCh+i]
		op.phase = 0
		op.prev = [2]float64{}
		op.env = envAttack
		if op.ar == 15 {
			op.atten = 0
			op.env = envDecay
		}
	}
}

func (c *Chip) keyOff(ch int) {
	for i := 0; i < operatorsPerCh; i++ {
		op := &c.ops[ch*operatorsPerCh+i]
		if op.env != envOff {
			op.env = envRelease
		}
	}
}

// ActiveChannels returns the number of channels with a sounding envelope.
func (c *Chip) ActiveChannels() int {
	n := 0
	for ch := range c.ch {
		if c.ops[ch*operatorsPerCh].env != envOff || c.ops[ch*operatorsPerCh+1].env != envOff {
			n++
		}
	}
	return n
}

// Sample renders one stereo frame.
func (c *Chip) Sample() (int16, int16) {
	tremDB := c.tremolo.Sample()
	if c.deepAM {
		tremDB *= 4.8
	}
	vib := lfo.Bipolar(c.vibrato.Sample())
	if c.deepVib {
		vib *= 0.0081 // 14 cents
	} else {
		vib *= 0.0040 // 7 cents
	}

	var l, r float64
	for ch := range c.ch {
		mod := &c.ops[ch*operatorsPerCh]
		car := &c.ops[ch*operatorsPerCh+1]
		if mod.env == envOff && car.env == envOff {
			continue
		}
		cs := &c.ch[ch]
		freq := float64(cs.fnum) * masterClock / float64(uint32(1)<<(20-cs.block))

		var fbOffset float64
		if cs.fb > 0 {
			fbOffset = (mod.prev[0] + mod.prev[1]) / 2 * math.Ldexp(1, int(cs.fb)-7)
		}
		m := c.operatorOut(mod, mod.phase+fbOffset, tremDB)
		mod.prev[1] = mod.prev[0]
		mod.prev[0] = m

		var out float64
		if cs.cnt == 0 {
			out = c.operatorOut(car, car.phase+m*modCycles, tremDB)
		} else {
			out = m + c.operatorOut(car, car.phase, tremDB)
		}

		c.advance(mod, freq, vib)
		c.advance(car, freq, vib)

		out *= channelGain
		switch {
		case !c.opl3:
			l += out
			r += out
		default:
			if cs.pan&PanLeft != 0 {
				l += out
			}
			if cs.pan&PanRight != 0 {
				r += out
			}
		}
	}
	if c.post != nil {
		l, r = c.post.Process(l, r)
	}
	return toPCM(l), toPCM(r)
}

func (c *Chip) operatorOut(op *operator, phase float64, tremDB float64) float64 {
	atten := op.atten + op.tl
	if op.am {
		atten += tremDB
	}
	idx := int(atten * dbSteps)
	if idx >= dbTableSize || op.env == envOff {
		return 0
	}
	return waveform(phase, c.waveFor(op)) * dbToAmp[idx]
}

func (c *Chip) waveFor(op *operator) uint8 {
	switch {
	case c.opl3:
		return op.wave
	case c.waveSelect:
		return op.wave & 0x03
	}
	return 0
}

func (c *Chip) advance(op *operator, freq float64, vib float64) {
	f := freq * op.mult
	if op.vib {
		f *= 1 + vib
	}
	op.phase += f / c.sampleRate
	op.phase -= math.Floor(op.phase)

	switch op.env {
	case envAttack:
		if op.ar == 0 {
			break
		}
		op.atten -= c.attackStep[op.ar]
		if op.atten <= 0 {
			op.atten = 0
			op.env = envDecay
		}
	case envDecay:
		op.atten += c.decayStep[op.dr]
		if op.atten >= op.sl {
			op.atten = op.sl
			op.env = envSustain
		}
	case envSustain:
		if !op.egt {
			op.atten += c.decayStep[op.rr]
			if op.atten >= maxAtten {
				op.atten = maxAtten
				op.env = envOff
			}
		}
	case envRelease:
		op.atten += c.decayStep[op.rr]
		if op.atten >= maxAtten {
			op.atten = maxAtten
			op.env = envOff
		}
	}
}

// waveform returns the OPL3 waveform w at phase (in cycles).
func waveform(phase float64, w uint8) float64 {
	p := phase - math.Floor(phase)
	switch w {
	case 1: // half sine
		if p < 0.5 {
			return math.Sin(2 * math.Pi * p)
		}
		return 0
	case 2: // absolute sine
		return math.Abs(math.Sin(2 * math.Pi * p))
	case 3: // quarter sine pulses
		if math.Mod(p, 0.5) < 0.25 {
			return math.Abs(math.Sin(2 * math.Pi * p))
		}
		return 0
	case 4: // alternating sine
		if p < 0.5 {
			return math.Sin(4 * math.Pi * p)
		}
		return 0
	case 5: // camel sine
		if p < 0.5 {
			return math.Abs(math.Sin(4 * math.Pi * p))
		}
		return 0
	case 6: // square
		if p < 0.5 {
			return 1
		}
		return -1
	case 7: // derived square, approximated by a falling ramp
		if p < 0.5 {
			return 1 - 2*p
		}
		return -2 + 2*p
	default:
		return math.Sin(2 * math.Pi * p)
	}
}

func toPCM(v float64) int16 {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int16(v * 32767)
}

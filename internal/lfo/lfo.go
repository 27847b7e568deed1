package lfo

// Chip modulator rates in Hz.
const (
	TremoloHz = 3.7
	VibratoHz = 6.1
)

// LFO is a fixed-rate triangle oscillator shared by every operator of a chip.
// Sample returns values in [0, 1]; callers scale by their own depth.
type LFO struct {
	step  float64 // phase increment per sample
	phase float64 // current phase [0, 1)
}

// New returns an LFO running at rateHz for the given sample rate.
func New(rateHz float64, sampleRate float64) LFO {
	var l LFO
	if sampleRate > 0 && rateHz > 0 {
		l.step = rateHz / sampleRate
	}
	return l
}

// Sample advances the LFO by one sample and returns the value before the step.
func (l *LFO) Sample() float64 {
	if l.step == 0 {
		return 0
	}
	var v float64
	if l.phase < 0.5 {
		v = 2 * l.phase
	} else {
		v = 2 - 2*l.phase
	}
	l.phase += l.step
	for l.phase >= 1 {
		l.phase -= 1
	}
	return v
}

// Bipolar maps a Sample value onto [-1, 1].
func Bipolar(v float64) float64 { return v*2 - 1 }

// Active returns true if the LFO advances.
func (l *LFO) Active() bool { return l.step != 0 }

// Reset zeros the LFO phase.
func (l *LFO) Reset() { l.phase = 0 }

// Package effects holds stereo post-processing applied to the synthesizer mix
// before it is quantized to 16-bit PCM.
package effects

// Effector processes one stereo frame in the range [-1, 1].
type Effector interface {
	Process(l, r float64) (float64, float64)
	Reset()
}

// Chain runs effects in order.
type Chain []Effector

func (c Chain) Process(l, r float64) (float64, float64) {
	for _, e := range c {
		l, r = e.Process(l, r)
	}
	return l, r
}

func (c Chain) Reset() {
	for _, e := range c {
		e.Reset()
	}
}

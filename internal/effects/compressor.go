package effects

import "math"

// Compressor is a feed-forward compressor with one envelope per side.
type Compressor struct {
	threshold float64
	ratio     float64
	attack    float64
	release   float64
	makeup    float64
	envL      float64
	envR      float64
}

// NewCompressor builds a compressor. thresholdDB and makeupDB are in dB full
// scale, attack and release in milliseconds.
func NewCompressor(sampleRate int, thresholdDB, ratio, attackMs, releaseMs, makeupDB float64) *Compressor {
	if ratio < 1 {
		ratio = 1
	}
	return &Compressor{
		threshold: dbToLinear(thresholdDB),
		ratio:     ratio,
		attack:    coefficient(attackMs, sampleRate),
		release:   coefficient(releaseMs, sampleRate),
		makeup:    dbToLinear(makeupDB),
	}
}

// NewLimiter returns the fast, high-ratio setting used to keep nine summed
// channels out of hard clipping.
func NewLimiter(sampleRate int) *Compressor {
	return NewCompressor(sampleRate, -3, 20, 0.5, 120, 0)
}

func (c *Compressor) Process(l, r float64) (float64, float64) {
	c.envL = follow(c.envL, math.Abs(l), c.attack, c.release)
	c.envR = follow(c.envR, math.Abs(r), c.attack, c.release)
	return l * c.gain(c.envL) * c.makeup, r * c.gain(c.envR) * c.makeup
}

func (c *Compressor) Reset() {
	c.envL, c.envR = 0, 0
}

func (c *Compressor) gain(env float64) float64 {
	if env <= c.threshold || c.threshold <= 0 {
		return 1
	}
	return math.Pow(env/c.threshold, 1/c.ratio-1)
}

func follow(env, in, attack, release float64) float64 {
	if in > env {
		return env + attack*(in-env)
	}
	return env + release*(in-env)
}

func coefficient(ms float64, sampleRate int) float64 {
	if ms <= 0 || sampleRate <= 0 {
		return 1
	}
	return 1 - math.Exp(-1/(ms*float64(sampleRate)/1000))
}

func dbToLinear(db float64) float64 { return math.Pow(10, db/20) }

package opl

import "testing"

// patch programs a simple FM voice on channel ch and keys it on at fnum/block.
func patch(c *Chip, ch int, feedback uint8, pan uint8) {
	mod := OperatorOffset(ch, 0)
	car := OperatorOffset(ch, 1)
	c.Port(RegOpFlags+mod, 0x21)
	c.Port(RegOpFlags+car, 0x21)
	c.Port(RegOpLevel+mod, 0x10)
	c.Port(RegOpLevel+car, 0x00)
	c.Port(RegOpAttack+mod, 0xF4)
	c.Port(RegOpAttack+car, 0xF4)
	c.Port(RegOpSustain+mod, 0x22)
	c.Port(RegOpSustain+car, 0x22)
	c.Port(RegChFeedback+ChannelOffset(ch), feedback<<1|pan)
}

func keyOn(c *Chip, ch int, fnum uint16, block uint8) {
	off := ChannelOffset(ch)
	c.Port(RegChFreqLow+off, uint8(fnum))
	c.Port(RegChKeyOn+off, KeyOnFlag|block<<2|uint8(fnum>>8))
}

func energy(c *Chip, frames int) (left, right float64) {
	for i := 0; i < frames; i++ {
		l, r := c.Sample()
		if l < 0 {
			left -= float64(l)
		} else {
			left += float64(l)
		}
		if r < 0 {
			right -= float64(r)
		} else {
			right += float64(r)
		}
	}
	return left, right
}

func TestChipSilentWithoutKeyOn(t *testing.T) {
	c := New(44100)
	patch(c, 0, 0, 0)
	for i := 0; i < 4096; i++ {
		if l, r := c.Sample(); l != 0 || r != 0 {
			t.Fatalf("frame %d: expected silence, got (%d, %d)", i, l, r)
		}
	}
	if c.ActiveChannels() != 0 {
		t.Fatalf("active channels = %d, want 0", c.ActiveChannels())
	}
}

func TestChipGeneratesSignalAfterKeyOn(t *testing.T) {
	c := New(44100)
	patch(c, 0, 3, 0)
	keyOn(c, 0, 0x241, 4)
	if c.ActiveChannels() != 1 {
		t.Fatalf("active channels = %d, want 1", c.ActiveChannels())
	}
	l, r := energy(c, 4096)
	if l == 0 || r == 0 {
		t.Fatalf("expected non-zero output on both channels, left=%f right=%f", l, r)
	}
}

func TestChipKeyOffReleasesToSilence(t *testing.T) {
	c := New(44100)
	patch(c, 2, 0, 0)
	c.Port(RegOpSustain+OperatorOffset(2, 0), 0x2F)
	c.Port(RegOpSustain+OperatorOffset(2, 1), 0x2F)
	keyOn(c, 2, 0x16B, 5)
	energy(c, 2048)
	c.Port(RegChKeyOn+ChannelOffset(2), 5<<2|0x01)
	energy(c, 44100)
	if c.ActiveChannels() != 0 {
		t.Fatalf("channel still active after release")
	}
	if l, r := c.Sample(); l != 0 || r != 0 {
		t.Fatalf("expected silence after release, got (%d, %d)", l, r)
	}
}

func TestChipOPL3PanSelectsSide(t *testing.T) {
	for _, tc := range []struct {
		name      string
		pan       uint8
		wantLeft  bool
		wantRight bool
	}{
		{"left", PanLeft, true, false},
		{"right", PanRight, false, true},
		{"both", PanLeft | PanRight, true, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := New(44100)
			c.Port(RegOPL3, 0x01)
			patch(c, 1, 0, tc.pan)
			keyOn(c, 1, 0x1CA, 4)
			l, r := energy(c, 4096)
			if (l > 0) != tc.wantLeft || (r > 0) != tc.wantRight {
				t.Fatalf("left=%f right=%f, want left=%v right=%v", l, r, tc.wantLeft, tc.wantRight)
			}
		})
	}
}

func TestChipSecondBankChannel(t *testing.T) {
	c := New(44100)
	c.Port(RegOPL3, 0x01)
	patch(c, 13, 2, PanLeft|PanRight)
	keyOn(c, 13, 0x287, 3)
	if c.ActiveChannels() != 1 {
		t.Fatalf("active channels = %d, want 1", c.ActiveChannels())
	}
	if l, _ := energy(c, 2048); l == 0 {
		t.Fatalf("second bank channel produced no output")
	}
}

func TestChipIsDeterministic(t *testing.T) {
	render := func() []int16 {
		c := New(44100)
		c.Port(RegRhythm, 0xC0)
		patch(c, 0, 5, 0)
		c.Port(RegOpFlags+OperatorOffset(0, 1), 0xE1)
		keyOn(c, 0, 0x220, 4)
		out := make([]int16, 0, 2000)
		for i := 0; i < 1000; i++ {
			l, r := c.Sample()
			out = append(out, l, r)
		}
		return out
	}
	a, b := render(), render()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestWaveformSelectRequiresEnable(t *testing.T) {
	c := New(44100)
	op := &operator{wave: 6}
	if got := c.waveFor(op); got != 0 {
		t.Fatalf("waveform without enable = %d, want 0", got)
	}
	c.Port(RegTest, WaveSelectFlag)
	if got := c.waveFor(op); got != 2 {
		t.Fatalf("waveform with OPL2 select = %d, want 2", got)
	}
	c.Port(RegOPL3, 0x01)
	if got := c.waveFor(op); got != 6 {
		t.Fatalf("waveform in OPL3 mode = %d, want 6", got)
	}
}

func TestWaveformShapes(t *testing.T) {
	for w := uint8(0); w < 8; w++ {
		var maxAbs float64
		for i := 0; i < 64; i++ {
			v := waveform(float64(i)/64, w)
			if v < -1.0001 || v > 1.0001 {
				t.Fatalf("waveform %d out of range at %d: %f", w, i, v)
			}
			if v < 0 {
				v = -v
			}
			if v > maxAbs {
				maxAbs = v
			}
		}
		if maxAbs < 0.5 {
			t.Errorf("waveform %d peak %f too small", w, maxAbs)
		}
	}
	if waveform(0.75, 1) != 0 {
		t.Errorf("half sine should be silent in second half")
	}
	if waveform(0.75, 2) <= 0 {
		t.Errorf("absolute sine should be positive in second half")
	}
}

func TestOperatorOffsets(t *testing.T) {
	for _, tc := range []struct {
		ch, op int
		want   uint16
	}{
		{0, 0, 0x00}, {0, 1, 0x03},
		{4, 0, 0x09}, {4, 1, 0x0C},
		{8, 1, 0x15},
		{9, 0, 0x100}, {17, 1, 0x115},
	} {
		if got := OperatorOffset(tc.ch, tc.op); got != tc.want {
			t.Errorf("OperatorOffset(%d, %d) = %#x, want %#x", tc.ch, tc.op, got, tc.want)
		}
	}
	if ChannelOffset(10) != 0x101 {
		t.Errorf("ChannelOffset(10) = %#x", ChannelOffset(10))
	}
}

type halve struct{ resets int }

func (h *halve) Process(l, r float64) (float64, float64) { return l / 2, r / 2 }
func (h *halve) Reset()                                  { h.resets++ }

func TestChipPostEffect(t *testing.T) {
	render := func(c *Chip) []int16 {
		patch(c, 0, 0, 0)
		keyOn(c, 0, 0x200, 4)
		out := make([]int16, 0, 400)
		for i := 0; i < 200; i++ {
			l, r := c.Sample()
			out = append(out, l, r)
		}
		return out
	}
	plain := render(New(44100))
	c := New(44100)
	h := &halve{}
	c.SetPost(h)
	halved := render(c)
	for i := range plain {
		want := int16(float64(plain[i]) / 2)
		if d := int(halved[i]) - int(want); d < -1 || d > 1 {
			t.Fatalf("sample %d: got %d want about %d", i, halved[i], want)
		}
	}
	c.Reset()
	if h.resets != 1 {
		t.Fatalf("resets = %d, want 1", h.resets)
	}
}

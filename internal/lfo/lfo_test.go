package lfo

import (
	"math"
	"testing"
)

func TestLFOTriangleBasicShape(t *testing.T) {
	l := New(1.0, 100) // 100 samples per cycle

	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = l.Sample()
	}

	if math.Abs(samples[0]) > 0.01 {
		t.Errorf("triangle at phase 0: got %f, want 0", samples[0])
	}
	if math.Abs(samples[25]-0.5) > 0.02 {
		t.Errorf("triangle at phase 0.25: got %f, want 0.5", samples[25])
	}
	if math.Abs(samples[50]-1.0) > 0.02 {
		t.Errorf("triangle at phase 0.5: got %f, want 1.0", samples[50])
	}
	if math.Abs(samples[75]-0.5) > 0.02 {
		t.Errorf("triangle at phase 0.75: got %f, want 0.5", samples[75])
	}
}

func TestLFOStaysInUnitRange(t *testing.T) {
	l := New(VibratoHz, 44100)
	for i := 0; i < 44100; i++ {
		v := l.Sample()
		if v < 0 || v > 1 {
			t.Fatalf("sample %d out of range: %f", i, v)
		}
	}
}

func TestLFOZeroRateIsInactive(t *testing.T) {
	l := New(0, 44100)
	if l.Active() {
		t.Fatalf("zero-rate LFO reported active")
	}
	for i := 0; i < 10; i++ {
		if v := l.Sample(); v != 0 {
			t.Fatalf("zero-rate LFO produced %f", v)
		}
	}
}

func TestLFOReset(t *testing.T) {
	l := New(TremoloHz, 1000)
	for i := 0; i < 123; i++ {
		l.Sample()
	}
	l.Reset()
	if v := l.Sample(); v != 0 {
		t.Fatalf("after reset got %f, want 0", v)
	}
}

func TestBipolar(t *testing.T) {
	for _, tc := range []struct{ in, want float64 }{{0, -1}, {0.5, 0}, {1, 1}} {
		if got := Bipolar(tc.in); got != tc.want {
			t.Errorf("Bipolar(%f) = %f, want %f", tc.in, got, tc.want)
		}
	}
}

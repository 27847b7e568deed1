package ost

import (
	"bytes"
	"errors"
	"testing"
)

func simpleSong() *Builder {
	b := NewBuilder(6, DefaultBPM).Describe("test")
	inst := b.Instrument(Piano)
	p := b.Pattern(Entry{Line: 0, Channel: 0, Note: Note(4, 0), Instrument: inst})
	b.Order(p)
	return b
}

func TestValidateAcceptsBuiltSongs(t *testing.T) {
	if err := Validate(simpleSong().Bytes()); err != nil {
		t.Fatalf("simple song: %v", err)
	}
	if err := Validate(Demo()); err != nil {
		t.Fatalf("demo song: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	good := simpleSong().Bytes()
	for _, tc := range []struct {
		name string
		data func() []byte
		want error
	}{
		{"empty", func() []byte { return nil }, ErrNotOST},
		{"short", func() []byte { return good[:5] }, ErrNotOST},
		{"magic", func() []byte {
			d := bytes.Clone(good)
			d[0] = 'X'
			return d
		}, ErrNotOST},
		{"version", func() []byte {
			d := bytes.Clone(good)
			d[8] = 2
			return d
		}, ErrVersion},
		{"speed zero", func() []byte {
			d := bytes.Clone(good)
			d[9] = 0
			return d
		}, ErrBadSpeed},
		{"speed too high", func() []byte {
			d := bytes.Clone(good)
			d[9] = 32
			return d
		}, ErrBadSpeed},
		{"unterminated description", func() []byte {
			d := append([]byte(nil), good[:headerSize]...)
			return append(d, bytes.Repeat([]byte{'a'}, maxDescription+8)...)
		}, ErrDescription},
		{"truncated", func() []byte { return good[:len(good)-1] }, ErrTruncated},
		{"feedback", func() []byte {
			b := simpleSong()
			b.Instruments[0].Feedback = 0x10
			return b.Bytes()
		}, ErrInstruments},
		{"pan", func() []byte {
			b := simpleSong()
			b.Instruments[0].Pan = 4
			return b.Bytes()
		}, ErrInstruments},
		{"no orders", func() []byte {
			b := simpleSong()
			b.Orders = nil
			return b.Bytes()
		}, ErrOrders},
		{"missing pattern", func() []byte { return simpleSong().Order(5).Bytes() }, ErrOrders},
		{"jump past end", func() []byte { return simpleSong().Jump(9).Bytes() }, ErrOrders},
		{"only jumps", func() []byte {
			b := simpleSong()
			b.Orders = nil
			return b.Jump(0).Bytes()
		}, ErrOrders},
		{"channel", func() []byte {
			b := simpleSong()
			b.Pattern(Entry{Line: 0, Channel: Channels})
			return b.Bytes()
		}, ErrPatterns},
		{"line", func() []byte {
			b := simpleSong()
			b.Pattern(Entry{Line: PatternLines})
			return b.Bytes()
		}, ErrPatterns},
		{"lines out of order", func() []byte {
			b := simpleSong()
			b.Patterns = append(b.Patterns, []Entry{{Line: 5}, {Line: 2}})
			return b.Bytes()
		}, ErrPatterns},
		{"channel repeated", func() []byte {
			b := simpleSong()
			b.Patterns = append(b.Patterns, []Entry{{Line: 1, Channel: 2}, {Line: 1, Channel: 2}})
			return b.Bytes()
		}, ErrPatterns},
		{"note", func() []byte {
			b := simpleSong()
			b.Pattern(Entry{Note: MaxNote + 1})
			return b.Bytes()
		}, ErrPatterns},
		{"instrument", func() []byte {
			b := simpleSong()
			b.Pattern(Entry{Instrument: 2})
			return b.Bytes()
		}, ErrPatterns},
		{"effect", func() []byte {
			b := simpleSong()
			b.Pattern(Entry{Effect: effectCount})
			return b.Bytes()
		}, ErrPatterns},
		{"speed effect", func() []byte {
			b := simpleSong()
			b.Pattern(Entry{Effect: EffectSpeed, Param: 0})
			return b.Bytes()
		}, ErrPatterns},
		{"volume effect", func() []byte {
			b := simpleSong()
			b.Pattern(Entry{Effect: EffectVolume, Param: MaxVolume + 1})
			return b.Bytes()
		}, ErrPatterns},
		{"break effect", func() []byte {
			b := simpleSong()
			b.Pattern(Entry{Effect: EffectBreak, Param: PatternLines})
			return b.Bytes()
		}, ErrPatterns},
		{"jump effect", func() []byte {
			b := simpleSong()
			b.Pattern(Entry{Effect: EffectJump, Param: 3})
			return b.Bytes()
		}, ErrPatterns},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.data())
			if !errors.Is(err, tc.want) {
				t.Fatalf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestParseFields(t *testing.T) {
	s, err := Parse(Demo())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Speed != 6 || s.BPM != DefaultBPM {
		t.Fatalf("speed/bpm = %d/%d", s.Speed, s.BPM)
	}
	if s.Hertz() != 50 {
		t.Fatalf("hertz = %d, want 50", s.Hertz())
	}
	if len(s.Instruments) != 3 || len(s.Patterns) != 2 || len(s.Orders) != 4 {
		t.Fatalf("got %d instruments, %d patterns, %d orders", len(s.Instruments), len(s.Patterns), len(s.Orders))
	}
	if s.Instruments[2] != Lead {
		t.Fatalf("lead instrument did not round trip: %+v", s.Instruments[2])
	}
	if s.Orders[3] != OrderJump {
		t.Fatalf("last order = %#x, want jump to 0", s.Orders[3])
	}
}

func TestDescription(t *testing.T) {
	if got := Description(Demo()); got != "oplstream demo" {
		t.Fatalf("description = %q", got)
	}
	if got := Description([]byte("RIFF....WAVEfmt ")); got != "" {
		t.Fatalf("description of non-OST data = %q", got)
	}
}

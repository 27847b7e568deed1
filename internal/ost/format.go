// Package ost implements the OST tracker song format: parsing, validation,
// construction, and a tick-driven sequencer that plays a song into an
// OPL-style register sink.
//
// Layout (all multi-byte values little-endian):
//
//	0x00  magic "OSTRACK\x1a"
//	0x08  version (1)
//	0x09  initial speed, ticks per line (1-31)
//	0x0A  BPM (uint16); tick rate = BPM*2/5, so 125 BPM is 50 Hz
//	0x0C  description, NUL terminated
//	      instrument count (0-31), then 12 bytes per instrument
//	      order count (1-128), then one byte per order: pattern index,
//	        or 0x80|n to jump to order n
//	      pattern count (1-100), then per pattern a list of 6-byte
//	        entries (line, channel, note, instrument, effect, param)
//	        terminated by a 0xFF line byte
package ost

const (
	Magic          = "OSTRACK\x1a"
	Version        = 1
	headerSize     = 12
	maxDescription = 0x400

	MaxInstruments = 31
	InstrumentSize = 12
	MaxOrders      = 128
	MaxPatterns    = 100
	PatternLines   = 64
	Channels       = 9
	EntrySize      = 6
	EndOfPattern   = 0xFF
	OrderJump      = 0x80

	MaxSpeed  = 31
	MaxVolume = 64

	// notes are 1 + octave*12 + semitone
	NoteNone = 0
	MaxNote  = 96
	NoteOff  = 0x7F

	DefaultBPM = 125
)

// Effects.
const (
	EffectNone = iota
	EffectPortaUp
	EffectPortaDown
	EffectVolume
	EffectSpeed
	EffectBreak
	EffectJump
	effectCount
)

// Instrument is a two-operator patch. Operator bytes are the values written
// to the 0x20, 0x40, 0x60, 0x80 and 0xE0 register groups.
type Instrument struct {
	// Feedback holds FB in bits 1-3 and CNT in bit 0, as in register 0xC0.
	Feedback uint8
	// Pan: 1 left, 2 right, 0 or 3 both.
	Pan       uint8
	Modulator [5]uint8
	Carrier   [5]uint8
}

// Entry is one cell of a pattern.
type Entry struct {
	Line       uint8
	Channel    uint8
	Note       uint8
	Instrument uint8
	Effect     uint8
	Param      uint8
}

type Pattern struct {
	Entries []Entry
}

// Song is a decoded OST file.
type Song struct {
	Speed       int
	BPM         int
	Description string
	Instruments []Instrument
	Orders      []uint8
	Patterns    []Pattern
}

// Hertz returns the tick rate derived from the song's BPM.
func (s *Song) Hertz() int {
	return s.BPM * 2 / 5
}

// Description returns the description of an OST file without decoding the
// rest of it. It returns "" for anything that is not an OST file.
func Description(data []byte) string {
	if len(data) < headerSize || string(data[:len(Magic)]) != Magic {
		return ""
	}
	for i := headerSize; i < len(data) && i-headerSize < maxDescription; i++ {
		if data[i] == 0 {
			return string(data[headerSize:i])
		}
	}
	return ""
}

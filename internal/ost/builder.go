package ost

import (
	"bytes"
	"encoding/binary"
	"sort"
)

// Builder assembles an OST file. It does no validation of its own; run the
// result through Validate.
type Builder struct {
	Speed       int
	BPM         int
	Desc        string
	Instruments []Instrument
	Orders      []uint8
	Patterns    [][]Entry
}

func NewBuilder(speed int, bpm int) *Builder {
	return &Builder{Speed: speed, BPM: bpm}
}

func (b *Builder) Describe(s string) *Builder {
	b.Desc = s
	return b
}

// Instrument adds in and returns its 1-based number.
func (b *Builder) Instrument(in Instrument) uint8 {
	b.Instruments = append(b.Instruments, in)
	return uint8(len(b.Instruments))
}

// Pattern adds a pattern and returns its index. Entries may be given in any
// order.
func (b *Builder) Pattern(entries ...Entry) uint8 {
	es := append([]Entry(nil), entries...)
	sort.SliceStable(es, func(i, j int) bool {
		if es[i].Line != es[j].Line {
			return es[i].Line < es[j].Line
		}
		return es[i].Channel < es[j].Channel
	})
	b.Patterns = append(b.Patterns, es)
	return uint8(len(b.Patterns) - 1)
}

// Order appends pattern indexes to the order list.
func (b *Builder) Order(patterns ...uint8) *Builder {
	b.Orders = append(b.Orders, patterns...)
	return b
}

// Jump appends a marker that continues playback at order n.
func (b *Builder) Jump(n int) *Builder {
	b.Orders = append(b.Orders, OrderJump|uint8(n))
	return b
}

func (b *Builder) Bytes() []byte {
	var buf bytes.Buffer
	buf.WriteString(Magic)
	buf.WriteByte(Version)
	buf.WriteByte(uint8(b.Speed))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(b.BPM))
	buf.WriteString(b.Desc)
	buf.WriteByte(0)

	buf.WriteByte(uint8(len(b.Instruments)))
	for _, in := range b.Instruments {
		buf.WriteByte(in.Feedback)
		buf.WriteByte(in.Pan)
		buf.Write(in.Modulator[:])
		buf.Write(in.Carrier[:])
	}
	buf.WriteByte(uint8(len(b.Orders)))
	buf.Write(b.Orders)
	buf.WriteByte(uint8(len(b.Patterns)))
	for _, p := range b.Patterns {
		for _, e := range p {
			buf.Write([]byte{e.Line, e.Channel, e.Note, e.Instrument, e.Effect, e.Param})
		}
		buf.WriteByte(EndOfPattern)
	}
	return buf.Bytes()
}

// Note returns the note number for a semitone (0 = C) in an octave (0-7).
func Note(octave int, semitone int) uint8 {
	return uint8(1 + octave*12 + semitone)
}

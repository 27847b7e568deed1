package ost

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrNotOST      = errors.New("not an OST tune")
	ErrVersion     = errors.New("unsupported OST version")
	ErrTruncated   = errors.New("tune truncated")
	ErrBadSpeed    = errors.New("bad speed")
	ErrDescription = errors.New("bad description")
	ErrInstruments = errors.New("bad instrument table")
	ErrOrders      = errors.New("bad order list")
	ErrPatterns    = errors.New("bad pattern data")
)

type reader struct {
	data []byte
	pos  int
}

func (r *reader) byte(what string) (uint8, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("%w reading %s at offset %#x", ErrTruncated, what, r.pos)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytes(n int, what string) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("%w reading %s at offset %#x", ErrTruncated, what, r.pos)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Validate checks that data is a well formed OST tune. It returns nil or an
// error describing the first problem found.
func Validate(data []byte) error {
	_, err := decode(data)
	return err
}

// Parse decodes and validates an OST tune.
func Parse(data []byte) (*Song, error) {
	return decode(data)
}

func decode(data []byte) (*Song, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrNotOST, len(data))
	}
	if string(data[:len(Magic)]) != Magic {
		return nil, fmt.Errorf("%w: missing signature", ErrNotOST)
	}
	if data[8] != Version {
		return nil, fmt.Errorf("%w %d", ErrVersion, data[8])
	}
	s := &Song{
		Speed: int(data[9]),
		BPM:   int(binary.LittleEndian.Uint16(data[10:12])),
	}
	if s.Speed < 1 || s.Speed > MaxSpeed {
		return nil, fmt.Errorf("%w %d (want 1-%d)", ErrBadSpeed, s.Speed, MaxSpeed)
	}

	r := &reader{data: data, pos: headerSize}
	end := -1
	for i := r.pos; i < len(data) && i-r.pos <= maxDescription; i++ {
		if data[i] == 0 {
			end = i
			break
		}
	}
	if end < 0 {
		return nil, fmt.Errorf("%w: no terminator within %d bytes", ErrDescription, maxDescription)
	}
	s.Description = string(data[r.pos:end])
	r.pos = end + 1

	n, err := r.byte("instrument count")
	if err != nil {
		return nil, err
	}
	if n > MaxInstruments {
		return nil, fmt.Errorf("%w: %d instruments (max %d)", ErrInstruments, n, MaxInstruments)
	}
	s.Instruments = make([]Instrument, n)
	for i := range s.Instruments {
		raw, err := r.bytes(InstrumentSize, fmt.Sprintf("instrument %d", i+1))
		if err != nil {
			return nil, err
		}
		in := &s.Instruments[i]
		in.Feedback = raw[0]
		in.Pan = raw[1]
		copy(in.Modulator[:], raw[2:7])
		copy(in.Carrier[:], raw[7:12])
		if in.Feedback > 0x0F {
			return nil, fmt.Errorf("%w: instrument %d feedback %#x", ErrInstruments, i+1, in.Feedback)
		}
		if in.Pan > 3 {
			return nil, fmt.Errorf("%w: instrument %d pan %d", ErrInstruments, i+1, in.Pan)
		}
	}

	n, err = r.byte("order count")
	if err != nil {
		return nil, err
	}
	if n == 0 || int(n) > MaxOrders {
		return nil, fmt.Errorf("%w: %d orders (want 1-%d)", ErrOrders, n, MaxOrders)
	}
	orders, err := r.bytes(int(n), "order list")
	if err != nil {
		return nil, err
	}
	s.Orders = append([]uint8(nil), orders...)

	n, err = r.byte("pattern count")
	if err != nil {
		return nil, err
	}
	if n == 0 || int(n) > MaxPatterns {
		return nil, fmt.Errorf("%w: %d patterns (want 1-%d)", ErrPatterns, n, MaxPatterns)
	}
	s.Patterns = make([]Pattern, n)
	for i := range s.Patterns {
		if err := decodePattern(r, s, i); err != nil {
			return nil, err
		}
	}

	for i, o := range s.Orders {
		if o&OrderJump != 0 {
			if int(o&^OrderJump) >= len(s.Orders) {
				return nil, fmt.Errorf("%w: order %d jumps to %d of %d", ErrOrders, i, o&^OrderJump, len(s.Orders))
			}
			continue
		}
		if int(o) >= len(s.Patterns) {
			return nil, fmt.Errorf("%w: order %d plays pattern %d of %d", ErrOrders, i, o, len(s.Patterns))
		}
	}
	if !playsPattern(s.Orders) {
		return nil, fmt.Errorf("%w: no order plays a pattern", ErrOrders)
	}
	for pi, p := range s.Patterns {
		for _, e := range p.Entries {
			if e.Effect == EffectJump && int(e.Param) >= len(s.Orders) {
				return nil, fmt.Errorf("%w: pattern %d line %d jumps to order %d of %d", ErrPatterns, pi, e.Line, e.Param, len(s.Orders))
			}
		}
	}
	return s, nil
}

func decodePattern(r *reader, s *Song, index int) error {
	lastLine := -1
	lastChannel := -1
	for {
		line, err := r.byte(fmt.Sprintf("pattern %d", index))
		if err != nil {
			return err
		}
		if line == EndOfPattern {
			return nil
		}
		raw, err := r.bytes(EntrySize-1, fmt.Sprintf("pattern %d line %d", index, line))
		if err != nil {
			return err
		}
		e := Entry{Line: line, Channel: raw[0], Note: raw[1], Instrument: raw[2], Effect: raw[3], Param: raw[4]}
		where := func(format string, args ...any) error {
			return fmt.Errorf("%w: pattern %d line %d channel %d: %s", ErrPatterns, index, e.Line, e.Channel, fmt.Sprintf(format, args...))
		}
		switch {
		case int(e.Line) >= PatternLines:
			return where("line out of range")
		case int(e.Line) < lastLine:
			return where("lines out of order")
		case int(e.Channel) >= Channels:
			return where("channel out of range")
		case int(e.Line) == lastLine && int(e.Channel) <= lastChannel:
			return where("channel repeated or out of order")
		case e.Note > MaxNote && e.Note != NoteOff:
			return where("bad note %d", e.Note)
		case int(e.Instrument) > len(s.Instruments):
			return where("instrument %d not defined", e.Instrument)
		case e.Effect >= effectCount:
			return where("unknown effect %d", e.Effect)
		case e.Effect == EffectSpeed && (e.Param < 1 || e.Param > MaxSpeed):
			return where("speed %d", e.Param)
		case e.Effect == EffectVolume && e.Param > MaxVolume:
			return where("volume %d", e.Param)
		case e.Effect == EffectBreak && int(e.Param) >= PatternLines:
			return where("break to line %d", e.Param)
		}
		if int(e.Line) != lastLine {
			lastChannel = -1
		}
		lastLine = int(e.Line)
		lastChannel = int(e.Channel)
		s.Patterns[index].Entries = append(s.Patterns[index].Entries, e)
	}
}

func playsPattern(orders []uint8) bool {
	for _, o := range orders {
		if o&OrderJump == 0 {
			return true
		}
	}
	return false
}

package ost

// Demo instruments.
var (
	Piano = Instrument{
		Feedback:  0x0A,
		Modulator: [5]uint8{0x21, 0x1A, 0xF2, 0x54, 0x00},
		Carrier:   [5]uint8{0x21, 0x00, 0xF3, 0x36, 0x00},
	}
	Bass = Instrument{
		Feedback:  0x06,
		Modulator: [5]uint8{0x01, 0x12, 0xF5, 0x23, 0x00},
		Carrier:   [5]uint8{0x01, 0x00, 0xF6, 0x26, 0x00},
	}
	Lead = Instrument{
		Feedback:  0x0C,
		Pan:       1,
		Modulator: [5]uint8{0x62, 0x1C, 0xF1, 0x12, 0x01},
		Carrier:   [5]uint8{0x61, 0x02, 0xA2, 0x13, 0x00},
	}
)

// Demo returns a short two-pattern tune: a bass and chord loop, then a
// second pattern with a lead line that breaks back into the first.
func Demo() []byte {
	b := NewBuilder(6, DefaultBPM).Describe("oplstream demo")
	piano := b.Instrument(Piano)
	bass := b.Instrument(Bass)
	lead := b.Instrument(Lead)

	roots := []int{0, 9, 5, 7} // C, A, F, G
	var a []Entry
	for bar, root := range roots {
		line := uint8(bar * 16)
		a = append(a,
			Entry{Line: line, Channel: 0, Note: Note(2, root), Instrument: bass},
			Entry{Line: line, Channel: 1, Note: Note(4, root), Instrument: piano},
			Entry{Line: line, Channel: 2, Note: Note(4, (root+4)%12), Instrument: piano},
			Entry{Line: line + 8, Channel: 0, Note: Note(3, root)},
			Entry{Line: line + 14, Channel: 1, Note: NoteOff},
			Entry{Line: line + 14, Channel: 2, Note: NoteOff},
		)
	}
	pa := b.Pattern(a...)

	melody := []int{7, 9, 11, 12, 11, 9, 7, 4}
	bEntries := []Entry{{Line: 0, Channel: 0, Note: Note(2, 0), Instrument: bass}}
	for i, n := range melody {
		oct := 4
		if n >= 12 {
			oct, n = 5, n-12
		}
		bEntries = append(bEntries, Entry{Line: uint8(i * 4), Channel: 3, Note: Note(oct, n), Instrument: lead})
	}
	last := &bEntries[len(bEntries)-1]
	last.Effect, last.Param = EffectPortaDown, 4
	bEntries = append(bEntries, Entry{Line: 31, Channel: 3, Note: NoteOff, Effect: EffectBreak, Param: 0})
	pb := b.Pattern(bEntries...)

	b.Order(pa, pb, pa).Jump(0)
	return b.Bytes()
}

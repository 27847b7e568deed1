package opl

// Register groups. Operator groups are indexed by slot offset (0x00-0x15),
// channel groups by channel (0-8). The second bank repeats the map at 0x100.
const (
	RegTest         = 0x01
	RegOPL3         = 0x105
	RegOpFlags      = 0x20 // AM, VIB, EGT, KSR, MULT
	RegOpLevel      = 0x40 // KSL, TL
	RegOpAttack     = 0x60 // AR, DR
	RegOpSustain    = 0x80 // SL, RR
	RegChFreqLow    = 0xA0
	RegChKeyOn      = 0xB0 // KON, BLOCK, FNUM high
	RegRhythm       = 0xBD // AM depth, VIB depth, rhythm
	RegChFeedback   = 0xC0 // CHD-CHA, FB, CNT
	RegOpWaveform   = 0xE0
	WaveSelectFlag  = 0x20
	KeyOnFlag       = 0x20
	PanLeft         = 0x10
	PanRight        = 0x20
	BankChannels    = 9
	NumChannels     = 2 * BankChannels
	operatorsPerCh  = 2
	slotOffsetCount = 0x16
)

var opOffsets = [BankChannels][operatorsPerCh]uint16{
	{0x00, 0x03}, {0x01, 0x04}, {0x02, 0x05},
	{0x08, 0x0B}, {0x09, 0x0C}, {0x0A, 0x0D},
	{0x10, 0x13}, {0x11, 0x14}, {0x12, 0x15},
}

// slot offset -> channel within bank and operator, -1 for unused offsets
var (
	slotChannel [slotOffsetCount]int8
	slotOp      [slotOffsetCount]int8
)

func init() {
	for i := range slotChannel {
		slotChannel[i] = -1
		slotOp[i] = -1
	}
	for ch, ops := range opOffsets {
		for op, off := range ops {
			slotChannel[off] = int8(ch)
			slotOp[off] = int8(op)
		}
	}
}

// OperatorOffset returns the slot offset of operator op (0 modulator,
// 1 carrier) of channel ch (0-17), including the bank bit.
func OperatorOffset(ch int, op int) uint16 {
	bank := uint16(ch/BankChannels) << 8
	return bank | opOffsets[ch%BankChannels][op&1]
}

// ChannelOffset returns the channel register offset of ch (0-17), including
// the bank bit.
func ChannelOffset(ch int) uint16 {
	return uint16(ch/BankChannels)<<8 | uint16(ch%BankChannels)
}

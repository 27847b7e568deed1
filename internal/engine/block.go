package engine

import (
	"encoding/binary"
	"sync/atomic"
)

// BytesPerFrame is the size of one interleaved stereo 16-bit frame.
const BytesPerFrame = 4

// BlockState tracks who owns a block.
type BlockState int32

const (
	BlockIdle BlockState = iota
	BlockRefilling
	BlockQueued
	BlockPlaying
)

func (s BlockState) String() string {
	switch s {
	case BlockIdle:
		return "idle"
	case BlockRefilling:
		return "refilling"
	case BlockQueued:
		return "queued"
	case BlockPlaying:
		return "playing"
	}
	return "unknown"
}

// Block is one fixed-size chunk of interleaved little-endian stereo PCM.
// The engine writes a block only while it is idle or refilling; once queued it
// belongs to the device until drained.
type Block struct {
	index int
	data  []byte
	state atomic.Int32
}

func NewBlock(index int, frames int) *Block {
	return &Block{index: index, data: make([]byte, frames*BytesPerFrame)}
}

func (b *Block) Index() int  { return b.index }
func (b *Block) Frames() int { return len(b.data) / BytesPerFrame }

// Bytes returns the PCM payload. Devices must treat it as read-only.
func (b *Block) Bytes() []byte { return b.data }

func (b *Block) State() BlockState { return BlockState(b.state.Load()) }

func (b *Block) setState(s BlockState) { b.state.Store(int32(s)) }

// Frame decodes the frame at position i.
func (b *Block) Frame(i int) (int16, int16) {
	off := i * BytesPerFrame
	return int16(binary.LittleEndian.Uint16(b.data[off:])), int16(binary.LittleEndian.Uint16(b.data[off+2:]))
}

func (b *Block) put(i int, l, r int16) {
	off := i * BytesPerFrame
	binary.LittleEndian.PutUint16(b.data[off:], uint16(l))
	binary.LittleEndian.PutUint16(b.data[off+2:], uint16(r))
}

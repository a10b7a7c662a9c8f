package vm

import (
	"encoding/binary"
	"fmt"
)

// DefaultHeapSize is the heap size used when no option overrides it.
const DefaultHeapSize = 1000

// WordSize is the number of bytes moved by a single LW or SW.
const WordSize = 4

// Heap is the byte addressable memory used by LW and SW. Words are stored
// big-endian.
type Heap struct {
	data []byte
}

// NewHeap creates a zeroed heap of the given size.
func NewHeap(size int) *Heap {
	return &Heap{data: make([]byte, size)}
}

// Size returns the heap size in bytes.
func (h *Heap) Size() int {
	return len(h.data)
}

// checkWord validates that the 4 byte window starting at addr lies
// entirely inside the heap.
func (h *Heap) checkWord(addr int64) error {
	if addr < 0 || addr > int64(len(h.data))-WordSize {
		return fmt.Errorf("%w: address %d (heap size %d)", ErrMemoryOutOfBounds, addr, len(h.data))
	}
	return nil
}

// LoadWord reads a big-endian 32 bit word at addr.
func (h *Heap) LoadWord(addr int64) (uint32, error) {
	if err := h.checkWord(addr); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(h.data[addr : addr+WordSize]), nil
}

// StoreWord writes v as a big-endian 32 bit word at addr. Nothing is
// written when the window is out of bounds.
func (h *Heap) StoreWord(addr int64, v uint32) error {
	if err := h.checkWord(addr); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(h.data[addr:addr+WordSize], v)
	return nil
}

// Window returns a copy of count bytes starting at start, clipped to the
// heap bounds.
func (h *Heap) Window(start, count int) []byte {
	if start < 0 {
		start = 0
	}
	if start > len(h.data) {
		start = len(h.data)
	}
	end := len(h.data)
	if count >= 0 && count < end-start {
		end = start + count
	}
	out := make([]byte, end-start)
	copy(out, h.data[start:end])
	return out
}

// Reset zeroes the heap.
func (h *Heap) Reset() {
	for i := range h.data {
		h.data[i] = 0
	}
}

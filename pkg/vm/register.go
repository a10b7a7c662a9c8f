package vm

import "fmt"

// NumRegisters is the size of the general purpose register file.
const NumRegisters = 32

// RegisterFile holds the general purpose registers. Register operands are
// decoded from a full program byte, so every access is bounds checked
// against the file size.
type RegisterFile struct {
	R [NumRegisters]int32
}

// NewRegisterFile creates a new register file with all registers zeroed.
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{}
}

// Get returns the value of register idx.
func (rf *RegisterFile) Get(idx uint8) (int32, error) {
	if int(idx) >= NumRegisters {
		return 0, fmt.Errorf("%w: $%d", ErrInvalidRegister, idx)
	}
	return rf.R[idx], nil
}

// Set writes v into register idx.
func (rf *RegisterFile) Set(idx uint8, v int32) error {
	if int(idx) >= NumRegisters {
		return fmt.Errorf("%w: $%d", ErrInvalidRegister, idx)
	}
	rf.R[idx] = v
	return nil
}

// Check validates a register index without accessing the file.
func (rf *RegisterFile) Check(idx uint8) error {
	if int(idx) >= NumRegisters {
		return fmt.Errorf("%w: $%d", ErrInvalidRegister, idx)
	}
	return nil
}

// Reset clears all registers.
func (rf *RegisterFile) Reset() {
	for i := range rf.R {
		rf.R[i] = 0
	}
}

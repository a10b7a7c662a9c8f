package vm

// Snapshot is a read-only copy of the complete machine state. Mutating a
// snapshot never affects the machine it was taken from.
type Snapshot struct {
	Registers [NumRegisters]int32 `cbor:"registers" json:"registers"`
	PC        int                 `cbor:"pc" json:"pc"`
	Remainder uint32              `cbor:"remainder" json:"remainder"`
	Program   []byte              `cbor:"program" json:"program"`
	Heap      []byte              `cbor:"heap" json:"heap"`
}

// Snapshot returns a copy of the current machine state.
func (vm *VM) Snapshot() *Snapshot {
	return &Snapshot{
		Registers: vm.registers.R,
		PC:        vm.pc,
		Remainder: vm.remainder,
		Program:   vm.Program(),
		Heap:      vm.heap.Window(0, vm.heap.Size()),
	}
}

// PC returns the current program counter as a byte offset.
func (vm *VM) PC() int {
	return vm.pc
}

// Register returns the value of register idx.
func (vm *VM) Register(idx uint8) (int32, error) {
	return vm.registers.Get(idx)
}

// Registers returns a copy of the register file.
func (vm *VM) Registers() [NumRegisters]int32 {
	return vm.registers.R
}

// Remainder returns the remainder of the most recent DIV.
func (vm *VM) Remainder() uint32 {
	return vm.remainder
}

// Program returns a copy of the program buffer.
func (vm *VM) Program() []byte {
	out := make([]byte, len(vm.program))
	copy(out, vm.program)
	return out
}

// ProgramLen returns the number of bytes in the program buffer.
func (vm *VM) ProgramLen() int {
	return len(vm.program)
}

// HeapSize returns the heap size in bytes.
func (vm *VM) HeapSize() int {
	return vm.heap.Size()
}

// HeapWindow returns a copy of count heap bytes starting at start, clipped
// to the heap bounds. A negative count reads to the end of the heap.
func (vm *VM) HeapWindow(start, count int) []byte {
	return vm.heap.Window(start, count)
}

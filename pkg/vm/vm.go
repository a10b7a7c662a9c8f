// Package vm implements the Iridium virtual machine.
//
// The VM is a register-based bytecode interpreter with:
//   - 32 signed 32-bit general purpose registers ($0-$31)
//   - a byte addressed heap (1000 bytes by default) used by LW and SW
//   - an append-only program buffer addressed by a byte program counter
//
// Basic usage:
//
//	v := vm.NewVM()
//	v.AddProgramBytes(vm.EncodeLoad(0, 500)...)
//	status, err := v.Run()
//
// Interactive drivers append bytes and call Step once per input line.
package vm

import (
	"context"
	"errors"
	"fmt"

	"github.com/retroenv/retrogolib/log"
)

// Error definitions
var (
	ErrInvalidRegister       = errors.New("invalid register")
	ErrMemoryOutOfBounds     = errors.New("memory access out of bounds")
	ErrDivisionByZero        = errors.New("division by zero")
	ErrJumpOutOfRange        = errors.New("jump target out of range")
	ErrIncompleteInstruction = errors.New("incomplete instruction")
	ErrInstructionLimit      = errors.New("instruction limit exceeded")
	ErrInvalidHex            = errors.New("invalid hex byte")
)

// Status describes how a single step or a run ended.
type Status uint8

const (
	StatusContinue Status = iota // instruction executed, more may follow
	StatusHalted                 // HLT executed
	StatusIllegal                // illegal opcode decoded
	StatusEnd                    // program counter at or past the end of the program
	StatusFault                  // instruction failed, see the returned error
)

// String returns the string representation of a status.
func (s Status) String() string {
	switch s {
	case StatusContinue:
		return "continue"
	case StatusHalted:
		return "halted"
	case StatusIllegal:
		return "illegal opcode"
	case StatusEnd:
		return "no more instructions"
	case StatusFault:
		return "fault"
	default:
		return "unknown"
	}
}

// Stopped reports whether the status ends a run.
func (s Status) Stopped() bool {
	return s != StatusContinue
}

// DivisionMode selects what DIV writes to its destination register.
type DivisionMode uint8

const (
	// DivisionCompat writes R1 + R2, matching the historical behavior of
	// the instruction set. The remainder is always R1 % R2.
	DivisionCompat DivisionMode = iota
	// DivisionQuotient writes R1 / R2 truncated toward zero.
	DivisionQuotient
)

// String returns the configuration name of the mode.
func (m DivisionMode) String() string {
	if m == DivisionQuotient {
		return "quotient"
	}
	return "compat"
}

// ParseDivisionMode parses a configuration name into a DivisionMode.
func ParseDivisionMode(s string) (DivisionMode, error) {
	switch s {
	case "", "compat":
		return DivisionCompat, nil
	case "quotient":
		return DivisionQuotient, nil
	default:
		return DivisionCompat, fmt.Errorf("unknown division mode %q", s)
	}
}

// VM represents the virtual machine.
type VM struct {
	registers RegisterFile
	heap      *Heap
	program   []byte
	pc        int
	remainder uint32

	strictJumps bool
	division    DivisionMode
	logger      *log.Logger

	// Resource limits for Run
	maxSteps  int64
	stepCount int64

	// Context for cancellation
	ctx context.Context
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithHeapSize sets the heap size in bytes.
func WithHeapSize(n int) Option {
	return func(vm *VM) {
		if n >= 0 {
			vm.heap = NewHeap(n)
		}
	}
}

// WithStrictJumps makes jumps past the end of the program an error instead
// of a clean stop.
func WithStrictJumps(strict bool) Option {
	return func(vm *VM) {
		vm.strictJumps = strict
	}
}

// WithDivisionMode selects the DIV destination semantics.
func WithDivisionMode(mode DivisionMode) Option {
	return func(vm *VM) {
		vm.division = mode
	}
}

// WithLogger attaches a logger for halt, illegal opcode and trace messages.
func WithLogger(logger *log.Logger) Option {
	return func(vm *VM) {
		vm.logger = logger
	}
}

// NewVM creates a new VM instance with all state zeroed.
func NewVM(opts ...Option) *VM {
	vm := &VM{
		heap: NewHeap(DefaultHeapSize),
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// AddProgramByte appends a single byte to the program buffer.
func (vm *VM) AddProgramByte(b byte) {
	vm.program = append(vm.program, b)
}

// AddProgramBytes appends bytes to the program buffer in order.
func (vm *VM) AddProgramBytes(bs ...byte) {
	vm.program = append(vm.program, bs...)
}

// SetMaxSteps sets the maximum number of instructions a single Run may execute.
// Zero means unlimited.
func (vm *VM) SetMaxSteps(n int64) {
	vm.maxSteps = n
}

// SetContext sets the context for cancellation/timeout of Run.
func (vm *VM) SetContext(ctx context.Context) {
	vm.ctx = ctx
}

// SetLogger replaces the logger. A nil logger disables logging.
func (vm *VM) SetLogger(logger *log.Logger) {
	vm.logger = logger
}

// SetPC moves the program counter. Intended for drivers and tests.
func (vm *VM) SetPC(pc int) {
	vm.pc = pc
}

// SetRegister writes a register directly. Intended for drivers and tests.
func (vm *VM) SetRegister(idx uint8, v int32) error {
	return vm.registers.Set(idx, v)
}

// Reset zeroes registers, heap, program counter and remainder and clears
// the program buffer.
func (vm *VM) Reset() {
	vm.registers.Reset()
	vm.heap.Reset()
	vm.program = nil
	vm.pc = 0
	vm.remainder = 0
	vm.stepCount = 0
}

// Run executes instructions until a step reports a stop status or an error.
func (vm *VM) Run() (Status, error) {
	vm.stepCount = 0

	for {
		// Context cancellation check
		if vm.ctx != nil {
			select {
			case <-vm.ctx.Done():
				return StatusFault, vm.ctx.Err()
			default:
			}
		}

		// Reaching the end of the program executes nothing and is not counted.
		if vm.pc < 0 || vm.pc >= len(vm.program) {
			return StatusEnd, nil
		}
		if vm.maxSteps > 0 && vm.stepCount >= vm.maxSteps {
			return StatusFault, fmt.Errorf("%w: %d", ErrInstructionLimit, vm.maxSteps)
		}
		vm.stepCount++

		status, err := vm.Step()
		if err != nil || status.Stopped() {
			return status, err
		}
	}
}

// Steps returns the number of instructions executed by the most recent Run.
func (vm *VM) Steps() int64 {
	return vm.stepCount
}

// RunContext is Run with a cancellation context.
func (vm *VM) RunContext(ctx context.Context) (Status, error) {
	prev := vm.ctx
	vm.ctx = ctx
	defer func() { vm.ctx = prev }()
	return vm.Run()
}

// Step executes exactly one instruction. When the program counter is at or
// past the end of the program it reports StatusEnd without error.
//
// An instruction whose operand bytes have not been appended yet returns
// ErrIncompleteInstruction and leaves the program counter on its opcode.
// Any other error consumes the instruction without changing registers,
// heap or remainder.
func (vm *VM) Step() (Status, error) {
	if vm.pc < 0 || vm.pc >= len(vm.program) {
		return StatusEnd, nil
	}

	start := vm.pc
	op := OpcodeFromByte(vm.program[start])
	vm.pc++

	if vm.logger != nil {
		vm.logger.Debug("Executing instruction",
			log.Int("pc", start),
			log.String("opcode", op.String()))
	}

	status, err := vm.execute(op, start)
	if err == nil {
		return status, nil
	}

	if errors.Is(err, ErrIncompleteInstruction) {
		vm.pc = start
		return StatusFault, fmt.Errorf("%w: %s at offset %d needs %d bytes, %d available",
			err, op, start, op.Width(), len(vm.program)-start)
	}

	// Faulting instructions are consumed at their full encoded width unless
	// a jump already moved the program counter past them.
	if end := start + op.Width(); vm.pc < end {
		vm.pc = min(end, len(vm.program))
	}
	return StatusFault, fmt.Errorf("%s at offset %d: %w", op, start, err)
}

// operands consumes n operand bytes or fails without consuming any.
func (vm *VM) operands(n int) ([]byte, error) {
	if vm.pc+n > len(vm.program) {
		return nil, ErrIncompleteInstruction
	}
	ops := vm.program[vm.pc : vm.pc+n]
	vm.pc += n
	return ops, nil
}

// threeRegisters reads operands R1, R2, Rd and returns the values of R1 and
// R2 together with the validated destination index.
func (vm *VM) threeRegisters() (a, b int32, dst uint8, err error) {
	ops, err := vm.operands(3)
	if err != nil {
		return 0, 0, 0, err
	}
	if a, err = vm.registers.Get(ops[0]); err != nil {
		return 0, 0, 0, err
	}
	if b, err = vm.registers.Get(ops[1]); err != nil {
		return 0, 0, 0, err
	}
	if err = vm.registers.Check(ops[2]); err != nil {
		return 0, 0, 0, err
	}
	return a, b, ops[2], nil
}

// oneRegister reads a single register operand and returns its value.
func (vm *VM) oneRegister() (int32, error) {
	ops, err := vm.operands(1)
	if err != nil {
		return 0, err
	}
	return vm.registers.Get(ops[0])
}

func (vm *VM) execute(op Opcode, start int) (Status, error) {
	switch op {
	case OpHLT:
		if vm.logger != nil {
			vm.logger.Info("HLT encountered", log.Int("pc", start))
		}
		return StatusHalted, nil

	case OpLOAD:
		ops, err := vm.operands(3)
		if err != nil {
			return StatusFault, err
		}
		value := uint16(ops[1])<<8 | uint16(ops[2])
		if err := vm.registers.Set(ops[0], int32(value)); err != nil {
			return StatusFault, err
		}

	case OpADD, OpSUB, OpMUL:
		a, b, dst, err := vm.threeRegisters()
		if err != nil {
			return StatusFault, err
		}
		switch op {
		case OpADD:
			vm.registers.R[dst] = a + b
		case OpSUB:
			vm.registers.R[dst] = a - b
		default:
			vm.registers.R[dst] = a * b
		}

	case OpDIV:
		a, b, dst, err := vm.threeRegisters()
		if err != nil {
			return StatusFault, err
		}
		if b == 0 {
			return StatusFault, ErrDivisionByZero
		}
		if vm.division == DivisionQuotient {
			vm.registers.R[dst] = a / b
		} else {
			vm.registers.R[dst] = a + b
		}
		vm.remainder = uint32(a % b)

	case OpJMP:
		target, err := vm.oneRegister()
		if err != nil {
			return StatusFault, err
		}
		if err := vm.jump(int64(target)); err != nil {
			return StatusFault, err
		}

	case OpJMPF:
		distance, err := vm.oneRegister()
		if err != nil {
			return StatusFault, err
		}
		if err := vm.jump(int64(vm.pc) + int64(distance)); err != nil {
			return StatusFault, err
		}

	case OpJMPB:
		distance, err := vm.oneRegister()
		if err != nil {
			return StatusFault, err
		}
		if err := vm.jump(int64(vm.pc) - int64(distance)); err != nil {
			return StatusFault, err
		}

	case OpEQ, OpNEQ, OpGT, OpLT, OpGTQ, OpLTQ:
		a, b, dst, err := vm.threeRegisters()
		if err != nil {
			return StatusFault, err
		}
		vm.registers.R[dst] = boolToInt(compare(op, a, b))

	case OpJEQ:
		ops, err := vm.operands(2)
		if err != nil {
			return StatusFault, err
		}
		target, err := vm.registers.Get(ops[0])
		if err != nil {
			return StatusFault, err
		}
		flag, err := vm.registers.Get(ops[1])
		if err != nil {
			return StatusFault, err
		}
		if flag == 1 {
			if err := vm.jump(int64(target)); err != nil {
				return StatusFault, err
			}
			break
		}
		// Not taken: the trailing byte keeps the instruction width uniform.
		if _, err := vm.operands(1); err != nil {
			return StatusFault, err
		}

	case OpLW:
		ops, err := vm.operands(3)
		if err != nil {
			return StatusFault, err
		}
		if err := vm.registers.Check(ops[0]); err != nil {
			return StatusFault, err
		}
		base, err := vm.registers.Get(ops[1])
		if err != nil {
			return StatusFault, err
		}
		word, err := vm.heap.LoadWord(int64(base) + int64(ops[2]))
		if err != nil {
			return StatusFault, err
		}
		vm.registers.R[ops[0]] = int32(word)

	case OpSW:
		ops, err := vm.operands(3)
		if err != nil {
			return StatusFault, err
		}
		value, err := vm.registers.Get(ops[0])
		if err != nil {
			return StatusFault, err
		}
		base, err := vm.registers.Get(ops[1])
		if err != nil {
			return StatusFault, err
		}
		if err := vm.heap.StoreWord(int64(base)+int64(ops[2]), uint32(value)); err != nil {
			return StatusFault, err
		}

	default:
		if vm.logger != nil {
			vm.logger.Warn("Illegal opcode encountered",
				log.Int("pc", start),
				log.Hex("opcode", vm.program[start]))
		}
		return StatusIllegal, nil
	}

	return StatusContinue, nil
}

// jump moves the program counter to target. Negative targets can not be
// represented and always fail. Targets past the end of the program fail in
// strict mode and otherwise stop execution cleanly on the next step.
func (vm *VM) jump(target int64) error {
	if target < 0 || (vm.strictJumps && target > int64(len(vm.program))) {
		return fmt.Errorf("%w: target %d (program length %d)", ErrJumpOutOfRange, target, len(vm.program))
	}
	vm.pc = int(target)
	return nil
}

func compare(op Opcode, a, b int32) bool {
	switch op {
	case OpEQ:
		return a == b
	case OpNEQ:
		return a != b
	case OpGT:
		return a > b
	case OpLT:
		return a < b
	case OpGTQ:
		return a >= b
	default:
		return a <= b
	}
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

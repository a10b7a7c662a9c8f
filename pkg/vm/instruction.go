package vm

// Instruction is a statically decoded instruction as it appears in the
// program buffer.
//
// Layout (operand bytes follow the opcode, multi-byte values big-endian):
//
//	HLT                        [op]
//	JMP JMPF JMPB              [op][reg]
//	LOAD                       [op][reg][imm16 hi][imm16 lo]
//	ADD .. LTQ, JEQ            [op][reg][reg][reg]
//	LW SW                      [op][reg][reg][imm8]
type Instruction struct {
	Offset   int    // byte offset of the opcode in the program
	Opcode   Opcode // decoded opcode, OpIllegal for unknown bytes
	Raw      byte   // the raw opcode byte
	Operands []byte // operand bytes present in the program
}

// Complete reports whether all operand bytes of the instruction are present.
func (i Instruction) Complete() bool {
	return len(i.Operands) == i.Opcode.OperandCount()
}

// Imm16 returns the 16-bit immediate of a LOAD instruction.
func (i Instruction) Imm16() uint16 {
	if i.Opcode != OpLOAD || len(i.Operands) < 3 {
		return 0
	}
	return uint16(i.Operands[1])<<8 | uint16(i.Operands[2])
}

// Bytes returns the encoded form of the instruction.
func (i Instruction) Bytes() []byte {
	out := make([]byte, 0, 1+len(i.Operands))
	out = append(out, i.Raw)
	return append(out, i.Operands...)
}

// DecodeAt decodes the instruction starting at offset without executing it.
// Operands missing from the end of the program are left out.
func DecodeAt(program []byte, offset int) Instruction {
	raw := program[offset]
	op := OpcodeFromByte(raw)
	end := min(offset+1+op.OperandCount(), len(program))
	operands := make([]byte, end-offset-1)
	copy(operands, program[offset+1:end])
	return Instruction{
		Offset:   offset,
		Opcode:   op,
		Raw:      raw,
		Operands: operands,
	}
}

// Decode splits a program into its instructions.
func Decode(program []byte) []Instruction {
	var out []Instruction
	for offset := 0; offset < len(program); {
		inst := DecodeAt(program, offset)
		out = append(out, inst)
		offset += 1 + len(inst.Operands)
	}
	return out
}

// Encode creates the byte encoding of an instruction from its opcode and
// operand bytes. Missing operands are zero filled and extra operands are
// dropped so the result always has the opcode's width.
func Encode(op Opcode, operands ...uint8) []byte {
	out := make([]byte, op.Width())
	out[0] = byte(op)
	copy(out[1:], operands)
	return out
}

// EncodeLoad creates a LOAD instruction writing imm16 into register reg.
func EncodeLoad(reg uint8, imm16 uint16) []byte {
	return Encode(OpLOAD, reg, uint8(imm16>>8), uint8(imm16))
}

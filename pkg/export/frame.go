// Package export converts machine snapshots into tables and files.
//
// Register and heap views are built as dataframe-go DataFrames so they can be
// printed as tables or written as CSV, JSON lines or Parquet. Full machine
// state is written as canonical CBOR.
package export

import (
	"encoding/binary"
	"fmt"

	"github.com/akhildatla/iridium/pkg/vm"
	dataframe "github.com/rocketlaunchr/dataframe-go"
)

// Column names shared by the frames.
const (
	ColRegister = "register"
	ColAddress  = "address"
	ColValue    = "value"
	ColHex      = "hex"
)

// RegistersFrame returns one row per register with its signed value and its
// 32 bit hex pattern.
func RegistersFrame(snap *vm.Snapshot) *dataframe.DataFrame {
	names := make([]any, 0, vm.NumRegisters)
	values := make([]any, 0, vm.NumRegisters)
	hexes := make([]any, 0, vm.NumRegisters)

	for i, r := range snap.Registers {
		names = append(names, fmt.Sprintf("$%d", i))
		values = append(values, int64(r))
		hexes = append(hexes, fmt.Sprintf("%08X", uint32(r)))
	}

	return dataframe.NewDataFrame(
		dataframe.NewSeriesString(ColRegister, nil, names...),
		dataframe.NewSeriesInt64(ColValue, nil, values...),
		dataframe.NewSeriesString(ColHex, nil, hexes...),
	)
}

// HeapFrame returns the heap as big-endian words, one row per word, for the
// byte window [start, start+count). A negative count reads to the end of the
// heap. A trailing partial word is zero padded.
func HeapFrame(snap *vm.Snapshot, start, count int) *dataframe.DataFrame {
	window := clip(snap.Heap, start, count)
	if start < 0 {
		start = 0
	}

	addresses := make([]any, 0, len(window)/vm.WordSize+1)
	values := make([]any, 0, len(window)/vm.WordSize+1)
	hexes := make([]any, 0, len(window)/vm.WordSize+1)

	for off := 0; off < len(window); off += vm.WordSize {
		var word [vm.WordSize]byte
		copy(word[:], window[off:])
		addresses = append(addresses, int64(start+off))
		values = append(values, int64(int32(binary.BigEndian.Uint32(word[:]))))
		hexes = append(hexes, vm.FormatHex(word[:]))
	}

	return dataframe.NewDataFrame(
		dataframe.NewSeriesInt64(ColAddress, nil, addresses...),
		dataframe.NewSeriesInt64(ColValue, nil, values...),
		dataframe.NewSeriesString(ColHex, nil, hexes...),
	)
}

// ProgramFrame returns the decoded program, one row per instruction.
func ProgramFrame(snap *vm.Snapshot) *dataframe.DataFrame {
	insts := vm.Decode(snap.Program)

	offsets := make([]any, 0, len(insts))
	mnemonics := make([]any, 0, len(insts))
	hexes := make([]any, 0, len(insts))

	for _, inst := range insts {
		offsets = append(offsets, int64(inst.Offset))
		name := inst.Opcode.String()
		if !inst.Complete() {
			name += "?"
		}
		mnemonics = append(mnemonics, name)
		hexes = append(hexes, vm.FormatHex(inst.Bytes()))
	}

	return dataframe.NewDataFrame(
		dataframe.NewSeriesInt64("offset", nil, offsets...),
		dataframe.NewSeriesString("opcode", nil, mnemonics...),
		dataframe.NewSeriesString("bytes", nil, hexes...),
	)
}

// Table renders a frame as a text table.
func Table(df *dataframe.DataFrame) string {
	return df.Table()
}

func clip(data []byte, start, count int) []byte {
	if start < 0 {
		start = 0
	}
	if start > len(data) {
		start = len(data)
	}
	end := len(data)
	if count >= 0 && count < end-start {
		end = start + count
	}
	return data[start:end]
}

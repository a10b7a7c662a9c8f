package export

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akhildatla/iridium/pkg/vm"
	"github.com/retroenv/retrogolib/assert"
)

func testSnapshot(t *testing.T) *vm.Snapshot {
	t.Helper()

	m := vm.NewVM(vm.WithHeapSize(16))
	m.AddProgramBytes(vm.EncodeLoad(0, 500)...)
	m.AddProgramBytes(vm.Encode(vm.OpSW, 0, 1, 4)...)
	m.AddProgramBytes(vm.Encode(vm.OpHLT)...)
	status, err := m.Run()
	assert.NoError(t, err)
	assert.Equal(t, vm.StatusHalted, status)
	assert.NoError(t, m.SetRegister(31, -1))
	return m.Snapshot()
}

func TestRegistersFrame(t *testing.T) {
	df := RegistersFrame(testSnapshot(t))

	assert.Len(t, df.Series, 3)
	assert.Equal(t, vm.NumRegisters, df.NRows())
	assert.Equal(t, "$0", df.Series[0].Value(0).(string))
	assert.Equal(t, int64(500), df.Series[1].Value(0).(int64))
	assert.Equal(t, "000001F4", df.Series[2].Value(0).(string))
	assert.Equal(t, int64(-1), df.Series[1].Value(31).(int64))
	assert.Equal(t, "FFFFFFFF", df.Series[2].Value(31).(string))
}

func TestHeapFrame(t *testing.T) {
	snap := testSnapshot(t)

	df := HeapFrame(snap, 0, -1)
	assert.Equal(t, 4, df.NRows())
	assert.Equal(t, int64(4), df.Series[0].Value(1).(int64))
	assert.Equal(t, int64(500), df.Series[1].Value(1).(int64))
	assert.Equal(t, "00 00 01 F4", df.Series[2].Value(1).(string))

	// windows are clipped and partial words zero padded
	df = HeapFrame(snap, 6, 100)
	assert.Equal(t, 3, df.NRows())
	assert.Equal(t, int64(6), df.Series[0].Value(0).(int64))
	assert.Equal(t, "01 F4 00 00", df.Series[2].Value(0).(string))

	df = HeapFrame(snap, 1, math.MaxInt)
	assert.Equal(t, 4, df.NRows())
	assert.Equal(t, int64(1), df.Series[0].Value(0).(int64))
}

func TestProgramFrame(t *testing.T) {
	df := ProgramFrame(testSnapshot(t))

	assert.Equal(t, 3, df.NRows())
	assert.Equal(t, "LOAD", df.Series[1].Value(0).(string))
	assert.Equal(t, "01 00 01 F4", df.Series[2].Value(0).(string))
	assert.Equal(t, int64(8), df.Series[0].Value(2).(int64))
	assert.Contains(t, Table(df), "SW")
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("Registers")
	assert.NoError(t, err)
	assert.Equal(t, KindRegisters, kind)

	_, err = ParseKind("stack")
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path     string
		expected Format
		wantErr  bool
	}{
		{"out.csv", FormatCSV, false},
		{"OUT.JSON", FormatJSON, false},
		{"dir/out.jsonl", FormatJSON, false},
		{"out.parquet", FormatParquet, false},
		{"state.cbor", FormatCBOR, false},
		{"out.txt", "", true},
		{"noext", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			format, err := FormatFromPath(tt.path)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnknownFormat))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, format)
		})
	}
}

func TestWriteFrame_CSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(context.Background(), &buf, RegistersFrame(testSnapshot(t)), FormatCSV)
	assert.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, vm.NumRegisters+1)
	assert.Equal(t, "register,value,hex", lines[0])
	assert.Equal(t, "$0,500,000001F4", lines[1])
}

func TestWriteFrame_JSON(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(context.Background(), &buf, RegistersFrame(testSnapshot(t)), FormatJSON)
	assert.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, vm.NumRegisters)
	assert.Contains(t, lines[0], `"register":"$0"`)
	assert.Contains(t, lines[0], `"value":500`)
}

func TestWriteFrame_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(context.Background(), &buf, RegistersFrame(testSnapshot(t)), FormatCBOR)
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestWriteFile_RoundTrip(t *testing.T) {
	snap := testSnapshot(t)
	ctx := context.Background()
	dir := t.TempDir()

	for _, name := range []string{"regs.csv", "regs.json", "regs.parquet"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			assert.NoError(t, WriteFile(ctx, KindRegisters, snap, path))

			df, err := ReadFrame(ctx, path)
			assert.NoError(t, err)
			assert.Equal(t, vm.NumRegisters, df.NRows())
			assert.Len(t, df.Series, 3)
		})
	}
}

func TestWriteFile_CSVTypes(t *testing.T) {
	snap := testSnapshot(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "heap.csv")

	assert.NoError(t, WriteFile(ctx, KindHeap, snap, path))

	df, err := ReadFrame(ctx, path)
	assert.NoError(t, err)
	col, err := df.NameToColumn(ColValue)
	assert.NoError(t, err)
	assert.Equal(t, int64(500), df.Series[col].Value(1).(int64))
}

func TestWriteFile_State(t *testing.T) {
	snap := testSnapshot(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.cbor")

	assert.NoError(t, WriteFile(ctx, KindState, snap, path))

	restored, err := ReadStateFile(path)
	assert.NoError(t, err)
	assert.Equal(t, snap.Registers, restored.Registers)
	assert.Equal(t, snap.PC, restored.PC)
	assert.Equal(t, snap.Remainder, restored.Remainder)
	assert.Equal(t, snap.Program, restored.Program)
	assert.Equal(t, snap.Heap, restored.Heap)
}

func TestWriteFile_StateNeedsCBOR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.csv")
	err := WriteFile(context.Background(), KindState, testSnapshot(t), path)
	assert.True(t, errors.Is(err, ErrUnknownFormat))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestMarshalState_Deterministic(t *testing.T) {
	a, err := MarshalState(testSnapshot(t))
	assert.NoError(t, err)
	b, err := MarshalState(testSnapshot(t))
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestReadStateFile_Invalid(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.cbor")
	assert.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err := ReadStateFile(empty)
	assert.True(t, errors.Is(err, ErrInvalidState))

	garbage := filepath.Join(dir, "garbage.cbor")
	assert.NoError(t, os.WriteFile(garbage, []byte{0xFF, 0x00, 0x13}, 0o644))
	_, err = ReadStateFile(garbage)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestReadFrame_StateIsNotTabular(t *testing.T) {
	_, err := ReadFrame(context.Background(), "state.cbor")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

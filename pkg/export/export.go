package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/akhildatla/iridium/pkg/vm"
	"github.com/fxamacker/cbor/v2"
	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/exports"
	"github.com/xitongsys/parquet-go-source/local"
)

// Error definitions
var (
	ErrUnknownKind   = errors.New("unknown export kind")
	ErrUnknownFormat = errors.New("unknown export format")
	ErrInvalidState  = errors.New("invalid state file")
)

// Kind selects which part of the machine is exported.
type Kind string

const (
	KindRegisters Kind = "registers"
	KindHeap      Kind = "heap"
	KindProgram   Kind = "program"
	KindState     Kind = "state"
)

// ParseKind parses an export kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindRegisters, KindHeap, KindProgram, KindState:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Format is an output file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
	FormatCBOR    Format = "cbor"
)

// FormatFromPath derives the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); ext {
	case "csv":
		return FormatCSV, nil
	case "json", "jsonl":
		return FormatJSON, nil
	case "parquet":
		return FormatParquet, nil
	case "cbor":
		return FormatCBOR, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("export: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalState serializes a snapshot to canonical CBOR. Equal snapshots
// always produce identical bytes.
func MarshalState(snap *vm.Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(snap)
}

// UnmarshalState deserializes a snapshot from CBOR bytes.
func UnmarshalState(data []byte) (*vm.Snapshot, error) {
	var snap vm.Snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	return &snap, nil
}

// ReadStateFile reads a snapshot written by WriteFile with KindState.
func ReadStateFile(path string) (*vm.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidState)
	}
	return UnmarshalState(data)
}

// Frame returns the DataFrame view of a snapshot for tabular kinds.
func Frame(kind Kind, snap *vm.Snapshot) (*dataframe.DataFrame, error) {
	switch kind {
	case KindRegisters:
		return RegistersFrame(snap), nil
	case KindHeap:
		return HeapFrame(snap, 0, -1), nil
	case KindProgram:
		return ProgramFrame(snap), nil
	default:
		return nil, fmt.Errorf("%w: %s has no table form", ErrUnknownKind, kind)
	}
}

// WriteFrame writes a DataFrame to w in a tabular format.
func WriteFrame(ctx context.Context, w io.Writer, df *dataframe.DataFrame, format Format) error {
	switch format {
	case FormatCSV:
		return exports.ExportToCSV(ctx, w, df)
	case FormatJSON:
		return exports.ExportToJSON(ctx, w, df)
	case FormatParquet:
		return exports.ExportToParquet(ctx, w, df)
	default:
		return fmt.Errorf("%w: %s for tables", ErrUnknownFormat, format)
	}
}

// WriteFile exports part of a snapshot to path. The format is taken from the
// file extension. State exports must use .cbor, tabular kinds accept .csv,
// .json and .parquet.
func WriteFile(ctx context.Context, kind Kind, snap *vm.Snapshot, path string) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	if kind == KindState {
		if format != FormatCBOR {
			return fmt.Errorf("%w: state exports require .cbor", ErrUnknownFormat)
		}
		data, err := MarshalState(snap)
		if err != nil {
			return fmt.Errorf("encoding state: %w", err)
		}
		return os.WriteFile(path, data, 0o644)
	}

	df, err := Frame(kind, snap)
	if err != nil {
		return err
	}

	if format == FormatParquet {
		fw, err := local.NewLocalFileWriter(path)
		if err != nil {
			return err
		}
		if err := WriteFrame(ctx, fw, df, format); err != nil {
			_ = fw.Close()
			return fmt.Errorf("writing parquet: %w", err)
		}
		return fw.Close()
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteFrame(ctx, file, df, format); err != nil {
		_ = file.Close()
		return fmt.Errorf("writing %s: %w", format, err)
	}
	return file.Close()
}

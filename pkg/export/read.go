package export

import (
	"context"
	"errors"
	"fmt"
	"os"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/imports"
	"github.com/xitongsys/parquet-go-source/local"
)

// ErrEmptyFile is returned when a tabular export holds no columns.
var ErrEmptyFile = errors.New("empty export file")

// ReadFrame loads a tabular export written by WriteFile back into a
// DataFrame. Column types are inferred for CSV and JSON.
func ReadFrame(ctx context.Context, path string) (*dataframe.DataFrame, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	var df *dataframe.DataFrame
	switch format {
	case FormatCSV:
		df, err = readCSV(ctx, path)
	case FormatJSON:
		df, err = readJSON(ctx, path)
	case FormatParquet:
		df, err = readParquet(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %s is not tabular", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}

	if df == nil || len(df.Series) == 0 {
		return nil, ErrEmptyFile
	}
	return df, nil
}

func readCSV(ctx context.Context, path string) (*dataframe.DataFrame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return imports.LoadFromCSV(ctx, file, imports.CSVLoadOptions{
		InferDataTypes: true,
	})
}

func readJSON(ctx context.Context, path string) (*dataframe.DataFrame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return imports.LoadFromJSON(ctx, file)
}

func readParquet(ctx context.Context, path string) (*dataframe.DataFrame, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, err
	}
	defer fr.Close()

	return imports.LoadFromParquet(ctx, fr)
}

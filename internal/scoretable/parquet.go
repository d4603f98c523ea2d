package scoretable

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/relvacode/iso8601"

	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

// readParquet reads a score artifact written with four columns in
// schema order: date (string, ISO-8601), instrument (string), score
// (double), and an optional confidence (double). Reading is done at the
// row-group/column level, mirroring how a single pass over the file
// builds every downstream row.
func readParquet(r io.ReaderAt) ([]Score, error) {
	pf, err := file.NewParquetReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening parquet file: %w", err)
	}
	defer pf.Close()

	schema := pf.MetaData().Schema
	if schema.NumColumns() < 3 {
		return nil, fmt.Errorf("parquet schema has %d columns, want at least 3 (date, instrument, score)", schema.NumColumns())
	}
	hasConfidence := schema.NumColumns() >= 4

	var rows []Score
	for g := 0; g < pf.NumRowGroups(); g++ {
		rgr := pf.RowGroup(g)

		dates, err := readByteArrayColumn(rgr, 0)
		if err != nil {
			return nil, fmt.Errorf("reading date column: %w", err)
		}
		instruments, err := readByteArrayColumn(rgr, 1)
		if err != nil {
			return nil, fmt.Errorf("reading instrument column: %w", err)
		}
		scores, err := readFloat64Column(rgr, 2)
		if err != nil {
			return nil, fmt.Errorf("reading score column: %w", err)
		}
		if len(dates) != len(instruments) || len(dates) != len(scores) {
			return nil, fmt.Errorf("column length mismatch in row group %d", g)
		}

		var confidences []float64
		if hasConfidence {
			confidences, err = readFloat64Column(rgr, 3)
			if err != nil {
				return nil, fmt.Errorf("reading confidence column: %w", err)
			}
		}

		for i := range dates {
			d, err := iso8601.ParseString(dates[i])
			if err != nil {
				return nil, fmt.Errorf("parsing date %q: %w", dates[i], err)
			}
			inst, err := types.NewInstrumentCode(instruments[i])
			if err != nil {
				return nil, fmt.Errorf("parsing instrument %q: %w", instruments[i], err)
			}
			row := Score{Date: d, Instrument: inst, Value: scores[i]}
			if hasConfidence && i < len(confidences) {
				row.Confidence = confidences[i]
				row.HasConf = true
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func readByteArrayColumn(rgr *file.RowGroupReader, col int) ([]string, error) {
	cr, err := rgr.Column(col)
	if err != nil {
		return nil, err
	}
	bar, ok := cr.(*file.ByteArrayColumnChunkReader)
	if !ok {
		return nil, fmt.Errorf("column %d is not byte-array typed", col)
	}
	values := make([]parquet.ByteArray, rgr.NumRows())
	n, _, err := bar.ReadBatch(rgr.NumRows(), values, nil, nil)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := int64(0); i < n; i++ {
		out[i] = string(values[i])
	}
	return out, nil
}

func readFloat64Column(rgr *file.RowGroupReader, col int) ([]float64, error) {
	cr, err := rgr.Column(col)
	if err != nil {
		return nil, err
	}
	fr, ok := cr.(*file.Float64ColumnChunkReader)
	if !ok {
		return nil, fmt.Errorf("column %d is not float64 typed", col)
	}
	values := make([]float64, rgr.NumRows())
	n, _, err := fr.ReadBatch(rgr.NumRows(), values, nil, nil)
	if err != nil {
		return nil, err
	}
	return values[:n], nil
}

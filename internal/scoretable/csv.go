package scoretable

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/klauspost/compress/zstd"
	"github.com/relvacode/iso8601"

	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

// column names recognized in the tabular score artifact header.
const (
	colDate       = "date"
	colInstrument = "instrument"
	colScore      = "score"
	colConfidence = "confidence"
)

func readCSV(r io.Reader) ([]Score, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	dateIdx, ok1 := idx[colDate]
	instIdx, ok2 := idx[colInstrument]
	scoreIdx, ok3 := idx[colScore]
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("missing required column: need %q, %q, %q", colDate, colInstrument, colScore)
	}
	confIdx, hasConf := idx[colConfidence]

	var rows []Score
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		d, err := iso8601.ParseString(rec[dateIdx])
		if err != nil {
			return nil, fmt.Errorf("parsing date %q: %w", rec[dateIdx], err)
		}
		inst, err := types.NewInstrumentCode(rec[instIdx])
		if err != nil {
			return nil, fmt.Errorf("parsing instrument %q: %w", rec[instIdx], err)
		}
		score, err := strconv.ParseFloat(rec[scoreIdx], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing score %q: %w", rec[scoreIdx], err)
		}
		row := Score{Date: d, Instrument: inst, Value: score}
		if hasConf && confIdx < len(rec) && rec[confIdx] != "" {
			conf, err := strconv.ParseFloat(rec[confIdx], 64)
			if err != nil {
				return nil, fmt.Errorf("parsing confidence %q: %w", rec[confIdx], err)
			}
			row.Confidence = conf
			row.HasConf = true
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func readCSVGzip(r io.Reader) ([]Score, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()
	return readCSV(gz)
}

func readCSVZstd(r io.Reader) ([]Score, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening zstd stream: %w", err)
	}
	defer zr.Close()
	return readCSV(zr)
}

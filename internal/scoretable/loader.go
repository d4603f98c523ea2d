package scoretable

import (
	"fmt"
	"os"
	"strings"
)

// Load reads a score artifact from path and builds an indexed ScoreTable
// in a single pass. The format is dispatched from the file extension:
// .csv, .csv.gz, .csv.zst, and .parquet are recognized.
func Load(path string) (*ScoreTable, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newLoadError(KindFileNotFound, path, err)
		}
		return nil, newLoadError(KindFileNotFound, path, err)
	}
	defer f.Close()

	var rows []Score
	switch {
	case strings.HasSuffix(path, ".parquet"):
		rows, err = readParquet(f)
	case strings.HasSuffix(path, ".csv.gz"):
		rows, err = readCSVGzip(f)
	case strings.HasSuffix(path, ".csv.zst"):
		rows, err = readCSVZstd(f)
	case strings.HasSuffix(path, ".csv"):
		rows, err = readCSV(f)
	default:
		rows, err = readCSV(f)
	}
	if err != nil {
		return nil, newLoadError(KindFormatInvalid, path, err)
	}
	if len(rows) == 0 {
		return nil, newLoadError(KindEmpty, path, nil)
	}

	seen := make(map[tableKey]bool, len(rows))
	for _, r := range rows {
		k := tableKey{date: r.Date.Unix(), instrument: r.Instrument}
		if seen[k] {
			return nil, newLoadError(KindFormatInvalid, path, fmt.Errorf("duplicate (date, instrument) pair: %s %s", r.Date.Format("2006-01-02"), r.Instrument))
		}
		seen[k] = true
	}

	return newScoreTable(rows), nil
}

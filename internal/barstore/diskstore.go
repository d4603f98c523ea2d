package barstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/relvacode/iso8601"
	"github.com/shopspring/decimal"

	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

// NewDiskStore loads every *.csv file under root/<market> into a
// MemoryStore, one file per instrument (columns:
// date,open,high,low,close,volume,amount) plus an optional
// root/<market>/members.csv (one instrument code per line) for that
// market's index membership. It is a reference loader for DATA_PATH
// rooted local runs and tests, not a production bar service.
func NewDiskStore(root string, markets []string) (*MemoryStore, error) {
	mem := NewMemoryStore()

	for _, market := range markets {
		marketDir := filepath.Join(root, market)
		entries, err := os.ReadDir(marketDir)
		if err != nil {
			return nil, fmt.Errorf("reading market directory %s: %w", marketDir, err)
		}

		var instruments []types.InstrumentCode
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
				continue
			}
			if entry.Name() == "members.csv" {
				members, err := loadInstrumentList(filepath.Join(marketDir, entry.Name()))
				if err != nil {
					return nil, fmt.Errorf("loading members for %s: %w", market, err)
				}
				mem.SetMembers(market, members)
				continue
			}

			code := strings.TrimSuffix(entry.Name(), ".csv")
			instrument, err := types.NewInstrumentCode(code)
			if err != nil {
				return nil, fmt.Errorf("parsing instrument from filename %s: %w", entry.Name(), err)
			}

			bars, err := loadBarsCSV(filepath.Join(marketDir, entry.Name()), instrument)
			if err != nil {
				return nil, fmt.Errorf("loading bars for %s: %w", instrument, err)
			}
			mem.LoadBars(instrument, bars)
			instruments = append(instruments, instrument)
		}
		mem.SetInstruments(market, instruments)
	}

	return mem, nil
}

const (
	colDate   = "date"
	colOpen   = "open"
	colHigh   = "high"
	colLow    = "low"
	colClose  = "close"
	colVolume = "volume"
	colAmount = "amount"
)

func loadBarsCSV(path string, instrument types.InstrumentCode) ([]types.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}

	var bars []types.Bar
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}

		ts, err := iso8601.ParseString(rec[idx[colDate]])
		if err != nil {
			return nil, fmt.Errorf("parsing date %q: %w", rec[idx[colDate]], err)
		}
		open, err := decimal.NewFromString(rec[idx[colOpen]])
		if err != nil {
			return nil, fmt.Errorf("parsing open: %w", err)
		}
		high, err := decimal.NewFromString(rec[idx[colHigh]])
		if err != nil {
			return nil, fmt.Errorf("parsing high: %w", err)
		}
		low, err := decimal.NewFromString(rec[idx[colLow]])
		if err != nil {
			return nil, fmt.Errorf("parsing low: %w", err)
		}
		closePrice, err := decimal.NewFromString(rec[idx[colClose]])
		if err != nil {
			return nil, fmt.Errorf("parsing close: %w", err)
		}
		volume, err := decimal.NewFromString(rec[idx[colVolume]])
		if err != nil {
			return nil, fmt.Errorf("parsing volume: %w", err)
		}
		amount := decimal.Zero
		if i, ok := idx[colAmount]; ok && rec[i] != "" {
			amount, err = decimal.NewFromString(rec[i])
			if err != nil {
				return nil, fmt.Errorf("parsing amount: %w", err)
			}
		}

		bar := types.Bar{
			Instrument: instrument,
			Timestamp:  types.NormalizeDate(ts),
			Open:       open,
			High:       high,
			Low:        low,
			Close:      closePrice,
			Volume:     volume,
			Amount:     amount,
		}
		if err := bar.Validate(); err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}

	return bars, nil
}

func loadInstrumentList(path string) ([]types.InstrumentCode, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.TrimLeadingSpace = true
	var codes []types.InstrumentCode
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 0 || rec[0] == "" {
			continue
		}
		code, err := types.NewInstrumentCode(rec[0])
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

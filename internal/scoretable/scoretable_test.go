package scoretable

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture %s: %v", path, err)
	}
	return path
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "scores.csv", ""+
		"date,instrument,score,confidence\n"+
		"2024-01-02,sh600519,0.8,0.9\n"+
		"2024-01-02,sz000001,0.3,\n"+
		"2024-01-03,sh600519,0.6,0.7\n")

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}
	if got, want := table.Len(), 3; got != want {
		t.Errorf("Len() = %d, want %d", got, want)
	}

	inst, err := types.NewInstrumentCode("sh600519")
	if err != nil {
		t.Fatalf("NewInstrumentCode: %v", err)
	}
	score, ok := table.At(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), inst)
	if !ok {
		t.Fatal("At() did not find the expected row")
	}
	if score.Value != 0.8 {
		t.Errorf("score.Value = %v, want 0.8", score.Value)
	}
	if !score.HasConf || score.Confidence != 0.9 {
		t.Errorf("score confidence = (%v, %v), want (0.9, true)", score.Confidence, score.HasConf)
	}

	sz, err := types.NewInstrumentCode("sz000001")
	if err != nil {
		t.Fatalf("NewInstrumentCode: %v", err)
	}
	szScore, ok := table.At(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), sz)
	if !ok {
		t.Fatal("At() did not find the sz000001 row")
	}
	if szScore.HasConf {
		t.Error("expected HasConf = false for a blank confidence column")
	}
}

func TestLoadEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "empty.csv", "date,instrument,score\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an error loading a header-only file")
	}
	if kind, ok := KindOf(err); !ok || kind != KindEmpty {
		t.Errorf("KindOf(err) = (%v, %v), want (KindEmpty, true)", kind, ok)
	}
}

func TestLoadDuplicateRow(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "dup.csv", ""+
		"date,instrument,score\n"+
		"2024-01-02,sh600519,0.8\n"+
		"2024-01-02,sh600519,0.5\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an error for a duplicate (date, instrument) pair")
	}
	if kind, ok := KindOf(err); !ok || kind != KindFormatInvalid {
		t.Errorf("KindOf(err) = (%v, %v), want (KindFormatInvalid, true)", kind, ok)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.csv"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if kind, ok := KindOf(err); !ok || kind != KindFileNotFound {
		t.Errorf("KindOf(err) = (%v, %v), want (KindFileNotFound, true)", kind, ok)
	}
}

func TestScoreTableInstruments(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "scores.csv", ""+
		"date,instrument,score\n"+
		"2024-01-02,sz000001,0.3\n"+
		"2024-01-02,sh600519,0.8\n"+
		"2024-01-03,bj430047,0.1\n")

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}

	got := table.Instruments()
	want := []types.InstrumentCode{"bj430047", "sh600519", "sz000001"}
	if len(got) != len(want) {
		t.Fatalf("Instruments() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Instruments()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestScoreTableForDateAndForInstrument(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "scores.csv", ""+
		"date,instrument,score\n"+
		"2024-01-02,sz000001,0.3\n"+
		"2024-01-02,sh600519,0.8\n"+
		"2024-01-03,sh600519,0.6\n")

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}

	forDate := table.ForDate(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	if len(forDate) != 2 {
		t.Fatalf("ForDate() returned %d rows, want 2", len(forDate))
	}
	if forDate[0].Instrument != "sh600519" || forDate[1].Instrument != "sz000001" {
		t.Errorf("ForDate() not sorted by instrument: %v, %v", forDate[0].Instrument, forDate[1].Instrument)
	}

	inst, _ := types.NewInstrumentCode("sh600519")
	forInst := table.ForInstrument(inst)
	if len(forInst) != 2 {
		t.Fatalf("ForInstrument() returned %d rows, want 2", len(forInst))
	}
	if forInst[0].Date.After(forInst[1].Date) {
		t.Error("ForInstrument() not sorted by date ascending")
	}
}

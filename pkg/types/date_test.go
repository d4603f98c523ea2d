package types

import (
	"testing"
	"time"
)

func TestNormalizeDate(t *testing.T) {
	in := time.Date(2024, 3, 15, 14, 32, 7, 0, time.FixedZone("CST", 8*3600))
	got := NormalizeDate(in)
	if got.Hour() != 0 || got.Minute() != 0 || got.Second() != 0 {
		t.Errorf("NormalizeDate did not zero the time-of-day: %v", got)
	}
	if got.Location() != time.UTC {
		t.Errorf("NormalizeDate did not convert to UTC: %v", got.Location())
	}
}

func TestNewDateRange(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	r, err := NewDateRange(start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Contains(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("Contains() = false for a date inside the range")
	}
	if r.Contains(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("Contains() = true for a date outside the range")
	}
	if !r.Contains(start) || !r.Contains(end) {
		t.Error("Contains() should be inclusive of both endpoints")
	}

	if _, err := NewDateRange(end, start); err == nil {
		t.Error("expected an error when start is after end")
	}
}

func TestParsePeriodRoundTrip(t *testing.T) {
	periods := []Period{PeriodDay, PeriodWeek, PeriodMonth, PeriodMin1, PeriodMin5, PeriodMin15, PeriodMin30, PeriodMin60}
	for _, p := range periods {
		parsed, err := ParsePeriod(p.String())
		if err != nil {
			t.Errorf("ParsePeriod(%q): unexpected error: %v", p.String(), err)
			continue
		}
		if parsed != p {
			t.Errorf("ParsePeriod(%q) = %v, want %v", p.String(), parsed, p)
		}
	}

	if _, err := ParsePeriod("FORTNIGHT"); err == nil {
		t.Error("expected an error for an unknown period name")
	}
}

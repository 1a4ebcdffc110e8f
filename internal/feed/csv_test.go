package feed

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"drummond-lab/internal/domain"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestLoadBarsCSV(t *testing.T) {
	path := writeCSV(t, `timestamp_ms,open,high,low,close,adj_close,volume
300000000000,100.0,101.0,99.5,100.5,100.4,1500
300000300000,100.5,102.0,100.1,101.8,101.7,2100
`)

	bars, err := LoadBarsCSV(path, "AAPL", domain.Interval5Min)
	if err != nil {
		t.Fatalf("LoadBarsCSV failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}

	b := bars[0]
	if b.Symbol != "AAPL" || b.Interval != domain.Interval5Min {
		t.Errorf("symbol/interval = %s/%s", b.Symbol, b.Interval)
	}
	if b.TimestampMs != 300000000000 {
		t.Errorf("timestamp = %d", b.TimestampMs)
	}
	if b.Open != 100.0 || b.High != 101.0 || b.Low != 99.5 || b.Close != 100.5 {
		t.Errorf("ohlc = %v/%v/%v/%v", b.Open, b.High, b.Low, b.Close)
	}
	if b.AdjClose != 100.4 || b.Volume != 1500 {
		t.Errorf("adj_close/volume = %v/%v", b.AdjClose, b.Volume)
	}
}

func TestLoadBarsCSV_AdjCloseDefaultsToClose(t *testing.T) {
	path := writeCSV(t, `timestamp_ms,open,high,low,close,volume
300000000000,100.0,101.0,99.5,100.5,1500
`)

	bars, err := LoadBarsCSV(path, "AAPL", domain.Interval5Min)
	if err != nil {
		t.Fatalf("LoadBarsCSV failed: %v", err)
	}
	if bars[0].AdjClose != bars[0].Close {
		t.Errorf("adj_close = %v, want close %v", bars[0].AdjClose, bars[0].Close)
	}
}

func TestLoadBarsCSV_MissingColumn(t *testing.T) {
	path := writeCSV(t, `timestamp_ms,open,high,low,close
300000000000,100.0,101.0,99.5,100.5
`)

	if _, err := LoadBarsCSV(path, "AAPL", domain.Interval5Min); !errors.Is(err, ErrMissingColumn) {
		t.Errorf("expected ErrMissingColumn, got %v", err)
	}
}

func TestLoadBarsCSV_BadNumber(t *testing.T) {
	path := writeCSV(t, `timestamp_ms,open,high,low,close,volume
300000000000,not-a-number,101.0,99.5,100.5,1500
`)

	if _, err := LoadBarsCSV(path, "AAPL", domain.Interval5Min); err == nil {
		t.Error("expected parse error")
	}
}

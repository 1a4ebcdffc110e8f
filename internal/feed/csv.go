package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"drummond-lab/internal/domain"
)

// ErrMissingColumn is returned when a required CSV column is absent.
var ErrMissingColumn = errors.New("missing required column")

// csv columns; adj_close and exchange are optional.
var requiredColumns = []string{"timestamp_ms", "open", "high", "low", "close", "volume"}

// LoadBarsCSV reads a bar series from a headered CSV file. Required
// columns: timestamp_ms, open, high, low, close, volume. Optional:
// adj_close (defaults to close), exchange. Rows keep file order; the
// caller owns ordering guarantees.
func LoadBarsCSV(path, symbol, interval string) ([]*domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var bars []*domain.Bar
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		line++

		bar, err := parseBarRow(record, idx, symbol, interval)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBarRow(record []string, idx map[string]int, symbol, interval string) (*domain.Bar, error) {
	field := func(name string) (string, bool) {
		i, ok := idx[name]
		if !ok || i >= len(record) {
			return "", false
		}
		return strings.TrimSpace(record[i]), true
	}

	ts, _ := field("timestamp_ms")
	timestampMs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("timestamp_ms %q: %w", ts, err)
	}

	parse := func(name string) (float64, error) {
		v, _ := field(name)
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%s %q: %w", name, v, err)
		}
		return f, nil
	}

	open, err := parse("open")
	if err != nil {
		return nil, err
	}
	high, err := parse("high")
	if err != nil {
		return nil, err
	}
	low, err := parse("low")
	if err != nil {
		return nil, err
	}
	closePrice, err := parse("close")
	if err != nil {
		return nil, err
	}
	volume, err := parse("volume")
	if err != nil {
		return nil, err
	}

	adjClose := closePrice
	if v, ok := field("adj_close"); ok && v != "" {
		adjClose, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("adj_close %q: %w", v, err)
		}
	}
	exchange := ""
	if v, ok := field("exchange"); ok {
		exchange = v
	}

	return &domain.Bar{
		Symbol:      symbol,
		Exchange:    exchange,
		Interval:    interval,
		TimestampMs: timestampMs,
		Open:        open,
		High:        high,
		Low:         low,
		Close:       closePrice,
		AdjClose:    adjClose,
		Volume:      volume,
	}, nil
}

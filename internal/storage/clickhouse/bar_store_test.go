package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drummond-lab/internal/domain"
	"drummond-lab/internal/storage"
)

func createTestBar(symbol, interval string, timestampMs int64, close float64) *domain.Bar {
	return &domain.Bar{
		Symbol:      symbol,
		Exchange:    "NASDAQ",
		Interval:    interval,
		TimestampMs: timestampMs,
		Open:        close - 1,
		High:        close + 2,
		Low:         close - 2,
		Close:       close,
		AdjClose:    close,
		Volume:      1500,
	}
}

func TestBarStore_InsertBulkAndGetBySymbol(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(conn)

	bars := []*domain.Bar{
		createTestBar("AAPL", domain.Interval5Min, 1_000_000, 101),
		createTestBar("AAPL", domain.Interval5Min, 1_300_000, 102),
		createTestBar("AAPL", domain.Interval30Min, 1_000_000, 103),
		createTestBar("MSFT", domain.Interval5Min, 1_000_000, 300),
	}
	require.NoError(t, store.InsertBulk(ctx, bars))

	got, err := store.GetBySymbol(ctx, "AAPL", domain.Interval5Min)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(1_000_000), got[0].TimestampMs)
	assert.Equal(t, "NASDAQ", got[0].Exchange)
	assert.InDelta(t, 101.0, got[0].Close, 1e-9)
	assert.InDelta(t, 100.0, got[0].Open, 1e-9)
	assert.InDelta(t, 103.0, got[0].High, 1e-9)
	assert.InDelta(t, 99.0, got[0].Low, 1e-9)
	assert.InDelta(t, 1500.0, got[0].Volume, 1e-9)
	assert.Equal(t, int64(1_300_000), got[1].TimestampMs)
}

func TestBarStore_GetByTimeRange_Inclusive(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(conn)

	bars := []*domain.Bar{
		createTestBar("AAPL", domain.Interval5Min, 1_000_000, 101),
		createTestBar("AAPL", domain.Interval5Min, 1_300_000, 102),
		createTestBar("AAPL", domain.Interval5Min, 1_600_000, 103),
	}
	require.NoError(t, store.InsertBulk(ctx, bars))

	got, err := store.GetByTimeRange(ctx, "AAPL", domain.Interval5Min, 1_000_000, 1_300_000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1_000_000), got[0].TimestampMs)
	assert.Equal(t, int64(1_300_000), got[1].TimestampMs)
}

func TestBarStore_InsertBulk_DuplicateInDB(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []*domain.Bar{
		createTestBar("AAPL", domain.Interval5Min, 1_000_000, 101),
	}))

	err := store.InsertBulk(ctx, []*domain.Bar{
		createTestBar("AAPL", domain.Interval5Min, 1_000_000, 105),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestBarStore_InsertBulk_IntraBatchDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(conn)

	err := store.InsertBulk(ctx, []*domain.Bar{
		createTestBar("AAPL", domain.Interval5Min, 1_000_000, 101),
		createTestBar("AAPL", domain.Interval5Min, 1_000_000, 102),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Nothing should have been written.
	got, err := store.GetBySymbol(ctx, "AAPL", domain.Interval5Min)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBarStore_InsertBulk_InvalidInput(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(conn)

	err := store.InsertBulk(ctx, []*domain.Bar{
		createTestBar("", domain.Interval5Min, 1_000_000, 101),
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestBarStore_GetBySymbol_Empty(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(conn)

	got, err := store.GetBySymbol(ctx, "MISSING", domain.Interval5Min)
	require.NoError(t, err)
	assert.Empty(t, got)
}

package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/tradelink/src/models"
)

func newTestStore(t *testing.T) *RunStore {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRunStore(db)
}

func sampleRun(id string, at time.Time) models.ReconciliationRun {
	sig, res := "sig-1", "res-1"
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return models.ReconciliationRun{
		ID:                 id,
		GeneratedAt:        at,
		InputHash:          "abc123",
		AutoMatchThreshold: 0.8,
		Summary:            models.TradeSummary{TotalTrades: 2, WinningTrades: 1, PendingTrades: 1, Matched: 1, SignalOnly: 1, WinRate: 0.5},
		Trades: []models.TradeRecord{
			{Coin: "BTC", EntryPrice: models.Float(42000), ExitPrice: models.Float(43000), ROI: models.Float(2.4), Status: models.StatusWin, SignalRef: &sig, ResultRef: &res, MatchConfidence: 0.9, Timestamp: &ts},
			{Coin: "ETH", Status: models.StatusPending, SignalRef: &sig, MatchConfidence: 0},
		},
		Unusable: []models.UnusableObservation{
			{Kind: models.KindResult, SourceID: "blurry", OverallConfidence: 0.2, Reason: "no coin recognized"},
		},
	}
}

func TestRunStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	run := sampleRun("run-1", time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC))

	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.True(t, run.GeneratedAt.Equal(got.GeneratedAt))
	assert.Equal(t, run.InputHash, got.InputHash)
	assert.Equal(t, run.Summary, got.Summary)
	assert.Equal(t, run.Unusable, got.Unusable)
	require.Len(t, got.Trades, 2)

	first := got.Trades[0]
	assert.Equal(t, "BTC", first.Coin)
	assert.Equal(t, 42000.0, *first.EntryPrice)
	assert.Equal(t, 2.4, *first.ROI)
	assert.Equal(t, "res-1", *first.ResultRef)
	require.NotNil(t, first.Timestamp)
	assert.True(t, first.Timestamp.Equal(*run.Trades[0].Timestamp))

	second := got.Trades[1]
	assert.Equal(t, "ETH", second.Coin)
	assert.Nil(t, second.ROI)
	assert.Nil(t, second.ResultRef)
	assert.Nil(t, second.Timestamp)
}

func TestRunStore_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	_, err = store.FindByInputHash(context.Background(), "nope", 0.8)
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestRunStore_DuplicateIDFails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	run := sampleRun("dup", time.Now())

	require.NoError(t, store.SaveRun(ctx, run))
	assert.Error(t, store.SaveRun(ctx, run))
}

func TestRunStore_FindAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRun(ctx, sampleRun("older", base)))
	require.NoError(t, store.SaveRun(ctx, sampleRun("newer", base.Add(time.Hour))))

	id, err := store.FindByInputHash(ctx, "abc123", 0.8)
	require.NoError(t, err)
	assert.Equal(t, "newer", id)

	_, err = store.FindByInputHash(ctx, "abc123", 0.5)
	assert.True(t, errors.Is(err, ErrRunNotFound))

	ids, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"newer", "older"}, ids)
}

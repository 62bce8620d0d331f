package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/tradelink/src/metrics"
	"github.com/username/tradelink/src/models"
	"github.com/username/tradelink/src/parsers"
	"github.com/username/tradelink/src/processors"
)

type memoryStore struct {
	mu    sync.Mutex
	runs  map[string]models.ReconciliationRun
	order []string
	saves int
	fail  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{runs: make(map[string]models.ReconciliationRun)}
}

func (m *memoryStore) SaveRun(ctx context.Context, run models.ReconciliationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.saves++
	m.runs[run.ID] = run
	m.order = append(m.order, run.ID)
	return nil
}

func (m *memoryStore) FindByInputHash(ctx context.Context, hash string, threshold float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		run := m.runs[m.order[i]]
		if run.InputHash == hash && run.AutoMatchThreshold == threshold {
			return run.ID, nil
		}
	}
	return "", ErrRunNotFound
}

func (m *memoryStore) ListRuns(ctx context.Context, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for i := len(m.order) - 1; i >= 0 && len(ids) < limit; i-- {
		ids = append(ids, m.order[i])
	}
	return ids, nil
}

func (m *memoryStore) GetRun(ctx context.Context, id string) (*models.ReconciliationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return &run, nil
}

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func sampleObservations() []models.RawObservation {
	at := func(d time.Duration) *time.Time { t := base.Add(d); return &t }
	return []models.RawObservation{
		{Kind: models.KindSignal, SourceID: "sig-btc", Timestamp: at(0), Fields: []models.RawField{
			{Text: "BTC", Confidence: 0.9, Class: models.FieldCoin},
			{Text: "42000", Confidence: 0.8, Class: models.FieldPrice},
		}},
		{Kind: models.KindSignal, SourceID: "sig-eth", Timestamp: at(0), Fields: []models.RawField{
			{Text: "ETH", Confidence: 0.9, Class: models.FieldCoin},
		}},
		{Kind: models.KindResult, SourceID: "res-btc", Timestamp: at(30 * time.Minute), Fields: []models.RawField{
			{Text: "BTC/USDT", Confidence: 0.95, Class: models.FieldCoin},
			{Text: "42000 43000", Confidence: 0.9, Class: models.FieldPrice},
			{Text: "+2.38%", Confidence: 0.9, Class: models.FieldPercentage},
		}, Color: &models.ColorSample{GreenPixels: 900, RedPixels: 50}},
		{Kind: models.KindResult, SourceID: "res-blurry", Fields: []models.RawField{
			{Text: "???", Confidence: 0.1, Class: models.FieldCoin},
		}},
	}
}

func newTestService(store RunRepository, c *cache.Cache, reg *metrics.Registry, n Notifier) ReconcileService {
	return NewReconcileService(processors.DefaultMatchConfig(), nil, store, c, reg, n)
}

func TestReconcile_EndToEnd(t *testing.T) {
	store := newMemoryStore()
	reg := metrics.NewRegistry()
	notifier := &MockNotifier{}
	svc := newTestService(store, cache.New(DefaultCacheExpiration, CacheCleanupInterval), reg, notifier)

	run, err := svc.Reconcile(context.Background(), sampleObservations(), ReconcileOptions{})
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Len(t, run.InputHash, 64)
	assert.Equal(t, 0.8, run.AutoMatchThreshold)
	require.Len(t, run.Trades, 2)

	matched := run.Trades[0]
	assert.Equal(t, "BTC", matched.Coin)
	assert.True(t, matched.Matched())
	assert.Equal(t, models.StatusWin, matched.Status)
	require.NotNil(t, matched.ROI)
	assert.InDelta(t, 2.38, *matched.ROI, 1e-9)
	assert.InDelta(t, 1.0, matched.MatchConfidence, 1e-9)

	pending := run.Trades[1]
	assert.Equal(t, "ETH", pending.Coin)
	assert.Equal(t, models.StatusPending, pending.Status)
	assert.Nil(t, pending.ResultRef)

	require.Len(t, run.Unusable, 1)
	assert.Equal(t, "res-blurry", run.Unusable[0].SourceID)
	assert.Equal(t, processors.ReasonNoCoin, run.Unusable[0].Reason)

	assert.Equal(t, 2, run.Summary.TotalTrades)
	assert.Equal(t, 1, run.Summary.Matched)
	assert.Equal(t, 1, run.Summary.SignalOnly)

	assert.Equal(t, 1, store.saves)
	assert.Equal(t, int64(1), notifier.Sent())
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Runs.WithLabelValues("success")))
}

func TestReconcile_CachesIdenticalInput(t *testing.T) {
	store := newMemoryStore()
	reg := metrics.NewRegistry()
	svc := newTestService(store, cache.New(DefaultCacheExpiration, CacheCleanupInterval), reg, nil)
	ctx := context.Background()

	first, err := svc.Reconcile(ctx, sampleObservations(), ReconcileOptions{})
	require.NoError(t, err)
	second, err := svc.Reconcile(ctx, sampleObservations(), ReconcileOptions{})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CacheHits))

	threshold := 0.5
	third, err := svc.Reconcile(ctx, sampleObservations(), ReconcileOptions{Threshold: &threshold})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
	assert.NotEqual(t, first.InputHash, third.InputHash)
	assert.Equal(t, 0.5, third.AutoMatchThreshold)
}

func TestReconcile_ReusesStoredRunAcrossCaches(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()

	first, err := newTestService(store, cache.New(DefaultCacheExpiration, CacheCleanupInterval), nil, nil).
		Reconcile(ctx, sampleObservations(), ReconcileOptions{})
	require.NoError(t, err)

	// A fresh cache stands in for an expired entry or a restarted server.
	restarted := newTestService(store, cache.New(DefaultCacheExpiration, CacheCleanupInterval), nil, nil)
	second, err := restarted.Reconcile(ctx, sampleObservations(), ReconcileOptions{})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, 1, store.saves)

	got, err := restarted.GetRun(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestListRuns(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, nil, nil, nil)
	ctx := context.Background()

	ids, err := svc.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NotNil(t, ids)

	first, err := svc.Reconcile(ctx, sampleObservations(), ReconcileOptions{})
	require.NoError(t, err)
	threshold := 0.5
	second, err := svc.Reconcile(ctx, sampleObservations(), ReconcileOptions{Threshold: &threshold})
	require.NoError(t, err)

	ids, err = svc.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID, first.ID}, ids)

	ids, err = newTestService(nil, nil, nil, nil).ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestReconcile_DropsDuplicateSourceIDs(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil)
	obs := sampleObservations()
	dup := obs[2]
	dup.Kind = models.KindResult
	obs = append(obs, dup)

	run, err := svc.Reconcile(context.Background(), obs, ReconcileOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, run.Summary.TotalTrades)
	assert.Equal(t, 0, run.Summary.ResultOnly)
}

func TestReconcile_InvalidThreshold(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil)
	bad := 1.2

	_, err := svc.Reconcile(context.Background(), sampleObservations(), ReconcileOptions{Threshold: &bad})
	require.Error(t, err)
	assert.True(t, errors.Is(err, processors.ErrInvalidThreshold))
}

func TestReconcile_StoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.fail = errors.New("disk full")
	svc := newTestService(store, nil, nil, nil)

	_, err := svc.Reconcile(context.Background(), sampleObservations(), ReconcileOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestReconcile_EmptyInput(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil)

	run, err := svc.Reconcile(context.Background(), nil, ReconcileOptions{})
	require.NoError(t, err)
	assert.Empty(t, run.Trades)
	assert.NotNil(t, run.Unusable)
	assert.Equal(t, 0, run.Summary.TotalTrades)
}

func TestReconcileFile(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil)
	data, err := json.Marshal(sampleObservations())
	require.NoError(t, err)

	run, err := svc.ReconcileFile(context.Background(), bytes.NewReader(data), "json", ReconcileOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, run.Summary.Matched)

	csvInput := "source_id,kind,text,confidence,classification\ns1,signal,SOL,0.9,coin\n"
	run, err = svc.ReconcileFile(context.Background(), strings.NewReader(csvInput), "csv", ReconcileOptions{Kind: models.KindResult})
	require.NoError(t, err)
	require.Len(t, run.Trades, 1)
	assert.Nil(t, run.Trades[0].SignalRef)
	assert.Equal(t, "s1", *run.Trades[0].ResultRef)
}

func TestReconcileFile_ParseErrors(t *testing.T) {
	reg := metrics.NewRegistry()
	svc := newTestService(nil, nil, reg, nil)

	_, err := svc.ReconcileFile(context.Background(), strings.NewReader("{}"), "xml", ReconcileOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParsingFailed))
	assert.True(t, errors.Is(err, parsers.ErrUnsupportedFormat))

	_, err = svc.ReconcileFile(context.Background(), strings.NewReader("[{"), "json", ReconcileOptions{})
	assert.True(t, errors.Is(err, ErrParsingFailed))
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.Runs.WithLabelValues("failed_parse")))
}

func TestGetRun(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, cache.New(DefaultCacheExpiration, CacheCleanupInterval), nil, nil)
	ctx := context.Background()

	run, err := svc.Reconcile(ctx, sampleObservations(), ReconcileOptions{})
	require.NoError(t, err)

	got, err := svc.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)

	// Bypass the cache.
	uncached := newTestService(store, nil, nil, nil)
	got, err = uncached.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Trades, got.Trades)

	_, err = svc.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	_, err = newTestService(nil, nil, nil, nil).GetRun(ctx, run.ID)
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/username/tradelink/src/logger"
	"github.com/username/tradelink/src/metrics"
	"github.com/username/tradelink/src/models"
	"github.com/username/tradelink/src/parsers"
	"github.com/username/tradelink/src/processors"
)

const (
	ckRunByID    = "run_id_%s"
	ckRunByInput = "run_input_%s"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type reconcileServiceImpl struct {
	cfg       processors.MatchConfig
	builder   processors.Builder
	scorer    processors.Scorer
	assembler *processors.TradeAssembler
	store     RunRepository
	runCache  *cache.Cache
	metrics   *metrics.Registry
	notifier  Notifier
}

// NewReconcileService wires the pipeline. store, runCache, reg and notifier may be nil.
func NewReconcileService(
	cfg processors.MatchConfig,
	builder processors.Builder,
	store RunRepository,
	runCache *cache.Cache,
	reg *metrics.Registry,
	notifier Notifier,
) ReconcileService {
	if builder == nil {
		builder = processors.NewRecordBuilder(nil)
	}
	return &reconcileServiceImpl{
		cfg:       cfg,
		builder:   builder,
		scorer:    processors.NewMatchScorer(),
		assembler: processors.NewTradeAssembler(),
		store:     store,
		runCache:  runCache,
		metrics:   reg,
		notifier:  notifier,
	}
}

func (s *reconcileServiceImpl) ReconcileFile(ctx context.Context, file io.Reader, format string, opts ReconcileOptions) (*models.ReconciliationRun, error) {
	parser, err := parsers.GetParser(format)
	if err != nil {
		s.observeFailure("parse")
		return nil, fmt.Errorf("%w: %w", ErrParsingFailed, err)
	}

	observations, err := parsers.WithKind(parser, opts.Kind).Parse(file)
	if err != nil {
		s.observeFailure("parse")
		return nil, fmt.Errorf("%w: %w", ErrParsingFailed, err)
	}
	return s.Reconcile(ctx, observations, opts)
}

func (s *reconcileServiceImpl) Reconcile(ctx context.Context, observations []models.RawObservation, opts ReconcileOptions) (*models.ReconciliationRun, error) {
	startTime := time.Now()

	cfg := s.cfg
	if opts.Threshold != nil {
		cfg.AutoMatchThreshold = *opts.Threshold
	}
	if err := cfg.Validate(); err != nil {
		s.observeFailure("config")
		return nil, err
	}

	inputHash, err := hashInput(observations, cfg)
	if err != nil {
		s.observeFailure("hash")
		return nil, err
	}

	if s.runCache != nil {
		if cached, found := s.runCache.Get(fmt.Sprintf(ckRunByInput, inputHash)); found {
			logger.L.Debug("Cache hit for reconciliation input", "inputHash", inputHash)
			if s.metrics != nil {
				s.metrics.CacheHits.Inc()
			}
			run := cached.(models.ReconciliationRun)
			return &run, nil
		}
		if s.metrics != nil {
			s.metrics.CacheMisses.Inc()
		}
	}

	if stored, err := s.findStoredRun(ctx, inputHash, cfg.AutoMatchThreshold); err != nil {
		s.observeFailure("store")
		return nil, err
	} else if stored != nil {
		logger.L.Info("Reusing stored run for identical input", "runID", stored.ID, "inputHash", inputHash)
		s.cacheRun(*stored)
		return stored, nil
	}

	runID := uuid.NewString()
	log := logger.FromContext(logger.WithRun(ctx, runID))
	log.Info("Reconcile START", "observations", len(observations), "threshold", cfg.AutoMatchThreshold)

	records := s.buildRecords(observations, log)

	matcher := processors.NewMatcher(cfg, s.scorer)
	result := matcher.Match(records)
	set := s.assembler.Assemble(result.Trades)

	run := models.ReconciliationRun{
		ID:                 runID,
		GeneratedAt:        time.Now().UTC(),
		InputHash:          inputHash,
		AutoMatchThreshold: cfg.AutoMatchThreshold,
		Summary:            set.Summary(),
		Trades:             set.Records(),
		Unusable:           result.Unusable,
	}
	if run.Unusable == nil {
		run.Unusable = []models.UnusableObservation{}
	}

	if s.store != nil {
		if err := s.store.SaveRun(ctx, run); err != nil {
			s.observeFailure("store")
			return nil, fmt.Errorf("error saving reconciliation run: %w", err)
		}
	}

	s.cacheRun(run)
	if s.metrics != nil {
		s.metrics.ObserveRun(run.Trades, run.Unusable, time.Since(startTime))
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyRun(ctx, run); err != nil {
			log.Warn("Run notification failed", "error", err)
		}
	}

	log.Info("Reconcile END",
		"trades", set.Len(),
		"matched", run.Summary.Matched,
		"unusable", len(run.Unusable),
		"duration", time.Since(startTime))
	return &run, nil
}

func (s *reconcileServiceImpl) GetRun(ctx context.Context, id string) (*models.ReconciliationRun, error) {
	if s.runCache != nil {
		if cached, found := s.runCache.Get(fmt.Sprintf(ckRunByID, id)); found {
			run := cached.(models.ReconciliationRun)
			return &run, nil
		}
	}
	if s.store == nil {
		return nil, ErrRunNotFound
	}
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("error loading reconciliation run %s: %w", id, err)
	}
	if s.runCache != nil {
		s.runCache.Set(fmt.Sprintf(ckRunByID, id), *run, cache.DefaultExpiration)
	}
	return run, nil
}

// ListRuns returns the ids of stored runs, newest first. Without a store there is nothing to list.
func (s *reconcileServiceImpl) ListRuns(ctx context.Context, limit int) ([]string, error) {
	if s.store == nil {
		return []string{}, nil
	}
	ids, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing reconciliation runs: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// findStoredRun looks up a persisted run over the same input. It returns nil, nil when there is none.
func (s *reconcileServiceImpl) findStoredRun(ctx context.Context, inputHash string, threshold float64) (*models.ReconciliationRun, error) {
	if s.store == nil {
		return nil, nil
	}
	id, err := s.store.FindByInputHash(ctx, inputHash, threshold)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error looking up run by input hash: %w", err)
	}
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error loading reconciliation run %s: %w", id, err)
	}
	return run, nil
}

func (s *reconcileServiceImpl) cacheRun(run models.ReconciliationRun) {
	if s.runCache == nil {
		return
	}
	s.runCache.Set(fmt.Sprintf(ckRunByID, run.ID), run, cache.DefaultExpiration)
	s.runCache.Set(fmt.Sprintf(ckRunByInput, run.InputHash), run, cache.DefaultExpiration)
}

// buildRecords converts observations, keeping only the first observation per SourceID.
// Observations without a SourceID are never treated as duplicates.
func (s *reconcileServiceImpl) buildRecords(observations []models.RawObservation, log *slog.Logger) []models.ExtractedRecord {
	seen := make(map[string]bool, len(observations))
	records := make([]models.ExtractedRecord, 0, len(observations))
	for _, obs := range observations {
		if obs.SourceID != "" {
			if seen[obs.SourceID] {
				log.Warn("Dropping duplicate observation", "sourceID", obs.SourceID, "kind", obs.Kind)
				continue
			}
			seen[obs.SourceID] = true
		}
		records = append(records, s.builder.Build(obs))
	}
	return records
}

func (s *reconcileServiceImpl) observeFailure(stage string) {
	if s.metrics != nil {
		s.metrics.ObserveFailure(stage)
	}
}

// hashInput fingerprints a batch together with the threshold it is matched under.
func hashInput(observations []models.RawObservation, cfg processors.MatchConfig) (string, error) {
	data, err := json.Marshal(observations)
	if err != nil {
		return "", fmt.Errorf("failed to encode observations for hashing: %w", err)
	}
	h := sha256.New()
	h.Write(data)
	h.Write([]byte(strconv.FormatFloat(cfg.AutoMatchThreshold, 'g', -1, 64)))
	return hex.EncodeToString(h.Sum(nil)), nil
}

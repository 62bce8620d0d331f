package processors

import (
	"sort"
	"time"

	"github.com/username/tradelink/src/logger"
	"github.com/username/tradelink/src/models"
)

const (
	ReasonNoCoin      = "no recognized coin"
	ReasonUnknownKind = "unknown observation kind"
)

// MatchResult is the outcome of one matcher run.
type MatchResult struct {
	Trades     []models.TradeRecord         `json:"trades"`
	Unusable   []models.UnusableObservation `json:"unusable"`
	Matched    int                          `json:"matched"`
	SignalOnly int                          `json:"signal_only"`
	ResultOnly int                          `json:"result_only"`
}

// Matcher pairs signals with results greedily. Each signal, in arrival order, takes the
// best-scoring unconsumed result that reaches the threshold; the first result seen wins
// ties. It does not look for a globally optimal assignment.
type Matcher struct {
	cfg    MatchConfig
	scorer Scorer
}

func NewMatcher(cfg MatchConfig, scorer Scorer) *Matcher {
	if scorer == nil {
		scorer = NewMatchScorer()
	}
	return &Matcher{cfg: cfg, scorer: scorer}
}

// Match links one batch of observations. It never fails: records without a coin are
// returned in Unusable instead of being matched or emitted.
func (m *Matcher) Match(records []models.ExtractedRecord) MatchResult {
	signals, results, unusable := Partition(records)

	res := MatchResult{Unusable: unusable}
	consumed := make([]bool, len(results))

	for _, signal := range signals {
		bestIdx, bestScore := -1, 0.0
		for i, result := range results {
			if consumed[i] {
				continue
			}
			score := m.scorer.Score(signal, result)
			if score > bestScore && score >= m.cfg.AutoMatchThreshold {
				bestIdx, bestScore = i, score
			}
		}

		if bestIdx < 0 {
			res.Trades = append(res.Trades, signalOnlyTrade(signal))
			res.SignalOnly++
			continue
		}

		consumed[bestIdx] = true
		res.Trades = append(res.Trades, matchedTrade(signal, results[bestIdx], bestScore))
		res.Matched++
		logger.L.Debug("Matched signal to result",
			"coin", signal.Coin,
			"signal", signal.SourceID,
			"result", results[bestIdx].SourceID,
			"score", bestScore)
	}

	for i, result := range results {
		if consumed[i] {
			continue
		}
		res.Trades = append(res.Trades, resultOnlyTrade(result))
		res.ResultOnly++
	}

	SortByROI(res.Trades)

	logger.L.Info("Matching complete",
		"signals", len(signals),
		"results", len(results),
		"matched", res.Matched,
		"signalOnly", res.SignalOnly,
		"resultOnly", res.ResultOnly,
		"unusable", len(res.Unusable))
	return res
}

// Partition splits a batch into usable signals and results, keeping arrival order, and
// sets aside records without a coin or with an unknown kind.
func Partition(records []models.ExtractedRecord) ([]models.SignalObservation, []models.ResultObservation, []models.UnusableObservation) {
	var (
		signals  []models.SignalObservation
		results  []models.ResultObservation
		unusable []models.UnusableObservation
	)
	for _, r := range records {
		switch {
		case !r.Kind.Valid():
			unusable = append(unusable, unusableFrom(r, ReasonUnknownKind))
		case !r.Usable():
			unusable = append(unusable, unusableFrom(r, ReasonNoCoin))
		case r.Kind == models.KindSignal:
			signals = append(signals, models.SignalObservation{ExtractedRecord: r})
		default:
			results = append(results, models.ResultObservation{ExtractedRecord: r})
		}
	}
	return signals, results, unusable
}

// SortByROI orders trades by descending ROI, counting a missing ROI as zero.
// The sort is stable so equal ROIs keep emission order.
func SortByROI(trades []models.TradeRecord) {
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].SortROI() > trades[j].SortROI()
	})
}

func matchedTrade(signal models.SignalObservation, result models.ResultObservation, score float64) models.TradeRecord {
	trade := models.TradeRecord{
		Coin:            signal.Coin,
		EntryPrice:      firstFloat(signal.EntryPrice, result.EntryPrice),
		ExitPrice:       firstFloat(result.ExitPrice, signal.ExitPrice),
		ROI:             firstFloat(result.ROI, signal.ROI),
		SignalRef:       ref(signal.SourceID),
		ResultRef:       ref(result.SourceID),
		MatchConfidence: score,
		Timestamp:       firstTime(signal.Timestamp, result.Timestamp),
		Status:          models.StatusUnknown,
	}
	if status, ok := result.DerivedStatus(); ok {
		trade.Status = status
	} else if status, ok := signal.DerivedStatus(); ok {
		trade.Status = status
	}
	return trade
}

func signalOnlyTrade(signal models.SignalObservation) models.TradeRecord {
	trade := models.TradeRecord{
		Coin:       signal.Coin,
		EntryPrice: firstFloat(signal.EntryPrice),
		ExitPrice:  firstFloat(signal.ExitPrice),
		ROI:        firstFloat(signal.ROI),
		SignalRef:  ref(signal.SourceID),
		Timestamp:  firstTime(signal.Timestamp),
		Status:     models.StatusPending,
	}
	if status, ok := signal.DerivedStatus(); ok {
		trade.Status = status
	}
	return trade
}

func resultOnlyTrade(result models.ResultObservation) models.TradeRecord {
	trade := models.TradeRecord{
		Coin:       result.Coin,
		EntryPrice: firstFloat(result.EntryPrice),
		ExitPrice:  firstFloat(result.ExitPrice),
		ROI:        firstFloat(result.ROI),
		ResultRef:  ref(result.SourceID),
		Timestamp:  firstTime(result.Timestamp),
		Status:     models.StatusUnknown,
	}
	if status, ok := result.DerivedStatus(); ok {
		trade.Status = status
	}
	return trade
}

func unusableFrom(r models.ExtractedRecord, reason string) models.UnusableObservation {
	return models.UnusableObservation{
		Kind:              r.Kind,
		SourceID:          r.SourceID,
		OverallConfidence: r.OverallConfidence,
		Reason:            reason,
	}
}

// firstFloat returns a copy of the first non-nil value so emitted trades never alias
// the input records.
func firstFloat(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return models.Float(*v)
		}
	}
	return nil
}

func firstTime(values ...*time.Time) *time.Time {
	for _, v := range values {
		if v != nil {
			return models.Time(*v)
		}
	}
	return nil
}

func ref(id string) *string {
	return &id
}

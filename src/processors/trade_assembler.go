package processors

import (
	"math"

	"github.com/username/tradelink/src/models"
	"github.com/username/tradelink/src/utils"
)

// TradeSet is an assembled, ordered and immutable sequence of trade records.
type TradeSet struct {
	records []models.TradeRecord
}

type TradeAssembler struct{}

func NewTradeAssembler() *TradeAssembler {
	return &TradeAssembler{}
}

// Assemble applies the final status defaults and the ROI ordering contract. The input
// slice is not modified.
func (a *TradeAssembler) Assemble(trades []models.TradeRecord) TradeSet {
	records := make([]models.TradeRecord, 0, len(trades))
	for _, t := range trades {
		t = cloneTrade(t)
		if t.Status == "" {
			t.Status = models.StatusUnknown
		}
		t.MatchConfidence = utils.Clamp01(t.MatchConfidence)
		records = append(records, t)
	}
	SortByROI(records)
	return TradeSet{records: records}
}

// Records returns a deep copy of the assembled sequence.
func (s TradeSet) Records() []models.TradeRecord {
	out := make([]models.TradeRecord, len(s.records))
	for i, t := range s.records {
		out[i] = cloneTrade(t)
	}
	return out
}

func (s TradeSet) Len() int {
	return len(s.records)
}

// Summary aggregates the set without modifying it. ROI statistics only cover records
// that carry an ROI.
func (s TradeSet) Summary() models.TradeSummary {
	summary := models.TradeSummary{TotalTrades: len(s.records)}
	var rois []float64

	for _, t := range s.records {
		switch t.Status {
		case models.StatusWin:
			summary.WinningTrades++
		case models.StatusLoss:
			summary.LosingTrades++
		case models.StatusPending:
			summary.PendingTrades++
		default:
			summary.UnknownTrades++
		}

		switch {
		case t.Matched():
			summary.Matched++
		case t.SignalRef != nil:
			summary.SignalOnly++
		case t.ResultRef != nil:
			summary.ResultOnly++
		}

		if t.ROI != nil {
			rois = append(rois, *t.ROI)
		}
	}

	if decided := summary.WinningTrades + summary.LosingTrades; decided > 0 {
		summary.WinRate = float64(summary.WinningTrades) / float64(decided)
	}

	summary.TradesWithROI = len(rois)
	if len(rois) > 0 {
		summary.AvgROI = utils.Mean(rois)
		summary.MedianROI = utils.Median(rois)
		summary.MaxROI = math.Inf(-1)
		for _, r := range rois {
			summary.MaxROI = math.Max(summary.MaxROI, r)
		}
	}
	return summary
}

func cloneTrade(t models.TradeRecord) models.TradeRecord {
	t.EntryPrice = firstFloat(t.EntryPrice)
	t.ExitPrice = firstFloat(t.ExitPrice)
	t.ROI = firstFloat(t.ROI)
	t.Timestamp = firstTime(t.Timestamp)
	if t.SignalRef != nil {
		t.SignalRef = ref(*t.SignalRef)
	}
	if t.ResultRef != nil {
		t.ResultRef = ref(*t.ResultRef)
	}
	return t
}

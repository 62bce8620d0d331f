package models

import "time"

// TradeStatus is the outcome attached to an emitted trade record.
type TradeStatus string

const (
	StatusWin     TradeStatus = "win"
	StatusLoss    TradeStatus = "loss"
	StatusPending TradeStatus = "pending"
	StatusUnknown TradeStatus = "unknown"
)

// TradeRecord is one linked (or singleton) trade as emitted by the matcher.
// At least one of SignalRef and ResultRef is set.
type TradeRecord struct {
	Coin            string      `json:"coin"`
	EntryPrice      *float64    `json:"entry_price,omitempty"`
	ExitPrice       *float64    `json:"exit_price,omitempty"`
	ROI             *float64    `json:"roi,omitempty"`
	Status          TradeStatus `json:"status"`
	SignalRef       *string     `json:"signal_ref,omitempty"`
	ResultRef       *string     `json:"result_ref,omitempty"`
	MatchConfidence float64     `json:"match_confidence"`
	Timestamp       *time.Time  `json:"timestamp,omitempty"`
}

// Matched reports whether the record links a signal with a result.
func (t TradeRecord) Matched() bool {
	return t.SignalRef != nil && t.ResultRef != nil
}

// SortROI is the ROI used for ordering; a missing ROI counts as zero.
func (t TradeRecord) SortROI() float64 {
	if t.ROI == nil {
		return 0
	}
	return *t.ROI
}

// TradeSummary is the aggregate view over an assembled trade sequence.
type TradeSummary struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	PendingTrades int     `json:"pending_trades"`
	UnknownTrades int     `json:"unknown_trades"`
	Matched       int     `json:"matched"`
	SignalOnly    int     `json:"signal_only"`
	ResultOnly    int     `json:"result_only"`
	WinRate       float64 `json:"win_rate"`
	TradesWithROI int     `json:"trades_with_roi"`
	AvgROI        float64 `json:"avg_roi"`
	MedianROI     float64 `json:"median_roi"`
	MaxROI        float64 `json:"max_roi"`
}

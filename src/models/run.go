package models

import "time"

// UnusableObservation is a record that was set aside because no coin was recognized.
// It never takes part in matching but is kept for diagnostics.
type UnusableObservation struct {
	Kind              Kind    `json:"kind"`
	SourceID          string  `json:"source_id"`
	OverallConfidence float64 `json:"overall_confidence"`
	Reason            string  `json:"reason"`
}

// ReconciliationRun is one completed matcher invocation with its outputs.
type ReconciliationRun struct {
	ID                 string                `json:"run_id"`
	GeneratedAt        time.Time             `json:"generated_at"`
	InputHash          string                `json:"input_hash"`
	AutoMatchThreshold float64               `json:"auto_match_threshold"`
	Summary            TradeSummary          `json:"summary"`
	Trades             []TradeRecord         `json:"trades"`
	Unusable           []UnusableObservation `json:"unusable"`
}

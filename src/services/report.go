package services

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/username/tradelink/src/models"
	"github.com/username/tradelink/src/processors"
	"github.com/username/tradelink/src/security/validation"
)

// Report is the exported analysis document for one run.
type Report struct {
	RunID       string                       `json:"run_id"`
	GeneratedAt time.Time                    `json:"generated_at"`
	TotalTrades int                          `json:"total_trades"`
	Summary     models.TradeSummary          `json:"summary"`
	Trades      []models.TradeRecord         `json:"trades"`
	Unusable    []models.UnusableObservation `json:"unusable"`
	Config      processors.MatchConfig       `json:"config"`
}

func NewReport(run models.ReconciliationRun) Report {
	trades := run.Trades
	if trades == nil {
		trades = []models.TradeRecord{}
	}
	unusable := run.Unusable
	if unusable == nil {
		unusable = []models.UnusableObservation{}
	}
	return Report{
		RunID:       run.ID,
		GeneratedAt: run.GeneratedAt,
		TotalTrades: len(trades),
		Summary:     run.Summary,
		Trades:      trades,
		Unusable:    unusable,
		Config:      processors.MatchConfig{AutoMatchThreshold: run.AutoMatchThreshold},
	}
}

// WriteReport encodes the run's report as indented JSON.
func WriteReport(w io.Writer, run models.ReconciliationRun) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewReport(run)); err != nil {
		return fmt.Errorf("failed to write report for run %s: %w", run.ID, err)
	}
	return nil
}

var tradeCSVHeader = []string{"coin", "entry_price", "exit_price", "roi", "status", "signal_ref", "result_ref", "match_confidence", "timestamp"}

// WriteTradesCSV writes trades as a spreadsheet-safe CSV table in their given order.
func WriteTradesCSV(w io.Writer, trades []models.TradeRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeCSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, t := range trades {
		row := []string{
			validation.SanitizeForFormulaInjection(t.Coin),
			formatOptionalFloat(t.EntryPrice),
			formatOptionalFloat(t.ExitPrice),
			formatOptionalFloat(t.ROI),
			string(t.Status),
			validation.SanitizeForFormulaInjection(derefString(t.SignalRef)),
			validation.SanitizeForFormulaInjection(derefString(t.ResultRef)),
			strconv.FormatFloat(t.MatchConfidence, 'f', 4, 64),
			"",
		}
		if t.Timestamp != nil {
			row[8] = t.Timestamp.UTC().Format(time.RFC3339)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

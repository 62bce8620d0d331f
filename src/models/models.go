package models

import "time"

// Kind tells signal observations apart from result observations.
type Kind string

const (
	KindSignal Kind = "signal"
	KindResult Kind = "result"
)

// Valid reports whether k is one of the known observation kinds.
func (k Kind) Valid() bool {
	return k == KindSignal || k == KindResult
}

// ColorStatus is the win/loss reading derived from a screenshot's dominant color.
type ColorStatus string

const (
	ColorWin     ColorStatus = "win"
	ColorLoss    ColorStatus = "loss"
	ColorNeutral ColorStatus = "neutral"
	ColorUnknown ColorStatus = "unknown"
)

// PricePoint is a numeric value recognized on an image with its OCR confidence.
type PricePoint struct {
	Value      float64 `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ExtractedRecord is one typed observation built from an image's raw fields.
type ExtractedRecord struct {
	Kind              Kind         `json:"kind"`
	Coin              string       `json:"coin,omitempty"`
	CoinConfidence    float64      `json:"coin_confidence"`
	Prices            []PricePoint `json:"prices,omitempty"`
	EntryPrice        *float64     `json:"entry_price,omitempty"`
	ExitPrice         *float64     `json:"exit_price,omitempty"`
	ROICandidates     []PricePoint `json:"roi_candidates,omitempty"`
	ROI               *float64     `json:"roi,omitempty"`
	ColorStatus       ColorStatus  `json:"color_status"`
	Timestamp         *time.Time   `json:"timestamp,omitempty"`
	SourceID          string       `json:"source_id"`
	OverallConfidence float64      `json:"overall_confidence"`
}

// Usable reports whether the record carries a recognized coin and may take part in matching.
func (r ExtractedRecord) Usable() bool {
	return r.Coin != ""
}

// DerivedStatus maps the color reading onto a trade status. Only decisive colors yield one.
func (r ExtractedRecord) DerivedStatus() (TradeStatus, bool) {
	switch r.ColorStatus {
	case ColorWin:
		return StatusWin, true
	case ColorLoss:
		return StatusLoss, true
	default:
		return "", false
	}
}

// PrimaryPrice is the entry price, or the first detected price when no entry was assigned.
func (r ExtractedRecord) PrimaryPrice() (float64, bool) {
	if r.EntryPrice != nil {
		return *r.EntryPrice, true
	}
	if len(r.Prices) > 0 {
		return r.Prices[0].Value, true
	}
	return 0, false
}

// SignalObservation is an extracted record known to come from a signal screenshot.
type SignalObservation struct {
	ExtractedRecord
}

// ResultObservation is an extracted record known to come from a result screenshot.
type ResultObservation struct {
	ExtractedRecord
}

// ComparablePrice is the price a result offers for consistency checks: its entry price,
// else its exit price, else whatever it detected first. Entry and exit are not told apart.
func (r ResultObservation) ComparablePrice() (float64, bool) {
	if r.EntryPrice != nil {
		return *r.EntryPrice, true
	}
	if r.ExitPrice != nil {
		return *r.ExitPrice, true
	}
	if len(r.Prices) > 0 {
		return r.Prices[0].Value, true
	}
	return 0, false
}

// Float returns a pointer to v, for populating optional numeric fields.
func Float(v float64) *float64 {
	return &v
}

// Time returns a pointer to t, for populating optional timestamps.
func Time(t time.Time) *time.Time {
	return &t
}

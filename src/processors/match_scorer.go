package processors

import (
	"math"
	"time"

	"github.com/username/tradelink/src/models"
	"github.com/username/tradelink/src/utils"
)

// Factor weights. Only the weights of applicable factors count towards the maximum.
const (
	CoinWeight  = 0.6
	TimeWeight  = 0.2
	PriceWeight = 0.2

	similarCoinDiscount = 0.5
	fullTimeWindow      = time.Hour
	maxTimeWindow       = 24 * time.Hour
	minPriceRatio       = 0.8
)

// FactorScore is one applicable factor's contribution to a match score.
type FactorScore struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Earned float64 `json:"earned"`
}

// ScoreBreakdown lists the applicable factors behind a score.
type ScoreBreakdown struct {
	Factors    []FactorScore `json:"factors"`
	Earned     float64       `json:"earned"`
	Applicable float64       `json:"applicable"`
	Score      float64       `json:"score"`
}

type MatchScorer struct{}

func NewMatchScorer() *MatchScorer {
	return &MatchScorer{}
}

// Score returns earned/applicable over the factors both sides have data for, or 0 when
// none apply.
func (s *MatchScorer) Score(signal models.SignalObservation, result models.ResultObservation) float64 {
	return s.Breakdown(signal, result).Score
}

// Breakdown computes the score and keeps the per-factor detail.
func (s *MatchScorer) Breakdown(signal models.SignalObservation, result models.ResultObservation) ScoreBreakdown {
	var b ScoreBreakdown

	if signal.Coin != "" && result.Coin != "" {
		earned := CoinWeight
		if signal.Coin != result.Coin {
			earned = CoinWeight * utils.SimilarityRatio(signal.Coin, result.Coin) * similarCoinDiscount
		}
		b.add("coin", CoinWeight, earned)
	}

	if signal.Timestamp != nil && result.Timestamp != nil {
		b.add("time", TimeWeight, TimeWeight*timeProximity(*signal.Timestamp, *result.Timestamp))
	}

	signalPrice, okSignal := signal.PrimaryPrice()
	resultPrice, okResult := result.ComparablePrice()
	if okSignal && okResult {
		earned := 0.0
		if ratio := priceRatio(signalPrice, resultPrice); ratio > minPriceRatio {
			earned = PriceWeight * ratio
		}
		b.add("price", PriceWeight, earned)
	}

	if b.Applicable > 0 {
		b.Score = utils.Clamp01(b.Earned / b.Applicable)
	}
	return b
}

func (b *ScoreBreakdown) add(name string, weight, earned float64) {
	b.Factors = append(b.Factors, FactorScore{Name: name, Weight: weight, Earned: earned})
	b.Earned += earned
	b.Applicable += weight
}

// timeProximity is 1 within an hour, decays linearly to 0 at 24h, and stays 0 beyond.
func timeProximity(a, b time.Time) float64 {
	delta := a.Sub(b)
	if delta < 0 {
		delta = -delta
	}
	switch {
	case delta <= fullTimeWindow:
		return 1
	case delta >= maxTimeWindow:
		return 0
	default:
		return float64(maxTimeWindow-delta) / float64(maxTimeWindow-fullTimeWindow)
	}
}

func priceRatio(a, b float64) float64 {
	hi := math.Max(a, b)
	if hi <= 0 {
		return 0
	}
	return math.Min(a, b) / hi
}

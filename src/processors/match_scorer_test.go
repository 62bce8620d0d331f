package processors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/username/tradelink/src/models"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func signalObs(coin string, entry *float64, ts *time.Time) models.SignalObservation {
	return models.SignalObservation{ExtractedRecord: models.ExtractedRecord{
		Kind: models.KindSignal, Coin: coin, EntryPrice: entry, Timestamp: ts,
	}}
}

func resultObs(coin string, entry, exit *float64, ts *time.Time) models.ResultObservation {
	return models.ResultObservation{ExtractedRecord: models.ExtractedRecord{
		Kind: models.KindResult, Coin: coin, EntryPrice: entry, ExitPrice: exit, Timestamp: ts,
	}}
}

func at(d time.Duration) *time.Time {
	return models.Time(t0.Add(d))
}

func TestMatchScorer_AllFactorsAgree(t *testing.T) {
	s := NewMatchScorer()
	score := s.Score(
		signalObs("ETH", models.Float(2500), at(0)),
		resultObs("ETH", models.Float(2500), models.Float(2700), at(10*time.Minute)),
	)
	assert.Equal(t, 1.0, score)
}

func TestMatchScorer_PriceEarnsWeightTimesRatio(t *testing.T) {
	s := NewMatchScorer()
	score := s.Score(
		signalObs("ETH", models.Float(100), at(0)),
		resultObs("ETH", models.Float(90), nil, at(time.Hour)),
	)
	assert.InDelta(t, 0.98, score, 1e-9)
}

func TestMatchScorer_PriceRatioAtFloorEarnsNothing(t *testing.T) {
	s := NewMatchScorer()
	b := s.Breakdown(
		signalObs("ETH", models.Float(100), nil),
		resultObs("ETH", models.Float(80), nil, nil),
	)
	assert.InDelta(t, 0.8, b.Applicable, 1e-12)
	assert.InDelta(t, 0.75, b.Score, 1e-12)
}

func TestMatchScorer_MissingDataIsSkippedNotPenalized(t *testing.T) {
	s := NewMatchScorer()
	b := s.Breakdown(signalObs("SOL", nil, nil), resultObs("SOL", nil, nil, at(0)))

	assert.Len(t, b.Factors, 1)
	assert.Equal(t, "coin", b.Factors[0].Name)
	assert.Equal(t, 1.0, b.Score)
}

func TestMatchScorer_NoApplicableFactor(t *testing.T) {
	s := NewMatchScorer()
	assert.Equal(t, 0.0, s.Score(signalObs("", nil, nil), resultObs("", nil, nil, nil)))
}

func TestMatchScorer_SimilarCoinIsDiscounted(t *testing.T) {
	s := NewMatchScorer()
	// similarity("BTC","ETH") = 1/3, earned = 0.6 * 1/3 * 0.5
	assert.InDelta(t, 1.0/6.0, s.Score(signalObs("BTC", nil, nil), resultObs("ETH", nil, nil, nil)), 1e-12)
}

func TestMatchScorer_TemporalDecay(t *testing.T) {
	s := NewMatchScorer()
	tests := []struct {
		name  string
		delta time.Duration
		want  float64
	}{
		{"within the hour", 59 * time.Minute, 1.0},
		{"exactly one hour", time.Hour, 1.0},
		{"halfway through decay", 12*time.Hour + 30*time.Minute, (0.6 + 0.1) / 0.8},
		{"result before signal", -(12*time.Hour + 30*time.Minute), (0.6 + 0.1) / 0.8},
		{"a full day", 24 * time.Hour, 0.75},
		{"beyond a day", 72 * time.Hour, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(signalObs("BNB", nil, at(0)), resultObs("BNB", nil, nil, at(tt.delta)))
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

// The result side offers its entry price, else its exit price; the two are not told apart.
func TestMatchScorer_PriceConflatesResultEntryAndExit(t *testing.T) {
	s := NewMatchScorer()

	exitOnly := s.Breakdown(signalObs("ETH", models.Float(100), nil), resultObs("ETH", nil, models.Float(95), nil))
	assert.InDelta(t, (0.6+0.2*0.95)/0.8, exitOnly.Score, 1e-9)

	// With both present the entry price is used even if the exit would agree better.
	both := s.Breakdown(signalObs("ETH", models.Float(100), nil), resultObs("ETH", models.Float(50), models.Float(100), nil))
	assert.InDelta(t, 0.75, both.Score, 1e-9)
}

func TestMatchScorer_ScoreStaysInUnitInterval(t *testing.T) {
	s := NewMatchScorer()
	coins := []string{"", "BTC", "BTX", "ETH"}
	prices := []*float64{nil, models.Float(1e-6), models.Float(1), models.Float(1e6)}
	times := []*time.Time{nil, at(0), at(5 * time.Hour), at(48 * time.Hour)}

	for _, sc := range coins {
		for _, rc := range coins {
			for _, p := range prices {
				for _, ts := range times {
					score := s.Score(signalObs(sc, p, at(0)), resultObs(rc, p, nil, ts))
					assert.GreaterOrEqual(t, score, 0.0)
					assert.LessOrEqual(t, score, 1.0)
				}
			}
		}
	}
}

package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/tradelink/src/models"
)

func trade(coin string, status models.TradeStatus, roi *float64, signal, result string) models.TradeRecord {
	t := models.TradeRecord{Coin: coin, Status: status, ROI: roi}
	if signal != "" {
		t.SignalRef = ref(signal)
	}
	if result != "" {
		t.ResultRef = ref(result)
	}
	return t
}

func TestTradeAssembler_DefaultsAndOrdering(t *testing.T) {
	input := []models.TradeRecord{
		trade("BTC", "", models.Float(5), "s1", ""),
		trade("ETH", models.StatusWin, models.Float(25), "s2", "r2"),
		{Coin: "SOL", Status: models.StatusLoss, ResultRef: ref("r3"), MatchConfidence: 1.7},
	}

	set := NewTradeAssembler().Assemble(input)
	records := set.Records()

	require.Len(t, records, 3)
	assert.Equal(t, 3, set.Len())
	assert.Equal(t, "ETH", records[0].Coin)
	assert.Equal(t, "BTC", records[1].Coin)
	assert.Equal(t, models.StatusUnknown, records[1].Status)
	assert.Equal(t, 1.0, records[2].MatchConfidence)

	assert.Equal(t, "BTC", input[0].Coin, "input order untouched")
	assert.Equal(t, models.TradeStatus(""), input[0].Status, "input status untouched")
}

func TestTradeSet_RecordsAreCopies(t *testing.T) {
	set := NewTradeAssembler().Assemble([]models.TradeRecord{trade("ADA", models.StatusWin, models.Float(3), "s", "r")})

	first := set.Records()
	*first[0].ROI = 1000
	*first[0].SignalRef = "tampered"
	first[0].Coin = "XXX"

	again := set.Records()
	assert.Equal(t, 3.0, *again[0].ROI)
	assert.Equal(t, "s", *again[0].SignalRef)
	assert.Equal(t, "ADA", again[0].Coin)
}

func TestTradeSet_Summary(t *testing.T) {
	set := NewTradeAssembler().Assemble([]models.TradeRecord{
		trade("BTC", models.StatusWin, models.Float(10), "s1", "r1"),
		trade("ETH", models.StatusWin, models.Float(30), "s2", "r2"),
		trade("SOL", models.StatusLoss, models.Float(-20), "", "r3"),
		trade("ADA", models.StatusPending, nil, "s4", ""),
		trade("DOT", models.StatusUnknown, models.Float(4), "", "r5"),
	})

	before := set.Records()
	s := set.Summary()

	assert.Equal(t, 5, s.TotalTrades)
	assert.Equal(t, 2, s.WinningTrades)
	assert.Equal(t, 1, s.LosingTrades)
	assert.Equal(t, 1, s.PendingTrades)
	assert.Equal(t, 1, s.UnknownTrades)
	assert.Equal(t, 2, s.Matched)
	assert.Equal(t, 1, s.SignalOnly)
	assert.Equal(t, 2, s.ResultOnly)
	assert.InDelta(t, 2.0/3.0, s.WinRate, 1e-12)
	assert.Equal(t, 4, s.TradesWithROI)
	assert.InDelta(t, 6.0, s.AvgROI, 1e-12)
	assert.InDelta(t, 7.0, s.MedianROI, 1e-12)
	assert.Equal(t, 30.0, s.MaxROI)

	assert.Equal(t, before, set.Records(), "summary must not mutate the set")
}

func TestTradeSet_SummaryEmpty(t *testing.T) {
	s := NewTradeAssembler().Assemble(nil).Summary()
	assert.Equal(t, models.TradeSummary{}, s)
}

func TestTradeAssembler_FromMatcherOutput(t *testing.T) {
	res := newDefaultMatcher().Match(mixedBatch())
	set := NewTradeAssembler().Assemble(res.Trades)

	assert.Equal(t, res.Trades, set.Records(), "matcher output already satisfies the ordering contract")
	s := set.Summary()
	assert.Equal(t, res.Matched, s.Matched)
	assert.Equal(t, res.SignalOnly, s.SignalOnly)
	assert.Equal(t, res.ResultOnly, s.ResultOnly)
}

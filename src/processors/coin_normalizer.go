package processors

import (
	"regexp"
	"strings"

	"github.com/username/tradelink/src/models"
	"github.com/username/tradelink/src/utils"
)

// MinCoinSimilarity is the lowest similarity at which a fuzzy token is accepted as a coin.
const MinCoinSimilarity = 0.8

var coinWordPattern = regexp.MustCompile(`\b[A-Z]{2,8}\b`)

// CoinNormalizer resolves noisy text tokens to canonical coin symbols.
type CoinNormalizer struct {
	registry *utils.CoinRegistry
}

func NewCoinNormalizer(registry *utils.CoinRegistry) *CoinNormalizer {
	if registry == nil {
		registry = utils.DefaultCoinRegistry()
	}
	return &CoinNormalizer{registry: registry}
}

// Normalize returns the best-confidence coin across all candidate fields of one record,
// or an empty symbol when nothing was recognized. Only coin and unclassified fields are
// considered. Equal confidences keep the candidate evaluated first.
func (n *CoinNormalizer) Normalize(fields []models.RawField) (string, float64) {
	bestSymbol, bestConfidence := "", 0.0
	for _, field := range fields {
		if field.Class != models.FieldCoin && field.Class != models.FieldUnclassified && field.Class != "" {
			continue
		}
		symbol, confidence := n.NormalizeToken(field.Text, field.Confidence)
		if symbol != "" && confidence > bestConfidence {
			bestSymbol, bestConfidence = symbol, confidence
		}
	}
	return bestSymbol, bestConfidence
}

// NormalizeToken resolves a single token. An exact (contained) registry symbol carries the
// full token confidence; otherwise the closest symbol by similarity is accepted at
// confidence*similarity when the similarity reaches MinCoinSimilarity.
func (n *CoinNormalizer) NormalizeToken(text string, confidence float64) (string, float64) {
	text = strings.ToUpper(text)
	symbols := n.registry.Symbols()

	bestSymbol, bestConfidence := "", 0.0
	for _, coin := range symbols {
		if strings.Contains(text, coin) && confidence > bestConfidence {
			bestSymbol, bestConfidence = coin, confidence
		}
	}
	if bestSymbol != "" {
		return bestSymbol, bestConfidence
	}

	for _, word := range coinWordPattern.FindAllString(text, -1) {
		for _, coin := range symbols {
			similarity := utils.SimilarityRatio(word, coin)
			if similarity < MinCoinSimilarity {
				continue
			}
			if c := confidence * similarity; c > bestConfidence {
				bestSymbol, bestConfidence = coin, c
			}
		}
	}
	return bestSymbol, bestConfidence
}

package processors

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/tradelink/src/logger"
	"github.com/username/tradelink/src/models"
)

const (
	MinPrice = 1e-6
	MaxPrice = 1e6
	MinROI   = -100.0
	MaxROI   = 10000.0

	// dominantColorFactor is how many times one color must outnumber the other to decide.
	dominantColorFactor = 1.5
)

var (
	priceTokenPattern   = regexp.MustCompile(`\d+(?:\.\d+)?`)
	percentTokenPattern = regexp.MustCompile(`[+-]?\d+(?:\.\d+)?%`)
)

type RecordBuilder struct {
	normalizer *CoinNormalizer
}

func NewRecordBuilder(normalizer *CoinNormalizer) *RecordBuilder {
	if normalizer == nil {
		normalizer = NewCoinNormalizer(nil)
	}
	return &RecordBuilder{normalizer: normalizer}
}

// Build assembles one typed observation. Records without a coin are still returned;
// the matcher is responsible for setting them aside.
func (b *RecordBuilder) Build(obs models.RawObservation) models.ExtractedRecord {
	record := models.ExtractedRecord{
		Kind:        obs.Kind,
		SourceID:    obs.SourceID,
		ColorStatus: ClassifyColor(obs.Color),
	}
	if obs.Timestamp != nil {
		record.Timestamp = models.Time(*obs.Timestamp)
	}

	record.Coin, record.CoinConfidence = b.normalizer.Normalize(obs.Fields)

	for _, field := range obs.Fields {
		switch field.Class {
		case models.FieldPrice:
			for _, v := range extractNumbers(priceTokenPattern, field.Text) {
				if v >= MinPrice && v <= MaxPrice {
					record.Prices = append(record.Prices, models.PricePoint{Value: v, Confidence: field.Confidence})
				}
			}
		case models.FieldPercentage:
			for _, v := range extractNumbers(percentTokenPattern, field.Text) {
				if v >= MinROI && v <= MaxROI {
					record.ROICandidates = append(record.ROICandidates, models.PricePoint{Value: v, Confidence: field.Confidence})
				}
			}
		}
	}

	// Detection order decides entry and exit, not confidence.
	if len(record.Prices) > 0 {
		record.EntryPrice = models.Float(record.Prices[0].Value)
		if len(record.Prices) > 1 {
			record.ExitPrice = models.Float(record.Prices[1].Value)
		}
	}

	if best, ok := bestByConfidence(record.ROICandidates); ok {
		record.ROI = models.Float(best.Value)
	}

	factors := []float64{record.CoinConfidence}
	for _, p := range record.Prices {
		factors = append(factors, p.Confidence)
	}
	sum := 0.0
	for _, f := range factors {
		sum += f
	}
	record.OverallConfidence = sum / float64(len(factors))

	if !record.Usable() {
		logger.L.Debug("No coin recognized for observation", "sourceID", obs.SourceID, "kind", obs.Kind)
	}
	return record
}

// ClassifyColor applies the majority rule to a pixel sample.
func ClassifyColor(sample *models.ColorSample) models.ColorStatus {
	if sample == nil {
		return models.ColorUnknown
	}
	green, red := float64(sample.GreenPixels), float64(sample.RedPixels)
	switch {
	case green > red*dominantColorFactor:
		return models.ColorWin
	case red > green*dominantColorFactor:
		return models.ColorLoss
	default:
		return models.ColorNeutral
	}
}

// ParseNumericToken parses a single numeric token such as "$0.000123", "1,250.5 USDT" or "+52.3%".
func ParseNumericToken(text string) (float64, bool) {
	cleaned := strings.NewReplacer("$", "", ",", "", "USDT", "", "%", "", "+", "").Replace(strings.ToUpper(text))
	cleaned = strings.TrimSpace(cleaned)
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

func extractNumbers(pattern *regexp.Regexp, text string) []float64 {
	text = strings.ReplaceAll(text, ",", "")
	var values []float64
	for _, token := range pattern.FindAllString(text, -1) {
		if v, ok := ParseNumericToken(token); ok {
			values = append(values, v)
		} else {
			logger.L.Debug("Dropping malformed numeric token", "token", token)
		}
	}
	return values
}

func bestByConfidence(points []models.PricePoint) (models.PricePoint, bool) {
	if len(points) == 0 {
		return models.PricePoint{}, false
	}
	best := points[0]
	for _, p := range points[1:] {
		if p.Confidence > best.Confidence {
			best = p
		}
	}
	return best, true
}

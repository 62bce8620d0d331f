package csvparser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/username/tradelink/src/logger"
	"github.com/username/tradelink/src/models"
	"github.com/username/tradelink/src/security/validation"
	"github.com/username/tradelink/src/utils"
)

// Recognized header names. Only source_id and text are required.
const (
	colSourceID       = "source_id"
	colKind           = "kind"
	colTimestamp      = "timestamp"
	colText           = "text"
	colConfidence     = "confidence"
	colClassification = "classification"
	colGreen          = "green_pixels"
	colRed            = "red_pixels"
)

// CSVParser reads one recognized field per row and groups rows by source_id
// in order of first appearance.
type CSVParser struct{}

func NewParser() *CSVParser {
	return &CSVParser{}
}

func (p *CSVParser) Parse(file io.Reader) ([]models.RawObservation, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty CSV input")
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := indexHeader(header)
	for _, required := range []string{colSourceID, colText} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("CSV header is missing required column %q", required)
		}
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read all CSV records: %w", err)
	}

	var order []string
	groups := make(map[string]*models.RawObservation)
	for line, record := range records {
		get := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		sourceID := get(colSourceID)
		if sourceID == "" {
			logger.L.Warn("Skipping CSV row without source_id", "line", line+2)
			continue
		}
		obs, exists := groups[sourceID]
		if !exists {
			obs = &models.RawObservation{SourceID: sourceID}
			groups[sourceID] = obs
			order = append(order, sourceID)
		}

		if obs.Kind == "" {
			obs.Kind = models.Kind(strings.ToLower(get(colKind)))
		}
		if obs.Timestamp == nil {
			if ts, err := utils.ParseTimestamp(get(colTimestamp)); err != nil {
				logger.L.Warn("Ignoring unparseable CSV timestamp", "sourceID", sourceID, "line", line+2, "error", err)
			} else {
				obs.Timestamp = ts
			}
		}
		if obs.Color == nil {
			obs.Color = parseColor(get(colGreen), get(colRed))
		}

		text := validation.CleanOCRText(get(colText))
		if text == "" {
			continue
		}
		confidence, err := strconv.ParseFloat(get(colConfidence), 64)
		if err != nil {
			confidence = 0
		}
		class := models.FieldClass(strings.ToLower(get(colClassification)))
		if class == "" {
			class = models.FieldUnclassified
		}
		obs.Fields = append(obs.Fields, models.RawField{Text: text, Confidence: confidence, Class: class})
	}

	out := make([]models.RawObservation, 0, len(order))
	for _, id := range order {
		out = append(out, *groups[id])
	}
	return out, nil
}

func indexHeader(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	return cols
}

// parseColor returns nil unless at least one pixel count is present.
func parseColor(green, red string) *models.ColorSample {
	if green == "" && red == "" {
		return nil
	}
	g, _ := strconv.Atoi(green)
	r, _ := strconv.Atoi(red)
	return &models.ColorSample{GreenPixels: g, RedPixels: r}
}

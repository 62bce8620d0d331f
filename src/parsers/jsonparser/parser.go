package jsonparser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/username/tradelink/src/logger"
	"github.com/username/tradelink/src/models"
	"github.com/username/tradelink/src/security/validation"
	"github.com/username/tradelink/src/utils"
)

// observation mirrors models.RawObservation but keeps the timestamp as text,
// since the extraction stage writes several layouts.
type observation struct {
	Kind      models.Kind         `json:"kind"`
	SourceID  string              `json:"source_id"`
	Timestamp string              `json:"timestamp"`
	Fields    []models.RawField   `json:"fields"`
	Color     *models.ColorSample `json:"color"`
}

// batch is the grouped document layout: {"signals": [...], "results": [...]}.
type batch struct {
	Signals []observation `json:"signals"`
	Results []observation `json:"results"`
}

// JSONParser reads extraction exports encoded as JSON.
type JSONParser struct{}

func NewParser() *JSONParser {
	return &JSONParser{}
}

// Parse accepts either a flat array of observations or a grouped document.
// In the grouped form the enclosing key sets the kind; signals come first.
func (p *JSONParser) Parse(file io.Reader) ([]models.RawObservation, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON input: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty JSON input")
	}

	var raw []observation
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode JSON observation array: %w", err)
		}
	} else {
		var b batch
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return nil, fmt.Errorf("failed to decode JSON observation document: %w", err)
		}
		for _, o := range b.Signals {
			o.Kind = models.KindSignal
			raw = append(raw, o)
		}
		for _, o := range b.Results {
			o.Kind = models.KindResult
			raw = append(raw, o)
		}
	}

	out := make([]models.RawObservation, 0, len(raw))
	for i, o := range raw {
		ts, err := utils.ParseTimestamp(o.Timestamp)
		if err != nil {
			logger.L.Warn("Ignoring unparseable observation timestamp", "sourceID", o.SourceID, "index", i, "error", err)
			ts = nil
		}
		fields := make([]models.RawField, 0, len(o.Fields))
		for _, f := range o.Fields {
			f.Text = validation.CleanOCRText(f.Text)
			if f.Text == "" {
				continue
			}
			f.Class = models.FieldClass(strings.ToLower(strings.TrimSpace(string(f.Class))))
			if f.Class == "" {
				f.Class = models.FieldUnclassified
			}
			fields = append(fields, f)
		}
		out = append(out, models.RawObservation{
			Kind:      models.Kind(strings.ToLower(strings.TrimSpace(string(o.Kind)))),
			SourceID:  strings.TrimSpace(o.SourceID),
			Timestamp: ts,
			Fields:    fields,
			Color:     o.Color,
		})
	}
	return out, nil
}

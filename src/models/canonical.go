// src/models/canonical.go
package models

import "time"

// FieldClass is the upstream classification of one recognized text region.
type FieldClass string

const (
	FieldCoin         FieldClass = "coin"
	FieldPrice        FieldClass = "price"
	FieldPercentage   FieldClass = "percentage"
	FieldUnclassified FieldClass = "unclassified"
)

// RawField is a single recognized text region produced by the extraction stage.
type RawField struct {
	Text       string     `json:"text" yaml:"text"`
	Confidence float64    `json:"confidence" yaml:"confidence"`
	Class      FieldClass `json:"classification" yaml:"classification"`
}

// ColorSample holds the green and red pixel counts measured on a screenshot.
type ColorSample struct {
	GreenPixels int `json:"green_pixels"`
	RedPixels   int `json:"red_pixels"`
}

// RawObservation is everything the extraction stage knows about one processed image.
// It is the unified input representation; every parser populates it.
type RawObservation struct {
	Kind      Kind         `json:"kind"`
	SourceID  string       `json:"source_id"`
	Timestamp *time.Time   `json:"timestamp,omitempty"`
	Fields    []RawField   `json:"fields"`
	Color     *ColorSample `json:"color,omitempty"`
}

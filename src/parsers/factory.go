package parsers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/username/tradelink/src/parsers/csvparser"
	"github.com/username/tradelink/src/parsers/jsonparser"
)

var ErrUnsupportedFormat = errors.New("unsupported input format")

// GetParser returns the parser registered for format ("json" or "csv").
func GetParser(format string) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json", "":
		return jsonparser.NewParser(), nil
	case "csv":
		return csvparser.NewParser(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// FormatFromFilename guesses the input format from a file extension.
func FormatFromFilename(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return "csv"
	case strings.HasSuffix(lower, ".json"):
		return "json"
	default:
		return ""
	}
}

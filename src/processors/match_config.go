package processors

import (
	"errors"
	"fmt"
	"math"
)

// DefaultAutoMatchThreshold is the minimum score a pairing needs to be committed.
const DefaultAutoMatchThreshold = 0.8

// ErrInvalidThreshold is returned for thresholds outside [0,1].
var ErrInvalidThreshold = errors.New("auto match threshold must be within [0,1]")

// MatchConfig is the only tunable that affects matching.
type MatchConfig struct {
	AutoMatchThreshold float64 `json:"auto_match_threshold" yaml:"auto_match_threshold"`
}

// DefaultMatchConfig returns the configuration used when nothing is overridden.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{AutoMatchThreshold: DefaultAutoMatchThreshold}
}

// Validate checks the threshold range.
func (c MatchConfig) Validate() error {
	t := c.AutoMatchThreshold
	if math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, t)
	}
	return nil
}

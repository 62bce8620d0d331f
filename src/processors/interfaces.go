package processors

import (
	"github.com/username/tradelink/src/models"
)

// Scorer measures how compatible a signal is with a result, in [0,1].
type Scorer interface {
	Score(signal models.SignalObservation, result models.ResultObservation) float64
}

// Builder turns one image's raw fields into a typed observation.
type Builder interface {
	Build(obs models.RawObservation) models.ExtractedRecord
}

// Linker pairs signals with results and emits the ordered trade records.
type Linker interface {
	Match(records []models.ExtractedRecord) MatchResult
}

package parsers

import (
	"io"

	"github.com/username/tradelink/src/models"
)

// Parser turns an uploaded extraction export into raw observations.
type Parser interface {
	Parse(file io.Reader) ([]models.RawObservation, error)
}

type kindParser struct {
	inner Parser
	kind  models.Kind
}

// WithKind wraps p so that every observation it yields carries kind, overriding the file's own value.
// An empty kind returns p unchanged.
func WithKind(p Parser, kind models.Kind) Parser {
	if kind == "" {
		return p
	}
	return &kindParser{inner: p, kind: kind}
}

func (k *kindParser) Parse(file io.Reader) ([]models.RawObservation, error) {
	obs, err := k.inner.Parse(file)
	if err != nil {
		return nil, err
	}
	for i := range obs {
		obs[i].Kind = k.kind
	}
	return obs, nil
}

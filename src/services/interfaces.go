package services

import (
	"context"
	"errors"
	"io"

	"github.com/username/tradelink/src/database"
	"github.com/username/tradelink/src/models"
)

var (
	ErrParsingFailed = errors.New("failed to parse observation input")
	ErrRunNotFound   = database.ErrRunNotFound
)

// ReconcileOptions carries per-call overrides. The zero value uses the service defaults.
type ReconcileOptions struct {
	// Threshold overrides the configured auto match threshold when set.
	Threshold *float64
	// Kind forces the kind of every observation read from a file.
	Kind models.Kind
}

// ReconcileService runs the full pipeline from raw observations to a stored run.
type ReconcileService interface {
	ReconcileFile(ctx context.Context, file io.Reader, format string, opts ReconcileOptions) (*models.ReconciliationRun, error)
	Reconcile(ctx context.Context, observations []models.RawObservation, opts ReconcileOptions) (*models.ReconciliationRun, error)
	GetRun(ctx context.Context, id string) (*models.ReconciliationRun, error)
	ListRuns(ctx context.Context, limit int) ([]string, error)
}

// RunRepository is the persistence the service needs. *database.RunStore implements it.
type RunRepository interface {
	SaveRun(ctx context.Context, run models.ReconciliationRun) error
	GetRun(ctx context.Context, id string) (*models.ReconciliationRun, error)
	FindByInputHash(ctx context.Context, hash string, threshold float64) (string, error)
	ListRuns(ctx context.Context, limit int) ([]string, error)
}

// Notifier announces completed runs.
type Notifier interface {
	NotifyRun(ctx context.Context, run models.ReconciliationRun) error
}

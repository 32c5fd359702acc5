package output

import (
	"context"

	"github.com/manifest-network/factoryctl/internal/models"
)

type OutputHandler interface {
	// WriteRun inserts or updates a run record.
	WriteRun(ctx context.Context, run *models.Run) error

	// WriteStep records the outcome of a scenario step.
	WriteStep(ctx context.Context, step *models.StepResult) error

	// WriteArtifact records a contract binary hashed during a run.
	WriteArtifact(ctx context.Context, artifact *models.ArtifactRecord) error

	// Close closes the output handler.
	Close() error
}

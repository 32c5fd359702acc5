package output

import (
	"context"
	"log/slog"
	"strings"

	"github.com/manifest-network/factoryctl/internal/models"
)

// LogHandler writes journal records through a structured logger.
type LogHandler struct {
	logger *slog.Logger
}

// NewLogHandler returns a handler logging to logger, or to the default logger when nil.
func NewLogHandler(logger *slog.Logger) *LogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogHandler{logger: logger}
}

func (h *LogHandler) WriteRun(ctx context.Context, run *models.Run) error {
	attrs := []any{
		"run", run.ID,
		"status", run.Status,
		"factory", run.FactoryAccount,
		"dao", run.DAOAccount,
		"phases", strings.Join(run.Phases, ","),
	}
	if !run.FinishedAt.IsZero() {
		attrs = append(attrs, "elapsed", run.FinishedAt.Sub(run.StartedAt))
	}
	if run.Error != "" {
		attrs = append(attrs, "error", run.Error)
		h.logger.ErrorContext(ctx, "Run record", attrs...)
		return nil
	}
	h.logger.InfoContext(ctx, "Run record", attrs...)
	return nil
}

func (h *LogHandler) WriteStep(ctx context.Context, step *models.StepResult) error {
	attrs := []any{
		"run", step.RunID,
		"seq", step.Seq,
		"step", step.Name,
		"phase", step.Phase,
		"status", step.Status,
		"duration", step.Duration,
	}
	if step.Error != "" {
		attrs = append(attrs, "error", step.Error)
	}
	h.logger.DebugContext(ctx, "Step record", attrs...)
	return nil
}

func (h *LogHandler) WriteArtifact(ctx context.Context, a *models.ArtifactRecord) error {
	h.logger.InfoContext(ctx, "Artifact", "run", a.RunID, "label", a.Label, "path", a.Path, "hash", a.Hash, "size", a.Size)
	return nil
}

func (h *LogHandler) Close() error {
	return nil
}

// Package scenario runs the factory deployment and upgrade lifecycle as an
// ordered list of steps.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/manifest-network/factoryctl/internal/metrics"
	"github.com/manifest-network/factoryctl/internal/models"
	"github.com/manifest-network/factoryctl/internal/output"
)

const cleanupTimeout = 5 * time.Minute

// ErrSkipped is returned by a step that cannot run in the current setup.
var ErrSkipped = errors.New("step skipped")

// Step is one chain operation or check.
type Step struct {
	Name  string
	Phase string
	// Always marks steps that run whatever phases are selected.
	Always bool
	Run    func(ctx context.Context) error
}

// Runner executes steps strictly one after another.
type Runner struct {
	Handler      output.OutputHandler
	Metrics      *metrics.Metrics
	Cleanup      *Cleanup
	Keep         bool
	ShowProgress bool
}

// Select returns the steps belonging to phases, in order.
func Select(steps []Step, phases []string) []Step {
	var out []Step
	for _, s := range steps {
		if s.Always || slices.Contains(phases, s.Phase) {
			out = append(out, s)
		}
	}
	return out
}

// Execute runs steps in order and stops at the first failure. On failure the
// cleanup stack is unwound unless Keep is set.
func (r *Runner) Execute(ctx context.Context, run *models.Run, steps []Step) error {
	run.Status = models.StatusRunning
	run.StartedAt = time.Now()
	if err := r.Handler.WriteRun(ctx, run); err != nil {
		return fmt.Errorf("failed to write run: %w", err)
	}

	var bar *progressbar.ProgressBar
	if r.ShowProgress && len(steps) > 0 {
		bar = progressbar.NewOptions(
			len(steps),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetDescription("Running scenario..."),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
		if err := bar.RenderBlank(); err != nil {
			return fmt.Errorf("failed to render progress bar: %w", err)
		}
	}

	runErr := r.runSteps(ctx, run.ID, steps, bar)

	if bar != nil {
		if err := bar.Finish(); err != nil {
			slog.Warn("Failed to finish progress bar", "error", err)
		}
	}

	if runErr != nil && r.Cleanup != nil && r.Cleanup.Len() > 0 {
		if r.Keep {
			slog.Warn("Keeping resources created before the failure", "pending", r.Cleanup.Len())
		} else {
			cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
			if err := r.Cleanup.Run(cleanupCtx); err != nil {
				runErr = errors.Join(runErr, fmt.Errorf("cleanup failed: %w", err))
			}
			cancel()
		}
	}

	run.FinishedAt = time.Now()
	run.Status = models.StatusSucceeded
	if runErr != nil {
		run.Status = models.StatusFailed
		run.Error = runErr.Error()
	}
	if r.Metrics != nil {
		r.Metrics.ObserveRun(run.FinishedAt.Sub(run.StartedAt), runErr)
	}
	if err := r.Handler.WriteRun(context.WithoutCancel(ctx), run); err != nil {
		slog.Warn("Failed to write run", "error", err)
	}
	return runErr
}

func (r *Runner) runSteps(ctx context.Context, runID string, steps []Step, bar *progressbar.ProgressBar) error {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			slog.Info("Scenario cancelled by user")
			return err
		}

		result := &models.StepResult{
			RunID:     runID,
			Seq:       i + 1,
			Name:      step.Name,
			Phase:     step.Phase,
			StartedAt: time.Now(),
		}
		slog.Info("Running step", "seq", result.Seq, "step", step.Name, "phase", step.Phase)

		err := step.Run(ctx)
		result.Duration = time.Since(result.StartedAt)

		switch {
		case err == nil:
			result.Status = models.StatusSucceeded
		case errors.Is(err, ErrSkipped):
			result.Status = models.StatusSkipped
			slog.Warn("Step skipped", "step", step.Name, "reason", err)
			err = nil
		default:
			result.Status = models.StatusFailed
			result.Error = err.Error()
			slog.Error("Step failed", "step", step.Name, "error", err)
		}

		if r.Metrics != nil {
			r.Metrics.ObserveStep(step.Phase, step.Name, result.Duration, err)
		}
		if werr := r.Handler.WriteStep(context.WithoutCancel(ctx), result); werr != nil {
			slog.Warn("Failed to write step", "step", step.Name, "error", werr)
		}
		if err != nil {
			return fmt.Errorf("step %q failed: %w", step.Name, err)
		}

		if bar != nil {
			if err := bar.Add(1); err != nil {
				slog.Warn("Failed to update progress bar", "error", err)
			}
		}
	}
	return nil
}

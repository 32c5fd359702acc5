package output

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifest-network/factoryctl/internal/models"
)

func TestLogHandler(t *testing.T) {
	var buf bytes.Buffer
	h := NewLogHandler(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	ctx := context.Background()
	started := time.Now()

	require.NoError(t, h.WriteRun(ctx, &models.Run{
		ID: "run-1", Status: models.StatusFailed, Error: "store failed",
		Phases: []string{"setup", "create"}, StartedAt: started, FinishedAt: started.Add(time.Second),
	}))
	require.NoError(t, h.WriteStep(ctx, &models.StepResult{RunID: "run-1", Seq: 1, Name: "deploy factory", Status: models.StatusSucceeded}))
	require.NoError(t, h.WriteArtifact(ctx, &models.ArtifactRecord{RunID: "run-1", Label: "old", Hash: "8Wxp"}))
	require.NoError(t, h.Close())

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, `error="store failed"`)
	assert.Contains(t, out, "phases=setup,create")
	assert.Contains(t, out, "elapsed=1s")
	assert.Contains(t, out, `step="deploy factory"`)
	assert.Contains(t, out, "hash=8Wxp")
}

func TestNewLogHandlerDefault(t *testing.T) {
	h := NewLogHandler(nil)
	assert.Same(t, slog.Default(), h.logger)
}

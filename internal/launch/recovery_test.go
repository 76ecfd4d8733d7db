package launch

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverOrphans(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mine := NewLocalQueue(db, "default", "launchbridge/s-1")
	other := NewLocalQueue(db, "default", "launchbridge/s-2")

	queued, err := mine.Submit(ctx, sampleSpec("r1"))
	require.NoError(t, err)
	_, err = mine.Submit(ctx, sampleSpec("r2"))
	require.NoError(t, err)
	running, err := mine.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, running)
	done, err := mine.Submit(ctx, sampleSpec("r3"))
	require.NoError(t, err)
	require.NoError(t, mine.Complete(ctx, done.ID(), StatusSucceeded, nil))
	foreign, err := other.Submit(ctx, sampleSpec("x1"))
	require.NoError(t, err)

	n, err := mine.RecoverOrphans(ctx, logger)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []string{queued.ID(), running.ID} {
		j, err := mine.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusKilled, j.Status)
		require.NotNil(t, j.LastError)
		assert.Equal(t, orphanedMessage, *j.LastError)
	}

	j, err := mine.Get(ctx, done.ID())
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, j.Status)

	j, err = other.Get(ctx, foreign.ID())
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, j.Status, "other sweeps' jobs are untouched")

	n, err = mine.RecoverOrphans(ctx, logger)
	require.NoError(t, err)
	assert.Zero(t, n)
}

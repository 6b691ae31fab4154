package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/urlfinder/internal/progress"
)

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core), false)
	id := uuid.New()
	batch := []progress.Event{
		{BatchID: id, TS: time.Now(), Stage: progress.StageBatchStart, Total: 1},
		{BatchID: id, TS: time.Now(), Stage: progress.StageCandidateDone, Completed: 1, Total: 1},
		{BatchID: id, TS: time.Now(), Stage: progress.StageBatchDone, Completed: 1, Total: 1, Note: "resolved=1"},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, id.String(), entries[0].ContextMap()["batch_id"])
	require.Equal(t, string(progress.StageBatchDone), entries[1].ContextMap()["stage"])
	require.Equal(t, "resolved=1", entries[1].ContextMap()["note"])
	require.NoError(t, sink.Close(context.Background()))
}

func TestLogSinkVerbose(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core), true)
	evt := progress.Event{BatchID: uuid.New(), TS: time.Now(), Stage: progress.StageCandidateDone, Completed: 1, Total: 4}

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{evt}))
	require.Equal(t, 1, logs.Len())
	require.EqualValues(t, 4, logs.All()[0].ContextMap()["total"])
}

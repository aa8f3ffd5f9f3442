package reports

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepresearch/backend/internal/config"
	"deepresearch/backend/internal/db"
	"deepresearch/backend/internal/research"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	database, err := db.Open(config.Config{DatabaseURL: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, db.Migrate(context.Background(), database))
	return NewStore(database)
}

func TestSaveAndGetRoundTripsReport(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	collector := NewTraceCollector()
	collector.AppendProgress(research.Progress{Phase: research.PhaseDone, Title: "Research complete"})
	collector.MarkDone()

	report := FromResult(research.Result{
		Topic:      "Go generics",
		FinalText:  "Generics landed in 1.18 [go.dev](https://go.dev/blog/intro-generics).",
		Sources:    []research.Source{{ID: 1, Token: "[1]", Reference: "https://go.dev/blog/intro-generics", Label: "go.dev"}},
		Queries:    []research.Query{{ID: 1, Text: "go generics release", Loop: 0}},
		Loops:      1,
		StopReason: research.StopReasonSufficient,
		ElapsedMS:  1200,
	}, "grok")
	report.Trace = collector.Snapshot()
	saved, err := store.Save(ctx, report)
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	require.NotEmpty(t, saved.CreatedAt)

	got, err := store.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, "Go generics", got.Topic)
	assert.Equal(t, "sufficient", got.StopReason)
	assert.Equal(t, "grok", got.Provider)
	assert.Equal(t, int64(1200), got.ElapsedMS)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, "https://go.dev/blog/intro-generics", got.Sources[0].Reference)
	require.Len(t, got.Queries, 1)
	assert.Equal(t, "go generics release", got.Queries[0].Text)
	assert.Empty(t, got.Warnings)
	require.NotNil(t, got.Trace)
	assert.Equal(t, TraceStatusDone, got.Trace.Status)
	assert.Equal(t, "Research complete", got.Trace.Entries[0].Title)
}

func TestGetMissingReportReturnsNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, sql.ErrNoRows))
}

func TestSaveRequiresTopic(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save(context.Background(), Report{})
	assert.Error(t, err)
}

func TestListReturnsNewestFirstAndHonorsLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, topic := range []string{"first", "second", "third"} {
		at := base.Add(time.Duration(i) * time.Minute)
		store.now = func() time.Time { return at }
		_, err := store.Save(ctx, Report{Topic: topic, StopReason: "max_loops"})
		require.NoError(t, err)
	}

	all, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Topic)
	assert.Equal(t, "first", all[2].Topic)

	limited, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "second", limited[1].Topic)
}

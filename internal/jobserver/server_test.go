package jobserver

import (
	"context"
	"testing"
	"time"

	"github.com/dupctl/dupctl/internal/config"
	"github.com/dupctl/dupctl/internal/store"
	"github.com/dupctl/dupctl/models"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts Options) (*Server, store.DB) {
	t.Helper()
	db, err := store.NewSQLite(config.DatabaseConfig{Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))

	s := New(store.NewJobStore(db), store.NewRetryStore(db), opts)
	return s, db
}

func TestCreateJobEmitsCreatedEvent(t *testing.T) {
	s, db := newTestServer(t, Options{MaxConcurrent: 1})
	defer db.Close()

	var got []EventType
	s.Subscribe(EventCreated, func(e Event) { got = append(got, e.Type) })

	job, err := s.CreateJob(context.Background(), "job-1", "scan", "", map[string]any{"repositoryPath": "/r"})
	require.NoError(t, err)
	require.Equal(t, models.JobQueued, job.Status)
	require.Equal(t, []EventType{EventCreated}, got)
}

func TestCreateJobRejectsInvalidID(t *testing.T) {
	s, db := newTestServer(t, Options{MaxConcurrent: 1})
	defer db.Close()

	_, err := s.CreateJob(context.Background(), "../etc/passwd", "scan", "", nil)
	require.Error(t, err)
}

func TestHappyPathRunsToCompletion(t *testing.T) {
	s, db := newTestServer(t, Options{MaxConcurrent: 1})
	defer db.Close()

	s.RegisterHandler(HandlerFunc{
		Type: "scan",
		Fn: func(ctx context.Context, job *models.Job) (map[string]any, error) {
			return map[string]any{"ok": true}, nil
		},
	})

	var seq []EventType
	for _, typ := range []EventType{EventCreated, EventStarted, EventCompleted} {
		s.Subscribe(typ, func(e Event) { seq = append(seq, e.Type) })
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	_, err := s.CreateJob(context.Background(), "scan-1", "scan", "", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job := s.GetJob("scan-1")
		return job != nil && job.Status == models.JobCompleted
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, []EventType{EventCreated, EventStarted, EventCompleted}, seq)

	job := s.GetJob("scan-1")
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.CompletedAt)
	require.False(t, job.StartedAt.After(*job.CompletedAt))
}

func TestCancelQueuedJobWhenPausedForAllLaunches(t *testing.T) {
	s, db := newTestServer(t, Options{MaxConcurrent: 0})
	defer db.Close()

	_, err := s.CreateJob(context.Background(), "j1", "scan", "", nil)
	require.NoError(t, err)

	res := s.CancelJob(context.Background(), "j1")
	require.True(t, res.Success)

	job := s.GetJob("j1")
	require.Equal(t, models.JobCancelled, job.Status)
	require.True(t, job.Error.Cancelled)

	s.mu.Lock()
	qlen := len(s.queue)
	s.mu.Unlock()
	require.Equal(t, 0, qlen)
}

func TestPauseThenResumeRoundTrips(t *testing.T) {
	s, db := newTestServer(t, Options{MaxConcurrent: 0})
	defer db.Close()

	_, err := s.CreateJob(context.Background(), "j2", "scan", "", nil)
	require.NoError(t, err)

	require.True(t, s.PauseJob(context.Background(), "j2").Success)
	require.Equal(t, models.JobPaused, s.GetJob("j2").Status)
	require.False(t, s.PauseJob(context.Background(), "j2").Success)

	require.True(t, s.ResumeJob(context.Background(), "j2").Success)
	resumed := s.GetJob("j2")
	require.Equal(t, models.JobQueued, resumed.Status)
	require.Nil(t, resumed.PausedAt)
	require.NotNil(t, resumed.ResumedAt)
}

func TestOriginalJobIDStripsRetrySuffixes(t *testing.T) {
	require.Equal(t, "scan-1", originalJobID("scan-1-retry1"))
	require.Equal(t, "scan-1", originalJobID("scan-1-retry1-retry2"))
	require.Equal(t, "scan-1", originalJobID("scan-1"))
}

func TestBulkImportIsIdempotent(t *testing.T) {
	db, err := store.NewSQLite(config.DatabaseConfig{Path: ":memory:"})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate(context.Background()))

	js := store.NewJobStore(db)
	records := []models.JobRecord{
		{ID: "a", JobType: "scan", Status: "completed", CreatedAt: time.Now().UTC().Format(time.RFC3339Nano)},
		{ID: "b", JobType: "scan", Status: "completed", CreatedAt: time.Now().UTC().Format(time.RFC3339Nano)},
	}

	first, err := js.BulkImport(context.Background(), records)
	require.NoError(t, err)
	require.Equal(t, 2, first.Imported)
	require.Equal(t, 0, first.Skipped)

	second, err := js.BulkImport(context.Background(), records)
	require.NoError(t, err)
	require.Equal(t, 0, second.Imported)
	require.Equal(t, 2, second.Skipped)
}

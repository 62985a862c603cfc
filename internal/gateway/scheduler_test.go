package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dupctl/dupctl/internal/config"
	"github.com/dupctl/dupctl/internal/jobserver"
	"github.com/dupctl/dupctl/internal/store"
	"github.com/dupctl/dupctl/models"
)

func newTestScheduler(t *testing.T) (*Scheduler, *jobserver.Server) {
	t.Helper()
	db, err := store.NewSQLite(config.DatabaseConfig{Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })

	srv := jobserver.New(store.NewJobStore(db), store.NewRetryStore(db), jobserver.Options{MaxConcurrent: 1})
	srv.RegisterHandler(jobserver.HandlerFunc{
		Type: "scan",
		Fn: func(ctx context.Context, job *models.Job) (map[string]any, error) {
			return nil, nil
		},
	})
	return newScheduler(db, srv, func(SSEEvent) {}), srv
}

func TestSchedulerAddRejectsInvalidCron(t *testing.T) {
	s, _ := newTestScheduler(t)
	_, err := s.Add(context.Background(), Schedule{CronExpr: "not a cron", JobType: "scan", RepoPath: "/repo", Enabled: true})
	require.Error(t, err)
}

func TestSchedulerAddListDeleteRoundTrips(t *testing.T) {
	s, _ := newTestScheduler(t)
	created, err := s.Add(context.Background(), Schedule{CronExpr: "0 0 * * *", JobType: "scan", RepoPath: "/repo", Enabled: true})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	list, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.Delete(context.Background(), created.ID))
	list, err = s.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestSchedulerTriggerNowCreatesJob(t *testing.T) {
	s, srv := newTestScheduler(t)
	created, err := s.Add(context.Background(), Schedule{CronExpr: "0 0 * * *", JobType: "scan", RepoPath: "/repo", Enabled: false})
	require.NoError(t, err)

	require.NoError(t, s.TriggerNow(context.Background(), created.ID))

	jobs := srv.GetAllJobs(jobserver.JobFilter{PipelineID: created.ID})
	require.Len(t, jobs, 1)
	require.Equal(t, "scan", jobs[0].JobType)
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/users"
	"github.com/odyssey-erp/odyssey-crm/jobs"
)

type fakeQueue struct {
	tasks []*asynq.Task
	info  *asynq.QueueInfo
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("task-%d", len(q.tasks)), Queue: jobs.QueueDefault, Type: task.Type()}, nil
}

func (q *fakeQueue) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return q.info, q.err
}

type fakeUsers map[int64]users.User

func (f fakeUsers) GetUser(_ context.Context, id int64) (users.User, error) {
	u, ok := f[id]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	return u, nil
}

type fakeSessions struct{ issued []int64 }

func (f *fakeSessions) Issue(_ context.Context, userID int64) (string, error) {
	f.issued = append(f.issued, userID)
	return fmt.Sprintf("token-%d", userID), nil
}

func newEnv(q *fakeQueue) (Env, *bytes.Buffer, *bytes.Buffer, *fakeSessions) {
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	sessions := &fakeSessions{}
	return Env{
		Jobs:     NewJobsCLI(q, q),
		Users:    fakeUsers{1: {ID: 1, IsActive: true}, 2: {ID: 2}},
		Sessions: sessions,
		Stdout:   stdout,
		Stderr:   stderr,
	}, stdout, stderr, sessions
}

func TestTriggerJobs(t *testing.T) {
	q := &fakeQueue{}
	env, stdout, stderr, _ := newEnv(q)

	code := Run(context.Background(), env, []string{"jobs", "trigger", jobs.TaskIdempotencyCleanup, "--retention-days", "7"})
	require.Equal(t, 0, code, stderr.String())
	require.Len(t, q.tasks, 1)
	var payload jobs.IdempotencyCleanupPayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &payload))
	assert.Equal(t, 7, payload.RetentionDays)
	assert.Contains(t, stdout.String(), "enqueued idempotency:cleanup as task-1")

	code = Run(context.Background(), env, []string{"jobs", "trigger", jobs.TaskQuotationExpiry})
	assert.Equal(t, 0, code)
	assert.Equal(t, jobs.TaskQuotationExpiry, q.tasks[1].Type())

	code = Run(context.Background(), env, []string{"jobs", "trigger", "fx:backfill"})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "unsupported job fx:backfill")
}

func TestQueueStats(t *testing.T) {
	q := &fakeQueue{info: &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 3, Active: 1, Retry: 2}}
	env, stdout, _, _ := newEnv(q)

	require.Equal(t, 0, Run(context.Background(), env, []string{"jobs", "stats", "--json"}))
	var stats QueueStats
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &stats))
	assert.Equal(t, QueueStats{Queue: jobs.QueueDefault, Pending: 3, Active: 1, Retry: 2}, stats)

	stdout.Reset()
	require.Equal(t, 0, Run(context.Background(), env, []string{"jobs", "stats"}))
	assert.Contains(t, stdout.String(), "pending   3")

	q.err = errors.New("redis down")
	assert.Equal(t, 1, Run(context.Background(), env, []string{"jobs", "stats"}))
}

func TestIssueSession(t *testing.T) {
	env, stdout, stderr, sessions := newEnv(&fakeQueue{})

	require.Equal(t, 0, Run(context.Background(), env, []string{"session", "issue", "--user", "1"}))
	assert.Equal(t, "token-1\n", stdout.String())

	assert.Equal(t, 1, Run(context.Background(), env, []string{"session", "issue", "--user", "2"}))
	assert.Equal(t, 1, Run(context.Background(), env, []string{"session", "issue", "--user", "9"}))
	assert.Contains(t, stderr.String(), ErrInactiveUser.Error())
	assert.Equal(t, []int64{1}, sessions.issued)
}

func TestRunUsage(t *testing.T) {
	env, _, stderr, _ := newEnv(&fakeQueue{})
	assert.Equal(t, 2, Run(context.Background(), env, []string{"jobs"}))
	assert.Equal(t, 2, Run(context.Background(), env, []string{"fx", "validate"}))
	assert.Contains(t, stderr.String(), "usage:")
}

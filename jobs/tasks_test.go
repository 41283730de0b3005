package jobs_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberdesk/memberdesk/jobs"
	_ "github.com/memberdesk/memberdesk/testing"
)

type stubMailer struct {
	to      string
	subject string
}

func (s *stubMailer) Send(ctx context.Context, to, subject, body string) error {
	s.to = to
	s.subject = subject
	return nil
}

type stubPruner struct {
	removed int64
	err     error
	before  time.Time
}

func (s *stubPruner) DeleteExpiredLoginSessions(ctx context.Context, before time.Time) (int64, error) {
	s.before = before
	return s.removed, s.err
}

func TestHandleWelcomeEmailTask(t *testing.T) {
	task, err := jobs.NewWelcomeEmailTask(jobs.WelcomeEmailPayload{To: "new@test.local", FirstName: "New"})
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskTypeWelcomeEmail, task.Type())

	mailer := &stubMailer{}
	handler := jobs.HandleWelcomeEmailTask(slog.Default(), mailer)
	require.NoError(t, handler(context.Background(), task))
	assert.Equal(t, "new@test.local", mailer.to)
	assert.NotEmpty(t, mailer.subject)
}

func TestHandleWelcomeEmailTaskWithoutMailer(t *testing.T) {
	task, err := jobs.NewWelcomeEmailTask(jobs.WelcomeEmailPayload{To: "new@test.local"})
	require.NoError(t, err)

	handler := jobs.HandleWelcomeEmailTask(slog.Default(), nil)
	assert.NoError(t, handler(context.Background(), task), "missing mailer is not a task failure")
}

func TestHandleSessionPruneTask(t *testing.T) {
	pruner := &stubPruner{removed: 3}
	handler := jobs.HandleSessionPruneTask(slog.Default(), pruner)

	require.NoError(t, handler(context.Background(), jobs.NewSessionPruneTask()))
	assert.False(t, pruner.before.IsZero())

	pruner.err = errors.New("db down")
	assert.Error(t, handler(context.Background(), jobs.NewSessionPruneTask()), "store failures propagate for retry")
}

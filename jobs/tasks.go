package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeWelcomeEmail is the task type for the post-signup welcome email.
	TaskTypeWelcomeEmail = "mail:welcome"
	// TaskTypeSessionPrune is the task type for pruning expired login session audit records.
	TaskTypeSessionPrune = "sessions:prune"
)

// WelcomeEmailPayload describes the information required to greet a new account.
type WelcomeEmailPayload struct {
	To        string `json:"to"`
	FirstName string `json:"first_name"`
}

// NewWelcomeEmailTask constructs an Asynq task for the welcome email.
func NewWelcomeEmailTask(payload WelcomeEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeWelcomeEmail, data), nil
}

// NewSessionPruneTask constructs the periodic session prune task.
func NewSessionPruneTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSessionPrune, nil)
}

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// HandleWelcomeEmailTask processes TaskTypeWelcomeEmail tasks.
func HandleWelcomeEmailTask(logger *slog.Logger, mailer Mailer) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload WelcomeEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if mailer == nil {
			logger.Info("welcome email skipped, no mailer configured", slog.String("to", payload.To))
			return nil
		}
		return mailer.Send(ctx, payload.To, "Welcome to Memberdesk", "Hi "+payload.FirstName+", your account is ready.")
	}
}

// SessionPruner removes expired login session audit records.
type SessionPruner interface {
	DeleteExpiredLoginSessions(ctx context.Context, before time.Time) (int64, error)
}

// HandleSessionPruneTask processes TaskTypeSessionPrune tasks.
func HandleSessionPruneTask(logger *slog.Logger, pruner SessionPruner) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		removed, err := pruner.DeleteExpiredLoginSessions(ctx, time.Now())
		if err != nil {
			return err
		}
		logger.Info("pruned expired login sessions", slog.Int64("removed", removed))
		return nil
	}
}

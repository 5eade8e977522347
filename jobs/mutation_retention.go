package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// MutationPruner deletes mutation records older than the cutoff.
type MutationPruner interface {
	DeleteMutationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// MutationRetentionJob prunes old mutation records so replay storage stays
// bounded. Idempotency keys older than the retention window stop replaying;
// clients retry within minutes, not months.
type MutationRetentionJob struct {
	Pruner MutationPruner
	Logger *slog.Logger
	clock  func() time.Time
}

// NewMutationRetentionJob initialises the retention handler.
func NewMutationRetentionJob(pruner MutationPruner, logger *slog.Logger) *MutationRetentionJob {
	return &MutationRetentionJob{
		Pruner: pruner,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the retention pass.
func (j *MutationRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pruner == nil {
		return errors.New("mutation retention: handler not configured")
	}
	var payload MutationRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionHours <= 0 {
		payload.RetentionHours = 90 * 24
	}

	cutoff := j.clock().Add(-time.Duration(payload.RetentionHours) * time.Hour)
	deleted, err := j.Pruner.DeleteMutationsBefore(ctx, cutoff)
	logger := j.logger()
	if err != nil {
		logger.Error("prune mutation records", slog.Any("error", err))
		return err
	}
	logger.Info("pruned mutation records",
		slog.Int64("deleted", deleted),
		slog.Time("cutoff", cutoff),
	)
	return nil
}

func (j *MutationRetentionJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

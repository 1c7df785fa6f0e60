// Package tasks runs detached background work. A task is scheduled but
// never awaited by the submitting request; its outcome is observable only
// through logs and the task record kept in Redis.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"contentmod/api/internal/config"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

const recordKeyPrefix = "moderation:task:"

// Func is one unit of detached work. The context it receives belongs to
// the runner, not to the request that scheduled it.
type Func func(ctx context.Context) error

type Runner struct {
	records   *redis.Client
	recordTTL time.Duration
	log       zerolog.Logger
	sem       chan struct{}
	wg        sync.WaitGroup
}

func NewRunner(records *redis.Client, cfg config.TasksConfig, log zerolog.Logger) *Runner {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		records:   records,
		recordTTL: cfg.RecordTTL,
		log:       log,
		sem:       make(chan struct{}, workers),
	}
}

// Submit schedules fn and returns immediately with the task id. Panics and
// errors inside fn are recorded and logged; they never reach the caller.
func (r *Runner) Submit(taskType string, requestID int64, fn Func) string {
	taskID := ksuid.New().String()

	r.writeRecord(taskID, map[string]any{
		"type":        taskType,
		"request_id":  requestID,
		"status":      string(StatusQueued),
		"enqueued_at": time.Now().UTC().Format(time.RFC3339),
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		r.sem <- struct{}{}
		defer func() { <-r.sem }()

		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error().
					Str("task_id", taskID).
					Str("task_type", taskType).
					Int64("request_id", requestID).
					Interface("panic", rec).
					Msg("background task panicked")
				r.finishRecord(taskID, StatusFailed, fmt.Sprintf("panic: %v", rec))
			}
		}()

		r.writeRecord(taskID, map[string]any{
			"status":     string(StatusRunning),
			"started_at": time.Now().UTC().Format(time.RFC3339),
		})

		if err := fn(context.Background()); err != nil {
			r.log.Error().
				Err(err).
				Str("task_id", taskID).
				Str("task_type", taskType).
				Int64("request_id", requestID).
				Msg("background task failed")
			r.finishRecord(taskID, StatusFailed, err.Error())
			return
		}

		r.finishRecord(taskID, StatusSucceeded, "")
	}()

	return taskID
}

// Drain blocks until every in-flight task finishes or ctx expires.
func (r *Runner) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) finishRecord(taskID string, status Status, errText string) {
	fields := map[string]any{
		"status":      string(status),
		"finished_at": time.Now().UTC().Format(time.RFC3339),
	}
	if errText != "" {
		fields["error"] = errText
	}
	r.writeRecord(taskID, fields)
}

func (r *Runner) writeRecord(taskID string, fields map[string]any) {
	if r.records == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := recordKeyPrefix + taskID
	if err := r.records.HSet(ctx, key, fields).Err(); err != nil {
		r.log.Warn().Err(err).Str("task_id", taskID).Msg("task record write failed")
		return
	}
	if r.recordTTL > 0 {
		if err := r.records.Expire(ctx, key, r.recordTTL).Err(); err != nil {
			r.log.Warn().Err(err).Str("task_id", taskID).Msg("task record expire failed")
		}
	}
}

// Package tasks runs delayed jobs on asynq: payment reconciliation checks
// scheduled when an asynchronous payment is dispatched.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"hotelbooking/internal/app/schedule"
)

const defaultQueue = "payments"

// Enqueuer is the part of *asynq.Client the scheduler needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Scheduler implements schedule.Scheduler on top of an asynq client.
type Scheduler struct {
	Client   Enqueuer
	Queue    string
	MaxRetry int
}

func NewScheduler(client Enqueuer) *Scheduler {
	return &Scheduler{Client: client, Queue: defaultQueue, MaxRetry: 5}
}

// Schedule enqueues name to run at runAt. A task with the same name and
// payload that is already queued is not duplicated.
func (s *Scheduler) Schedule(ctx context.Context, name string, payload any, runAt time.Time) error {
	if s.Client == nil {
		return errors.New("tasks: scheduler client missing")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("tasks: encode %s payload: %w", name, err)
	}
	task := asynq.NewTask(name, body)
	opts := []asynq.Option{
		asynq.ProcessAt(runAt),
		asynq.Queue(s.queue()),
		asynq.MaxRetry(s.maxRetry()),
		asynq.TaskID(taskID(name, body)),
	}
	_, err = s.Client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

func taskID(name string, body []byte) string {
	if name == schedule.TaskReconcilePayment {
		var p schedule.ReconcilePaymentPayload
		if err := json.Unmarshal(body, &p); err == nil && p.BookingID != "" {
			return name + ":" + p.BookingID
		}
	}
	return name + ":" + string(body)
}

func (s *Scheduler) queue() string {
	if s.Queue != "" {
		return s.Queue
	}
	return defaultQueue
}

func (s *Scheduler) maxRetry() int {
	if s.MaxRetry > 0 {
		return s.MaxRetry
	}
	return 5
}

var _ schedule.Scheduler = (*Scheduler)(nil)

// Package worker is the queue-consuming loop behind the bulk upload API:
// it pops tasks from Redis, runs a full verification for each, and writes
// the result to PostgreSQL.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"verimail"
	"verimail/internal/queue"
	"verimail/internal/store"
)

// taskTimeout bounds one verification, SMTP retries included.
const taskTimeout = 60 * time.Second

// Runner wires the queue, the store and a shared Verifier.
type Runner struct {
	queue    *queue.Client
	store    *store.Store
	verifier *verimail.Verifier
	opts     verimail.Params
}

// New builds a runner. opts applies to every task; EmailAddress is filled
// per task.
func New(q *queue.Client, s *store.Store, v *verimail.Verifier, opts verimail.Params) *Runner {
	return &Runner{queue: q, store: s, verifier: v, opts: opts}
}

// Run consumes tasks until ctx is cancelled. Failures on a single task
// are logged and skipped; the loop itself only stops with ctx.
func (r *Runner) Run(ctx context.Context) error {
	log.Println("[INFO] worker: started, waiting for tasks")

	for {
		task, err := r.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[ERROR] worker: dequeue failed: %v", err)
			select {
			case <-time.After(1 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		r.process(ctx, task)
	}
}

func (r *Runner) process(ctx context.Context, task queue.Task) {
	taskCtx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	opts := r.opts
	opts.EmailAddress = task.Email

	result, err := r.verifier.Verify(taskCtx, opts)
	if err != nil {
		// Only programmer errors reach here (empty address in a task).
		log.Printf("[ERROR] worker: unverifiable task %+v: %v", task, err)
		if errors.Is(err, verimail.ErrNoEmailAddress) {
			return
		}
	}

	payload, err := json.Marshal(result)
	if err != nil {
		log.Printf("[ERROR] worker: marshal result for %s: %v", task.Email, err)
		return
	}

	if err := r.store.SaveResult(ctx, task.JobID, task.Email, string(result.Reachability), payload); err != nil {
		log.Printf("[ERROR] worker: save result for %s: %v", task.Email, err)
		return
	}

	log.Printf("[INFO] worker: processed %s (%s)", task.Email, result.Reachability)
}

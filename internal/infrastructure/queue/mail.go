// Package queue moves verification mail off the request path with asynq.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/go-api-auth/internal/infrastructure/smtp"
)

// TypeSendCode is the asynq task type for verification code emails.
const TypeSendCode = "mail:send_code"

// SendCodePayload is the task body.
type SendCodePayload struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// MailQueue enqueues code emails. It satisfies the auth service's dispatcher.
type MailQueue struct {
	client  enqueuer
	queue   string
	timeout time.Duration
}

func NewMailQueue(client enqueuer, queue string) *MailQueue {
	return &MailQueue{client: client, queue: queue, timeout: 2 * time.Second}
}

// Dispatch enqueues a send-code task. Failures are logged, never returned.
func (q *MailQueue) Dispatch(ctx context.Context, email, code string) {
	body, err := json.Marshal(SendCodePayload{Email: email, Code: code})
	if err != nil {
		slog.ErrorContext(ctx, "encode mail task", "err", err)
		return
	}
	// the request may finish before the enqueue does
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.timeout)
	defer cancel()
	task := asynq.NewTask(TypeSendCode, body, asynq.Queue(q.queue))
	if _, err := q.client.EnqueueContext(ctx, task, asynq.MaxRetry(3), asynq.Timeout(30*time.Second)); err != nil {
		slog.ErrorContext(ctx, "enqueue verification email", "err", err)
	}
}

// Worker consumes send-code tasks and delivers them through the mailer.
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	mailer   smtp.Mailer
	validity time.Duration
}

func NewWorker(opt asynq.RedisConnOpt, queue string, concurrency int, mailer smtp.Mailer, validity time.Duration) *Worker {
	w := &Worker{
		server: asynq.NewServer(opt, asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{queue: 1},
		}),
		mux:      asynq.NewServeMux(),
		mailer:   mailer,
		validity: validity,
	}
	w.mux.HandleFunc(TypeSendCode, w.HandleSendCode)
	return w
}

// Start runs the worker in the background.
func (w *Worker) Start() error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start mail worker: %w", err)
	}
	return nil
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

// HandleSendCode delivers one verification email. A malformed payload is
// skipped rather than retried.
func (w *Worker) HandleSendCode(ctx context.Context, t *asynq.Task) error {
	var p SendCodePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil || p.Email == "" || p.Code == "" {
		slog.WarnContext(ctx, "drop malformed mail task", "err", err)
		return fmt.Errorf("malformed payload: %w", asynq.SkipRetry)
	}
	subject, body := smtp.CodeMessage(p.Code, w.validity)
	if err := w.mailer.SendEmail(p.Email, subject, body); err != nil {
		slog.WarnContext(ctx, "send verification email", "err", err)
		return err
	}
	return nil
}

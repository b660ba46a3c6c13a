package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/pkg/models"
	"go.uber.org/zap"
)

// Completer sends one chat request to the model and returns the reply text.
// Implementations classify failures as HTTPStatusError, TransportError,
// ReadError or ErrNotConfigured.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// JobKind distinguishes the two prompt shapes.
type JobKind int

const (
	JobTriage JobKind = iota + 1
	JobEdit
)

func (k JobKind) String() string {
	if k == JobEdit {
		return "edit"
	}
	return "triage"
}

// Job is a self-contained request for the worker. It carries snapshots so
// the worker never touches the live task list.
type Job struct {
	Kind JobKind

	// Triage fields.
	Raw           string
	TriageContext string
	Owner         string
	History       []string

	// Edit fields.
	TaskID       uuid.UUID
	Snapshot     string
	Instruction  string
	LockBucket   bool
	LockPriority bool
	LockDueDate  bool

	Context []ContextTask
	Buckets []models.BucketDef
	Today   civil.Date
}

// Result is what the worker posts back for exactly one job.
type Result struct {
	Kind     JobKind
	TaskID   uuid.UUID
	Update   Update
	Err      error
	Triage   *Action
	SubTasks []SubSpec

	// Copied from the job so the applier can honour locks and fall back
	// to local routing.
	Raw          string
	Instruction  string
	LockBucket   bool
	LockPriority bool
	LockDueDate  bool
}

// IsEdit reports whether the result answers an edit job.
func (r Result) IsEdit() bool { return r.Kind == JobEdit }

// Worker runs AI jobs one at a time on a single goroutine, in FIFO order,
// with one model round-trip per job and no retries.
type Worker struct {
	client  Completer
	logger  *zap.Logger
	jobs    *queue[Job]
	results *queue[Result]

	pending   atomic.Int64
	startOnce sync.Once
	done      chan struct{}
}

// NewWorker creates a stopped worker. Call Start to begin processing.
func NewWorker(client Completer, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		client:  client,
		logger:  logger,
		jobs:    newQueue[Job](),
		results: newQueue[Result](),
		done:    make(chan struct{}),
	}
}

// Start launches the worker goroutine. It stops when ctx is cancelled;
// an in-flight request is cancelled with it.
func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		go w.run(ctx)
	})
}

// Wait blocks until the worker goroutine has exited.
func (w *Worker) Wait() { <-w.done }

// Enqueue schedules a job. It never blocks.
func (w *Worker) Enqueue(job Job) {
	w.pending.Add(1)
	w.jobs.Push(job)
}

// Pending reports how many enqueued jobs have results not yet taken by
// Drain or Next.
func (w *Worker) Pending() int { return int(w.pending.Load()) }

// Drain returns every result that is ready, without blocking.
func (w *Worker) Drain() []Result {
	out := w.results.Drain()
	w.pending.Add(-int64(len(out)))
	return out
}

// Next blocks for the next result.
func (w *Worker) Next(ctx context.Context) (Result, error) {
	r, ok := w.results.Pop(ctx)
	if !ok {
		return Result{}, ctx.Err()
	}
	w.pending.Add(-1)
	return r, nil
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	for {
		job, ok := w.jobs.Pop(ctx)
		if !ok {
			return
		}
		w.results.Push(w.process(ctx, job))
	}
}

func (w *Worker) process(ctx context.Context, job Job) Result {
	r := Result{
		Kind:         job.Kind,
		TaskID:       job.TaskID,
		Raw:          job.Raw,
		Instruction:  job.Instruction,
		LockBucket:   job.LockBucket,
		LockPriority: job.LockPriority,
		LockDueDate:  job.LockDueDate,
	}

	var prompt Prompt
	if job.Kind == JobEdit {
		prompt = EditPrompt(job.Today, job.Snapshot, job.Instruction, job.Context, job.Buckets)
	} else {
		prompt = TriagePrompt(job.Today, job.Owner, job.Raw, job.TriageContext, job.Buckets, job.History)
	}

	start := time.Now()
	content, err := w.client.Complete(ctx, prompt.Messages())
	elapsed := time.Since(start)
	if err != nil {
		r.Err = classify(err)
		w.logger.Warn("ai request failed",
			zap.String("kind", job.Kind.String()),
			zap.Duration("elapsed", elapsed),
			zap.Error(r.Err))
		return r
	}
	w.logger.Debug("ai request completed",
		zap.String("kind", job.Kind.String()),
		zap.Duration("elapsed", elapsed),
		zap.Int("bytes", len(content)))

	names := make([]string, len(job.Buckets))
	for i, b := range job.Buckets {
		names[i] = b.Name
	}

	if job.Kind == JobEdit {
		resp, err := ParseEdit(content, job.Context, names)
		if err != nil {
			r.Err = err
			return r
		}
		r.Update = resp.Update
		r.SubTasks = resp.SubTasks
		return r
	}

	resp, err := ParseTriage(content, job.Context, names)
	if err != nil {
		r.Err = err
		return r
	}
	r.Triage = &resp.Action
	r.Update = resp.Update
	r.SubTasks = resp.SubTasks
	return r
}

// classify maps client errors onto the worker's error taxonomy.
func classify(err error) error {
	var (
		httpErr *HTTPStatusError
		tErr    *TransportError
		rErr    *ReadError
	)
	switch {
	case errors.Is(err, ErrNotConfigured),
		errors.As(err, &httpErr),
		errors.As(err, &tErr),
		errors.As(err, &rErr):
		return err
	}
	return &TransportError{Err: err}
}

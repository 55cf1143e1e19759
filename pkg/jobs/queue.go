package jobs

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stampforge/pkg/errors"
	"github.com/matzehuels/stampforge/pkg/fsutil"
	"github.com/matzehuels/stampforge/pkg/observability"
	"github.com/matzehuels/stampforge/pkg/pipeline"
)

// QueueConfig configures a Queue.
type QueueConfig struct {
	// Dir holds one subdirectory per job with the upload and the STL.
	Dir string

	// Workers is the number of concurrent conversions (default 2).
	Workers int

	// Backlog is the number of jobs that may wait for a worker (default 64).
	Backlog int

	// Timeout bounds a single conversion (default 2 minutes).
	Timeout time.Duration

	// Options are passed to every conversion.
	Options pipeline.Options
}

// Queue accepts uploads and converts them in the background.
type Queue struct {
	store  Store
	runner *pipeline.Runner
	cfg    QueueConfig
	logger *log.Logger

	pending chan string
	wg      sync.WaitGroup
	once    sync.Once
	stopped chan struct{}
}

// NewQueue creates a queue. Call Start to launch the workers.
func NewQueue(store Store, runner *pipeline.Runner, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Queue{
		store:   store,
		runner:  runner,
		cfg:     cfg,
		logger:  runner.Logger.WithPrefix("jobs"),
		pending: make(chan string, cfg.Backlog),
		stopped: make(chan struct{}),
	}
}

// Store returns the underlying job store.
func (q *Queue) Store() Store { return q.store }

// Start launches the workers. They exit when ctx is done or Stop is called.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work(ctx)
	}
}

// Stop stops accepting work and waits for running conversions to finish.
// Jobs still waiting in the backlog stay queued in the store.
func (q *Queue) Stop() {
	q.once.Do(func() { close(q.stopped) })
	q.wg.Wait()
}

// Submit stores the upload, records a queued job and schedules it.
func (q *Queue) Submit(ctx context.Context, filename string, data []byte) (*Job, error) {
	if err := errors.ValidateUploadFilename(filename); err != nil {
		return nil, err
	}
	select {
	case <-q.stopped:
		return nil, errors.New(errors.ErrCodeUnsupported, "queue is shut down")
	default:
	}

	job := NewJob(q.cfg.Dir, filename)
	if err := os.MkdirAll(filepath.Dir(job.Upload), 0755); err != nil {
		return nil, storageErr(err, "create job directory")
	}
	if err := fsutil.WriteFileAtomic(job.Upload, data, 0644); err != nil {
		return nil, storageErr(err, "store upload")
	}
	if err := q.store.Create(ctx, job); err != nil {
		return nil, err
	}

	select {
	case q.pending <- job.ID:
	default:
		job.fail(errors.New(errors.ErrCodeTimeout, "conversion backlog is full"))
		q.logger.Warn("backlog full, delivering original", "job", job.ID, "file", filename)
		if err := q.store.Update(context.WithoutCancel(ctx), job); err != nil {
			q.logger.Error("record result", "job", job.ID, "error", err)
		}
		return job, job.asError()
	}
	observability.Jobs().OnJobQueued(ctx, job.ID)
	q.logger.Info("queued", "job", job.ID, "file", filename, "bytes", len(data))
	return job, nil
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopped:
			return
		case id := <-q.pending:
			q.process(ctx, id)
		}
	}
}

// process runs one conversion. Failures are recorded on the job and logged;
// the upload remains the deliverable.
func (q *Queue) process(ctx context.Context, id string) {
	start := time.Now()
	job, err := q.store.Get(ctx, id)
	if err != nil {
		q.logger.Error("load job", "job", id, "error", err)
		return
	}
	job.Status = StatusRunning
	job.UpdatedAt = time.Now().UTC()
	if err := q.store.Update(ctx, job); err != nil {
		q.logger.Error("mark running", "job", id, "error", err)
		return
	}

	convCtx, cancel := context.WithTimeout(ctx, q.cfg.Timeout)
	result, err := q.runner.GenerateSolid(convCtx, job.Upload, job.Output, q.cfg.Options)
	cancel()

	if err != nil {
		job.fail(err)
		q.logger.Warn("conversion failed, delivering original",
			"job", id, "code", job.ErrorCode, "error", err)
	} else {
		job.succeed(result.Triangles, result.CacheHit)
		q.logger.Info("converted", "job", id, "triangles", result.Triangles, "duration", time.Since(start))
	}

	// The job must reach a terminal state even when ctx is already done.
	if uerr := q.store.Update(context.WithoutCancel(ctx), job); uerr != nil {
		q.logger.Error("record result", "job", id, "error", uerr)
	}
	observability.Jobs().OnJobFinished(ctx, id, string(job.Status), time.Since(start), err)
}

// asError rebuilds a failed job's error.
func (j *Job) asError() error {
	if j.Status != StatusFailed {
		return nil
	}
	return errors.New(errors.Code(j.ErrorCode), "%s", j.Error)
}

// Package jobs tracks conversions submitted to the service and runs them on a
// background worker pool.
//
// A job starts with the uploaded original as its deliverable. When the
// conversion succeeds the deliverable becomes the generated STL; when it
// fails the failure is recorded and the original stays downloadable, so a
// customer always receives a file.
//
// Three [Store] implementations are provided:
//   - [MemoryStore]: process-local, for tests and single-shot servers
//   - [SQLiteStore]: a single file, schema managed by golang-migrate
//   - [MongoStore]: shared across service instances
package jobs

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/stampforge/pkg/errors"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Done reports whether s is terminal.
func (s Status) Done() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Job is one submitted conversion.
type Job struct {
	ID       string `json:"id" bson:"_id"`
	Filename string `json:"filename" bson:"filename"`
	Status   Status `json:"status" bson:"status"`

	// Upload is where the original image is stored; Output is where the STL
	// goes once the conversion succeeds.
	Upload string `json:"-" bson:"upload"`
	Output string `json:"-" bson:"output"`

	// Deliverable is the file served for download.
	Deliverable string `json:"-" bson:"deliverable"`

	Triangles int    `json:"triangles,omitempty" bson:"triangles"`
	CacheHit  bool   `json:"cache_hit,omitempty" bson:"cache_hit"`
	ErrorCode string `json:"error_code,omitempty" bson:"error_code"`
	Error     string `json:"error,omitempty" bson:"error"`

	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
	FinishedAt time.Time `json:"finished_at,omitzero" bson:"finished_at"`
}

// NewJob creates a queued job for an upload stored under dir.
func NewJob(dir, filename string) *Job {
	id := uuid.NewString()
	now := time.Now().UTC()
	upload := filepath.Join(dir, id, filename)
	return &Job{
		ID:          id,
		Filename:    filename,
		Status:      StatusQueued,
		Upload:      upload,
		Output:      filepath.Join(dir, id, stlName(filename)),
		Deliverable: upload,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// DeliverableName is the filename offered to the client on download.
func (j *Job) DeliverableName() string {
	return filepath.Base(j.Deliverable)
}

func (j *Job) succeed(triangles int, cached bool) {
	j.Status = StatusSucceeded
	j.Deliverable = j.Output
	j.Triangles = triangles
	j.CacheHit = cached
	j.finish()
}

func (j *Job) fail(err error) {
	j.Status = StatusFailed
	j.Deliverable = j.Upload
	j.ErrorCode = string(errors.GetCode(err))
	j.Error = errors.UserMessage(err)
	j.finish()
}

func (j *Job) finish() {
	j.FinishedAt = time.Now().UTC()
	j.UpdatedAt = j.FinishedAt
}

func stlName(filename string) string {
	return filename[:len(filename)-len(filepath.Ext(filename))] + ".stl"
}

// Store persists jobs.
type Store interface {
	// Create stores a new job. The ID must be unused.
	Create(ctx context.Context, job *Job) error

	// Get returns the job with id or a JOB_NOT_FOUND error.
	Get(ctx context.Context, id string) (*Job, error)

	// Update replaces a stored job.
	Update(ctx context.Context, job *Job) error

	// List returns up to limit jobs, newest first. A limit <= 0 means all.
	List(ctx context.Context, limit int) ([]*Job, error)

	Close() error
}

// DefaultListLimit bounds List calls made by the service.
const DefaultListLimit = 100

func notFound(id string) error {
	return errors.New(errors.ErrCodeJobNotFound, "job %s not found", id)
}

func storageErr(err error, format string, args ...any) error {
	return errors.Wrap(errors.ErrCodeStorage, err, format, args...)
}

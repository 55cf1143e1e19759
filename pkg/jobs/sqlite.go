package jobs

import (
	"context"
	"database/sql"
	"embed"
	stderrors "errors"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore persists jobs in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies pending
// migrations. Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storageErr(err, "open %s", path)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, storageErr(err, "configure %s", path)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return storageErr(err, "load migrations")
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return storageErr(err, "create sqlite driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return storageErr(err, "create migrate instance")
	}
	// m is not closed: that would close db.
	if err := m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return storageErr(err, "migrate up")
	}
	return nil
}

const jobColumns = `id, filename, status, upload, output, deliverable,
	triangles, cache_hit, error_code, error, created_at, updated_at, finished_at`

func (s *SQLiteStore) Create(ctx context.Context, job *Job) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Filename, string(job.Status), job.Upload, job.Output, job.Deliverable,
		job.Triangles, job.CacheHit, job.ErrorCode, job.Error,
		unixNano(job.CreatedAt), unixNano(job.UpdatedAt), unixNano(job.FinishedAt))
	if err != nil {
		return storageErr(err, "insert job %s", job.ID)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, storageErr(err, "load job %s", id)
	}
	return job, nil
}

func (s *SQLiteStore) Update(ctx context.Context, job *Job) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET filename = ?, status = ?, upload = ?, output = ?, deliverable = ?,
			triangles = ?, cache_hit = ?, error_code = ?, error = ?,
			created_at = ?, updated_at = ?, finished_at = ?
		WHERE id = ?`,
		job.Filename, string(job.Status), job.Upload, job.Output, job.Deliverable,
		job.Triangles, job.CacheHit, job.ErrorCode, job.Error,
		unixNano(job.CreatedAt), unixNano(job.UpdatedAt), unixNano(job.FinishedAt),
		job.ID)
	if err != nil {
		return storageErr(err, "update job %s", job.ID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(job.ID)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, storageErr(err, "list jobs")
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, storageErr(err, "scan job")
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "list jobs")
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (*Job, error) {
	var (
		j                          Job
		status                     string
		created, updated, finished int64
	)
	err := sc.Scan(&j.ID, &j.Filename, &status, &j.Upload, &j.Output, &j.Deliverable,
		&j.Triangles, &j.CacheHit, &j.ErrorCode, &j.Error, &created, &updated, &finished)
	if err != nil {
		return nil, err
	}
	j.Status = Status(status)
	j.CreatedAt = fromUnixNano(created)
	j.UpdatedAt = fromUnixNano(updated)
	j.FinishedAt = fromUnixNano(finished)
	return &j, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stampforge/pkg/cache"
	"github.com/matzehuels/stampforge/pkg/errors"
	"github.com/matzehuels/stampforge/pkg/jobs"
	"github.com/matzehuels/stampforge/pkg/pipeline"
	"github.com/matzehuels/stampforge/pkg/server"
)

// Job store backends accepted by --store.
const (
	storeMemory = "memory"
	storeSQLite = "sqlite"
	storeMongo  = "mongo"
)

// serveOpts holds the serve command flags.
type serveOpts struct {
	addr       string
	dataDir    string
	store      string
	sqlitePath string
	mongoURI   string
	mongoDB    string
	redisURL   string
	configPath string
	workers    int
	timeout    time.Duration
	maxUpload  int64
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	opts := &serveOpts{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upload-and-convert HTTP service",
		Long: `Run an HTTP service that accepts logo uploads, converts them in the
background and serves the resulting STL. When a conversion fails the
original upload is served instead.`,
		Example: `  stampforge serve --addr :8080
  stampforge serve --store sqlite --workers 4
  stampforge serve --store mongo --mongo-uri mongodb://localhost:27017 --redis-url redis://localhost:6379/0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "directory for uploads and STL files (default: XDG data dir)")
	cmd.Flags().StringVar(&opts.store, "store", storeSQLite, "job store: memory, sqlite or mongo")
	cmd.Flags().StringVar(&opts.sqlitePath, "sqlite-path", "", "SQLite database path (default: <data-dir>/jobs.db)")
	cmd.Flags().StringVar(&opts.mongoURI, "mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	cmd.Flags().StringVar(&opts.mongoDB, "mongo-db", appName, "MongoDB database name")
	cmd.Flags().StringVar(&opts.redisURL, "redis-url", "", "share the artifact cache through Redis")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "TOML config file")
	cmd.Flags().IntVar(&opts.workers, "workers", 2, "concurrent conversions")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "limit for a single conversion")
	cmd.Flags().Int64Var(&opts.maxUpload, "max-upload", server.DefaultMaxUpload, "largest accepted upload in bytes")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts *serveOpts) error {
	logger := loggerFromContext(ctx)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := opts.dataDir
	if dir == "" {
		if dir, err = dataDir(); err != nil {
			return fmt.Errorf("get data dir: %w", err)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeWrite, err, "create data dir %s", dir)
	}

	store, err := openStore(ctx, opts, dir)
	if err != nil {
		return err
	}
	defer store.Close()

	artifacts, keyer, err := serveCache(ctx, opts)
	if err != nil {
		return err
	}
	defer artifacts.Close()

	runner := pipeline.NewRunner(artifacts, keyer, logger)
	q := jobs.NewQueue(store, runner, jobs.QueueConfig{
		Dir:     filepath.Join(dir, "jobs"),
		Workers: opts.workers,
		Timeout: opts.timeout,
		Options: pipeline.Options{Config: cfg},
	})
	q.Start(ctx)
	defer q.Stop()

	logger.Info("serving",
		"addr", opts.addr,
		"store", opts.store,
		"workers", opts.workers,
		"data", dir)

	srv := server.New(q, logger.WithPrefix("http"), server.Config{
		Addr:      opts.addr,
		MaxUpload: opts.maxUpload,
	})
	return srv.ListenAndServe(ctx)
}

// openStore opens the job store selected by --store.
func openStore(ctx context.Context, opts *serveOpts, dir string) (jobs.Store, error) {
	switch opts.store {
	case storeMemory:
		return jobs.NewMemoryStore(), nil
	case storeSQLite:
		path := opts.sqlitePath
		if path == "" {
			path = filepath.Join(dir, "jobs.db")
		}
		return jobs.OpenSQLite(path)
	case storeMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return jobs.NewMongoStore(connectCtx, jobs.MongoConfig{
			URI:      opts.mongoURI,
			Database: opts.mongoDB,
		})
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput,
			"unknown store %q (want %s, %s or %s)", opts.store, storeMemory, storeSQLite, storeMongo)
	}
}

// serveCache returns the artifact cache for the service: Redis when
// --redis-url is set, otherwise the CLI's file cache.
func serveCache(ctx context.Context, opts *serveOpts) (cache.Cache, cache.Keyer, error) {
	if opts.redisURL == "" {
		c, err := newCache(false)
		return c, nil, err
	}
	c, err := cache.NewRedisCache(ctx, cache.RedisConfig{URL: opts.redisURL})
	if err != nil {
		return nil, nil, err
	}
	return c, cache.NewScopedKeyer(cache.NewDefaultKeyer(), appName), nil
}

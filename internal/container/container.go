package container

import (
	"context"
	"fmt"

	"tomoseq/adapters/postgres"
	"tomoseq/adapters/rng"
	"tomoseq/app"
	"tomoseq/internal"
	"tomoseq/internal/api"
	"tomoseq/internal/config"
	"tomoseq/internal/errors"
	"tomoseq/internal/migration"
	"tomoseq/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	// Repositories (data access layer); nil without a database
	RunRepo ports.PeakRunRepository

	RNG         ports.RNGPort
	Events      *api.EventHub
	PeakService *app.PeakService
}

// New creates a new dependency injection container. No connection is opened
// until InitDatabase is called.
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, errors.ConfigInvalid("config cannot be nil")
	}

	logger := internal.NewDefaultLogger()
	logger.SetLevel(cfg.LogLevel)

	c := &Container{
		Config: cfg,
		Logger: logger,
		RNG:    rng.New(),
		Events: api.NewEventHub(64, logger),
	}
	c.PeakService = app.NewPeakService(c.RNG, nil).WithLogger(logger).WithObserver(c.Events)
	return c, nil
}

// InitDatabase connects to the configured database, migrates it and switches
// the peak service to persisting runs. It is a no-op without DATABASE_URL.
func (c *Container) InitDatabase(ctx context.Context) error {
	if !c.Config.Database.Enabled() {
		c.Logger.Info("[Container] DATABASE_URL not set, runs will not be stored")
		return nil
	}

	db, err := Connect(ctx, c.Config.Database)
	if err != nil {
		return err
	}
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return errors.Wrap(err, "database migration failed")
	}

	c.DB = db
	c.RunRepo = postgres.NewPeakRunRepository(db)
	c.PeakService = app.NewPeakService(c.RNG, c.RunRepo).WithLogger(c.Logger).WithObserver(c.Events)
	c.Logger.Info("[Container] database connected, runs will be stored")
	return nil
}

// Connect opens and pings a PostgreSQL connection pool.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if !cfg.Enabled() {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.URL)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.DatabaseError("failed to ping database", err)
	}
	return db, nil
}

// APIServer builds the HTTP server over the container's service.
func (c *Container) APIServer() *api.Server {
	return api.NewServer(c.PeakService, c.RunRepo, api.Options{
		Defaults:    c.Config.Analysis,
		MaxBodySize: c.Config.Server.MaxBodySize,
		Events:      c.Events,
		Logger:      c.Logger,
	})
}

// Shutdown releases held resources.
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}

package daemon

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/piucane/piucane/internal/api"
	"github.com/piucane/piucane/internal/app/gamification"
	"github.com/piucane/piucane/internal/domain"
	"github.com/piucane/piucane/internal/health"
	"github.com/piucane/piucane/internal/infra/lock"
	"github.com/piucane/piucane/internal/infra/mongostore"
	"github.com/piucane/piucane/internal/infra/sqlite"
)

// Daemon is the core PiùCane runtime. It wires together all services.
type Daemon struct {
	Config  Config
	Store   domain.Store
	Locker  domain.Locker
	Service *gamification.Service
	Server  *api.Server
	Health  *health.Checker

	logFile *os.File
	cancel  context.CancelFunc
}

// New creates and initializes a Daemon from the config file.
func New(ctx context.Context) (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(ctx context.Context, cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, err
	}

	d := &Daemon{Config: cfg}
	if err := d.setupLogging(); err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	d.Store = store

	locker, err := openLocker(ctx, cfg.Lock)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("open lock: %w", err)
	}
	d.Locker = locker

	d.Service = gamification.NewService(store, locker, engineCfg)

	dataDir := ""
	if cfg.Storage.Driver == "sqlite" {
		dataDir = cfg.Storage.Dir
	}
	d.Health = health.NewChecker(store, locker, dataDir, parseDuration(cfg.Telemetry.HealthInterval, 60*time.Second))

	d.Server = api.NewServer(d.Service)
	d.Server.SetHealth(d.Health)
	d.Server.SetCORSOrigins(cfg.API.CORSOrigins)
	if cfg.Telemetry.Prometheus {
		d.Server.EnableMetrics()
	}

	log.Printf("[daemon] storage=%s lock=%s timezone=%s", cfg.Storage.Driver, cfg.Lock.Driver, engineCfg.Location)
	return d, nil
}

func openStore(ctx context.Context, cfg StorageConfig) (domain.Store, error) {
	switch cfg.Driver {
	case "mongo":
		return mongostore.Open(ctx, mongostore.Config{URI: cfg.MongoURI, Database: cfg.MongoDatabase})
	default:
		dir := cfg.Dir
		if dir == "" {
			dir = piucaneHome()
		}
		return sqlite.Open(dir)
	}
}

func openLocker(ctx context.Context, cfg LockConfig) (domain.Locker, error) {
	if cfg.Driver != "redis" {
		return lock.NewLocal(), nil
	}
	rc := lock.DefaultRedisConfig()
	rc.Addr = cfg.RedisAddr
	rc.Password = cfg.RedisPassword
	rc.DB = cfg.RedisDB
	rc.TTL = parseDuration(cfg.TTL, rc.TTL)
	return lock.NewRedis(ctx, rc)
}

// setupLogging tees the standard logger into the configured log file.
func (d *Daemon) setupLogging() error {
	path := d.Config.Logging.File
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	d.logFile = f
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	engineCfg, err := d.Config.EngineConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Background services
	go d.Health.Run(ctx)
	go d.Service.RunExpiry(ctx, engineCfg.ExpirySweep)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			log.Printf("[daemon] shutting down")
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	fmt.Printf("PiùCane serving on http://%s\n", addr)
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Store != nil {
		_ = d.Store.Close()
	}
	if c, ok := d.Locker.(io.Closer); ok {
		_ = c.Close()
	}
	if d.logFile != nil {
		log.SetOutput(os.Stderr)
		_ = d.logFile.Close()
	}
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	timeloginadapter "timelog/internal/modules/timelog/adapter/in"
	timelogoutadapter "timelog/internal/modules/timelog/adapter/out"
	timelogout "timelog/internal/modules/timelog/port/out"
	timelogservice "timelog/internal/modules/timelog/service"
	timelogusecase "timelog/internal/modules/timelog/usecase"
	"timelog/internal/platform/clock"
	"timelog/internal/platform/config"
	"timelog/internal/platform/logging"
	"timelog/internal/platform/metrics"
	"timelog/internal/platform/tx"
	"timelog/internal/server"
	uiapp "timelog/internal/ui/app"
)

type App struct {
	Config  config.Config
	Logger  *zap.Logger
	LogCLI  timeloginadapter.CLIHandler
	LogHTTP timeloginadapter.HTTPHandler

	metrics  *metrics.Metrics
	registry *prometheus.Registry
	closers  []io.Closer
}

func New(cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("new logger: %w", err)
	}
	return NewWithLogger(cfg, logger)
}

// NewWithLogger wires the application around an existing logger.
func NewWithLogger(cfg config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	clk := clock.SystemClock{}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	store, closers, err := newProjectStore(cfg.Store, logger.Named("store"))
	if err != nil {
		return nil, err
	}

	var txm tx.Manager = tx.NoopManager{}
	if cfg.Tracking.AtomicActivation {
		if manager, ok := store.(tx.Manager); ok {
			txm = manager
		} else {
			logger.Warn("store does not support transactions, atomic activation disabled",
				zap.String("driver", cfg.Store.Driver))
		}
	}

	logSvc := timelogservice.NewLogService(
		clk,
		store,
		txm,
		timelogoutadapter.NewPrometheusSessionRecorder(m),
		logger.Named("log"),
	)
	logUC := timelogusecase.NewInteractor(logSvc, clk, m)

	logger.Debug("application wired",
		zap.String("driver", cfg.Store.Driver),
		zap.Bool("atomic_activation", cfg.Tracking.AtomicActivation),
	)

	return &App{
		Config:   cfg,
		Logger:   logger,
		LogCLI:   timeloginadapter.NewCLIHandler(logUC),
		LogHTTP:  timeloginadapter.NewHTTPHandler(logUC),
		metrics:  m,
		registry: registry,
		closers:  closers,
	}, nil
}

func newProjectStore(cfg config.StoreConfig, logger *zap.Logger) (timelogout.ProjectStore, []io.Closer, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err := timelogoutadapter.NewSQLiteProjectStore(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("new sqlite project store: %w", err)
		}
		return store, []io.Closer{store}, nil
	case config.DriverVault:
		return timelogoutadapter.NewVaultProjectStore(cfg.DataDir, logger), nil, nil
	case config.DriverMemory:
		return timelogoutadapter.NewMemoryProjectStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

// watchTarget names the directory (and, for SQLite, the file) that changes
// when another process writes to the store. The memory store has none.
func (a *App) watchTarget() (dir, file string, ok bool) {
	switch a.Config.Store.Driver {
	case config.DriverSQLite:
		if a.Config.Store.DBPath == ":memory:" {
			return "", "", false
		}
		return filepath.Dir(a.Config.Store.DBPath), filepath.Base(a.Config.Store.DBPath), true
	case config.DriverVault:
		return timelogoutadapter.ProjectsDir(a.Config.Store.DataDir), "", true
	default:
		return "", "", false
	}
}

// NewServer builds the HTTP server for the wired application.
func (a *App) NewServer() (*server.Server, error) {
	return server.New(a.Config.Server, a.LogHTTP, a.Logger.Named("http"), a.metrics, a.registry)
}

// Close releases the store and flushes the logger.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}

// Serve runs the HTTP server until ctx is done, then shuts it down within the
// configured timeout.
func Serve(ctx context.Context, app *App) error {
	srv, err := app.NewServer()
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return <-errCh
}

func RunTUI(app *App) error {
	model := uiapp.NewModel(app.LogCLI)
	if dir, file, ok := app.watchTarget(); ok {
		w, err := uiapp.NewStoreWatcher(dir, file)
		if err != nil {
			app.Logger.Warn("live reload disabled", zap.Error(err))
		} else {
			defer w.Close()
			model = model.WithWatcher(w)
		}
	}
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

// Package app wires the enricher service: store, reference-data client,
// enrichment engine, job manager and HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/farmaops/catalog-enricher/internal/config"
	"github.com/farmaops/catalog-enricher/internal/enrich"
	"github.com/farmaops/catalog-enricher/internal/httpapi"
	"github.com/farmaops/catalog-enricher/internal/job"
	"github.com/farmaops/catalog-enricher/internal/model"
	"github.com/farmaops/catalog-enricher/internal/obs"
	"github.com/farmaops/catalog-enricher/internal/refdata"
	"github.com/farmaops/catalog-enricher/internal/store"
	"github.com/farmaops/catalog-enricher/pkg/pipeline/worker"
)

// App holds the assembled service.
type App struct {
	cfg     config.Config
	store   store.Store
	manager *job.Manager
	server  *http.Server
}

// New assembles the service from configuration.
func New(cfg config.Config) (*App, error) {
	st, err := store.OpenSQLite(cfg.StoreDSN)
	if err != nil {
		return nil, err
	}

	client, err := refdata.NewClient(refdata.ClientConfig{
		BaseURL:        cfg.Refdata.BaseURL,
		Username:       cfg.Refdata.Username,
		Password:       cfg.Refdata.Password,
		RateLimitRPS:   cfg.Refdata.RateLimitRPS,
		RequestTimeout: cfg.Refdata.RequestTimeout,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	lookup := refdata.NewService(client, cfg.CacheCapacity, cfg.CacheTTL,
		refdata.WithRetries(cfg.EnrichMaxRetries))

	engine := enrich.NewEngine(lookup, worker.Options{
		Workers:    cfg.EnrichWorkers,
		MaxRetries: cfg.EnrichMaxRetries,
		// One product performs a dozen-plus rate-limited remote calls, so
		// its budget must be much wider than the per-call timeout the
		// client already enforces.
		RequestTimeout: 5 * time.Minute,
		// The pool shares the client's limiter so the remote rate cap holds
		// across retries and workers alike.
		Limiter: client.Limiter(),
	}, obs.Logger)

	queue := job.NewQueue(cfg.QueueCapacity)
	w := job.NewWorker(st, engine, obs.Logger)
	manager := job.NewManager(queue, w, job.Options{
		Workers:     cfg.QueueWorkers,
		MaxAttempts: cfg.JobMaxAttempts,
		Backoff:     cfg.JobBackoff,
	}, obs.Logger)

	api := httpapi.NewServer(manager, obs.Logger)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{cfg: cfg, store: st, manager: manager, server: server}, nil
}

// Run starts the job workers and the HTTP server and blocks until the
// context is cancelled, then drains in-flight work within the shutdown
// timeout.
func (a *App) Run(ctx context.Context) error {
	a.manager.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		obs.Logger.Info("http server listening", "addr", a.cfg.HTTPAddr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		a.manager.Stop()
		_ = a.store.Close()
		return err
	case <-ctx.Done():
	}

	obs.Logger.Info("shutting down", "timeout", a.cfg.ShutdownTimeout)
	shutCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutCtx); err != nil {
		obs.Logger.Error("http shutdown failed", "error", err)
	}
	a.manager.Stop()
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// RunOnce processes a single job synchronously without the HTTP surface,
// for one-shot command-line invocations.
func (a *App) RunOnce(ctx context.Context, j model.Job) error {
	queued, err := a.manager.Submit(j)
	if err != nil {
		_ = a.store.Close()
		return err
	}
	a.manager.Start(ctx)
	a.manager.Stop()

	for _, failed := range a.manager.FailedJobs() {
		if failed.ID == queued.ID {
			_ = a.store.Close()
			return fmt.Errorf("job failed: %s", failed.LastError)
		}
	}
	return a.store.Close()
}

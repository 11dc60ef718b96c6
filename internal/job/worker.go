package job

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/farmaops/catalog-enricher/internal/catalog"
	"github.com/farmaops/catalog-enricher/internal/emit"
	"github.com/farmaops/catalog-enricher/internal/enrich"
	"github.com/farmaops/catalog-enricher/internal/model"
	"github.com/farmaops/catalog-enricher/internal/obs"
	"github.com/farmaops/catalog-enricher/internal/store"
	"github.com/farmaops/catalog-enricher/internal/supplier"
)

const (
	workedDir = "worked"
	errorDir  = "error"
)

// Worker executes one job attempt: parse the catalog file, enrich its
// products, emit the output artifact and relocate the source file.
type Worker struct {
	store  store.Store
	engine *enrich.Engine
	log    *slog.Logger
}

func NewWorker(st store.Store, engine *enrich.Engine, log *slog.Logger) *Worker {
	if log == nil {
		log = obs.Logger
	}
	return &Worker{store: st, engine: engine, log: log}
}

// Run performs a single attempt. Any failure moves the source file to the
// error/ sibling directory (a no-op when a previous attempt already moved
// it) and comes back wrapped as a RetryableError.
func (w *Worker) Run(ctx context.Context, j model.Job) error {
	if err := w.run(ctx, j); err != nil {
		w.log.Error("job attempt failed",
			"job_id", j.ID, "customer_id", j.CustomerID, "file", j.FileName,
			"attempt", j.Attempt, "error", err)
		if moveErr := w.moveToError(j); moveErr != nil {
			w.log.Error("moving source file to error dir failed",
				"job_id", j.ID, "file", j.FileName, "error", moveErr)
		}
		return &RetryableError{Err: err}
	}
	return nil
}

func (w *Worker) run(ctx context.Context, j model.Job) error {
	src := w.resolveSourcePath(j)

	b, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read catalog file: %w", err)
	}

	digest := catalog.Digest(b)
	seen, err := w.store.RawProductExists(ctx, j.CustomerID, digest)
	if err != nil {
		return err
	}
	if seen {
		// Byte-identical document already imported. Not an error: park the
		// file with the processed ones and report success.
		w.log.Info("duplicate catalog document, skipping import",
			"job_id", j.ID, "customer_id", j.CustomerID, "file", j.FileName, "digest", digest)
		return w.moveToWorked(j, src)
	}

	products, err := catalog.Parse(b, j.CustomerID)
	if err != nil {
		return err
	}
	if len(products) > 0 {
		if err := w.store.InsertRawProducts(ctx, products); err != nil {
			return err
		}
	}
	w.log.Info("catalog parsed",
		"job_id", j.ID, "customer_id", j.CustomerID, "file", j.FileName, "products", len(products))

	offers, err := supplier.LoadOffers(j.SupplierOffersPath)
	if err != nil {
		return err
	}

	// Clear leftovers from an interrupted earlier run before writing the
	// fresh enriched set.
	if err := w.store.DeleteEnriched(ctx, j.CustomerID); err != nil {
		return err
	}

	raws, err := w.store.RawProducts(ctx, j.CustomerID)
	if err != nil {
		return err
	}
	enriched, err := w.engine.EnrichAll(ctx, raws, offers)
	if err != nil {
		return err
	}
	if err := w.store.InsertEnriched(ctx, enriched); err != nil {
		return err
	}

	// Emit from the store rather than the in-memory slice so the artifact
	// reflects exactly what was persisted.
	rows, err := w.store.Enriched(ctx, j.CustomerID)
	if err != nil {
		return err
	}
	outPath, err := emit.Emit(rows, j.SourcePath, j.FileName)
	if err != nil {
		return err
	}
	w.log.Info("output artifact written",
		"job_id", j.ID, "customer_id", j.CustomerID, "path", outPath, "products", len(rows))

	// The collections are per-job staging space; only the sentinel rows
	// survive so duplicate submissions stay no-ops. The sentinel is written
	// here, after the artifact, so a failed attempt never marks the
	// document as imported.
	if err := w.store.DeleteEnriched(ctx, j.CustomerID); err != nil {
		return err
	}
	if err := w.store.DeleteRawProducts(ctx, j.CustomerID, true); err != nil {
		return err
	}
	if len(products) > 0 {
		marker := catalog.SentinelProduct(j.CustomerID, digest)
		if err := w.store.InsertRawProducts(ctx, []model.RawProduct{marker}); err != nil {
			return err
		}
	}

	return w.moveToWorked(j, src)
}

// resolveSourcePath returns where the catalog file currently lives. A retry
// attempt finds it in the error/ directory where the failed attempt left it.
func (w *Worker) resolveSourcePath(j model.Job) string {
	if _, err := os.Stat(j.SourcePath); err == nil {
		return j.SourcePath
	}
	fallback := filepath.Join(filepath.Dir(j.SourcePath), errorDir, j.FileName)
	if _, err := os.Stat(fallback); err == nil {
		return fallback
	}
	return j.SourcePath
}

func (w *Worker) moveToWorked(j model.Job, src string) error {
	dst := filepath.Join(filepath.Dir(j.SourcePath), workedDir, j.FileName)
	if err := moveFile(src, dst); err != nil {
		return fmt.Errorf("move source file to worked dir: %w", err)
	}
	return nil
}

// moveToError relocates the source file next to the pending directory under
// error/. If an earlier attempt already moved it, there is nothing to do.
func (w *Worker) moveToError(j model.Job) error {
	src := w.resolveSourcePath(j)
	dst := filepath.Join(filepath.Dir(j.SourcePath), errorDir, j.FileName)
	if src == dst {
		return nil
	}
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	return moveFile(src, dst)
}

func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

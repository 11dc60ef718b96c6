// Command enricher runs the catalog enrichment service.
//
// In serve mode it exposes the job-submission HTTP API and processes jobs
// in the background. With -file it processes one catalog file and exits.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/farmaops/catalog-enricher/internal/app"
	"github.com/farmaops/catalog-enricher/internal/config"
	"github.com/farmaops/catalog-enricher/internal/model"
	"github.com/farmaops/catalog-enricher/internal/obs"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		debug      = flag.Bool("debug", false, "enable debug logging")

		filePath   = flag.String("file", "", "process a single catalog file and exit")
		customerID = flag.String("customer", "", "customer id for -file mode")
		offersPath = flag.String("offers", "", "supplier offers file for -file mode")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	obs.Init(level)

	cfg, err := config.Load(*configPath)
	if err != nil {
		obs.Logger.Error("loading config failed", "error", err)
		os.Exit(1)
	}

	a, err := app.New(cfg)
	if err != nil {
		obs.Logger.Error("assembling service failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *filePath != "" {
		if *customerID == "" {
			obs.Logger.Error("-customer is required with -file")
			os.Exit(2)
		}
		err := a.RunOnce(ctx, model.Job{
			CustomerID:         *customerID,
			SourcePath:         *filePath,
			FileName:           filepath.Base(*filePath),
			SupplierOffersPath: *offersPath,
		})
		if err != nil {
			obs.Logger.Error("processing file failed", "file", *filePath, "error", err)
			os.Exit(1)
		}
		return
	}

	if err := a.Run(ctx); err != nil {
		obs.Logger.Error("service exited with error", "error", err)
		os.Exit(1)
	}
}

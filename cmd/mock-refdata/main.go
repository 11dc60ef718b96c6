// Command mock-refdata serves an in-memory mock of the remote reference
// service for local development. Seeded with a handful of rows covering the
// lookup datasets so an enricher pointed at it produces non-empty output.
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/farmaops/catalog-enricher/internal/mockrefdata"
	"github.com/farmaops/catalog-enricher/internal/obs"
)

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	flag.Parse()

	obs.Init(slog.LevelDebug)

	srv := mockrefdata.New()
	seed(srv)

	obs.Logger.Info("mock reference service listening", "addr", *addr)
	s := &http.Server{
		Addr:              *addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.ListenAndServe(); err != nil {
		obs.Logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func seed(srv *mockrefdata.Server) {
	const sku = "045112018"

	srv.AddRow("TE001", sku, mockrefdata.Field{Name: "FDI_0004", Value: "Tachipirina 500mg 20 Compresse"})
	srv.AddRow("TE008", sku,
		mockrefdata.Field{Name: "FDI_0810", Value: "Analgesico e antipiretico."},
		mockrefdata.Field{Name: "FDI_0811", Value: "Adulti: 1 compressa ogni 8 ore."},
	)
	srv.AddRow("TE002", sku,
		mockrefdata.Field{Name: "FDI_0004", Value: "Tachipirina 500mg 20 Compresse"},
		mockrefdata.Field{Name: "FDI_0040", Value: "100001"},
	)
	srv.AddRow("TE004", sku, mockrefdata.Field{Name: "FDI_T459", Value: "front.jpg"})
	srv.AddDocument("TE004", "front.jpg", []byte("jpeg-bytes"))
	srv.AddRow("TS067", "100001",
		mockrefdata.Field{Name: "FDI_T009", Value: "Angelini Pharma"},
		mockrefdata.Field{Name: "FDI_T010", Value: "Viale Amelia 70, Roma"},
		mockrefdata.Field{Name: "FDI_T011", Value: "info@angelini.example"},
		mockrefdata.Field{Name: "FDI_T012", Value: "https://angelini.example"},
	)
}

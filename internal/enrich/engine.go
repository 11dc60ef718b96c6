// Package enrich combines raw catalog products with reference data and the
// resolved supplier choice.
package enrich

import (
	"context"
	"log/slog"
	"time"

	"github.com/farmaops/catalog-enricher/internal/model"
	"github.com/farmaops/catalog-enricher/internal/obs"
	"github.com/farmaops/catalog-enricher/internal/refdata"
	"github.com/farmaops/catalog-enricher/internal/supplier"
	"github.com/farmaops/catalog-enricher/pkg/pipeline/worker"
)

// Lookup is the reference-data capability the engine depends on. All
// operations are soft: they return zero values instead of errors so a
// remote outage degrades a product's enrichment rather than failing it.
type Lookup interface {
	ResolveName(ctx context.Context, sku string) string
	ResolveDescription(ctx context.Context, sku string) string
	ResolveProductRecord(ctx context.Context, sku string) refdata.Record
	ResolveImages(ctx context.Context, sku string) []string
	ResolveCompany(ctx context.Context, companyNumber string) *model.CompanyInfo
}

// Engine enriches raw products, fanning out across a worker pool for the
// per-product work.
type Engine struct {
	lookup Lookup
	pool   worker.Options
	log    *slog.Logger
}

// NewEngine builds an engine running per-product enrichment on a pool with
// the given options.
func NewEngine(lookup Lookup, pool worker.Options, log *slog.Logger) *Engine {
	if log == nil {
		log = obs.Logger
	}
	// Per-product failures must never abort the batch.
	pool.FailurePolicy = worker.FailurePolicyPartialOutput
	return &Engine{lookup: lookup, pool: pool, log: log}
}

// EnrichProduct enriches one raw product. The external lookups are soft, so
// a product whose remote data is entirely unavailable still comes back with
// its catalog fields and an empty external record.
func (e *Engine) EnrichProduct(ctx context.Context, raw model.RawProduct, offers []model.SupplierOffer) model.EnrichedProduct {
	name := e.lookup.ResolveName(ctx, raw.Sku)
	if name == "" {
		name = raw.Name
	}
	description := e.lookup.ResolveDescription(ctx, raw.Sku)
	record := e.lookup.ResolveProductRecord(ctx, raw.Sku)
	images := e.lookup.ResolveImages(ctx, raw.Sku)

	var company *model.CompanyInfo
	if companyNumber := record.String(refdata.FieldCompanyNumber); companyNumber != "" {
		company = e.lookup.ResolveCompany(ctx, companyNumber)
	}

	enriched := model.EnrichedProduct{
		Sku:                raw.Sku,
		Name:               name,
		Price:              raw.Price,
		Stock:              raw.Stock,
		Manufacturer:       raw.Manufacturer,
		Category:           raw.Category,
		SubCategory:        raw.SubCategory,
		ClassificationCode: raw.ClassificationCode,
		Weight:             raw.Weight,
		Published:          raw.Published,
		ShippingCost:       raw.ShippingCost,
		TaxRate:            raw.TaxRate,
		Description:        description,
		Images:             images,
		ExternalRecord:     record.Map(),
		Company:            company,
		CustomerID:         raw.CustomerID,
		ImportedAt:         time.Now().UTC(),
	}

	if best := supplier.Resolve(raw.Sku, offers); best != nil {
		enriched.Stock = best.Stock
		enriched.SupplierCode = best.SupplierCode
		enriched.SupplierPrice = best.Price
	}
	return enriched
}

// EnrichAll enriches every raw product on the pool. The output order
// matches the input order and always has one enriched row per raw product:
// a product whose processing failed outright falls back to its catalog
// fields with an empty external record.
func (e *Engine) EnrichAll(ctx context.Context, raws []model.RawProduct, offers []model.SupplierOffer) ([]model.EnrichedProduct, error) {
	results, err := worker.ProcessAll(ctx, raws,
		func(ctx context.Context, raw model.RawProduct) (model.EnrichedProduct, error) {
			return e.EnrichProduct(ctx, raw, offers), nil
		},
		e.pool,
	)
	if err != nil {
		// Only context cancellation reaches here under partial-output policy.
		return nil, err
	}

	out := make([]model.EnrichedProduct, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			e.log.Warn("product enrichment failed, keeping catalog fields",
				"customer_id", res.Input.CustomerID, "sku", res.Input.Sku, "error", res.Err)
			out = append(out, e.bareEnriched(res.Input, offers))
			continue
		}
		out = append(out, res.Output)
	}
	return out, nil
}

// bareEnriched builds the fallback row for a product whose enrichment
// failed: catalog fields plus supplier resolution, empty external data.
func (e *Engine) bareEnriched(raw model.RawProduct, offers []model.SupplierOffer) model.EnrichedProduct {
	enriched := model.EnrichedProduct{
		Sku:                raw.Sku,
		Name:               raw.Name,
		Price:              raw.Price,
		Stock:              raw.Stock,
		Manufacturer:       raw.Manufacturer,
		Category:           raw.Category,
		SubCategory:        raw.SubCategory,
		ClassificationCode: raw.ClassificationCode,
		Weight:             raw.Weight,
		Published:          raw.Published,
		ShippingCost:       raw.ShippingCost,
		TaxRate:            raw.TaxRate,
		ExternalRecord:     map[string]any{},
		CustomerID:         raw.CustomerID,
		ImportedAt:         time.Now().UTC(),
	}
	if best := supplier.Resolve(raw.Sku, offers); best != nil {
		enriched.Stock = best.Stock
		enriched.SupplierCode = best.SupplierCode
		enriched.SupplierPrice = best.Price
	}
	return enriched
}

// Package store provides the document store backing the raw and enriched
// product collections.
package store

import (
	"context"

	"github.com/farmaops/catalog-enricher/internal/model"
)

// Store is the document-store capability the pipeline depends on: filtered
// reads, bulk inserts and bulk deletes keyed by customer (and sku for raw
// rows). Only the job worker for a given customer writes or deletes that
// customer's rows.
type Store interface {
	// RawProductExists reports whether a raw row (including sentinels)
	// exists for the customer and sku.
	RawProductExists(ctx context.Context, customerID, sku string) (bool, error)

	// InsertRawProducts stores raw rows; a row with the same customer and
	// sku replaces the previous one.
	InsertRawProducts(ctx context.Context, products []model.RawProduct) error

	// RawProducts returns a customer's raw rows, excluding sentinel rows.
	RawProducts(ctx context.Context, customerID string) ([]model.RawProduct, error)

	// DeleteRawProducts removes a customer's raw rows. With keepSentinels,
	// import-marker rows survive so duplicate submissions stay no-ops.
	DeleteRawProducts(ctx context.Context, customerID string, keepSentinels bool) error

	InsertEnriched(ctx context.Context, products []model.EnrichedProduct) error
	Enriched(ctx context.Context, customerID string) ([]model.EnrichedProduct, error)
	DeleteEnriched(ctx context.Context, customerID string) error

	Close() error
}

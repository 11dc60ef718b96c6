package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/farmaops/catalog-enricher/internal/model"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func rawProduct(customerID, sku string) model.RawProduct {
	return model.RawProduct{
		Sku:        sku,
		Name:       "Product " + sku,
		Price:      9.9,
		Stock:      3,
		CustomerID: customerID,
		ImportedAt: time.Now().UTC(),
	}
}

func TestRawProductsRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertRawProducts(ctx, []model.RawProduct{
		rawProduct("cust-1", "222"),
		rawProduct("cust-1", "111"),
		rawProduct("cust-2", "333"),
	}))

	got, err := s.RawProducts(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Ordered by sku for deterministic output artifacts.
	require.Equal(t, "111", got[0].Sku)
	require.Equal(t, "222", got[1].Sku)
	require.Equal(t, 9.9, got[0].Price)
}

func TestRawProductExistsSeesSentinels(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	digest := "abc123"
	require.NoError(t, s.InsertRawProducts(ctx, []model.RawProduct{
		{Sku: digest, CustomerID: "cust-1", Sentinel: true, ImportedAt: time.Now().UTC()},
	}))

	ok, err := s.RawProductExists(ctx, "cust-1", digest)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.RawProductExists(ctx, "cust-2", digest)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRawProductsExcludesSentinels(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertRawProducts(ctx, []model.RawProduct{
		rawProduct("cust-1", "111"),
		{Sku: "digest-1", CustomerID: "cust-1", Sentinel: true, ImportedAt: time.Now().UTC()},
	}))

	got, err := s.RawProducts(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "111", got[0].Sku)
}

func TestDeleteRawProductsKeepSentinels(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertRawProducts(ctx, []model.RawProduct{
		rawProduct("cust-1", "111"),
		{Sku: "digest-1", CustomerID: "cust-1", Sentinel: true, ImportedAt: time.Now().UTC()},
	}))

	require.NoError(t, s.DeleteRawProducts(ctx, "cust-1", true))

	got, err := s.RawProducts(ctx, "cust-1")
	require.NoError(t, err)
	require.Empty(t, got)

	// The import marker survives so a duplicate submission stays a no-op.
	ok, err := s.RawProductExists(ctx, "cust-1", "digest-1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.DeleteRawProducts(ctx, "cust-1", false))
	ok, err = s.RawProductExists(ctx, "cust-1", "digest-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInsertRawProductsReplacesOnConflict(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	p := rawProduct("cust-1", "111")
	require.NoError(t, s.InsertRawProducts(ctx, []model.RawProduct{p}))
	p.Price = 4.2
	require.NoError(t, s.InsertRawProducts(ctx, []model.RawProduct{p}))

	got, err := s.RawProducts(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 4.2, got[0].Price)
}

func TestEnrichedRoundTripAndDelete(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertEnriched(ctx, []model.EnrichedProduct{
		{Sku: "111", Name: "One", CustomerID: "cust-1", ExternalRecord: map[string]any{"FDI_0004": "One"}},
		{Sku: "222", Name: "Two", CustomerID: "cust-1"},
		{Sku: "333", Name: "Other customer", CustomerID: "cust-2"},
	}))

	got, err := s.Enriched(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "One", got[0].Name)
	require.Equal(t, "One", got[0].ExternalRecord["FDI_0004"])

	require.NoError(t, s.DeleteEnriched(ctx, "cust-1"))
	got, err = s.Enriched(ctx, "cust-1")
	require.NoError(t, err)
	require.Empty(t, got)

	other, err := s.Enriched(ctx, "cust-2")
	require.NoError(t, err)
	require.Len(t, other, 1)
}

func TestInsertEmptySlicesAreNoOps(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertRawProducts(ctx, nil))
	require.NoError(t, s.InsertEnriched(ctx, nil))
}

package supplier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/farmaops/catalog-enricher/internal/model"
)

func TestResolvePicksCheapestInStockOffer(t *testing.T) {
	t.Parallel()

	offers := []model.SupplierOffer{
		{Sku: "045112018", SupplierCode: "SUP-A", Price: 10, Stock: 0},
		{Sku: "045112018", SupplierCode: "SUP-B", Price: 8, Stock: 5},
		{Sku: "045112018", SupplierCode: "SUP-C", Price: 9, Stock: 3},
	}

	best := Resolve("045112018", offers)
	require.NotNil(t, best)
	require.Equal(t, "SUP-B", best.SupplierCode)
	require.Equal(t, 8.0, best.Price)
	require.Equal(t, 5, best.Stock)
}

func TestResolveNilWhenNothingInStock(t *testing.T) {
	t.Parallel()

	offers := []model.SupplierOffer{
		{Sku: "045112018", SupplierCode: "SUP-A", Price: 10, Stock: 0},
		{Sku: "045112018", SupplierCode: "SUP-B", Price: 8, Stock: 0},
	}
	require.Nil(t, Resolve("045112018", offers))
}

func TestResolveTieBreaksOnInputOrder(t *testing.T) {
	t.Parallel()

	offers := []model.SupplierOffer{
		{Sku: "045112018", SupplierCode: "SUP-A", Price: 7, Stock: 1},
		{Sku: "045112018", SupplierCode: "SUP-B", Price: 7, Stock: 9},
	}
	best := Resolve("045112018", offers)
	require.NotNil(t, best)
	require.Equal(t, "SUP-A", best.SupplierCode)
}

func TestResolveIgnoresOtherSkus(t *testing.T) {
	t.Parallel()

	offers := []model.SupplierOffer{
		{Sku: "902603358", SupplierCode: "SUP-A", Price: 1, Stock: 10},
	}
	require.Nil(t, Resolve("045112018", offers))
}

func TestResolveReturnsCopy(t *testing.T) {
	t.Parallel()

	offers := []model.SupplierOffer{
		{Sku: "045112018", SupplierCode: "SUP-A", Price: 7, Stock: 1},
	}
	best := Resolve("045112018", offers)
	require.NotNil(t, best)
	best.Price = 99
	require.Equal(t, 7.0, offers[0].Price)
}

func TestLoadOffersJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "offers.json")
	body := `[{"sku":"045112018","supplierCode":"SUP-A","price":8.5,"stock":4}]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	offers, err := LoadOffers(path)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	require.Equal(t, "SUP-A", offers[0].SupplierCode)
	require.Equal(t, 8.5, offers[0].Price)
}

func TestLoadOffersCSV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "offers.csv")
	body := "supplierCode,sku,stock,price\nSUP-A,045112018,4,\"8,50\"\nSUP-B,045112018,0,7.00\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	offers, err := LoadOffers(path)
	require.NoError(t, err)
	require.Len(t, offers, 2)
	require.Equal(t, 8.5, offers[0].Price)
	require.Equal(t, 0, offers[1].Stock)
}

func TestLoadOffersCSVMissingColumn(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "offers.csv")
	require.NoError(t, os.WriteFile(path, []byte("sku,price\n111,1.0\n"), 0o644))

	_, err := LoadOffers(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "suppliercode")
}

func TestLoadOffersAbsentFileIsNotAnError(t *testing.T) {
	t.Parallel()

	offers, err := LoadOffers(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Nil(t, offers)

	offers, err = LoadOffers("")
	require.NoError(t, err)
	require.Nil(t, offers)
}

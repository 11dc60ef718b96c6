package supplier

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/farmaops/catalog-enricher/internal/model"
)

// LoadOffers reads a supplier offer file, JSON or CSV by extension. An
// empty path or absent file is not an error: the job simply runs with no
// offers and catalog prices stand.
func LoadOffers(path string) ([]model.SupplierOffer, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open supplier file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return readOffersCSV(f)
	}
	return readOffersJSON(f)
}

func readOffersJSON(r io.Reader) ([]model.SupplierOffer, error) {
	var offers []model.SupplierOffer
	if err := json.NewDecoder(r).Decode(&offers); err != nil {
		return nil, fmt.Errorf("parse supplier JSON: %w", err)
	}
	return offers, nil
}

// readOffersCSV reads offers from a CSV with a header row naming at least
// sku, supplierCode, price and stock, in any column order.
func readOffersCSV(r io.Reader) ([]model.SupplierOffer, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read supplier CSV header: %w", err)
	}
	idx := map[string]int{}
	for i, col := range header {
		idx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, required := range []string{"sku", "suppliercode", "price", "stock"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("supplier CSV missing required column %q", required)
		}
	}

	var offers []model.SupplierOffer
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read supplier CSV row: %w", err)
		}
		get := func(col string) string {
			i := idx[col]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		price, err := strconv.ParseFloat(strings.ReplaceAll(get("price"), ",", "."), 64)
		if err != nil {
			return nil, fmt.Errorf("supplier CSV row for sku %q: bad price %q", get("sku"), get("price"))
		}
		stock, err := strconv.Atoi(get("stock"))
		if err != nil {
			return nil, fmt.Errorf("supplier CSV row for sku %q: bad stock %q", get("sku"), get("stock"))
		}
		offers = append(offers, model.SupplierOffer{
			Sku:          get("sku"),
			SupplierCode: get("suppliercode"),
			Price:        price,
			Stock:        stock,
		})
	}
	return offers, nil
}

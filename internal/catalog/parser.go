package catalog

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/farmaops/catalog-enricher/internal/model"
	"github.com/farmaops/catalog-enricher/internal/obs"
)

// publishedToken is the only value the feed's Pubblicato element maps to
// true; anything else, including casing variants, means unpublished.
const publishedToken = "True"

type catalogDocument struct {
	XMLName  xml.Name      `xml:"Prodotti"`
	Products []catalogItem `xml:"Prodotto"`
}

// catalogItem mirrors the feed's element names. Numeric fields stay strings
// here because the feed uses locale formatting (comma decimal separator)
// that needs explicit coercion.
type catalogItem struct {
	Sku            string `xml:"CodiceAIC"`
	Name           string `xml:"Nome"`
	Price          string `xml:"PrezzoEShop"`
	Stock          string `xml:"Giacenza"`
	Manufacturer   string `xml:"Produttore"`
	Category       string `xml:"Categoria"`
	SubCategory    string `xml:"SottoCategoria"`
	Classification string `xml:"ATC_GMP"`
	Weight         string `xml:"Peso"`
	Published      string `xml:"Pubblicato"`
	ShippingCost   string `xml:"SpeseSpedizioneAggiuntive"`
	TaxRate        string `xml:"Iva"`
}

// Parse decodes a catalog document into raw product records. Items missing
// a sku or name are dropped with a warning rather than failing the import;
// an empty or absent product list yields zero records and no error.
func Parse(b []byte, customerID string) ([]model.RawProduct, error) {
	return parse(b, customerID, obs.Logger)
}

func parse(b []byte, customerID string, log *slog.Logger) ([]model.RawProduct, error) {
	var doc catalogDocument
	if err := xml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog document: %w", err)
	}

	importedAt := time.Now().UTC()
	products := make([]model.RawProduct, 0, len(doc.Products))
	for _, item := range doc.Products {
		sku := strings.TrimSpace(item.Sku)
		name := strings.TrimSpace(item.Name)
		if sku == "" || name == "" {
			log.Warn("dropping catalog item missing required field",
				"customer_id", customerID, "sku", sku, "name", name)
			continue
		}
		products = append(products, model.RawProduct{
			Sku:                sku,
			Name:               name,
			Price:              parseDecimal(item.Price),
			Stock:              parseInt(item.Stock),
			Manufacturer:       strings.TrimSpace(item.Manufacturer),
			Category:           strings.TrimSpace(item.Category),
			SubCategory:        strings.TrimSpace(item.SubCategory),
			ClassificationCode: strings.TrimSpace(item.Classification),
			Weight:             parseInt(item.Weight),
			Published:          strings.TrimSpace(item.Published) == publishedToken,
			ShippingCost:       parseDecimal(item.ShippingCost),
			TaxRate:            parseInt(item.TaxRate),
			CustomerID:         customerID,
			ImportedAt:         importedAt,
		})
	}
	return products, nil
}

// parseDecimal normalizes a locale-formatted decimal (comma separator) to a
// float. Unparseable values coerce to 0.
func parseDecimal(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseInt(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// Package supplier loads supplier offer files and resolves the best
// eligible offer per product.
package supplier

import "github.com/farmaops/catalog-enricher/internal/model"

// Resolve picks the best eligible offer for a sku: among the sku's offers
// with stock > 0, the minimum price wins; on a price tie the offer first in
// input order wins. Returns nil when no offer is eligible, in which case
// the catalog's own price and stock stand.
//
// Resolve is pure and deterministic given its inputs.
func Resolve(sku string, offers []model.SupplierOffer) *model.SupplierOffer {
	var best *model.SupplierOffer
	for i := range offers {
		o := &offers[i]
		if o.Sku != sku || o.Stock <= 0 {
			continue
		}
		if best == nil || o.Price < best.Price {
			best = o
		}
	}
	if best == nil {
		return nil
	}
	chosen := *best
	return &chosen
}

// Package model defines the domain types shared by the catalog pipeline.
package model

import "time"

// RawProduct is a normalized line item parsed from a customer's catalog
// document, prior to enrichment.
//
// A row whose Sentinel flag is set carries the import digest in Sku and
// marks the catalog document as already imported; it never reaches the
// enrichment engine.
type RawProduct struct {
	Sku                string    `json:"sku"`
	Name               string    `json:"name"`
	Price              float64   `json:"price"`
	Stock              int       `json:"stock"`
	Manufacturer       string    `json:"manufacturer"`
	Category           string    `json:"category"`
	SubCategory        string    `json:"subCategory"`
	ClassificationCode string    `json:"classificationCode"`
	Weight             int       `json:"weight"`
	Published          bool      `json:"published"`
	ShippingCost       float64   `json:"shippingCost"`
	TaxRate            int       `json:"taxRate"`
	CustomerID         string    `json:"customerId"`
	ImportedAt         time.Time `json:"importedAt"`
	Sentinel           bool      `json:"sentinel,omitempty"`
}

// SupplierOffer is a third-party price and stock quote for a sku, loaded
// from a supplier file. Zero or more offers may exist per sku.
type SupplierOffer struct {
	Sku          string  `json:"sku"`
	SupplierCode string  `json:"supplierCode"`
	Price        float64 `json:"price"`
	Stock        int     `json:"stock"`
}

// CompanyInfo is the manufacturer record resolved from the reference
// service's company dataset.
type CompanyInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Email   string `json:"email"`
	Website string `json:"website"`
}

// EnrichedProduct combines a RawProduct with reference data and the
// resolved supplier choice. It is transient: written to the enriched
// collection, read once by the output emitter, then deleted.
type EnrichedProduct struct {
	Sku                string         `json:"sku"`
	Name               string         `json:"name"`
	Price              float64        `json:"price"`
	Stock              int            `json:"stock"`
	Manufacturer       string         `json:"manufacturer"`
	Category           string         `json:"category"`
	SubCategory        string         `json:"subCategory"`
	ClassificationCode string         `json:"classificationCode"`
	Weight             int            `json:"weight"`
	Published          bool           `json:"published"`
	ShippingCost       float64        `json:"shippingCost"`
	TaxRate            int            `json:"taxRate"`
	Description        string         `json:"description"`
	Images             []string       `json:"images,omitempty"`
	ExternalRecord     map[string]any `json:"externalRecord"`
	Company            *CompanyInfo   `json:"company,omitempty"`
	SupplierCode       string         `json:"supplierCode,omitempty"`
	SupplierPrice      float64        `json:"supplierPrice,omitempty"`
	CustomerID         string         `json:"customerId"`
	ImportedAt         time.Time      `json:"importedAt"`
}

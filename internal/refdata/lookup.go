package refdata

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/farmaops/catalog-enricher/internal/model"
	"github.com/farmaops/catalog-enricher/internal/obs"
	"github.com/farmaops/catalog-enricher/pkg/pipeline/core"
)

// Service resolves product reference data, memoizing results per key so the
// slow remote service is hit as little as possible. Three independent cache
// tiers back it: description, full product record, and company record. Each
// tier is bounded by the capacity/TTL the service was built with.
//
// All resolve operations are soft: a dataset error or miss is logged and
// skipped, never surfaced, so enrichment of a product can always proceed.
type Service struct {
	client     *Client
	log        *slog.Logger
	retries    int
	retryDelay time.Duration

	descriptions *Cache[string]
	records      *Cache[Record]
	companies    *Cache[model.CompanyInfo]
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger used for soft-miss warnings.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

// WithRetries sets how many extra attempts a transient remote failure gets
// before a lookup treats the dataset as missed.
func WithRetries(n int) ServiceOption {
	return func(s *Service) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// WithRetryDelay sets the pause between retry attempts.
func WithRetryDelay(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.retryDelay = d
		}
	}
}

// NewService builds a lookup service over the client with cache tiers
// bounded by capacity entries and ttl.
func NewService(client *Client, capacity int, ttl time.Duration, opts ...ServiceOption) *Service {
	s := &Service{
		client:       client,
		log:          obs.Logger,
		retries:      2,
		retryDelay:   250 * time.Millisecond,
		descriptions: NewCache[string](capacity, ttl),
		records:      NewCache[Record](capacity, ttl),
		companies:    NewCache[model.CompanyInfo](capacity, ttl),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveName returns the product name for a sku: the first non-empty value
// of the name field walking the name datasets in order, or "" when every
// dataset misses or errors.
func (s *Service) ResolveName(ctx context.Context, sku string) string {
	for _, dk := range nameDatasets {
		rec, ok := s.queryOne(ctx, dk.dataset, dk.key, sku, []string{FieldProductName})
		if !ok {
			continue
		}
		if name := strings.TrimSpace(rec.String(FieldProductName)); name != "" {
			return name
		}
	}
	return ""
}

// ResolveDescription aggregates the descriptive text for a sku across every
// description dataset, wrapping each non-empty field value in an HTML
// paragraph. Unlike the first-success lookups it never short-circuits: a
// dataset miss or error only drops that dataset's contribution.
func (s *Service) ResolveDescription(ctx context.Context, sku string) string {
	if cached, ok := s.descriptions.Get(sku); ok {
		return cached
	}

	var b strings.Builder
	for _, dk := range descriptionDatasets {
		rec, ok := s.queryOne(ctx, dk.dataset, dk.key, sku, []string{"*"})
		if !ok {
			continue
		}
		for _, field := range rec.Fields() {
			v, _ := rec.Get(field)
			if v.IsEmpty() {
				continue
			}
			b.WriteString("<p>")
			b.WriteString(v.Text())
			b.WriteString("</p>")
		}
	}

	description := b.String()
	if description != "" {
		s.descriptions.Set(sku, description)
	}
	return description
}

// ResolveProductRecord returns the full record of the first record dataset
// that answers for the sku, or an empty record when none do. Hits are
// cached per sku.
func (s *Service) ResolveProductRecord(ctx context.Context, sku string) Record {
	if cached, ok := s.records.Get(sku); ok {
		return cached
	}

	for _, dk := range recordDatasets {
		rec, ok := s.queryOne(ctx, dk.dataset, dk.key, sku, []string{"*"})
		if !ok {
			continue
		}
		s.records.Set(sku, rec)
		return rec
	}
	return Record{}
}

// ResolveImages fetches every image payload published for the sku across
// the image datasets and returns them base64-encoded. A failed fetch of one
// filename is logged and skipped without aborting the others.
//
// Image bytes are deliberately not cached: they are the largest payloads
// and caching them would let the metadata caches balloon into an image
// store.
func (s *Service) ResolveImages(ctx context.Context, sku string) []string {
	var images []string
	for _, ds := range imageDatasets {
		rec, ok := s.queryOne(ctx, ds.dataset, ds.key, sku, []string{ds.field})
		if !ok {
			continue
		}
		for _, filename := range rec.Strings(ds.field) {
			filename = strings.TrimSpace(filename)
			if filename == "" {
				continue
			}
			var b []byte
			err := s.withRetry(ctx, func() error {
				var ferr error
				b, ferr = s.client.FetchDocument(ctx, ds.dataset, filename)
				return ferr
			})
			if err != nil {
				s.log.Warn("image fetch failed",
					"sku", sku, "dataset", ds.dataset, "filename", filename,
					"error", redactSecrets(err.Error()))
				continue
			}
			images = append(images, base64.StdEncoding.EncodeToString(b))
		}
	}
	return images
}

// ResolveCompany returns the company record for a company number, or nil
// when the company dataset has no row for it. Hits are cached.
func (s *Service) ResolveCompany(ctx context.Context, companyNumber string) *model.CompanyInfo {
	companyNumber = strings.TrimSpace(companyNumber)
	if companyNumber == "" {
		return nil
	}
	if cached, ok := s.companies.Get(companyNumber); ok {
		return &cached
	}

	rec, ok := s.queryOne(ctx, companyDataset.dataset, companyDataset.key, companyNumber, []string{
		companyDataset.key, fieldCompanyName, fieldCompanyAddress, fieldCompanyEmail, fieldCompanyWebsite,
	})
	if !ok {
		return nil
	}
	info := model.CompanyInfo{
		Name:    rec.String(fieldCompanyName),
		Address: rec.String(fieldCompanyAddress),
		Email:   rec.String(fieldCompanyEmail),
		Website: rec.String(fieldCompanyWebsite),
	}
	s.companies.Set(companyNumber, info)
	return &info
}

// queryOne runs one single-row dataset query with soft-miss semantics: any
// transport error, non-OK status, empty payload or empty row yields
// (Record{}, false) after at most a warning log. Transient failures are
// retried before the miss is declared.
func (s *Service) queryOne(ctx context.Context, dataset, key, value string, fields []string) (Record, bool) {
	var recs []Record
	err := s.withRetry(ctx, func() error {
		var qerr error
		recs, qerr = s.client.QueryRecords(ctx, QueryRequest{
			Dataset:  dataset,
			Fields:   fields,
			Filter:   QueryFilter{Key: key, Value: value},
			Page:     1,
			PageSize: 1,
		})
		return qerr
	})
	if err != nil {
		s.log.Warn("dataset query failed",
			"dataset", dataset, "key", value,
			"error", redactSecrets(err.Error()))
		return Record{}, false
	}
	if len(recs) == 0 || recs[0].Len() == 0 {
		return Record{}, false
	}
	return recs[0], true
}

// withRetry runs call, retrying transient failures (throttling, 5xx,
// transport) a bounded number of times. Permanent failures return on the
// first attempt; throttling errors carry their own tighter cap.
func (s *Service) withRetry(ctx context.Context, call func() error) error {
	for attempt := 0; ; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		if attempt >= retryBudget(err, s.retries) {
			return err
		}
		if !sleepCtx(ctx, s.retryDelay) {
			return err
		}
	}
}

// retryBudget returns how many extra attempts err allows.
func retryBudget(err error, def int) int {
	var limited *core.LimitedTransientError
	if errors.As(err, &limited) {
		if limited.ExtraRetries < def {
			return limited.ExtraRetries
		}
		return def
	}
	var transient *core.TransientError
	if errors.As(err, &transient) {
		return def
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

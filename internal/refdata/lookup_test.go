package refdata_test

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/farmaops/catalog-enricher/internal/mockrefdata"
	"github.com/farmaops/catalog-enricher/internal/refdata"
)

const testSku = "045112018"

func newTestService(t *testing.T, mock *mockrefdata.Server) *refdata.Service {
	t.Helper()
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	client, err := refdata.NewClient(refdata.ClientConfig{BaseURL: srv.URL, Username: "svc", Password: "pw"})
	require.NoError(t, err)
	return refdata.NewService(client, 100, time.Minute,
		refdata.WithRetryDelay(time.Millisecond))
}

func TestResolveNameFirstSuccessWins(t *testing.T) {
	t.Parallel()

	mock := mockrefdata.New()
	// TE001 has no row; TE002 answers. TE006/TE011 must not be consulted.
	mock.AddRow("TE002", testSku, mockrefdata.Field{Name: "FDI_0004", Value: "Tachipirina 500mg"})
	mock.AddRow("TE006", testSku, mockrefdata.Field{Name: "FDI_0004", Value: "Wrong dataset"})
	svc := newTestService(t, mock)

	name := svc.ResolveName(context.Background(), testSku)
	require.Equal(t, "Tachipirina 500mg", name)
	require.Equal(t, 1, mock.QueryCount("TE001"))
	require.Equal(t, 1, mock.QueryCount("TE002"))
	require.Equal(t, 0, mock.QueryCount("TE006"))
}

func TestResolveNameSurvivesDatasetOutage(t *testing.T) {
	t.Parallel()

	mock := mockrefdata.New()
	mock.FailDataset("TE001", http.StatusInternalServerError)
	mock.AddRow("TE002", testSku, mockrefdata.Field{Name: "FDI_0004", Value: "Tachipirina 500mg"})
	svc := newTestService(t, mock)

	require.Equal(t, "Tachipirina 500mg", svc.ResolveName(context.Background(), testSku))
}

func TestResolveNameRetriesTransientBlip(t *testing.T) {
	t.Parallel()

	mock := mockrefdata.New()
	// One 503 then recovery: the retry must land on the same dataset
	// instead of permanently blanking its contribution.
	mock.FailDatasetTimes("TE001", http.StatusServiceUnavailable, 1)
	mock.AddRow("TE001", testSku, mockrefdata.Field{Name: "FDI_0004", Value: "Tachipirina 500mg"})
	svc := newTestService(t, mock)

	require.Equal(t, "Tachipirina 500mg", svc.ResolveName(context.Background(), testSku))
	require.Equal(t, 2, mock.QueryCount("TE001"))
	require.Equal(t, 0, mock.QueryCount("TE002"))
}

func TestResolveNameThrottlingRetriesCapped(t *testing.T) {
	t.Parallel()

	mock := mockrefdata.New()
	mock.FailDataset("TE001", http.StatusTooManyRequests)
	mock.AddRow("TE002", testSku, mockrefdata.Field{Name: "FDI_0004", Value: "Tachipirina 500mg"})
	svc := newTestService(t, mock)

	require.Equal(t, "Tachipirina 500mg", svc.ResolveName(context.Background(), testSku))
	// Throttling carries a capped budget: one initial call plus two retries.
	require.Equal(t, 3, mock.QueryCount("TE001"))
}

func TestResolveNamePermanentFailureNotRetried(t *testing.T) {
	t.Parallel()

	mock := mockrefdata.New()
	mock.RequireCredentials("svc", "other-password")
	svc := newTestService(t, mock)

	require.Equal(t, "", svc.ResolveName(context.Background(), testSku))
	// 401 is permanent: exactly one call per dataset, no retries.
	require.Equal(t, 1, mock.QueryCount("TE001"))
	require.Equal(t, 1, mock.QueryCount("TE002"))
}

func TestResolveNameAllMiss(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, mockrefdata.New())
	require.Equal(t, "", svc.ResolveName(context.Background(), testSku))
}

func TestResolveDescriptionAggregatesAcrossDatasets(t *testing.T) {
	t.Parallel()

	mock := mockrefdata.New()
	mock.AddRow("TE008", testSku,
		mockrefdata.Field{Name: "FDI_0810", Value: "Analgesico e antipiretico."},
		mockrefdata.Field{Name: "FDI_0811", Value: "Adulti: 1 compressa."},
	)
	mock.AddRow("TR039", testSku,
		mockrefdata.Field{Name: "FDI_0910", Value: "Testo esteso."},
	)
	// One dataset down must not drop the others' contributions.
	mock.FailDataset("TE005", http.StatusServiceUnavailable)
	svc := newTestService(t, mock)

	got := svc.ResolveDescription(context.Background(), testSku)
	require.Equal(t,
		"<p>Analgesico e antipiretico.</p><p>Adulti: 1 compressa.</p><p>Testo esteso.</p>",
		got)
}

func TestResolveDescriptionCachesNonEmptyResults(t *testing.T) {
	t.Parallel()

	mock := mockrefdata.New()
	mock.AddRow("TE008", testSku, mockrefdata.Field{Name: "FDI_0810", Value: "Testo."})
	svc := newTestService(t, mock)

	first := svc.ResolveDescription(context.Background(), testSku)
	queriesAfterFirst := mock.QueryCount("TE008")
	second := svc.ResolveDescription(context.Background(), testSku)

	require.Equal(t, first, second)
	require.Equal(t, queriesAfterFirst, mock.QueryCount("TE008"))
}

func TestResolveProductRecordFirstSuccessAndCache(t *testing.T) {
	t.Parallel()

	mock := mockrefdata.New()
	mock.AddRow("TE002", testSku,
		mockrefdata.Field{Name: "FDI_0004", Value: "Tachipirina 500mg"},
		mockrefdata.Field{Name: "FDI_0040", Value: "100001"},
	)
	svc := newTestService(t, mock)

	rec := svc.ResolveProductRecord(context.Background(), testSku)
	require.Equal(t, "Tachipirina 500mg", rec.String(refdata.FieldProductName))
	require.Equal(t, "100001", rec.String(refdata.FieldCompanyNumber))

	// Cached: the second resolve must not hit the service again.
	before := mock.QueryCount("TE001") + mock.QueryCount("TE002")
	_ = svc.ResolveProductRecord(context.Background(), testSku)
	require.Equal(t, before, mock.QueryCount("TE001")+mock.QueryCount("TE002"))
}

func TestResolveProductRecordAllMissYieldsEmptyRecord(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, mockrefdata.New())
	rec := svc.ResolveProductRecord(context.Background(), testSku)
	require.Equal(t, 0, rec.Len())
}

func TestResolveImagesEncodesAndSkipsFailures(t *testing.T) {
	t.Parallel()

	mock := mockrefdata.New()
	mock.AddRow("TE004", testSku,
		mockrefdata.Field{Name: "FDI_T459", Value: "front.jpg"},
		mockrefdata.Field{Name: "FDI_T459", Value: "back.jpg"},
	)
	mock.AddDocument("TE004", "front.jpg", []byte("front-bytes"))
	mock.AddDocument("TE004", "back.jpg", []byte("back-bytes"))
	mock.FailDocument("TE004", "back.jpg", http.StatusInternalServerError)
	svc := newTestService(t, mock)

	images := svc.ResolveImages(context.Background(), testSku)
	require.Equal(t, []string{base64.StdEncoding.EncodeToString([]byte("front-bytes"))}, images)
}

func TestResolveImagesNotCached(t *testing.T) {
	t.Parallel()

	mock := mockrefdata.New()
	mock.AddRow("TE004", testSku, mockrefdata.Field{Name: "FDI_T459", Value: "front.jpg"})
	mock.AddDocument("TE004", "front.jpg", []byte("bytes"))
	svc := newTestService(t, mock)

	_ = svc.ResolveImages(context.Background(), testSku)
	first := mock.QueryCount("TE004")
	_ = svc.ResolveImages(context.Background(), testSku)
	require.Equal(t, first*2, mock.QueryCount("TE004"))
}

func TestResolveCompany(t *testing.T) {
	t.Parallel()

	mock := mockrefdata.New()
	mock.AddRow("TS067", "100001",
		mockrefdata.Field{Name: "FDI_T009", Value: "Angelini Pharma"},
		mockrefdata.Field{Name: "FDI_T010", Value: "Viale Amelia 70, Roma"},
		mockrefdata.Field{Name: "FDI_T011", Value: "info@angelini.example"},
		mockrefdata.Field{Name: "FDI_T012", Value: "https://angelini.example"},
	)
	svc := newTestService(t, mock)

	info := svc.ResolveCompany(context.Background(), "100001")
	require.NotNil(t, info)
	require.Equal(t, "Angelini Pharma", info.Name)
	require.Equal(t, "info@angelini.example", info.Email)

	// Cached on the second call.
	_ = svc.ResolveCompany(context.Background(), "100001")
	require.Equal(t, 1, mock.QueryCount("TS067"))

	require.Nil(t, svc.ResolveCompany(context.Background(), ""))
	require.Nil(t, svc.ResolveCompany(context.Background(), "999999"))
}

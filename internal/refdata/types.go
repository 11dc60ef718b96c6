// Package refdata implements the client and lookup service for the remote
// product reference service.
//
// The service exposes named datasets queried one page at a time with an
// equality filter. It is slow, rate limited, and individual datasets can be
// unavailable while others answer; every lookup therefore treats a dataset
// failure as a soft miss and moves on.
package refdata

// Query status values returned by the reference service.
const (
	StatusOK = "OK"

	// payloadEmpty is the sentinel the service returns instead of a result
	// document when a dataset holds no row for the filter.
	payloadEmpty = "EMPTY"
)

// QueryRequest selects rows from one dataset. Credentials are injected by
// the client; callers only name the dataset, field selection and filter.
type QueryRequest struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Dataset  string      `json:"dataset"`
	Fields   []string    `json:"fields"`
	Filter   QueryFilter `json:"filter"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
}

// QueryFilter is an equality filter on a dataset-specific key field.
type QueryFilter struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// QueryResult is the service's response envelope. Payload is itself a
// nested XML table document that needs a second parse step (see payload.go).
type QueryResult struct {
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// Empty reports whether the result carries no usable payload.
func (r QueryResult) Empty() bool {
	return r.Status != StatusOK || r.Payload == "" || r.Payload == payloadEmpty
}

// datasetKey pairs a dataset code with the field its sku filter keys on.
type datasetKey struct {
	dataset string
	key     string
}

// imageDataset adds the field that carries the document filename.
type imageDataset struct {
	dataset string
	key     string
	field   string
}

// Dataset walk orders. Order matters: first-success lookups return the
// first dataset that answers, so the most specific datasets come first.
var (
	// nameDatasets is walked by ResolveName; the product name lives in
	// field FDI_0004 in each of them.
	nameDatasets = []datasetKey{
		{"TE001", "FDI_0001"}, // parapharmaceuticals, medical devices
		{"TE002", "FDI_0001"}, // OTC medicines
		{"TE006", "FDI_0001"}, // homeopathics
		{"TE011", "FDI_0001"}, // veterinary medicines
	}

	// descriptionDatasets is walked by ResolveDescription, which aggregates
	// across every dataset instead of stopping at the first hit.
	descriptionDatasets = []datasetKey{
		{"TE008", "FDI_0001"}, // descriptive sheet
		{"TE005", "FDI_4887"}, // short description, OTC medicines
		{"TE006", "FDI_0001"}, // homeopathics
		{"TE012", "FDI_0001"}, // veterinary medicines
		{"TR039", "FDI_0001"}, // extended description
		{"TE018", "FDI_0001"}, // successor of TE003
	}

	// recordDatasets is walked by ResolveProductRecord.
	recordDatasets = []datasetKey{
		{"TE001", "FDI_0001"},
		{"TE002", "FDI_0001"},
	}

	// imageDatasets lists the image-bearing datasets and their filename fields.
	imageDatasets = []imageDataset{
		{"TE004", "FDI_T456", "FDI_T459"},
		{"TE009", "FDI_0840", "FDI_0843"},
	}

	companyDataset = datasetKey{"TS067", "FDI_T008"}
)

// Well-known field codes used outside the walk tables.
const (
	FieldProductName   = "FDI_0004"
	FieldCompanyNumber = "FDI_0040"

	fieldCompanyName    = "FDI_T009"
	fieldCompanyAddress = "FDI_T010"
	fieldCompanyEmail   = "FDI_T011"
	fieldCompanyWebsite = "FDI_T012"
)

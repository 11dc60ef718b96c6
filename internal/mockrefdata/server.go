// Package mockrefdata implements a minimal in-process mock of the remote
// reference service, used by tests and local runs.
package mockrefdata

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/farmaops/catalog-enricher/internal/refdata"
)

// Call records a query made to the mock service.
type Call struct {
	Dataset     string
	FilterKey   string
	FilterValue string
}

// Field is one name/value pair of a dataset row. Order is preserved in the
// emitted payload.
type Field struct {
	Name  string
	Value string
}

// Row is one dataset row keyed by its filter value.
type Row struct {
	KeyValue string
	Fields   []Field
}

// Server implements the query and document endpoints of the reference
// service with seeded fixtures and per-dataset failure injection.
type Server struct {
	mu sync.Mutex

	rows      map[string][]Row    // dataset -> rows
	documents map[string][]byte   // dataset/filename -> bytes
	failures  map[string]*failure // dataset -> injected failure
	docFail   map[string]int      // dataset/filename -> HTTP status

	expectedUsername string
	expectedPassword string

	calls []Call
}

// failure is an injected query failure; remaining < 0 means every query.
type failure struct {
	status    int
	remaining int
}

// New constructs an empty mock server.
func New() *Server {
	return &Server{
		rows:      make(map[string][]Row),
		documents: make(map[string][]byte),
		failures:  make(map[string]*failure),
		docFail:   make(map[string]int),
	}
}

// RequireCredentials enforces the credentials carried in query bodies.
// Empty username disables the check.
func (s *Server) RequireCredentials(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expectedUsername = strings.TrimSpace(username)
	s.expectedPassword = strings.TrimSpace(password)
}

// AddRow seeds one row into a dataset.
func (s *Server) AddRow(dataset, keyValue string, fields ...Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[dataset] = append(s.rows[dataset], Row{KeyValue: keyValue, Fields: fields})
}

// AddDocument seeds one binary document.
func (s *Server) AddDocument(dataset, filename string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[dataset+"/"+filename] = content
}

// FailDataset makes every query against the dataset answer with status.
// status 0 clears the failure.
func (s *Server) FailDataset(dataset string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, dataset)
		return
	}
	s.failures[dataset] = &failure{status: status, remaining: -1}
}

// FailDatasetTimes makes the next n queries against the dataset answer with
// status, after which the dataset recovers.
func (s *Server) FailDatasetTimes(dataset string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[dataset] = &failure{status: status, remaining: n}
}

// FailDocument makes fetches of one document answer with status.
func (s *Server) FailDocument(dataset, filename string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := dataset + "/" + filename
	if status == 0 {
		delete(s.docFail, key)
		return
	}
	s.docFail[key] = status
}

// Calls returns a snapshot of queries made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// QueryCount returns how many queries hit the given dataset.
func (s *Server) QueryCount(dataset string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Dataset == dataset {
			n++
		}
	}
	return n
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/query", s.handleQuery)
	mux.HandleFunc("/documents", s.handleDocuments)
	return mux
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req refdata.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls = append(s.calls, Call{Dataset: req.Dataset, FilterKey: req.Filter.Key, FilterValue: req.Filter.Value})
	failStatus := 0
	if f := s.failures[req.Dataset]; f != nil && f.remaining != 0 {
		failStatus = f.status
		if f.remaining > 0 {
			f.remaining--
		}
	}
	rows := s.rows[req.Dataset]
	expUser, expPass := s.expectedUsername, s.expectedPassword
	s.mu.Unlock()

	if expUser != "" && (req.Username != expUser || req.Password != expPass) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if failStatus != 0 {
		http.Error(w, "injected failure", failStatus)
		return
	}

	var match *Row
	for i := range rows {
		if rows[i].KeyValue == req.Filter.Value {
			match = &rows[i]
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if match == nil {
		writeJSON(w, refdata.QueryResult{Status: refdata.StatusOK, Payload: "EMPTY"})
		return
	}
	writeJSON(w, refdata.QueryResult{
		Status:  refdata.StatusOK,
		Payload: tablePayload(*match, req.Fields),
	})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	dataset := r.URL.Query().Get("dataset")
	filename := r.URL.Query().Get("filename")
	key := dataset + "/" + filename

	s.mu.Lock()
	failStatus := s.docFail[key]
	content, ok := s.documents[key]
	s.mu.Unlock()

	if failStatus != 0 {
		http.Error(w, "injected failure", failStatus)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(content)
}

// tablePayload renders a row as the nested XML table document the real
// service embeds in its JSON envelope. fields narrows the emitted columns
// unless it selects "*".
func tablePayload(row Row, fields []string) string {
	selectAll := len(fields) == 0
	for _, f := range fields {
		if f == "*" {
			selectAll = true
			break
		}
	}
	selected := make(map[string]bool, len(fields))
	for _, f := range fields {
		selected[f] = true
	}

	var b strings.Builder
	b.WriteString("<TableResult><Product>")
	for _, f := range row.Fields {
		if !selectAll && !selected[f.Name] {
			continue
		}
		fmt.Fprintf(&b, "<%s>%s</%s>", f.Name, xmlEscape(f.Value), f.Name)
	}
	b.WriteString("</Product></TableResult>")
	return b.String()
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/pdfsearch/internal/cache"
	"github.com/hyperjump/pdfsearch/internal/config"
	"github.com/hyperjump/pdfsearch/internal/dispatch"
	"github.com/hyperjump/pdfsearch/internal/engine"
	"github.com/hyperjump/pdfsearch/internal/extract"
	"github.com/hyperjump/pdfsearch/internal/extract/extracttest"
	"github.com/hyperjump/pdfsearch/internal/ingest"
	"github.com/hyperjump/pdfsearch/internal/models"
	"github.com/hyperjump/pdfsearch/internal/search"
	"github.com/hyperjump/pdfsearch/internal/storage"
)

// countingEngine counts engine calls made through the full stack and keeps the last record
// written for each document id.
type countingEngine struct {
	engine.Engine
	mu       sync.Mutex
	upserts  int
	searches int
	records  map[string]models.IndexRecord
}

func (c *countingEngine) Upsert(ctx context.Context, index, id string, r *models.IndexRecord) error {
	c.mu.Lock()
	c.upserts++
	if c.records == nil {
		c.records = make(map[string]models.IndexRecord)
	}
	c.records[id] = *r
	c.mu.Unlock()
	return c.Engine.Upsert(ctx, index, id, r)
}

func (c *countingEngine) Search(ctx context.Context, index, q string, fields []string, limit int) ([]engine.Hit, error) {
	c.mu.Lock()
	c.searches++
	c.mu.Unlock()
	return c.Engine.Search(ctx, index, q, fields, limit)
}

type testEnv struct {
	handler http.Handler
	engine  *countingEngine
	store   *storage.SQLiteStorage
	files   *storage.FileStore
	cache   *cache.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	bl, err := engine.NewBleveEngine(filepath.Join(dir, "indices"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = bl.Close() })
	eng := &countingEngine{Engine: bl}
	if err := eng.EnsureIndex(context.Background(), "documents"); err != nil {
		t.Fatal(err)
	}

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "pdfsearch.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	files, err := storage.NewFileStore(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Server.CORSOrigins = []string{"*"}
	logger := zap.NewNop()

	dispatcher := dispatch.NewSyncDispatcher(dispatch.NewWriter(eng, 0, 5*time.Second), dispatch.WithTickets(store))
	svc := ingest.NewService(
		ingest.NewValidator(extract.NewExtractor(), cfg.Server.MaxUploadBytes),
		ingest.NewRecordBuilder(cfg.Server.BaseURL),
		files, dispatcher, "documents",
		ingest.WithRegistry(store),
	)
	mem := cache.NewMemoryStore(64)
	coord := search.NewCoordinator(eng, mem, search.Config{IndexName: "documents", KeyPrefix: "search:"})

	srv := NewServer(svc, coord, dispatcher, files, store, StatusInfo{
		EngineType:   config.EngineBleve,
		CacheType:    config.CacheMemory,
		IndexName:    "documents",
		IndexingMode: config.ModeSync,
		DiskPaths:    []string{files.Root(), filepath.Join(dir, "pdfsearch.db")},
	}, &cfg.Server, logger)

	return &testEnv{handler: srv.Handler(), engine: eng, store: store, files: files, cache: mem}
}

func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, filename, content, fields)
	r := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	r.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var out map[string]string
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out["error"]
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func TestUploadThenSearch_twoPagePDF(t *testing.T) {
	env := newTestEnv(t)
	pdf := extracttest.MinimalPDF("Alpha report", "Beta summary")

	w := env.upload(t, "q1.pdf", pdf, map[string]string{"title": "Q1 Report"})
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status: got %d, body %s", w.Code, w.Body.String())
	}
	var up struct {
		Message     string                 `json:"message"`
		ID          string                 `json:"id"`
		Filename    string                 `json:"filename"`
		DownloadURL string                 `json:"download_url"`
		Ticket      *models.DispatchTicket `json:"ticket"`
	}
	if err := json.NewDecoder(w.Body).Decode(&up); err != nil {
		t.Fatal(err)
	}
	if up.Message != msgUploaded {
		t.Errorf("message = %q", up.Message)
	}
	if up.Filename != up.ID+"_q1.pdf" {
		t.Errorf("filename = %q, id = %q", up.Filename, up.ID)
	}
	if up.DownloadURL != "http://localhost:5000/api/download/"+up.Filename {
		t.Errorf("download_url = %q", up.DownloadURL)
	}
	if up.Ticket == nil || up.Ticket.Status != models.TicketSucceeded {
		t.Errorf("ticket = %+v", up.Ticket)
	}
	if env.engine.upserts != 1 {
		t.Errorf("upserts = %d, want 1", env.engine.upserts)
	}
	rec, ok := env.engine.records[up.ID]
	if !ok {
		t.Fatalf("no record upserted for %s", up.ID)
	}
	if rec.Content != "Alpha reportBeta summary" {
		t.Errorf("indexed content = %q, want %q", rec.Content, "Alpha reportBeta summary")
	}
	if rec.Title != "Q1 Report" || rec.Filename != up.Filename {
		t.Errorf("indexed record = %+v", rec)
	}

	w = env.get(t, "/api/search?query=Beta")
	if w.Code != http.StatusOK {
		t.Fatalf("search status: got %d", w.Code)
	}
	var resp models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(resp.Results))
	}
	got := resp.Results[0]
	if got.Title != "Q1 Report" || got.Category != models.DefaultCategory || got.Filename != up.Filename {
		t.Errorf("result = %+v", got)
	}
	if resp.Cached {
		t.Error("first search should not be cached")
	}

	doc, err := env.store.GetDocument(context.Background(), up.ID)
	if err != nil {
		t.Fatal(err)
	}
	if doc.OriginalName != "q1.pdf" || doc.TicketID != up.Ticket.ID {
		t.Errorf("registry row = %+v", doc)
	}

	w = env.get(t, "/api/tickets/"+up.Ticket.ID)
	if w.Code != http.StatusOK {
		t.Errorf("ticket status: got %d", w.Code)
	}
}

func TestSearch_cachedWithinTTL(t *testing.T) {
	env := newTestEnv(t)
	if w := env.upload(t, "q1.pdf", extracttest.MinimalPDF("Alpha report"), map[string]string{"title": "Q1 Report"}); w.Code != http.StatusCreated {
		t.Fatalf("upload: %d", w.Code)
	}

	var first, second models.SearchResponse
	w := env.get(t, "/api/search?query=alpha")
	if err := json.NewDecoder(w.Body).Decode(&first); err != nil {
		t.Fatal(err)
	}
	w = env.get(t, "/api/search?query=alpha")
	if err := json.NewDecoder(w.Body).Decode(&second); err != nil {
		t.Fatal(err)
	}
	if env.engine.searches != 1 {
		t.Errorf("engine searches = %d, want 1", env.engine.searches)
	}
	if !second.Cached {
		t.Error("second search should be served from cache")
	}
	if len(first.Results) != 1 || len(second.Results) != 1 || first.Results[0] != second.Results[0] {
		t.Errorf("results differ: %+v vs %+v", first.Results, second.Results)
	}
}

func TestSearch_noResultsNotCached(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 2; i++ {
		w := env.get(t, "/api/search?query=zebra")
		if w.Code != http.StatusOK {
			t.Fatalf("status: got %d", w.Code)
		}
		var resp models.SearchResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Message != search.NoResultsMessage || len(resp.Results) != 0 {
			t.Errorf("resp = %+v", resp)
		}
	}
	if env.cache.Len() != 0 {
		t.Errorf("cache entries = %d, want 0", env.cache.Len())
	}
	if env.engine.searches != 2 {
		t.Errorf("engine searches = %d, want 2", env.engine.searches)
	}
}

func TestSearch_emptyQuery(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/search", "/api/search?query=", "/api/search?query=%20%20"} {
		w := env.get(t, path)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d", path, w.Code)
		}
		if msg := decodeError(t, w); msg != "No query provided." {
			t.Errorf("%s: error %q", path, msg)
		}
	}
	if env.engine.searches != 0 {
		t.Errorf("engine searches = %d, want 0", env.engine.searches)
	}
}

func TestUpload_rejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		status   int
		message  string
	}{
		{"missing file", "", nil, http.StatusBadRequest, "No file uploaded. Please select a file to upload"},
		{"not a pdf", "notes.txt", []byte("hello"), http.StatusUnsupportedMediaType, "Only PDF files are supported."},
		{"malformed", "fake.pdf", []byte("not really a pdf"), http.StatusUnprocessableEntity, "PDF could not be parsed."},
		{"no text", "blank.pdf", extracttest.MinimalPDF(""), http.StatusUnprocessableEntity, "PDF does not contain readable text."},
		{"too large", "huge.pdf", make([]byte, 25<<20), http.StatusRequestEntityTooLarge, "File size exceeds 20 MB limit."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.upload(t, tt.filename, tt.content, map[string]string{"title": "x"})
			if w.Code != tt.status {
				t.Fatalf("status: got %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if msg := decodeError(t, w); msg != tt.message {
				t.Errorf("error = %q, want %q", msg, tt.message)
			}
			if n := countFiles(t, env.files.Root()); n != 0 {
				t.Errorf("stored files = %d, want 0", n)
			}
			if env.engine.upserts != 0 {
				t.Errorf("upserts = %d, want 0", env.engine.upserts)
			}
			if n, _ := env.store.CountDocuments(context.Background()); n != 0 {
				t.Errorf("registered documents = %d, want 0", n)
			}
		})
	}
}

func TestDownload(t *testing.T) {
	env := newTestEnv(t)
	pdf := extracttest.MinimalPDF("Alpha report")
	w := env.upload(t, "My Report.pdf", pdf, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: %d", w.Code)
	}
	var up struct {
		Filename    string `json:"filename"`
		DownloadURL string `json:"download_url"`
	}
	if err := json.NewDecoder(w.Body).Decode(&up); err != nil {
		t.Fatal(err)
	}
	u, err := url.Parse(up.DownloadURL)
	if err != nil {
		t.Fatal(err)
	}

	w = env.get(t, u.RequestURI())
	if w.Code != http.StatusOK {
		t.Fatalf("download status: got %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment") {
		t.Errorf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
	}
	body, _ := io.ReadAll(w.Body)
	if !bytes.Equal(body, pdf) {
		t.Error("downloaded bytes differ from upload")
	}

	for _, path := range []string{"/api/download/missing.pdf", "/api/download/..%2Fpdfsearch.db", "/api/download/.."} {
		w = env.get(t, path)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: status %d, want 404", path, w.Code)
		}
	}
}

func TestTicket_notFound(t *testing.T) {
	env := newTestEnv(t)
	w := env.get(t, "/api/tickets/nope")
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestDocuments_listAndGet(t *testing.T) {
	env := newTestEnv(t)
	var ids []string
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		w := env.upload(t, name, extracttest.MinimalPDF("Alpha"), map[string]string{"title": name})
		if w.Code != http.StatusCreated {
			t.Fatalf("upload %s: %d", name, w.Code)
		}
		var up struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(w.Body).Decode(&up); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, up.ID)
	}

	w := env.get(t, "/api/documents?limit=2")
	if w.Code != http.StatusOK {
		t.Fatalf("list: got %d, body %s", w.Code, w.Body.String())
	}
	var page struct {
		Documents []models.StoredDocument `json:"documents"`
		Total     int64                   `json:"total"`
		Offset    int                     `json:"offset"`
		Limit     int                     `json:"limit"`
	}
	if err := json.NewDecoder(w.Body).Decode(&page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 || page.Limit != 2 || page.Offset != 0 || len(page.Documents) != 2 {
		t.Errorf("page = %+v", page)
	}

	w = env.get(t, "/api/documents?offset=2&limit=2")
	if err := json.NewDecoder(w.Body).Decode(&page); err != nil {
		t.Fatal(err)
	}
	if len(page.Documents) != 1 {
		t.Errorf("second page has %d documents, want 1", len(page.Documents))
	}

	w = env.get(t, "/api/documents/"+ids[1])
	if w.Code != http.StatusOK {
		t.Fatalf("get: got %d", w.Code)
	}
	var doc models.StoredDocument
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if doc.ID != ids[1] || doc.OriginalName != "b.pdf" || doc.Title != "b.pdf" {
		t.Errorf("document = %+v", doc)
	}

	if w := env.get(t, "/api/documents/missing"); w.Code != http.StatusNotFound {
		t.Errorf("missing document: got %d", w.Code)
	}
	for _, q := range []string{"offset=-1", "limit=0", "limit=abc"} {
		if w := env.get(t, "/api/documents?"+q); w.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", q, w.Code)
		}
	}
}

func TestStatusAndHealth(t *testing.T) {
	env := newTestEnv(t)
	if w := env.upload(t, "q1.pdf", extracttest.MinimalPDF("Alpha"), nil); w.Code != http.StatusCreated {
		t.Fatalf("upload: %d", w.Code)
	}

	w := env.get(t, "/api/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Engine    string           `json:"engine"`
		IndexName string           `json:"index_name"`
		Documents int64            `json:"documents"`
		Indexed   uint64           `json:"index_documents"`
		Tickets   map[string]int64 `json:"tickets"`
		Disk      int64            `json:"disk_usage_bytes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Engine != config.EngineBleve || out.IndexName != "documents" || out.Documents != 1 {
		t.Errorf("status = %+v", out)
	}
	if out.Indexed != 1 {
		t.Errorf("index_documents = %d, want 1", out.Indexed)
	}
	if out.Tickets["succeeded"] != 1 {
		t.Errorf("tickets = %v", out.Tickets)
	}
	if out.Disk <= 0 {
		t.Errorf("disk usage = %d", out.Disk)
	}

	w = env.get(t, "/health")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("health: %d %s", w.Code, w.Body.String())
	}
}

type failingSearcher struct{}

func (failingSearcher) Search(context.Context, string) (*models.SearchResponse, error) {
	return nil, errors.Join(search.ErrSearchUnavailable, errors.New("connection refused"))
}

type failingUploader struct{ err error }

func (f failingUploader) Upload(context.Context, ingest.Upload) (*ingest.Result, error) {
	return nil, f.err
}

func (failingUploader) MaxUploadBytes() int64 { return ingest.DefaultMaxUploadBytes }

func TestErrorMapping_serverFailures(t *testing.T) {
	cfg := config.Default()
	srv := NewServer(failingUploader{err: dispatch.ErrIndexingFailed}, failingSearcher{}, nil, nil, nil, StatusInfo{}, &cfg.Server, nil)
	h := srv.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/search?query=Beta", nil))
	if w.Code != http.StatusInternalServerError || decodeError(t, w) != "search failed" {
		t.Errorf("search: %d", w.Code)
	}

	body, ct := multipartBody(t, "q1.pdf", []byte("%PDF"), nil)
	r := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	r.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusInternalServerError || decodeError(t, w) != "indexing failed" {
		t.Errorf("upload: %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("documents without registry: %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusOK || strings.Contains(w.Body.String(), "index_documents") {
		t.Errorf("status without counter: %d %s", w.Code, w.Body.String())
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)
	r := httptest.NewRequest(http.MethodOptions, "/api/search?query=x", nil)
	r.Header.Set("Origin", "http://example.com")
	r.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

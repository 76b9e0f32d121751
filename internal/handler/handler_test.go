package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivi-tora/mfc/internal/cache"
	"github.com/vivi-tora/mfc/internal/model"
	"github.com/vivi-tora/mfc/internal/repository"
	"github.com/vivi-tora/mfc/internal/service"
	"github.com/vivi-tora/mfc/internal/signer"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}

type fixture struct {
	store   *repository.FileLogRepository
	batches *service.BatchService
	router  chi.Router
}

func newFixture(t *testing.T, creds signer.Credentials) *fixture {
	t.Helper()

	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"SUCCESS","message":"ok"}`))
	}))
	t.Cleanup(vendor.Close)

	store, err := repository.NewFileLogRepository(filepath.Join(t.TempDir(), "app.log"), false)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mem := cache.NewMemoryCache(time.Minute)
	t.Cleanup(func() { mem.Close() })

	sub := service.NewSubmitter(service.SubmitterConfig{Endpoint: vendor.URL, Timeout: 2 * time.Second}, store, nil)
	batches := service.NewBatchService(sub, mem, service.BatchConfig{Credentials: creds}, nil)

	avail := NewAvailabilityHandler(batches, 1<<20)
	bh := NewBatchHandler(batches)
	logs := NewLogsHandler(store)

	r := chi.NewRouter()
	r.Post("/availability", avail.Submit)
	r.Post("/availability/csv", avail.SubmitCSV)
	r.Get("/batches/{id}", bh.Get)
	r.Delete("/batches/{id}", bh.Cancel)
	r.Get("/logs", logs.List)
	r.Get("/logs/export.csv", logs.Export)

	return &fixture{store: store, batches: batches, router: r}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.batches.Wait(ctx))
}

var testCreds = signer.Credentials{PublicKey: "pub", PrivateKey: "priv"}

func TestSubmit_StartsBatchAndLogs(t *testing.T) {
	f := newFixture(t, testCreds)

	body := `{"items":[
		{"jan":"4981932123457","available":false,"price":3000,"url":"https://x/1","title":"A","vendor":"V"},
		{"jan":"INVALID","available":true,"price":100,"url":"https://x/2"}
	],"skipped_count":4}`
	rr := f.do(httptest.NewRequest(http.MethodPost, "/availability", strings.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	env := decode(t, rr)
	assert.True(t, env.Success)
	var started SubmitResponse
	require.NoError(t, json.Unmarshal(env.Data, &started))
	assert.Equal(t, 2, started.Total)
	assert.Equal(t, 4, started.SkippedCount)
	assert.Equal(t, "/api/v1/batches/"+started.BatchID, rr.Header().Get("Location"))

	f.wait(t)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/batches/"+started.BatchID, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var progress model.BatchProgress
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &progress))
	assert.Equal(t, model.BatchCompleted, progress.State)
	assert.Equal(t, 1, progress.Succeeded)
	assert.Equal(t, 1, progress.Failed)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/logs?limit=10", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var entries []model.LogEntry
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "Invalid item data for JAN: INVALID", entries[0].Message)
	assert.Equal(t, "Received response for JAN: 4981932123457", entries[1].Message)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/logs/export.csv", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "attachment")
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `"Title","JAN","Price","Vendor","URL","Status","Message"`, lines[0])
	assert.True(t, strings.HasPrefix(lines[2], `"A","4981932123457","3000","V","https://x/1","SUCCESS","ok"`), lines[2])
}

func TestSubmit_RejectsMalformedRequests(t *testing.T) {
	f := newFixture(t, testCreds)

	rr := f.do(httptest.NewRequest(http.MethodPost, "/availability", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "BAD_REQUEST", decode(t, rr).Error.Code)

	rr = f.do(httptest.NewRequest(http.MethodPost, "/availability", strings.NewReader(`{"items":[]}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rr).Error.Code)

	rr = f.do(httptest.NewRequest(http.MethodPost, "/availability",
		strings.NewReader(`{"items":[{"jan":"4981932123457","price":1,"url":"https://x"}]}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	env := decode(t, rr)
	require.Len(t, env.Error.Details, 1)
	assert.Equal(t, "items[0].available", env.Error.Details[0].Field)
	assert.Equal(t, "available is required", env.Error.Details[0].Message)
}

func TestSubmit_MissingCredentials(t *testing.T) {
	f := newFixture(t, signer.Credentials{})

	rr := f.do(httptest.NewRequest(http.MethodPost, "/availability",
		strings.NewReader(`{"items":[{"jan":"4981932123457","available":true,"price":1,"url":"https://x"}]}`)))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "MFC API keys are not set", decode(t, rr).Error.Message)
}

func multipartCSV(t *testing.T, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "products.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/availability/csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

const csvHeader = "Title,Vendor,Type,Status,Variant Barcode,Variant Price,Variant Inventory Qty,URL\n"

func TestSubmitCSV(t *testing.T) {
	f := newFixture(t, testCreds)

	rr := f.do(multipartCSV(t, csvHeader+
		"A,V,Figure,Active,4981932123457,1200,1,https://x/1\n"+
		"B,V,DL,Active,4981932123458,1200,1,https://x/2\n"))
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var started SubmitResponse
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &started))
	assert.Equal(t, 1, started.Total)
	assert.Equal(t, 1, started.SkippedCount)
	f.wait(t)
}

func TestSubmitCSV_RowErrors(t *testing.T) {
	f := newFixture(t, testCreds)

	rr := f.do(multipartCSV(t, csvHeader+"A,V,Figure,Active,123,0,1,https://x/1\n"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	env := decode(t, rr)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	require.Len(t, env.Error.Details, 1)
	assert.Equal(t, "row 2", env.Error.Details[0].Field)

	rr = f.do(multipartCSV(t, "Title\nA\n"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "CSV is missing required columns", decode(t, rr).Error.Message)

	rr = f.do(httptest.NewRequest(http.MethodPost, "/availability/csv", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBatch_NotFoundAndConflict(t *testing.T) {
	f := newFixture(t, testCreds)

	rr := f.do(httptest.NewRequest(http.MethodGet, "/batches/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = f.do(httptest.NewRequest(http.MethodDelete, "/batches/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rec := httptest.NewRecorder()
	writeServiceError(rec, httptest.NewRequest(http.MethodPost, "/", nil), service.ErrBatchRunning)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	writeServiceError(rec, httptest.NewRequest(http.MethodPost, "/", nil), errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestLogs_Limit(t *testing.T) {
	f := newFixture(t, testCreds)
	for i := 0; i < 5; i++ {
		require.NoError(t, f.store.Write(context.Background(), model.LogEntry{Level: model.LevelInfo, Message: "m"}))
	}

	rr := f.do(httptest.NewRequest(http.MethodGet, "/logs?limit=3", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var env struct {
		Data []model.LogEntry `json:"data"`
		Meta struct {
			Limit int `json:"limit"`
			Count int `json:"count"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Len(t, env.Data, 3)
	assert.Equal(t, 3, env.Meta.Limit)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/logs", nil))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, repository.DefaultReadLimit, env.Meta.Limit)
	assert.Equal(t, 5, env.Meta.Count)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/logs?limit=5000", nil))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, MaxLogLimit, env.Meta.Limit)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/logs?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t, testCreds)
	h := New("1.2.3", NamedPinger{Name: "log_store", Pinger: f.store})

	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"version":"1.2.3"`)

	rr = httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	down := New("1.2.3", NamedPinger{Name: "cache", Pinger: failingPinger{}})
	rr = httptest.NewRecorder()
	down.Ready(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"error":"down"`)
}

func TestAdminStats(t *testing.T) {
	f := newFixture(t, testCreds)
	h := NewAdminHandler(f.batches, "file", "memory")

	rr := httptest.NewRecorder()
	h.GetStats(rr, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &stats))
	assert.Equal(t, "file", stats["log_store"])
	assert.Equal(t, false, stats["batch"].(map[string]any)["running"])
}

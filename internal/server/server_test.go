package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/proto"

	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
	"github.com/joseph-ayodele/boq-matcher/internal/services/matching"
)

func newTestServer(t *testing.T) (*gin.Engine, *matching.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &common.Config{
		Database:  common.DatabaseConfig{Driver: "memory"},
		Scheduler: common.SchedulerConfig{TickInterval: 2 * time.Millisecond, BatchSize: 10, Retention: time.Minute},
		Writer:    common.WriterConfig{ChunkSize: 50, MaxFailures: 3},
		Catalog:   common.CatalogConfig{TTL: time.Minute},
		Cache:     common.CacheConfig{EmbeddingSize: 100, EmbeddingTTL: time.Minute, ResultSize: 100, ResultTTL: time.Minute},
		Matching:  common.MatchingConfig{LexicalWeight: 0.85, SemanticWeight: 1},
		Embedding: common.EmbeddingConfig{LocalDims: 64, Timeout: time.Second},
	}
	ctx := context.Background()
	rt, err := matching.Open(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		rt.Close(ctx)
	})
	require.NoError(t, rt.Catalog.UpsertItems(ctx, []entity.CatalogItem{
		{ID: "P1", Code: "EXC01", Description: "Excavation in soil", Unit: "M3", Rate: 12.5},
		{ID: "P2", Code: "CON01", Description: "Concrete grade C25 in slab", Unit: "m3", Rate: 140},
	}))
	return NewServer(rt.Engine, nil, nil).Router(), rt.Engine
}

func do(r http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func waitDone(t *testing.T, r http.Handler, id uuid.UUID) entity.JobSnapshot {
	t.Helper()
	var snap entity.JobSnapshot
	require.Eventually(t, func() bool {
		w := do(r, http.MethodGet, "/v1/jobs/"+id.String(), nil, "")
		if w.Code != http.StatusOK {
			return false
		}
		_ = json.Unmarshal(w.Body.Bytes(), &snap)
		return snap.Status.IsTerminal()
	}, 3*time.Second, 5*time.Millisecond)
	return snap
}

func TestSubmitJobJSON(t *testing.T) {
	r, _ := newTestServer(t)
	body := `{"owner_id":"u1","items":[
		{"description":"EARTHWORKS"},
		{"description":"Excavation in soil","quantity":10,"unit":"m3","context_headers":["EARTHWORKS"]}
	]}`
	w := do(r, http.MethodPost, "/v1/jobs", strings.NewReader(body), "application/json")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.ItemCount)
	assert.Equal(t, "/v1/jobs/"+resp.JobID.String(), w.Header().Get("Location"))

	snap := waitDone(t, r, resp.JobID)
	assert.Equal(t, "completed", string(snap.Status))
	assert.Equal(t, 1, snap.MatchedCount)
	assert.Equal(t, 1, snap.ContextCount)

	w = do(r, http.MethodGet, "/v1/jobs/"+resp.JobID.String()+"/results", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"item_id":"P1"`)

	w = do(r, http.MethodGet, "/v1/jobs/"+resp.JobID.String()+"/export", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestSubmitJobRejected(t *testing.T) {
	r, _ := newTestServer(t)
	cases := map[string]string{
		"malformed":        `{"owner_id":`,
		"schema violation": `{"owner_id":"u1","items":[]}`,
		"unknown strategy": `{"owner_id":"u1","strategy":"magic","items":[{"description":"x","quantity":1}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/v1/jobs", strings.NewReader(body), "application/json")
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"code":"InvalidArgument"`)
		})
	}
}

func TestUploadWorkbook(t *testing.T) {
	r, _ := newTestServer(t)

	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	for i, row := range [][]any{
		{"Ref", "Description", "Unit", "Qty"},
		{"1", "EARTHWORKS"},
		{"1.1", "Excavation in soil", "m3", 12},
		{"1.2", "Concrete grade C25 in slab", "m3", 3},
	} {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, book.SetSheetRow(sheet, cell, &row))
	}
	data, err := book.WriteToBuffer()
	require.NoError(t, err)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("owner_id", "u1"))
	require.NoError(t, mw.WriteField("strategy", "lexical"))
	part, err := mw.CreateFormFile("file", "boq.xlsx")
	require.NoError(t, err)
	_, err = part.Write(data.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := do(r, http.MethodPost, "/v1/jobs/upload", &body, mw.FormDataContentType())
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.ItemCount)

	snap := waitDone(t, r, resp.JobID)
	assert.Equal(t, 2, snap.MatchedCount)
	assert.Equal(t, "boq.xlsx", snap.Name)
}

func TestUploadRejectsNonWorkbook(t *testing.T) {
	r, _ := newTestServer(t)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("hello"))
	require.NoError(t, mw.Close())

	w := do(r, http.MethodPost, "/v1/jobs/upload", &body, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobLookupErrors(t *testing.T) {
	r, _ := newTestServer(t)

	w := do(r, http.MethodGet, "/v1/jobs/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "must be a valid UUID")
	assert.Contains(t, w.Body.String(), "InvalidArgument")

	w = do(r, http.MethodGet, "/v1/jobs/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodDelete, "/v1/jobs/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMatchSingle(t *testing.T) {
	r, _ := newTestServer(t)
	w := do(r, http.MethodPost, "/v1/match", strings.NewReader(`{"description":"EXC01","quantity":4}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Result     entity.MatchResult `json:"result"`
		TotalPrice float64            `json:"total_price"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "P1", resp.Result.MatchedItemID())
	assert.InDelta(t, 50, resp.TotalPrice, 1e-9)

	w = do(r, http.MethodPost, "/v1/match", strings.NewReader(`{"description":"  "}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueueAndCancelAll(t *testing.T) {
	r, _ := newTestServer(t)
	w := do(r, http.MethodGet, "/v1/queue", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var qs entity.QueueStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &qs))
	assert.False(t, qs.IsProcessing)

	w = do(r, http.MethodPost, "/v1/jobs/cancel-all", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"cancelled":0}`, w.Body.String())
}

func TestJobEventsStream(t *testing.T) {
	r, _ := newTestServer(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	body := `{"owner_id":"u1","items":[{"description":"Excavation in soil","quantity":2,"unit":"m3"}]}`
	resp, err := http.Post(srv.URL+"/v1/jobs", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	var sub submitResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sub))
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/jobs/"+sub.JobID.String()+"/events", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	stream, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(stream), "event:snapshot")
	assert.Contains(t, string(stream), `"status":"completed"`)
}

func TestHealthz(t *testing.T) {
	r, _ := newTestServer(t)
	w := do(r, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, httpStatus(common.InvalidInput("x")))
	assert.Equal(t, http.StatusNotFound, httpStatus(common.NotFound("job")))
	assert.Equal(t, http.StatusServiceUnavailable, httpStatus(common.ProviderUnavailable("embed", nil)))
	assert.Equal(t, http.StatusInternalServerError, httpStatus(io.ErrUnexpectedEOF))
}

func TestNewHealthServer(t *testing.T) {
	srv, hs := NewHealthServer(nil)
	defer srv.Stop()

	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	want := &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}
	assert.True(t, proto.Equal(want, resp), "got %v", resp)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	resp, err = hs.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

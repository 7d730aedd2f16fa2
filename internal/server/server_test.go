package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-ingest/internal/config"
	"github.com/jonathan/cv-ingest/internal/draft"
	"github.com/jonathan/cv-ingest/internal/ingestion"
	"github.com/jonathan/cv-ingest/internal/pipeline"
	"github.com/jonathan/cv-ingest/internal/server/ratelimit"
	"github.com/jonathan/cv-ingest/internal/types"
)

type stubIngester struct {
	mu    sync.Mutex
	fn    func(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	last  pipeline.Request
	calls int
	state pipeline.State
}

func (s *stubIngester) Ingest(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	s.mu.Lock()
	s.last = req
	s.calls++
	fn := s.fn
	s.mu.Unlock()
	return fn(ctx, req)
}

func (s *stubIngester) State() pipeline.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == "" {
		return pipeline.StateIdle
	}
	return s.state
}

type testEnv struct {
	server      *Server
	ingester    *stubIngester
	store       *draft.MemoryStore
	broadcaster *draft.Broadcaster
	owner       uuid.UUID
	token       string
}

func newTestEnv(t *testing.T, opts ...func(*Config)) *testEnv {
	t.Helper()
	store := draft.NewMemoryStore()
	broadcaster := draft.NewBroadcaster()
	ingester := &stubIngester{fn: func(context.Context, pipeline.Request) (*pipeline.Result, error) {
		return sampleResult(), nil
	}}

	cfg := Config{
		Ingester:  ingester,
		Drafts:    draft.NewWriter(store, broadcaster, nil),
		Events:    broadcaster,
		JWT:       &config.JWTConfig{Secret: testSecret, ExpirationHours: 1},
		RateLimit: &ratelimit.Config{Enabled: false},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(s.rateLimiter.Stop)

	owner := uuid.New()
	token, err := s.jwtService.Issue(owner)
	require.NoError(t, err)

	return &testEnv{server: s, ingester: ingester, store: store, broadcaster: broadcaster, owner: owner, token: token}
}

func sampleResult() *pipeline.Result {
	state := types.NewCVState()
	state.PersonalInfo.FirstName = "Jane"
	state.Experiences = []types.Experience{{JobTitle: "Engineer", Company: "Acme"}}
	return &pipeline.Result{
		RunID:  uuid.New(),
		Draft:  state,
		Source: ingestion.SourceNative,
		Length: 812,
	}
}

func uploadBody(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, path, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := uploadBody(t, "cv.pdf", contentType, data)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+e.token)
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+e.token)
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

var pdfData = []byte("%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\n%%EOF\n")

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	b := draft.NewBroadcaster()
	_, err = New(Config{Ingester: &stubIngester{}, Drafts: draft.NewWriter(draft.NewMemoryStore(), b, nil), Events: b})
	assert.ErrorContains(t, err, "JWT")
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/cv/ingest"},
		{http.MethodPost, "/cv/ingest/stream"},
		{http.MethodGet, "/cv/ingest/status"},
		{http.MethodGet, "/cv/ingest/runs"},
		{http.MethodGet, "/cv/ingest/runs/" + uuid.NewString()},
		{http.MethodGet, "/cv/draft"},
		{http.MethodGet, "/cv/draft/events"},
	} {
		w := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(w, httptest.NewRequest(route.method, route.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, route.path)
	}
	assert.Equal(t, 0, env.ingester.calls)
}

func TestIngest_Success(t *testing.T) {
	env := newTestEnv(t)

	w := env.upload(t, "/cv/ingest", "application/pdf", pdfData)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		RunID  string        `json:"run_id"`
		Source string        `json:"source"`
		Length int           `json:"length"`
		Draft  types.CVState `json:"draft"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, "native", resp.Source)
	assert.Equal(t, 812, resp.Length)
	assert.Equal(t, "Acme", resp.Draft.Experiences[0].Company)

	req := env.ingester.last
	assert.Equal(t, env.owner, req.Owner)
	require.NotNil(t, req.Document)
	assert.Equal(t, "cv.pdf", req.Document.Filename)
	assert.Equal(t, ingestion.MediaTypePDF, req.Document.MediaType)
	assert.Equal(t, pdfData, req.Document.Data)
	assert.Nil(t, req.OnProgress)
}

func TestIngest_MediaType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		data        []byte
		want        string
	}{
		{name: "declared pdf", contentType: "application/pdf", data: pdfData, want: "application/pdf"},
		{name: "declared with params", contentType: "application/pdf; name=cv.pdf", data: pdfData, want: "application/pdf"},
		{name: "octet stream is sniffed", contentType: "application/octet-stream", data: pdfData, want: "application/pdf"},
		{name: "missing is sniffed", contentType: "", data: pdfData, want: "application/pdf"},
		{name: "declared type is kept", contentType: "image/png", data: pdfData, want: "image/png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.upload(t, "/cv/ingest", tt.contentType, tt.data)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, env.ingester.last.Document.MediaType)
		})
	}
}

func TestIngest_MissingFileField(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/cv/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.token)
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, env.ingester.calls)
}

func TestIngest_TooLarge(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.MaxUploadBytes = 1024 })

	data := append(append([]byte{}, pdfData...), bytes.Repeat([]byte("x"), 2<<20)...)
	w := env.upload(t, "/cv/ingest", "application/pdf", data)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"FileSizeExceeded"`)
	assert.Equal(t, 0, env.ingester.calls)
}

func TestIngest_PartLargerThanLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.MaxUploadBytes = 1024 })

	data := append(append([]byte{}, pdfData...), bytes.Repeat([]byte("x"), 4096)...)
	w := env.upload(t, "/cv/ingest", "application/pdf", data)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, 0, env.ingester.calls)
}

func TestIngest_PipelineErrors(t *testing.T) {
	tests := []struct {
		kind   pipeline.Kind
		status int
	}{
		{pipeline.KindInvalidFileType, http.StatusUnsupportedMediaType},
		{pipeline.KindBusy, http.StatusConflict},
		{pipeline.KindInsufficientText, http.StatusUnprocessableEntity},
		{pipeline.KindParsingResponseInvalid, http.StatusUnprocessableEntity},
		{pipeline.KindParsingServiceError, http.StatusBadGateway},
		{pipeline.KindDraftWriteFailure, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			env := newTestEnv(t)
			env.ingester.fn = func(context.Context, pipeline.Request) (*pipeline.Result, error) {
				return nil, &pipeline.Error{Kind: tt.kind, Phase: pipeline.StateParsing, Message: "failed"}
			}

			w := env.upload(t, "/cv/ingest", "application/pdf", pdfData)

			assert.Equal(t, tt.status, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.kind, resp.Kind)
		})
	}
}

func TestIngestStream(t *testing.T) {
	env := newTestEnv(t)
	env.ingester.fn = func(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
		req.OnProgress(pipeline.ProgressEvent{Step: "validating", State: pipeline.StateValidating})
		req.OnProgress(pipeline.ProgressEvent{Step: "parsing", State: pipeline.StateParsing})
		return sampleResult(), nil
	}

	w := env.upload(t, "/cv/ingest/stream", "application/pdf", pdfData)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Equal(t, 2, strings.Count(body, "event: progress\n"))
	assert.Contains(t, body, `"state":"parsing"`)
	assert.Contains(t, body, "event: result\n")
	assert.Contains(t, body, "event: complete\n")
	assert.Less(t, strings.Index(body, "event: result"), strings.Index(body, "event: complete"))
}

func TestIngestStream_Error(t *testing.T) {
	env := newTestEnv(t)
	env.ingester.fn = func(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
		req.OnProgress(pipeline.ProgressEvent{Step: "ocr_extracting", State: pipeline.StateOCRExtracting})
		return nil, &pipeline.Error{Kind: pipeline.KindInsufficientText, Phase: pipeline.StateOCRExtracting, Message: "not enough text to parse"}
	}

	w := env.upload(t, "/cv/ingest/stream", "application/pdf", pdfData)

	body := w.Body.String()
	assert.Contains(t, body, "event: error\n")
	assert.Contains(t, body, `"kind":"InsufficientTextError"`)
	assert.NotContains(t, body, "event: complete")
}

func TestIngestStream_UploadErrorBeforeStream(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.MaxUploadBytes = 16 })

	w := env.upload(t, "/cv/ingest/stream", "application/pdf", pdfData)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestIngestStatus(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/cv/ingest/status")
	assert.JSONEq(t, `{"state":"idle","busy":false}`, w.Body.String())

	env.ingester.state = pipeline.StateOCRExtracting
	w = env.get(t, "/cv/ingest/status")
	assert.JSONEq(t, `{"state":"ocr_extracting","busy":true}`, w.Body.String())
}

func TestGetDraft(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/cv/draft")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, env.store.ReplaceDraft(context.Background(), env.owner, sampleResult().Draft))

	w = env.get(t, "/cv/draft")
	require.Equal(t, http.StatusOK, w.Code)
	var state types.CVState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, "Jane", state.PersonalInfo.FirstName)
}

func TestDraftEvents(t *testing.T) {
	env := newTestEnv(t)
	env.server.heartbeat = 20 * time.Millisecond
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/cv/draft/events?access_token="+env.token, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool { return env.broadcaster.Subscribers(env.owner) == 1 }, time.Second, 5*time.Millisecond)

	// another owner's refresh is not delivered
	env.broadcaster.DraftRefreshed(uuid.New())
	env.broadcaster.DraftRefreshed(env.owner)

	// keep-alive comments may arrive first
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if line != "event: draft_refreshed\n" {
			continue
		}
		data, err := reader.ReadString('\n')
		require.NoError(t, err)
		assert.Contains(t, data, env.owner.String())
		break
	}

	cancel()
	assert.Eventually(t, func() bool { return env.broadcaster.Subscribers(env.owner) == 0 }, time.Second, 5*time.Millisecond)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/cv/ingest", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestRateLimitedUploads(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.RateLimit = ratelimit.DefaultConfig()
		c.RateLimit.CleanupInterval = 0
	})

	var codes []int
	for i := 0; i < 4; i++ {
		codes = append(codes, env.upload(t, "/cv/ingest", "application/pdf", pdfData).Code)
	}

	assert.Equal(t, []int{200, 200, 200, 429}, codes)
	assert.Equal(t, 3, env.ingester.calls)

	w := env.upload(t, "/cv/ingest", "application/pdf", pdfData)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

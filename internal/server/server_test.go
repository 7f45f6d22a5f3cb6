package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/famomatic/ytfetch/client"
	"github.com/famomatic/ytfetch/internal/history"
	"github.com/famomatic/ytfetch/internal/types"
)

type stubProvider struct {
	meta map[string]*types.VideoMetadata
}

func (p *stubProvider) Video(_ context.Context, videoID string) (*types.VideoMetadata, error) {
	m, ok := p.meta[videoID]
	if !ok {
		return nil, types.ErrVideoUnavailable
	}
	return m, nil
}

func (p *stubProvider) StreamURL(_ context.Context, videoID string, itag int) (string, error) {
	return "https://rr1.googlevideo.com/videoplayback?id=" + videoID, nil
}

func (p *stubProvider) Stream(_ context.Context, _ string, _ int) (io.ReadCloser, int64, error) {
	return io.NopCloser(strings.NewReader("media-bytes")), 11, nil
}

type memHistory struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (h *memHistory) Record(_ context.Context, e history.Entry) (history.Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append([]history.Entry{e}, h.entries...)
	return e, nil
}

func (h *memHistory) Recent(_ context.Context, limit int) ([]history.Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit > len(h.entries) {
		limit = len(h.entries)
	}
	return append([]history.Entry(nil), h.entries[:limit]...), nil
}

func newTestServer(t *testing.T, mutate func(*Options)) (*Server, *memHistory) {
	t.Helper()
	p := &stubProvider{meta: map[string]*types.VideoMetadata{
		"Mh1hKt5kQ_4": {
			ID:    "Mh1hKt5kQ_4",
			Title: "Sample",
			Formats: []types.FormatInfo{
				{Itag: 137, MimeType: `video/mp4; codecs="avc1.640028"`, HasVideo: true, Height: 1080, Width: 1920},
				{Itag: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, HasVideo: true, HasAudio: true, Height: 360, Width: 640, QualityLabel: "360p", ContentLength: "1048576"},
				{Itag: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, HasAudio: true, Bitrate: 130000},
			},
		},
	}}
	h := &memHistory{}
	opts := Options{
		Service: client.New(client.Config{Provider: p}),
		History: h,
		Version: "test",
		Logger:  zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	return New(opts), h
}

func do(s *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Fatalf("body=%v", body)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("missing request id header")
	}
}

func TestResolve(t *testing.T) {
	s, h := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/api/resolve?url=https%3A%2F%2Fyoutu.be%2FMh1hKt5kQ_4")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["videoId"] != "Mh1hKt5kQ_4" {
		t.Fatalf("body=%v", body)
	}

	rec = do(s, http.MethodGet, "/api/resolve?url=https%3A%2F%2Fexample.com%2F")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rec.Code)
	}
	var e errorResponse
	decode(t, rec, &e)
	if e.Code != string(client.ErrorCategoryInvalidInput) || e.Error == "" {
		t.Fatalf("error body=%+v", e)
	}

	entries, _ := h.Recent(context.Background(), 10)
	if len(entries) != 1 || entries[0].Kind != history.KindResolve || entries[0].VideoID != "Mh1hKt5kQ_4" {
		t.Fatalf("history=%+v", entries)
	}
}

func TestInfo(t *testing.T) {
	s, h := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/api/info?url=https%3A%2F%2Fwww.youtube.com%2Fwatch%3Fv%3DMh1hKt5kQ_4")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	var body infoResponse
	decode(t, rec, &body)
	if body.Video.ID != "Mh1hKt5kQ_4" || body.Best == nil || body.Best.Itag != 18 {
		t.Fatalf("body=%+v", body)
	}
	if body.Showing != 1 || body.Total != 1 || body.Formats[0].Size != "1 MB" || body.Formats[0].Container != "mp4" {
		t.Fatalf("formats=%+v showing=%d total=%d", body.Formats, body.Showing, body.Total)
	}
	if len(h.entries) != 1 || h.entries[0].Kind != history.KindInfo || h.entries[0].Title != "Sample" {
		t.Fatalf("history=%+v", h.entries)
	}
}

func TestInfoErrors(t *testing.T) {
	s, _ := newTestServer(t, nil)
	tests := []struct {
		target string
		status int
	}{
		{target: "/api/info?url=jNQXAC9IVRw", status: http.StatusNotFound},
		{target: "/api/info?url=Mh1hKt5kQ_4&limit=-2", status: http.StatusBadRequest},
		{target: "/api/info?url=Mh1hKt5kQ_4&limit=ten", status: http.StatusBadRequest},
		{target: "/api/info", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := do(s, http.MethodGet, tt.target); rec.Code != tt.status {
			t.Fatalf("%s: status=%d, want %d (%s)", tt.target, rec.Code, tt.status, rec.Body)
		}
	}
}

func TestDownloadProxiesStream(t *testing.T) {
	s, h := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/api/download?url=Mh1hKt5kQ_4")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	if rec.Body.String() != "media-bytes" {
		t.Fatalf("body=%q", rec.Body)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename=Sample.mp4` {
		t.Fatalf("Content-Disposition=%q", got)
	}
	if rec.Header().Get("Content-Type") != "video/mp4" || rec.Header().Get("Content-Length") != "11" {
		t.Fatalf("headers=%v", rec.Header())
	}
	if len(h.entries) != 1 || h.entries[0].Kind != history.KindDownload || h.entries[0].Itag != 18 {
		t.Fatalf("history=%+v", h.entries)
	}
}

func TestDownloadRedirectAndErrors(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/api/download?url=Mh1hKt5kQ_4&mode=audioonly&redirect=1")
	if rec.Code != http.StatusFound {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, "https://rr1.googlevideo.com/") {
		t.Fatalf("Location=%q", loc)
	}

	tests := []struct {
		target string
		status int
	}{
		{target: "/api/download?url=Mh1hKt5kQ_4&mode=mp3", status: http.StatusBadRequest},
		{target: "/api/download?url=Mh1hKt5kQ_4&format=bv%2Bba", status: http.StatusBadRequest},
		{target: "/api/download?url=Mh1hKt5kQ_4&itag=22", status: http.StatusNotFound},
		{target: "/api/download?url=Mh1hKt5kQ_4&format=bestaudio%5Bext%3Dwebm%5D", status: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		if rec := do(s, http.MethodGet, tt.target); rec.Code != tt.status {
			t.Fatalf("%s: status=%d, want %d (%s)", tt.target, rec.Code, tt.status, rec.Body)
		}
	}
}

func TestHistoryEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)
	do(s, http.MethodGet, "/api/info?url=Mh1hKt5kQ_4")
	rec := do(s, http.MethodGet, "/api/history?limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var body struct {
		Entries []history.Entry `json:"entries"`
	}
	decode(t, rec, &body)
	if len(body.Entries) != 1 || body.Entries[0].VideoID != "Mh1hKt5kQ_4" {
		t.Fatalf("entries=%+v", body.Entries)
	}

	noHistory, _ := newTestServer(t, func(o *Options) { o.History = nil })
	rec = do(noHistory, http.MethodGet, "/api/history")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"entries":[]}` {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, func(o *Options) { o.CORSOrigins = []string{"https://app.example"} })

	req := httptest.NewRequest(http.MethodOptions, "/api/info", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status=%d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Fatalf("allow origin=%q", rec.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unexpected allow origin for unlisted origin")
	}
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, func(o *Options) {
		o.RateLimit = 0.001
		o.RateBurst = 2
	})
	for i := 0; i < 2; i++ {
		if rec := do(s, http.MethodGet, "/api/resolve?url=Mh1hKt5kQ_4"); rec.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, rec.Code)
		}
	}
	rec := do(s, http.MethodGet, "/api/resolve?url=Mh1hKt5kQ_4")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d, want 429", rec.Code)
	}
	// Health is outside the limited group.
	if rec := do(s, http.MethodGet, "/health"); rec.Code != http.StatusOK {
		t.Fatalf("health status=%d", rec.Code)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	s, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Header().Get(requestIDHeader) != "abc-123" {
		t.Fatalf("request id=%q", rec.Header().Get(requestIDHeader))
	}
}

func TestRequestIDReachesHandlerContext(t *testing.T) {
	r := gin.New()
	r.Use(requestID())
	r.GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, requestIDOf(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Body.String() != "abc-123" {
		t.Fatalf("context request id=%q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/id", nil))
	if got := rec.Body.String(); got == "" || got != rec.Header().Get(requestIDHeader) {
		t.Fatalf("generated id=%q header=%q", got, rec.Header().Get(requestIDHeader))
	}
}

func TestNoRoute(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/nope")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}
}

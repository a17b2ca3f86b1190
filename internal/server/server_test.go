package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FrenchMajesty/shoewall/internal/store"
	"github.com/FrenchMajesty/shoewall/pkg/analysis"
	"github.com/FrenchMajesty/shoewall/pkg/catalog"
	"github.com/FrenchMajesty/shoewall/pkg/ranking"
	"github.com/FrenchMajesty/shoewall/pkg/testutil"
	"github.com/FrenchMajesty/shoewall/pkg/types"
	"github.com/FrenchMajesty/shoewall/pkg/vision"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type failingPing struct{}

func (failingPing) Ping(ctx context.Context) error { return testutil.ErrUnavailable }

func newTestServer(t *testing.T) (*Server, *store.Memory) {
	t.Helper()
	mem := store.NewMemory(catalog.DemoSpecs())
	require.NoError(t, mem.UpsertProfile(context.Background(), "runner",
		types.UserProfile{ArchType: types.ArchNormal, Usage: types.UsageRoad, WeeklyMileage: 20}))

	resolver, err := catalog.NewResolver(catalog.ResolverConfig{Source: mem, Logger: quietLog})
	require.NoError(t, err)
	svc, err := analysis.New(analysis.Config{
		Vision:   vision.New(vision.Config{Mock: true, Logger: quietLog}),
		Ranking:  ranking.New(ranking.Config{Mock: true, Logger: quietLog}),
		Resolver: resolver,
		Profiles: mem,
		Scans:    mem,
		Logger:   quietLog,
	})
	require.NoError(t, err)

	return New(Config{
		Analysis:       svc,
		Profiles:       mem,
		Scans:          mem,
		Health:         mem,
		MaxUploadBytes: 1 << 20,
		VisionMock:     true,
		RankingMock:    true,
		Logger:         quietLog,
	}), mem
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, target string, image []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if image != nil {
		part, err := mw.CreateFormFile("image", "wall.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestScan_MockPipeline(t *testing.T) {
	s, mem := newTestServer(t)

	rec := serve(s, multipartRequest(t, "/api/scans?overlay=1", pngBytes(t, 120, 80), map[string]string{"user_id": "runner"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp scanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, vision.OutcomeSucceeded, resp.Outcome)
	assert.Len(t, resp.Vision.Candidates, 3)
	require.Len(t, resp.Recommendations.Ranked, 3)
	assert.Equal(t, 90.0, resp.Recommendations.Ranked[0].MatchScore)
	assert.Equal(t, 3, resp.BBoxSummary.TotalCandidates)

	overlayPNG, err := base64.StdEncoding.DecodeString(resp.OverlayPNGBase64)
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(overlayPNG))
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Width)
	assert.Equal(t, 80, cfg.Height)

	saved, err := mem.GetScan(context.Background(), resp.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "runner", saved.UserID)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/scans/"+resp.RequestID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestScan_WithoutOverlay(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, multipartRequest(t, "/api/scans", pngBytes(t, 10, 10), map[string]string{"user_id": "runner"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "overlay_png_base64")
}

func TestScan_BadRequests(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"no image", multipartRequest(t, "/api/scans", nil, map[string]string{"user_id": "runner"}), http.StatusBadRequest},
		{"no user", multipartRequest(t, "/api/scans", pngBytes(t, 4, 4), nil), http.StatusBadRequest},
		{"unknown user", multipartRequest(t, "/api/scans", pngBytes(t, 4, 4), map[string]string{"user_id": "ghost"}), http.StatusNotFound},
		{"not an image", multipartRequest(t, "/api/scans", []byte("hello, this is text"), map[string]string{"user_id": "runner"}), http.StatusUnsupportedMediaType},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/api/scans", strings.NewReader("{}")), http.StatusBadRequest},
		{"too large", multipartRequest(t, "/api/scans", make([]byte, 2<<20), map[string]string{"user_id": "runner"}), http.StatusRequestEntityTooLarge},
		{"wrong method", httptest.NewRequest(http.MethodGet, "/api/scans", nil), http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, tt.req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestGetScan_NotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/scans/00000000-0000-0000-0000-000000000000", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/scans/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOverlay(t *testing.T) {
	s, _ := newTestServer(t)
	candidates := `[
		{"raw_label": "Pegasus", "brand": "Nike", "model": "Pegasus 40", "confidence": 0.78, "bbox": {"x": 0.1, "y": 0.1, "w": 0.2, "h": 0.3}, "notes": null},
		{"raw_label": "Ghost", "brand": "Brooks", "model": "Ghost 15", "confidence": 0.74, "bbox": {"x": 0.5, "y": 0.4, "w": 0.2, "h": 0.3}, "notes": null},
		{"raw_label": "blue trainer", "brand": null, "model": null, "confidence": 0.3, "bbox": null, "notes": null}
	]`

	rec := serve(s, multipartRequest(t, "/api/overlay", pngBytes(t, 200, 150), map[string]string{"candidates": candidates}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "3", rec.Header().Get("X-BBox-Total"))
	assert.Equal(t, "2", rec.Header().Get("X-BBox-Localized"))
	assert.Equal(t, "1", rec.Header().Get("X-BBox-Missing"))

	cfg, err := png.DecodeConfig(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 150, cfg.Height)
}

func TestOverlay_Errors(t *testing.T) {
	s, _ := newTestServer(t)
	corrupt := append([]byte("\x89PNG\r\n\x1a\n"), []byte("not really a png")...)

	rec := serve(s, multipartRequest(t, "/api/overlay", corrupt, map[string]string{"candidates": "[]"}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serve(s, multipartRequest(t, "/api/overlay", pngBytes(t, 4, 4), map[string]string{"candidates": "{"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfile(t *testing.T) {
	s, mem := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/api/profiles/newbie", strings.NewReader(`{"arch_type": "flat", "usage": "trail", "weekly_mileage": 12}`))
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := mem.GetProfile(context.Background(), "newbie")
	require.NoError(t, err)
	assert.Equal(t, types.ArchFlat, got.ArchType)
	assert.Equal(t, 12, got.WeeklyMileage)
}

func TestProfile_Invalid(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodPut, "/api/profiles/x", strings.NewReader(`{"arch_type": "webbed", "usage": "road", "weekly_mileage": -1}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Violations, 2)

	rec = serve(s, httptest.NewRequest(http.MethodPut, "/api/profiles/x", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["vision_mock"])

	s.cfg.Health = failingPing{}
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	serve(s, multipartRequest(t, "/api/scans", pngBytes(t, 8, 8), map[string]string{"user_id": "runner"}))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Scans analysis.Snapshot `json:"scans"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Scans.TotalScans)
}

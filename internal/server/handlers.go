package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/FrenchMajesty/shoewall/internal/store"
	"github.com/FrenchMajesty/shoewall/pkg/analysis"
	"github.com/FrenchMajesty/shoewall/pkg/overlay"
	"github.com/FrenchMajesty/shoewall/pkg/schema"
	"github.com/FrenchMajesty/shoewall/pkg/types"
	"github.com/FrenchMajesty/shoewall/pkg/vision"
)

var supportedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

type scanResponse struct {
	RequestID        string                      `json:"request_id"`
	Outcome          vision.Outcome              `json:"outcome"`
	Vision           types.VisionResult          `json:"vision"`
	Recommendations  types.RecommendationsResult `json:"recommendations"`
	BBoxSummary      overlay.BBoxSummary         `json:"bbox_summary"`
	OverlayPNGBase64 string                      `json:"overlay_png_base64,omitempty"`
}

// readImage pulls the "image" part out of a multipart request and sniffs
// its type. The returned status is 0 on success.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request) ([]byte, string, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", s.cfg.MaxUploadBytes)
		}
		return nil, "", http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err)
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, "", http.StatusBadRequest, errors.New("missing image file")
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		return nil, "", http.StatusBadRequest, fmt.Errorf("failed to read image: %w", err)
	}

	mimeType := http.DetectContentType(image)
	if len(image) > 0 && !supportedMimeTypes[mimeType] {
		return nil, "", http.StatusUnsupportedMediaType, fmt.Errorf("unsupported image type %s", mimeType)
	}
	return image, mimeType, 0, nil
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	image, mimeType, status, err := s.readImage(w, r)
	if err != nil {
		respondError(w, status, err.Error())
		return
	}
	defer cleanupForm(r.MultipartForm)

	userID := r.FormValue("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	report, err := s.cfg.Analysis.Analyze(r.Context(), analysis.Request{
		UserID:   userID,
		Image:    image,
		MimeType: mimeType,
	})
	if errors.Is(err, analysis.ErrProfileNotFound) {
		respondError(w, http.StatusNotFound, fmt.Sprintf("no profile for user %s", userID))
		return
	}
	if err != nil && report == nil {
		s.cfg.Logger.Error("scan failed", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "scan failed")
		return
	}
	if err != nil {
		s.cfg.Logger.Error("scan not saved", "request_id", report.Vision.RequestID, "error", err)
	}

	resp := scanResponse{
		RequestID:       report.Vision.RequestID,
		Outcome:         report.Outcome,
		Vision:          report.Vision,
		Recommendations: report.Recommendations,
		BBoxSummary:     report.BBoxSummary,
	}

	if wantOverlay(r) {
		rendered, err := overlay.Render(image, report.Vision.Candidates)
		if err != nil {
			s.cfg.Logger.Warn("overlay not rendered", "request_id", resp.RequestID, "error", err)
		} else {
			resp.OverlayPNGBase64 = base64.StdEncoding.EncodeToString(rendered.PNG)
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

func wantOverlay(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("overlay"))
	return err == nil && v
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Scans == nil {
		respondError(w, http.StatusNotFound, "scan history is not enabled")
		return
	}
	requestID := r.PathValue("request_id")
	if err := uuid.Validate(requestID); err != nil {
		respondError(w, http.StatusBadRequest, "request_id must be a UUID")
		return
	}
	scan, err := s.cfg.Scans.GetScan(r.Context(), requestID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "scan not found")
		return
	}
	if err != nil {
		s.cfg.Logger.Error("get scan failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load scan")
		return
	}
	respondJSON(w, http.StatusOK, scan)
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	image, _, status, err := s.readImage(w, r)
	if err != nil {
		respondError(w, status, err.Error())
		return
	}
	defer cleanupForm(r.MultipartForm)

	var candidates []types.VisionCandidate
	if err := json.Unmarshal([]byte(r.FormValue("candidates")), &candidates); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("candidates must be a JSON array: %v", err))
		return
	}

	rendered, err := overlay.Render(image, candidates)
	var renderErr *overlay.RenderError
	if errors.As(err, &renderErr) {
		respondError(w, http.StatusUnprocessableEntity, renderErr.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "overlay failed")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "image/png")
	h.Set("X-BBox-Total", strconv.Itoa(rendered.Summary.TotalCandidates))
	h.Set("X-BBox-Localized", strconv.Itoa(rendered.Summary.LocalizedCandidates))
	h.Set("X-BBox-Missing", strconv.Itoa(rendered.Summary.MissingBBox))
	w.WriteHeader(http.StatusOK)
	w.Write(rendered.PNG)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if err := schema.ProfileValue(raw); err != nil {
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid profile", Violations: verr.Violations})
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var profile types.UserProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.cfg.Profiles.UpsertProfile(r.Context(), userID, profile); err != nil {
		s.cfg.Logger.Error("profile not saved", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to save profile")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	storeStatus := "ok"
	if s.cfg.Health != nil {
		if err := s.cfg.Health.Ping(r.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
			storeStatus = err.Error()
		}
	}

	respondJSON(w, code, map[string]any{
		"status":       status,
		"store":        storeStatus,
		"vision_mock":  s.cfg.VisionMock,
		"ranking_mock": s.cfg.RankingMock,
		"timestamp":    time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"scans":             s.cfg.Analysis.Metrics().Snapshot(),
		"system_uptime_sec": int(time.Since(s.started).Seconds()),
		"timestamp":         time.Now().Format(time.RFC3339),
	})
}

func cleanupForm(form *multipart.Form) {
	if form != nil {
		form.RemoveAll()
	}
}

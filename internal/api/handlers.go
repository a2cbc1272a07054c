package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/banshee-data/smart-traffic/internal/history"
	"github.com/banshee-data/smart-traffic/internal/httputil"
	"github.com/banshee-data/smart-traffic/internal/liveness"
	"github.com/banshee-data/smart-traffic/internal/security"
	"github.com/banshee-data/smart-traffic/internal/timeutil"
	"github.com/banshee-data/smart-traffic/internal/timing"
	"github.com/banshee-data/smart-traffic/internal/version"
)

// StatusResponse is the /api/status payload. Optional values are null
// until first seen.
type StatusResponse struct {
	LastCounts          []int             `json:"last_counts"`
	LastTimings         timing.Prediction `json:"last_timings"`
	LastImagePath       *string           `json:"last_image_path"`
	LastUpdateTimestamp string            `json:"last_update_timestamp"`
	LastCameraHeartbeat *string           `json:"last_camera_heartbeat"`
	LastLightsHeartbeat *string           `json:"last_lights_heartbeat"`
	CameraConnected     bool              `json:"esp32_camera_connected"`
	LightsConnected     bool              `json:"esp32_lights_connected"`
}

// CountsResponse is returned by /api/process_counts.
type CountsResponse struct {
	Counts  []int             `json:"counts"`
	Timings timing.Prediction `json:"timings"`
}

// ImageResponse is returned by /api/process_image.
type ImageResponse struct {
	Counts    []int             `json:"counts"`
	Timings   timing.Prediction `json:"timings"`
	ImagePath string            `json:"image_path"`
}

func optionalTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := timeutil.FormatUTC(t)
	return &s
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"status":  "ok",
		"time":    timeutil.FormatUTC(s.clock.Now()),
		"version": version.Version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	view := s.store.Snapshot()
	httputil.WriteJSONOK(w, StatusResponse{
		LastCounts:          view.LastCounts.Slice(),
		LastTimings:         view.LastTimings,
		LastImagePath:       optionalString(view.LastImageRef),
		LastUpdateTimestamp: timeutil.FormatUTC(view.LastUpdate),
		LastCameraHeartbeat: optionalTime(view.CameraHeartbeat),
		LastLightsHeartbeat: optionalTime(view.LightsHeartbeat),
		CameraConnected:     view.CameraConnected,
		LightsConnected:     view.LightsConnected,
	})
}

// handleHeartbeat serves /api/heartbeat/<peripheral>.
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	p, err := liveness.ParsePeripheral(strings.TrimPrefix(r.URL.Path, "/api/heartbeat/"))
	if err != nil {
		httputil.NotFound(w, err.Error())
		return
	}
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}
	at := s.store.RecordHeartbeat(p)
	httputil.WriteJSONOK(w, map[string]string{
		"status": "ok",
		"time":   timeutil.FormatUTC(at),
	})
}

func (s *Server) handleProcessCounts(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}

	values, msg := decodeCarCounts(http.MaxBytesReader(w, r.Body, 1<<20))
	if msg != "" {
		httputil.BadRequest(w, msg)
		return
	}

	counts, err := timing.NewCounts(values)
	if err != nil {
		var invalid *timing.InvalidInputError
		if errors.As(err, &invalid) {
			httputil.BadRequest(w, invalid.Error())
			return
		}
		httputil.InternalServerError(w, "failed to compute timings")
		return
	}
	result := timing.PredictCounts(counts)
	s.recordResult(r.Context(), history.SourceCounts, counts, result, "")

	s.logf("processed counts payload %v", values)
	httputil.WriteJSONOK(w, CountsResponse{Counts: counts.Slice(), Timings: result})
}

func (s *Server) handleProcessImage(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteJSONError(w, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		httputil.BadRequest(w, "imageFile field is required")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("imageFile")
	if err != nil {
		// A part sent with an empty filename lands in the value map.
		if _, ok := r.MultipartForm.Value["imageFile"]; ok {
			httputil.BadRequest(w, "Empty filename")
			return
		}
		httputil.BadRequest(w, "imageFile field is required")
		return
	}
	defer file.Close()

	path, err := s.images.Save(header.Filename, file)
	switch {
	case errors.Is(err, security.ErrEmptyFilename):
		httputil.BadRequest(w, "Empty filename")
		return
	case errors.Is(err, security.ErrInvalidFilename):
		httputil.BadRequest(w, "Invalid filename")
		return
	case err != nil:
		s.logf("failed to store image: %v", err)
		httputil.InternalServerError(w, "failed to store image")
		return
	}

	counts, err := s.counter.Count(r.Context(), path)
	if err != nil {
		s.logf("failed to count vehicles in %s: %v", path, err)
		httputil.InternalServerError(w, "failed to count vehicles")
		return
	}
	// Counter output is validated like client input.
	result, err := timing.Predict(counts.Slice())
	if err != nil {
		s.logf("counter returned invalid counts for %s: %v", path, err)
		httputil.InternalServerError(w, "failed to count vehicles")
		return
	}
	s.recordResult(r.Context(), history.SourceImage, counts, result, path)

	s.logf("processed image %s counts=%v", path, counts.Slice())
	httputil.WriteJSONOK(w, ImageResponse{Counts: counts.Slice(), Timings: result, ImagePath: path})
}

func (s *Server) handleGetTimings(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, s.store.LatestTimings())
}

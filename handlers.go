package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Tutortoise/xray-analysis-service/engine"
	"github.com/Tutortoise/xray-analysis-service/models"
	"github.com/Tutortoise/xray-analysis-service/pipeline"
)

type ErrorResponse struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

type RootResponse struct {
	Status string                    `json:"status"`
	Models map[models.ModelType]bool `json:"models"`
	CPU    engine.CPUInfo            `json:"cpu"`
}

func availableModels(registry *pipeline.Registry) string {
	available := registry.Available()
	names := make([]string, len(available))
	for i, t := range available {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func (s *AppState) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{
		Status: "API is running. Available models: " + availableModels(s.Registry),
		Models: s.Registry.Status(),
		CPU:    s.CPU,
	})
}

func (s *AppState) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	startTotal := time.Now()
	timings := &models.ProcessingTimings{RequestID: requestIDFrom(r.Context())}

	r.Body = http.MaxBytesReader(w, r.Body, s.Config.MaxUploadBytes)
	multipartBody := strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
	if multipartBody {
		if err := r.ParseMultipartForm(s.Config.MaxUploadBytes); err != nil {
			s.sendErrorResponse(w, r, pipeline.NewError(pipeline.KindInvalidRequest, "", "invalid multipart body", err))
			return
		}
	}

	// A raw body must stay unread until readUpload, so only multipart
	// uploads may carry model_type in the form.
	modelType := models.ModelType(r.URL.Query().Get("model_type"))
	if modelType == "" && multipartBody {
		modelType = models.ModelType(r.FormValue("model_type"))
	}
	if modelType == "" {
		modelType = models.ModelDetect
	}
	timings.ModelType = modelType

	model, err := s.Registry.Lookup(modelType)
	if err != nil {
		s.sendErrorResponse(w, r, err)
		return
	}

	imgBytes, err := readUpload(r, multipartBody)
	if err != nil {
		s.sendErrorResponse(w, r, pipeline.NewError(pipeline.KindInvalidRequest, modelType, "failed to read uploaded image", err))
		return
	}

	decodeStart := time.Now()
	img, err := pipeline.Decode(imgBytes, modelType)
	timings.ImageDecode = time.Since(decodeStart)
	if err != nil {
		s.sendErrorResponse(w, r, err)
		return
	}

	result, err := pipeline.Run(r.Context(), model, img, timings)
	if err != nil {
		s.sendErrorResponse(w, r, err)
		return
	}

	timings.Total = time.Since(startTotal)
	if timed, ok := result.(models.Timed); ok {
		timed.SetProcessingTime(timings.Total)
	}
	s.logTimings(timings)

	writeJSON(w, http.StatusOK, result)
}

func (s *AppState) addMonitoringRoutes(r *mux.Router) {
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
}

func (s *AppState) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	response := make(map[models.ModelType]engine.PoolMetrics)
	for t, e := range s.Registry.Engines() {
		if m, ok := e.(interface{ Metrics() engine.PoolMetrics }); ok {
			response[t] = m.Metrics()
		}
	}
	writeJSON(w, http.StatusOK, response)
}

// readUpload accepts a multipart "file" field, a JSON {"image": base64} body
// or the raw image bytes.
func readUpload(r *http.Request, multipartBody bool) ([]byte, error) {
	switch {
	case multipartBody:
		return handleMultipartRequest(r)
	case strings.HasPrefix(r.Header.Get("Content-Type"), "application/json"):
		return handleJSONRequest(r)
	default:
		return handleRawRequest(r)
	}
}

func handleJSONRequest(r *http.Request) ([]byte, error) {
	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	if req.Image == "" {
		return nil, errors.New("missing image field")
	}
	// Accept data URIs as well as bare base64.
	if i := strings.Index(req.Image, ";base64,"); i >= 0 && strings.HasPrefix(req.Image, "data:") {
		req.Image = req.Image[i+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(req.Image)
}

func handleMultipartRequest(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("missing file field: %w", err)
	}
	defer file.Close()

	return io.ReadAll(file)
}

func handleRawRequest(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty request body")
	}
	return data, nil
}

func (s *AppState) sendErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	kind := pipeline.KindOf(err)
	detail := err.Error()
	switch kind {
	case pipeline.KindUnknownModel, pipeline.KindModelUnavailable, pipeline.KindInvalidRequest:
	default:
		detail = "An error occurred during analysis: " + detail
	}

	entry := s.Logger.WithFields(logrus.Fields{
		"request_id": requestIDFrom(r.Context()),
		"code":       kind.String(),
	})
	var perr *pipeline.Error
	if errors.As(err, &perr) && perr.ModelType != "" {
		entry = entry.WithField("model_type", perr.ModelType)
	}
	if kind.StatusCode() >= http.StatusInternalServerError {
		entry.WithError(err).Error("Request failed")
	} else {
		entry.WithError(err).Warn("Request rejected")
	}

	writeJSON(w, kind.StatusCode(), ErrorResponse{
		Code:   kind.String(),
		Detail: detail,
	})
}

func (s *AppState) logTimings(t *models.ProcessingTimings) {
	s.Logger.WithFields(logrus.Fields{
		"request_id":   t.RequestID,
		"model_type":   t.ModelType,
		"image_decode": t.ImageDecode,
		"preprocess":   t.Preprocess,
		"inference":    t.Inference,
		"postprocess":  t.Postprocess,
		"total":        t.Total,
	}).Debug("Processing times")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

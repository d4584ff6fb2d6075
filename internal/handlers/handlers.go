package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/verdantlabs/cropsight/internal/classify"
	"github.com/verdantlabs/cropsight/internal/diagnose"
	"github.com/verdantlabs/cropsight/internal/imaging"
	"github.com/verdantlabs/cropsight/internal/model"
)

// Handler wires the HTTP surface to the inference services.
type Handler struct {
	registry   *model.Registry
	classifier *classify.Classifier
	engine     *diagnose.Engine
	processor  *imaging.Processor
	maxUpload  int64
}

func NewHandler(registry *model.Registry, classifier *classify.Classifier, engine *diagnose.Engine, processor *imaging.Processor, maxUpload int64) *Handler {
	return &Handler{
		registry:   registry,
		classifier: classifier,
		engine:     engine,
		processor:  processor,
		maxUpload:  maxUpload,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Models lists the crops that have a disease model available.
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	available := h.registry.AvailableModels()
	writeJSON(w, http.StatusOK, map[string]any{
		"available_models": available,
		"total_models":     len(available),
	})
}

// ModelStatus reports the crop classifier and per-crop disease model state.
func (h *Handler) ModelStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"crop_detector": map[string]any{
			"loaded":   h.classifier.Loaded(),
			"degraded": h.classifier.Degraded(),
		},
		"disease_models": h.registry.Status(),
		"active_model":   h.registry.ActiveModel(),
	})
}

// DetectDisease is the main endpoint: upload a leaf image, optionally with a
// crop_type form field; the crop is auto-detected when the field is absent.
func (h *Handler) DetectDisease(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	tensor, ok := h.readImageTensor(w, r)
	if !ok {
		return
	}

	var detection *classify.Detection
	if hint := strings.TrimSpace(r.FormValue("crop_type")); hint != "" {
		detection = classify.ManualDetection(hint)
	} else {
		log.Printf("auto-detecting crop type")
		detection = h.classifier.Detect(tensor)
	}
	log.Printf("using crop type: %s (confidence: %.2f)", detection.Crop, detection.Confidence)

	diag, err := h.engine.DetectDisease(r.Context(), tensor, detection.Crop)
	if err != nil {
		log.Printf("error in disease detection: %v", err)
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrUnknownCrop) {
			status = http.StatusNotFound
		}
		writeError(w, status, "disease detection failed: "+publicReason(err))
		return
	}

	writeJSON(w, http.StatusOK, diagnose.Synthesize(detection, diag))
}

// DetectCrop only identifies the crop type of the uploaded leaf image.
func (h *Handler) DetectCrop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	tensor, ok := h.readImageTensor(w, r)
	if !ok {
		return
	}

	detection := h.classifier.Detect(tensor)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "success",
		"crop_type":       detection.Crop,
		"confidence":      detection.Confidence,
		"all_predictions": detection.Probabilities,
		"threshold_met":   detection.ThresholdMet,
	})
}

// ActivateModel preloads a crop's disease model and marks it active.
func (h *Handler) ActivateModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	crop := strings.ToLower(strings.TrimSpace(r.FormValue("crop_type")))
	if crop == "" {
		writeError(w, http.StatusBadRequest, "crop_type is required")
		return
	}

	if err := h.registry.Activate(r.Context(), crop); err != nil {
		log.Printf("error activating model: %v", err)
		if errors.Is(err, model.ErrUnknownCrop) {
			writeError(w, http.StatusNotFound, "model for "+crop+" not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to activate model")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":       "success",
		"message":      "model for " + crop + " activated successfully",
		"active_model": crop,
	})
}

// readImageTensor parses the multipart upload, validates the content type
// and preprocesses the image. Writes the error response itself on failure.
func (h *Handler) readImageTensor(w http.ResponseWriter, r *http.Request) ([]float32, bool) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse form")
		return nil, false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no image file provided, use 'image' as the form field name")
		return nil, false
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		writeError(w, http.StatusBadRequest, "file must be an image")
		return nil, false
	}

	// Read one byte past the limit so an oversize upload is rejected rather
	// than silently truncated into an undecodable image.
	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image")
		return nil, false
	}
	if int64(len(data)) > h.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, "image exceeds maximum upload size")
		return nil, false
	}

	log.Printf("received file: %s, size: %d bytes", header.Filename, header.Size)

	tensor, err := h.processor.Preprocess(data)
	if err != nil {
		log.Printf("preprocessing error: %v", err)
		writeError(w, http.StatusBadRequest, "invalid image format, supported: JPEG, PNG")
		return nil, false
	}
	return tensor, true
}

// publicReason maps internal errors to user-safe messages.
func publicReason(err error) string {
	switch {
	case errors.Is(err, model.ErrUnknownCrop):
		return "no model available for this crop type"
	case errors.Is(err, model.ErrLoadFailed):
		return "model could not be loaded"
	default:
		return "prediction failed"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("error writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"status":  "error",
		"message": message,
	})
}

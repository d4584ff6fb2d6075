package model

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrUnknownCrop means the crop has no entry in the catalog.
	ErrUnknownCrop = errors.New("unknown crop")
	// ErrLoadFailed means the model artifact could not be materialized.
	ErrLoadFailed = errors.New("model load failed")
	// ErrClassCountMismatch means the configured class list does not match
	// the model's output size. Treated as fatal at load time.
	ErrClassCountMismatch = errors.New("class count does not match model output")
	// ErrPredictionFailed wraps runtime inference failures.
	ErrPredictionFailed = errors.New("prediction failed")
)

// CatalogEntry is a discovered-but-not-necessarily-loaded model artifact.
type CatalogEntry struct {
	Crop string
	Path string
}

// ClassConfig is the persisted per-crop model configuration.
type ClassConfig struct {
	Classes       []string `json:"classes"`
	InputShape    []int64  `json:"input_shape"`
	Preprocessing string   `json:"preprocessing"`
}

// Handle is a loaded disease model. Handles are owned by the Registry; callers
// must not retain them across requests.
type Handle struct {
	Crop      string
	Predictor Predictor
	Classes   []string
	LoadedAt  time.Time

	mu      sync.Mutex
	refs    int
	retired bool
}

// acquire pins the handle for one inference call. Reports false when the
// handle has already been retired by eviction or unload.
func (h *Handle) acquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.retired {
		return false
	}
	h.refs++
	return true
}

// release drops one pin. The predictor of a retired handle is closed by
// whichever of retire and the final release runs last.
func (h *Handle) release() {
	h.mu.Lock()
	h.refs--
	closeNow := h.retired && h.refs == 0
	h.mu.Unlock()
	if closeNow {
		_ = h.Predictor.Close()
	}
}

// retire marks the handle evicted. The predictor is closed immediately when
// no inference call holds a pin, otherwise when the last pin is released.
func (h *Handle) retire() {
	h.mu.Lock()
	if h.retired {
		h.mu.Unlock()
		return
	}
	h.retired = true
	closeNow := h.refs == 0
	h.mu.Unlock()
	if closeNow {
		_ = h.Predictor.Close()
	}
}

// Prediction is the raw classifier outcome for one tensor.
type Prediction struct {
	Class         string
	Confidence    float32
	Probabilities map[string]float32
}

// CropStatus is a read-only snapshot of one crop's model state.
type CropStatus struct {
	Available  bool   `json:"available"`
	Loaded     bool   `json:"loaded"`
	Active     bool   `json:"active"`
	Path       string `json:"model_path"`
	ClassCount int    `json:"classes_count"`
}

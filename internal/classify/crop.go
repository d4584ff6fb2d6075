// Package classify identifies the crop type of a leaf image when the caller
// does not supply one.
package classify

import (
	"log"
	"os"
	"strings"
	"sync"

	"github.com/verdantlabs/cropsight/internal/model"
)

// Detection is the crop classifier's outcome for one tensor.
type Detection struct {
	Crop          string             `json:"crop_type"`
	Confidence    float32            `json:"confidence"`
	Probabilities map[string]float32 `json:"all_predictions"`
	ThresholdMet  bool               `json:"threshold_met"`
	AutoDetected  bool               `json:"auto_detected"`
	Fallback      bool               `json:"fallback,omitempty"`
}

// ManualDetection builds the detection record for a caller-supplied crop
// hint: full confidence, no auto-detection.
func ManualDetection(crop string) *Detection {
	return &Detection{
		Crop:          strings.ToLower(crop),
		Confidence:    1.0,
		Probabilities: map[string]float32{strings.ToLower(crop): 1.0},
		ThresholdMet:  true,
		AutoDetected:  false,
	}
}

// Classifier wraps the crop-detection model. When the artifact is missing or
// broken it substitutes an uninformed placeholder so the service stays up in
// a clearly flagged degraded mode.
type Classifier struct {
	modelPath string
	crops     []string
	threshold float32
	loader    model.PredictorLoader

	mu        sync.Mutex
	predictor model.Predictor
	degraded  bool
}

func NewClassifier(modelPath string, crops []string, threshold float32, loader model.PredictorLoader) *Classifier {
	return &Classifier{
		modelPath: modelPath,
		crops:     crops,
		threshold: threshold,
		loader:    loader,
	}
}

// Load materializes the crop-detection model. Memoized. A missing or
// undeserializable artifact switches the classifier into degraded mode
// instead of failing startup; the condition is logged and visible in status.
func (c *Classifier) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.predictor != nil {
		return nil
	}

	if _, err := os.Stat(c.modelPath); err != nil {
		log.Printf("warning: crop detection model not found at %s, using uninformed placeholder (degraded mode, not for production)", c.modelPath)
		c.usePlaceholderLocked()
		return nil
	}

	predictor, err := c.loader(c.modelPath, model.ClassConfig{
		Classes:    c.crops,
		InputShape: []int64{1, 3, 224, 224},
	})
	if err != nil {
		log.Printf("warning: crop detection model failed to load (%v), using uninformed placeholder (degraded mode, not for production)", err)
		c.usePlaceholderLocked()
		return nil
	}

	c.predictor = predictor
	log.Printf("crop detection model loaded from %s", c.modelPath)
	return nil
}

func (c *Classifier) usePlaceholderLocked() {
	c.predictor = &model.UniformPredictor{Size: len(c.crops)}
	c.degraded = true
}

// Detect runs crop detection over a preprocessed tensor. It never fails:
// any runtime problem yields the fallback detection. Arg-max ties resolve
// to the lowest class index.
func (c *Classifier) Detect(tensor []float32) *Detection {
	if err := c.Load(); err != nil {
		return c.fallback()
	}

	c.mu.Lock()
	predictor := c.predictor
	c.mu.Unlock()

	output, err := predictor.Predict(tensor)
	if err != nil || len(output) == 0 {
		log.Printf("warning: crop detection failed (%v), using fallback prediction", err)
		return c.fallback()
	}

	maxIdx := 0
	maxVal := output[0]
	probabilities := make(map[string]float32)
	for i, val := range output {
		if i < len(c.crops) {
			probabilities[c.crops[i]] = val
		}
		if val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}

	crop := "unknown"
	confidence := maxVal
	if maxIdx < len(c.crops) {
		crop = c.crops[maxIdx]
	} else {
		confidence = 0.0
	}

	log.Printf("detected crop: %s with confidence: %.3f", crop, confidence)
	return &Detection{
		Crop:          crop,
		Confidence:    confidence,
		Probabilities: probabilities,
		ThresholdMet:  confidence > c.threshold,
		AutoDetected:  true,
	}
}

// fallback is the uninformed answer used when detection itself breaks:
// first configured crop, fixed low confidence, uniform probabilities.
func (c *Classifier) fallback() *Detection {
	crop := "unknown"
	if len(c.crops) > 0 {
		crop = c.crops[0]
	}
	probabilities := make(map[string]float32, len(c.crops))
	for _, cr := range c.crops {
		probabilities[cr] = 0.1
	}
	return &Detection{
		Crop:          crop,
		Confidence:    0.1,
		Probabilities: probabilities,
		ThresholdMet:  false,
		AutoDetected:  true,
		Fallback:      true,
	}
}

// Loaded reports whether a predictor (real or placeholder) is in place.
func (c *Classifier) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.predictor != nil
}

// Degraded reports whether the classifier is running on the placeholder.
func (c *Classifier) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

// SupportedCrops returns a copy of the crop label list.
func (c *Classifier) SupportedCrops() []string {
	out := make([]string, len(c.crops))
	copy(out, c.crops)
	return out
}

// Close releases the underlying predictor.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.predictor == nil {
		return nil
	}
	err := c.predictor.Close()
	c.predictor = nil
	return err
}

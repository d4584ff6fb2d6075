package classify

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/cropsight/internal/model"
)

var testCrops = []string{"corn", "tomato", "grape", "mango", "peanut"}

type fakePredictor struct {
	output []float32
	err    error
}

func (f *fakePredictor) Predict(input []float32) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

func (f *fakePredictor) OutputSize() int { return len(f.output) }

func (f *fakePredictor) Close() error { return nil }

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crop_detector.onnx")
	require.NoError(t, os.WriteFile(path, []byte("onnx"), 0o644))
	return path
}

func staticLoader(p model.Predictor, err error) model.PredictorLoader {
	return func(path string, cfg model.ClassConfig) (model.Predictor, error) {
		return p, err
	}
}

func TestClassifier_DegradedWhenArtifactMissing(t *testing.T) {
	c := NewClassifier(filepath.Join(t.TempDir(), "missing.onnx"), testCrops, 0.5, staticLoader(nil, errors.New("should not be called")))

	require.NoError(t, c.Load())
	require.True(t, c.Loaded())
	require.True(t, c.Degraded())
}

func TestClassifier_DegradedWhenLoadFails(t *testing.T) {
	c := NewClassifier(writeArtifact(t), testCrops, 0.5, staticLoader(nil, errors.New("corrupt artifact")))

	require.NoError(t, c.Load())
	require.True(t, c.Degraded())
}

func TestClassifier_LoadMemoized(t *testing.T) {
	calls := 0
	loader := func(path string, cfg model.ClassConfig) (model.Predictor, error) {
		calls++
		return &fakePredictor{output: make([]float32, len(testCrops))}, nil
	}
	c := NewClassifier(writeArtifact(t), testCrops, 0.5, loader)

	require.NoError(t, c.Load())
	require.NoError(t, c.Load())
	require.Equal(t, 1, calls)
	require.False(t, c.Degraded())
}

func TestClassifier_DetectArgMax(t *testing.T) {
	p := &fakePredictor{output: []float32{0.05, 0.8, 0.05, 0.05, 0.05}}
	c := NewClassifier(writeArtifact(t), testCrops, 0.5, staticLoader(p, nil))

	d := c.Detect(make([]float32, 8))
	require.Equal(t, "tomato", d.Crop)
	require.InDelta(t, 0.8, d.Confidence, 1e-6)
	require.True(t, d.ThresholdMet)
	require.True(t, d.AutoDetected)
	require.False(t, d.Fallback)
	require.Len(t, d.Probabilities, len(testCrops))
}

func TestClassifier_DetectTieResolvesToLowestIndex(t *testing.T) {
	p := &fakePredictor{output: []float32{0.4, 0.4, 0.1, 0.05, 0.05}}
	c := NewClassifier(writeArtifact(t), testCrops, 0.5, staticLoader(p, nil))

	d := c.Detect(make([]float32, 8))
	require.Equal(t, "corn", d.Crop)
	require.False(t, d.ThresholdMet)
}

func TestClassifier_FallbackOnRuntimeFailure(t *testing.T) {
	p := &fakePredictor{err: errors.New("shape mismatch")}
	c := NewClassifier(writeArtifact(t), testCrops, 0.5, staticLoader(p, nil))

	d := c.Detect(make([]float32, 8))
	require.True(t, d.Fallback)
	require.Equal(t, "corn", d.Crop)
	require.InDelta(t, 0.1, d.Confidence, 1e-6)
	require.False(t, d.ThresholdMet)
	require.Len(t, d.Probabilities, len(testCrops))
}

func TestClassifier_DegradedDetectIsUniform(t *testing.T) {
	c := NewClassifier(filepath.Join(t.TempDir(), "missing.onnx"), testCrops, 0.5, staticLoader(nil, nil))

	d := c.Detect(make([]float32, 8))
	require.Equal(t, "corn", d.Crop) // uniform distribution, tie -> first crop
	require.InDelta(t, 1.0/float32(len(testCrops)), d.Confidence, 1e-6)
	require.False(t, d.ThresholdMet)
}

func TestManualDetection(t *testing.T) {
	d := ManualDetection("Tomato")
	require.Equal(t, "tomato", d.Crop)
	require.InDelta(t, 1.0, d.Confidence, 1e-6)
	require.False(t, d.AutoDetected)
	require.True(t, d.ThresholdMet)
}

func TestClassifier_SupportedCropsIsACopy(t *testing.T) {
	c := NewClassifier("x", testCrops, 0.5, staticLoader(nil, nil))
	crops := c.SupportedCrops()
	crops[0] = "mutated"
	require.Equal(t, "corn", c.SupportedCrops()[0])
}

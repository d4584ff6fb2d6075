package model

// Predictor is the capability the registry and engine depend on: a loaded
// classifier that maps an input tensor to a probability vector. The concrete
// inference runtime binding lives in its own adapter.
type Predictor interface {
	// Predict runs inference on a flat input tensor and returns one
	// probability per class. Deterministic for a given tensor.
	Predict(input []float32) ([]float32, error)

	// OutputSize reports the length of the probability vector.
	OutputSize() int

	// Close releases any resources held by the predictor.
	Close() error
}

// PredictorLoader materializes a Predictor from an artifact path and its
// class configuration. Injected into the Registry so the core never depends
// on a concrete runtime.
type PredictorLoader func(path string, cfg ClassConfig) (Predictor, error)

// UniformPredictor is an uninformed placeholder: every class gets the same
// probability. Used as the crop classifier's degraded-mode substitute when
// the real artifact is missing. Not for production inference.
type UniformPredictor struct {
	Size int
}

func (u *UniformPredictor) Predict(input []float32) ([]float32, error) {
	out := make([]float32, u.Size)
	if u.Size == 0 {
		return out, nil
	}
	p := 1.0 / float32(u.Size)
	for i := range out {
		out[i] = p
	}
	return out, nil
}

func (u *UniformPredictor) OutputSize() int { return u.Size }

func (u *UniformPredictor) Close() error { return nil }

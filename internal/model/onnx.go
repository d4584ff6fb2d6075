package model

import (
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

// InitRuntime initializes the ONNX runtime environment. Safe to call more
// than once; only the first call does work.
func InitRuntime() error {
	runtimeOnce.Do(func() {
		runtimeErr = ort.InitializeEnvironment()
	})
	return runtimeErr
}

// ShutdownRuntime destroys the ONNX runtime environment. Call once at
// process shutdown, after all predictors are closed.
func ShutdownRuntime() {
	_ = ort.DestroyEnvironment()
}

// ONNXPredictor runs a single ONNX session with pre-allocated input and
// output tensors. Predict is serialized because the tensors are reused
// between calls.
type ONNXPredictor struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	outputSize   int
}

// NewONNXPredictor builds a session for the artifact at path. outputSize must
// match the model's output vector length.
func NewONNXPredictor(path string, inputShape []int64, outputSize int) (*ONNXPredictor, error) {
	if err := InitRuntime(); err != nil {
		return nil, fmt.Errorf("initialize ONNX environment: %w", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(inputShape...))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(outputSize)))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(path,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create ONNX session: %w", err)
	}

	return &ONNXPredictor{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		outputSize:   outputSize,
	}, nil
}

func (p *ONNXPredictor) Predict(input []float32) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return nil, errors.New("predictor is closed")
	}

	data := p.inputTensor.GetData()
	if len(input) != len(data) {
		return nil, fmt.Errorf("input size mismatch: expected %d values, got %d", len(data), len(input))
	}
	copy(data, input)

	if err := p.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := make([]float32, p.outputSize)
	copy(out, p.outputTensor.GetData())
	return out, nil
}

func (p *ONNXPredictor) OutputSize() int { return p.outputSize }

func (p *ONNXPredictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inputTensor != nil {
		p.inputTensor.Destroy()
		p.inputTensor = nil
	}
	if p.outputTensor != nil {
		p.outputTensor.Destroy()
		p.outputTensor = nil
	}
	if p.session != nil {
		p.session.Destroy()
		p.session = nil
	}
	return nil
}

// ONNXLoader is the production PredictorLoader. When the class list is empty
// the output size is read from the model itself.
func ONNXLoader(path string, cfg ClassConfig) (Predictor, error) {
	outputSize := len(cfg.Classes)
	if outputSize == 0 {
		size, err := onnxOutputSize(path)
		if err != nil {
			return nil, err
		}
		outputSize = size
	}

	inputShape := cfg.InputShape
	if len(inputShape) == 0 {
		inputShape = []int64{1, 3, 224, 224}
	}

	return NewONNXPredictor(path, inputShape, outputSize)
}

func onnxOutputSize(path string) (int, error) {
	if err := InitRuntime(); err != nil {
		return 0, fmt.Errorf("initialize ONNX environment: %w", err)
	}
	_, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return 0, fmt.Errorf("read model info: %w", err)
	}
	if len(outputs) == 0 {
		return 0, fmt.Errorf("model %s declares no outputs", path)
	}
	shape := outputs[0].Dimensions
	if len(shape) == 0 {
		return 0, fmt.Errorf("model %s output has no shape", path)
	}
	return int(shape[len(shape)-1]), nil
}

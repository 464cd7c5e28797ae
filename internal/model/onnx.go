package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortOnce sync.Once
	ortErr  error
)

// InitRuntime loads the onnxruntime shared library once per process.
// An empty libPath uses the library's default lookup.
func InitRuntime(libPath string) error {
	ortOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			ortErr = fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	})
	return ortErr
}

// DestroyRuntime tears down the onnxruntime environment.
func DestroyRuntime() error {
	return ort.DestroyEnvironment()
}

// ONNXNetwork runs the exported sign CNN with onnxruntime. The session is
// bound to a single [1, input_dim] input and [1, num_classes] output tensor,
// so Forward calls are serialized.
type ONNXNetwork struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewONNXNetwork opens modelPath with the tensor shapes described by meta.
// InitRuntime must have succeeded first.
func NewONNXNetwork(modelPath string, meta Metadata) (*ONNXNetwork, error) {
	inputShape := ort.NewShape(1, int64(meta.InputDim))
	outputShape := ort.NewShape(1, int64(meta.NumClasses))

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{meta.InputName}, []string{meta.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXNetwork{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Forward copies input into the bound tensor, runs the session and returns
// a copy of the logits.
func (n *ONNXNetwork) Forward(input []float32) ([]float32, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	dst := n.inputTensor.GetData()
	if len(input) != len(dst) {
		return nil, fmt.Errorf("onnx: %w: got %d values, want %d", ErrDimensionMismatch, len(input), len(dst))
	}
	copy(dst, input)

	if err := n.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return append([]float32(nil), n.outputTensor.GetData()...), nil
}

// Close destroys the session and its tensors.
func (n *ONNXNetwork) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.inputTensor != nil {
		n.inputTensor.Destroy()
		n.inputTensor = nil
	}
	if n.outputTensor != nil {
		n.outputTensor.Destroy()
		n.outputTensor = nil
	}
	if n.session != nil {
		err := n.session.Destroy()
		n.session = nil
		return err
	}
	return nil
}

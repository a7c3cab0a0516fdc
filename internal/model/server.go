package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Server holds one ONNX Runtime session for the process lifetime. The session is bound
// to preallocated tensors, so Predict calls are serialized.
type Server struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	Metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func NewServer(opts Options) (*Server, error) {
	if opts.SharedLibrary != "" {
		ort.SetSharedLibraryPath(opts.SharedLibrary)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("%w: failed to initialize ONNX environment: %v", ErrModelLoad, err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read model info from %s: %v", ErrModelLoad, opts.ModelPath, err)
	}

	in, err := pickTensor(inputs, opts.InputName, "input")
	if err != nil {
		return nil, err
	}
	out, err := pickTensor(outputs, opts.OutputName, "output")
	if err != nil {
		return nil, err
	}

	metadata := Metadata{InputName: in.Name, OutputName: out.Name}
	if metadata.InputShape, err = resolveShape(in.Dimensions, opts.InputShape); err != nil {
		return nil, fmt.Errorf("%w: input %q: %v", ErrModelLoad, in.Name, err)
	}
	if metadata.OutputShape, err = resolveShape(out.Dimensions, nil); err != nil {
		return nil, fmt.Errorf("%w: output %q: %v", ErrModelLoad, out.Name, err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(opts.ModelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("%w: failed to create ONNX session: %v", ErrModelLoad, err)
	}

	return &Server{
		session:      session,
		Metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Predict runs one forward pass and returns a copy of the score vector.
func (s *Server) Predict(inputData []float32) ([]float32, error) {
	if want := s.Metadata.InputSize(); len(inputData) != want {
		return nil, fmt.Errorf("expected %d input values, got %d", want, len(inputData))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.inputTensor.GetData(), inputData)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	outputData := s.outputTensor.GetData()
	scores := make([]float32, len(outputData))
	copy(scores, outputData)
	return scores, nil
}

func (s *Server) OutputSize() int {
	return s.Metadata.OutputSize()
}

func (s *Server) InputSize() int {
	return s.Metadata.InputSize()
}

func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
	ort.DestroyEnvironment()
}

func pickTensor(infos []ort.InputOutputInfo, name, kind string) (ort.InputOutputInfo, error) {
	if len(infos) == 0 {
		return ort.InputOutputInfo{}, fmt.Errorf("%w: model declares no %s tensors", ErrModelLoad, kind)
	}
	if name == "" {
		return infos[0], nil
	}
	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
	}
	return ort.InputOutputInfo{}, fmt.Errorf("%w: model has no %s named %q", ErrModelLoad, kind, name)
}

// resolveShape fills dynamic (negative) dimensions. A configured override wins when its rank
// matches; otherwise only a dynamic leading batch dimension is allowed and becomes 1.
func resolveShape(dims []int64, override []int64) ([]int64, error) {
	if len(override) > 0 {
		if len(override) != len(dims) {
			return nil, fmt.Errorf("configured shape %v has rank %d, model has %v", override, len(override), dims)
		}
		for i, d := range dims {
			if d > 0 && d != override[i] {
				return nil, fmt.Errorf("configured shape %v conflicts with model shape %v", override, dims)
			}
		}
		return append([]int64(nil), override...), nil
	}

	shape := make([]int64, len(dims))
	for i, d := range dims {
		switch {
		case d > 0:
			shape[i] = d
		case i == 0:
			shape[i] = 1
		default:
			return nil, fmt.Errorf("dimension %d of %v is dynamic", i, dims)
		}
	}
	return shape, nil
}

package model

// Options configures the ONNX classifier.
type Options struct {
	ModelPath     string
	SharedLibrary string
	// InputName and OutputName select tensors by name; empty means the model's first input/output.
	InputName  string
	OutputName string
	// InputShape is used when the model declares dynamic input dimensions.
	InputShape []int64
}

// Metadata describes the tensors the loaded session is bound to.
type Metadata struct {
	InputName   string  `json:"input_name"`
	OutputName  string  `json:"output_name"`
	InputShape  []int64 `json:"input_shape"`
	OutputShape []int64 `json:"output_shape"`
}

// InputSize is the number of float32 values one Predict call expects.
func (m Metadata) InputSize() int {
	return shapeSize(m.InputShape)
}

// OutputSize is the length of the score vector.
func (m Metadata) OutputSize() int {
	return shapeSize(m.OutputShape)
}

func shapeSize(shape []int64) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}

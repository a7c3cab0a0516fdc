package model

import (
	"errors"
	"fmt"
)

// ErrModelLoad indicates the artifact exists but could not be loaded by ONNX Runtime.
var ErrModelLoad = errors.New("model load failed")

// ProvisioningError reports that the model artifact could not be made available locally.
type ProvisioningError struct {
	URL  string
	Path string
	Err  error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provision model %s from %q: %v", e.Path, e.URL, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

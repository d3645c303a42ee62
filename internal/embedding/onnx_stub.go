//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

var errNoCGO = errors.New("ONNX facility requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXConfig describes how the ONNX facility finds and runs models.
type ONNXConfig struct {
	ModelDir   string
	Dimensions int
	MaxTokens  int
	OutputName string
}

// InitRuntime always fails without CGO.
func InitRuntime(string) error { return errNoCGO }

// ONNXFacility stub type when built without CGO (see onnx.go for the real implementation).
type ONNXFacility struct{}

// NewONNXFacility returns an error when built without CGO.
func NewONNXFacility(ONNXConfig) (*ONNXFacility, error) { return nil, errNoCGO }

// Load always fails without CGO.
func (f *ONNXFacility) Load(context.Context, string, func(LoadProgress)) (InferenceFunc, error) {
	return nil, errNoCGO
}

// Close is a no-op.
func (f *ONNXFacility) Close() error { return nil }

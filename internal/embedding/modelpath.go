package embedding

import (
	"fmt"
	"path/filepath"
	"strings"
)

// modelFileName is the file expected inside a model's directory.
const modelFileName = "model.onnx"

// ModelPath maps a model name such as "Xenova/all-MiniLM-L6-v2" to
// <dir>/Xenova/all-MiniLM-L6-v2/model.onnx. Names ending in ".onnx" name the file
// directly. Names that would escape dir are rejected.
func ModelPath(dir, model string) (string, error) {
	name := strings.TrimSpace(model)
	if name == "" {
		return "", fmt.Errorf("empty model name")
	}
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid model name %q", model)
		}
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("model name %q must be relative to the model directory", model)
	}
	rel := filepath.FromSlash(name)
	if strings.EqualFold(filepath.Ext(rel), ".onnx") {
		return filepath.Join(dir, rel), nil
	}
	return filepath.Join(dir, rel, modelFileName), nil
}

// Package cli provides output formatting and the HTTP client used by the vecta CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/vecta/internal/chunk"
	"github.com/hyperjump/vecta/internal/embedding"
	"github.com/hyperjump/vecta/internal/models"
	"github.com/hyperjump/vecta/pkg/utils"
)

// OutputFormat selects how command results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is the full response as indented JSON.
	OutputJSON OutputFormat = "json"
	// OutputNDJSON is one document per line, readable by models.ParseNDJSON.
	OutputNDJSON OutputFormat = "ndjson"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON, OutputNDJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, json, or ndjson", s)
	}
}

// WriteGenerate writes a generate response. Failures are written in every format so
// scripts can read the error payload.
func WriteGenerate(w io.Writer, resp *models.GenerateResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, resp)
	case OutputNDJSON:
		if resp.Result == nil {
			return writeJSON(w, resp)
		}
		return models.WriteNDJSON(w, resp.Result.Documents)
	default:
		writeGenerateText(w, resp)
		return nil
	}
}

func writeGenerateText(w io.Writer, resp *models.GenerateResponse) {
	if resp.NoUpdate {
		fmt.Fprintln(w, "Nothing to embed.")
		return
	}
	fmt.Fprintf(w, "[%s] %s\n", resp.Severity, resp.Status)
	if resp.Result == nil {
		return
	}
	fmt.Fprintln(w)
	for _, d := range resp.Result.Documents {
		fmt.Fprintf(w, "%s  dims=%d  %s/%s\n", d.ID, len(d.Embedding), d.Category, d.Subcategory)
		fmt.Fprintf(w, "  %s\n", utils.Truncate(d.Text, 100))
		fmt.Fprintf(w, "  %s\n", previewVector(d.Embedding, 4))
	}
}

func previewVector(v []float32, n int) string {
	parts := make([]string, 0, n+1)
	for i, x := range v {
		if i == n {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, fmt.Sprintf("%.4f", x))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// WriteUnits writes the result of a chunk preview.
func WriteUnits(w io.Writer, units []chunk.TextUnit, strategy chunk.Strategy, format OutputFormat) error {
	if format == OutputJSON || format == OutputNDJSON {
		if units == nil {
			units = []chunk.TextUnit{}
		}
		return writeJSON(w, map[string]interface{}{"strategy": strategy, "units": units})
	}
	fmt.Fprintf(w, "%d text units (%s)\n", len(units), strategy)
	for _, u := range units {
		fmt.Fprintf(w, "%3d  %s\n", u.Index, utils.Truncate(u.Text, 120))
	}
	return nil
}

// WriteModels writes a model status listing.
func WriteModels(w io.Writer, defaultModel string, list []embedding.ModelStatus, format OutputFormat) error {
	if format == OutputJSON || format == OutputNDJSON {
		return writeJSON(w, map[string]interface{}{"default_model": defaultModel, "models": list})
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "No models loaded.")
		return nil
	}
	for _, st := range list {
		marker := " "
		if st.Current {
			marker = "*"
		}
		line := fmt.Sprintf("%s %-40s %s", marker, st.Name, st.State)
		if st.Name == defaultModel {
			line += "  (default)"
		}
		if st.Reason != "" {
			line += "  " + st.Reason
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

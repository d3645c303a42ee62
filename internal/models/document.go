// Package models defines the documents and request/response payloads exchanged
// with embedding callers.
package models

// Document is one embedded text unit with its labels.
type Document struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Embedding   []float32 `json:"embedding"`
	Category    string    `json:"category,omitempty"`
	Subcategory string    `json:"subcategory,omitempty"`
	Tags        []string  `json:"tags"`
}

const (
	DefaultCategory    = "Text Input"
	DefaultSubcategory = "Generated"
)

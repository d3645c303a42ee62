package models

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// ParseNDJSON reads one document per non-blank line. Documents without an id get a
// random UUID. text and embedding are required.
func ParseNDJSON(r io.Reader) ([]Document, error) {
	var docs []Document
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var rec struct {
			ID          *string   `json:"id"`
			Text        *string   `json:"text"`
			Embedding   []float32 `json:"embedding"`
			Category    string    `json:"category"`
			Subcategory string    `json:"subcategory"`
			Tags        []string  `json:"tags"`
		}
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.Text == nil {
			return nil, fmt.Errorf("line %d: missing text", line)
		}
		if rec.Embedding == nil {
			return nil, fmt.Errorf("line %d: missing embedding", line)
		}
		doc := Document{
			Text:        *rec.Text,
			Embedding:   rec.Embedding,
			Category:    rec.Category,
			Subcategory: rec.Subcategory,
			Tags:        rec.Tags,
		}
		if rec.ID != nil {
			doc.ID = *rec.ID
		} else {
			doc.ID = uuid.New().String()
		}
		docs = append(docs, doc)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ndjson: %w", err)
	}
	return docs, nil
}

// WriteNDJSON writes each document as one JSON line.
func WriteNDJSON(w io.Writer, docs []Document) error {
	enc := json.NewEncoder(w)
	for i := range docs {
		d := docs[i]
		if d.Tags == nil {
			d.Tags = []string{}
		}
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("write document %s: %w", d.ID, err)
		}
	}
	return nil
}

var errNoDocuments = errors.New("no documents")

// Embeddings returns the vectors of docs in order. All vectors must have the same length.
func Embeddings(docs []Document) ([][]float32, error) {
	if len(docs) == 0 {
		return nil, errNoDocuments
	}
	out := make([][]float32, len(docs))
	dims := len(docs[0].Embedding)
	for i, d := range docs {
		if len(d.Embedding) != dims {
			return nil, fmt.Errorf("document %s has %d dimensions, expected %d", d.ID, len(d.Embedding), dims)
		}
		out[i] = d.Embedding
	}
	return out, nil
}

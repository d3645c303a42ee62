package models

// Severity classifies a status message for display.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityDanger  Severity = "danger"
)

// GenerateRequest asks for embeddings of raw text.
type GenerateRequest struct {
	Text        string `json:"text"`
	Model       string `json:"model"`
	Strategy    string `json:"strategy,omitempty"`
	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
	// Pooling and Normalize override the configured inference options when set.
	Pooling   string `json:"pooling,omitempty"`
	Normalize *bool  `json:"normalize,omitempty"`
	BatchSize int    `json:"batch_size,omitempty"`
}

// GenerateResult holds the documents and their vectors, in text-unit order.
type GenerateResult struct {
	Documents  []Document  `json:"documents"`
	Embeddings [][]float32 `json:"embeddings"`
}

// GenerateResponse is the outcome of a generate call. Exactly one of NoUpdate, a
// non-nil Result, or a non-empty Error describes it.
type GenerateResponse struct {
	NoUpdate bool            `json:"no_update,omitempty"`
	Result   *GenerateResult `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	Status   string          `json:"status,omitempty"`
	Severity Severity        `json:"severity,omitempty"`
	Model    string          `json:"model,omitempty"`

	// Err is the underlying failure, for callers that map kinds to exit or status codes.
	Err error `json:"-"`
}

// Failed reports whether the response carries a failure payload.
func (r *GenerateResponse) Failed() bool {
	return r.Error != ""
}

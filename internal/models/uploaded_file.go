package models

import "time"

// UploadedFile represents a document written to the upload directory for the
// duration of one request.
type UploadedFile struct {
	OriginalName string `json:"original_name"`
	StoredName   string `json:"stored_name"`
	Path         string `json:"-"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
}

// SummaryResult is the provider output handed back to the caller verbatim.
type SummaryResult struct {
	Text      string `json:"result"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Pages     int    `json:"pages"`
	Chars     int    `json:"chars"`
	Truncated bool   `json:"truncated"`
}

// Run status values.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Run is the audit record kept for each upload request. It never carries the
// credential or the summary text.
type Run struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	FileSize    int64     `json:"file_size"`
	ContentType string    `json:"content_type"`
	Pages       int       `json:"pages"`
	TextChars   int       `json:"text_chars"`
	Truncated   bool      `json:"truncated"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Status      string    `json:"status"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	HTTPStatus  int       `json:"http_status"`
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

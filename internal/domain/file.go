package domain

import "time"

// Attachment is an uploaded file referenced from a registration's dynamic fields.
type Attachment struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	SHA256      string    `json:"sha256"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

package models

import "time"

// Job statuses recorded on a Document while it moves through the summarizer.
const (
	StatusExtracting = "EXTRACTING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Document represents the record of one PDF summarization job in Firestore.
// It tracks the overall status and metadata of the file. It is bookkeeping only
// and is never read back to resume a run.
type Document struct {
	FileHash         string    `firestore:"fileHash,omitempty"`
	OriginalFilename string    `firestore:"originalFilename,omitempty"`
	Status           string    `firestore:"status,omitempty"`
	ErrorDetails     string    `firestore:"errorDetails,omitempty"`
	PageKind         string    `firestore:"pageKind,omitempty"`
	PageCount        int       `firestore:"pageCount,omitempty"`
	BatchCount       int       `firestore:"batchCount,omitempty"`
	Destination      string    `firestore:"destination,omitempty"`
	CreatedAt        time.Time `firestore:"createdAt,omitempty"`
}

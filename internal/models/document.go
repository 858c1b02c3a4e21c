package models

import "time"

// Document status values, in the order a healthy document moves through them.
const (
	StatusExtracting = "EXTRACTING"
	StatusExtracted  = "EXTRACTED"
	StatusAuditing   = "AUDITING"
	StatusAudited    = "AUDITED"
	StatusFailed     = "FAILED"
)

// Document represents the main record for an uploaded audit document in Firestore.
// It tracks the overall status and metadata of the file.
type Document struct {
	AuditID             string    `firestore:"auditId,omitempty"`
	FileHash            string    `firestore:"fileHash,omitempty"`
	OriginalFilename    string    `firestore:"originalFilename,omitempty"`
	FileType            string    `firestore:"fileType,omitempty"`
	Status              string    `firestore:"status,omitempty"`
	ErrorDetails        string    `firestore:"errorDetails,omitempty"`
	PageCount           int       `firestore:"pageCount,omitempty"`
	PagesGCSUri         string    `firestore:"pagesGcsUri,omitempty"`
	FindingCount        int       `firestore:"findingCount,omitempty"`
	WorkflowExecutionID string    `firestore:"workflowExecutionId,omitempty"` // For traceability
	CreatedAt           time.Time `firestore:"createdAt,omitempty"`
}

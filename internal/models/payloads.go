package models

// These structs define the JSON payloads for HTTP requests and responses
// between the Cloud Workflow and the worker Cloud Functions.

// AuditRunRequest is the input for the audit-runner function.
type AuditRunRequest struct {
	AuditID     string `json:"auditId"`
	DocumentID  string `json:"documentId"`
	PagesGCSUri string `json:"pagesGcsUri"`
	Model       string `json:"model,omitempty"`
	Provider    string `json:"provider,omitempty"`
	ExecutionID string `json:"executionId"`
}

// AuditRunResponse is the output of the audit-runner function.
type AuditRunResponse struct {
	Status         string `json:"status"`
	FindingCount   int    `json:"findingCount"`
	SavedCount     int    `json:"savedCount"`
	UnitCount      int    `json:"unitCount"`
	FailedCount    int    `json:"failedCount"`
	SkippedCount   int    `json:"skippedCount"`
	FindingsGCSUri string `json:"findingsGcsUri"`
}

// ReportRequest is the input for the report-aggregator function.
type ReportRequest struct {
	AuditID     string `json:"auditId"`
	ExecutionID string `json:"executionId"`
}

// ReportResponse is the output of the report-aggregator function.
type ReportResponse struct {
	Status       string `json:"status"`
	FindingCount int    `json:"findingCount"`
	ReportGCSUri string `json:"reportGcsUri"`
}

// PromptRequest is the input for the llm-prompt function.
type PromptRequest struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model,omitempty"`
	Provider    string   `json:"provider,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
}

// PromptResponse is the output of the llm-prompt function.
type PromptResponse struct {
	Response string `json:"response"`
}

// WorkflowArgument is the execution argument handed to the audit workflow by document intake.
type WorkflowArgument struct {
	AuditID     string `json:"auditId"`
	DocumentID  string `json:"documentId"`
	PagesGCSUri string `json:"pagesGcsUri"`
	PageCount   int    `json:"pageCount"`
}

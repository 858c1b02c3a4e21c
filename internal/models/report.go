package models

import "time"

// Report summarises every finding recorded for one audit.
type Report struct {
	AuditID       string            `json:"auditId"`
	GeneratedAt   time.Time         `json:"generatedAt"`
	DocumentCount int               `json:"documentCount"`
	FindingCount  int               `json:"findingCount"`
	OverallScore  float64           `json:"overallScore"`
	WorstRisk     RiskLevel         `json:"worstRisk"`
	Categories    []CategorySummary `json:"categories"`
}

// CategorySummary aggregates the findings of one criteria category.
type CategorySummary struct {
	Category     string    `json:"category"`
	FindingCount int       `json:"findingCount"`
	AverageScore float64   `json:"averageScore"`
	WorstRisk    RiskLevel `json:"worstRisk"`
	Findings     []Finding `json:"findings"`
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/complianceauditflow/internal/config"
	"github.com/Lllllllleong/complianceauditflow/internal/gcp"
	"github.com/Lllllllleong/complianceauditflow/internal/models"
	"github.com/Lllllllleong/complianceauditflow/internal/store"
)

// ReportConfig holds configuration for the report aggregator.
type ReportConfig struct {
	ReportsBucket string
}

// ReportFunction builds the per-audit report from the stored findings.
type ReportFunction struct {
	storageClient *storage.Client
	findings      store.FindingStore
	config        ReportConfig
}

// NewReportAggregator creates a new ReportFunction instance.
func NewReportAggregator(ctx context.Context) (*ReportFunction, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	reportCfg := ReportConfig{
		ReportsBucket: gcp.GetEnv("REPORTS_BUCKET", ""),
	}
	if reportCfg.ReportsBucket == "" {
		return nil, fmt.Errorf("REPORTS_BUCKET environment variable must be set")
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	findingStore, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open finding store: %w", err)
	}

	return &ReportFunction{
		storageClient: storageClient,
		findings:      findingStore,
		config:        reportCfg,
	}, nil
}

// Process writes {auditId}/report.json, replacing any earlier report for the audit.
func (f *ReportFunction) Process(ctx context.Context, req *models.ReportRequest) (*models.ReportResponse, error) {
	if req.AuditID == "" {
		return nil, fmt.Errorf("%w: auditId is required", ErrInvalidRequest)
	}
	logCtx := slog.With("auditId", req.AuditID, "executionId", req.ExecutionID)
	logCtx.Info("Starting report aggregation.")

	stored, err := f.findings.ListFindings(ctx, req.AuditID)
	if err != nil {
		logCtx.Error("Failed to list findings", "error", err)
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}
	if len(stored) == 0 {
		logCtx.Warn("No findings recorded for this audit. Writing an empty report.")
	}

	report := BuildReport(req.AuditID, stored, time.Now().UTC())
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}

	outputObjectName := fmt.Sprintf("%s/report.json", req.AuditID)
	destWriter := f.storageClient.Bucket(f.config.ReportsBucket).Object(outputObjectName).NewWriter(ctx)
	destWriter.ContentType = "application/json"
	if _, err := destWriter.Write(data); err != nil {
		_ = destWriter.Close()
		logCtx.Error("Failed to write report", "error", err, "object", outputObjectName)
		return nil, fmt.Errorf("failed to write report: %w", err)
	}
	if err := destWriter.Close(); err != nil {
		logCtx.Error("Critical: Failed to finalize report write", "error", err, "object", outputObjectName)
		return nil, fmt.Errorf("failed to finalize report: %w", err)
	}

	outputGCSUri := gcp.GCSUri(f.config.ReportsBucket, outputObjectName)
	logCtx.Info("Report aggregation complete.", "findingCount", report.FindingCount, "reportGcsUri", outputGCSUri)
	return &models.ReportResponse{
		Status:       "success",
		FindingCount: report.FindingCount,
		ReportGCSUri: outputGCSUri,
	}, nil
}

// BuildReport groups findings by category. Scores are averaged per category and the
// overall score is the mean over all findings, both rounded to one decimal.
func BuildReport(auditID string, stored []store.StoredFinding, generatedAt time.Time) *models.Report {
	report := &models.Report{
		AuditID:     auditID,
		GeneratedAt: generatedAt,
		WorstRisk:   models.RiskUnknown,
		Categories:  []models.CategorySummary{},
	}

	byCategory := make(map[string]*models.CategorySummary)
	scoreSums := make(map[string]int)
	documents := make(map[string]struct{})
	total := 0

	for _, sf := range stored {
		documents[sf.DocumentID] = struct{}{}
		summary, ok := byCategory[sf.Category]
		if !ok {
			summary = &models.CategorySummary{Category: sf.Category, WorstRisk: models.RiskUnknown}
			byCategory[sf.Category] = summary
		}
		summary.FindingCount++
		summary.Findings = append(summary.Findings, sf.Finding)
		scoreSums[sf.Category] += sf.ComplianceScore
		total += sf.ComplianceScore
		if sf.RiskLevel.Severity() > summary.WorstRisk.Severity() {
			summary.WorstRisk = sf.RiskLevel
		}
		if sf.RiskLevel.Severity() > report.WorstRisk.Severity() {
			report.WorstRisk = sf.RiskLevel
		}
	}

	names := make([]string, 0, len(byCategory))
	for name := range byCategory {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		summary := byCategory[name]
		summary.AverageScore = roundTenth(float64(scoreSums[name]) / float64(summary.FindingCount))
		report.Categories = append(report.Categories, *summary)
	}

	report.FindingCount = len(stored)
	report.DocumentCount = len(documents)
	if len(stored) > 0 {
		report.OverallScore = roundTenth(float64(total) / float64(len(stored)))
	}
	return report
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

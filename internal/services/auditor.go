package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/complianceauditflow/internal/audit"
	"github.com/Lllllllleong/complianceauditflow/internal/config"
	"github.com/Lllllllleong/complianceauditflow/internal/criteria"
	"github.com/Lllllllleong/complianceauditflow/internal/gcp"
	"github.com/Lllllllleong/complianceauditflow/internal/llm"
	"github.com/Lllllllleong/complianceauditflow/internal/models"
	"github.com/Lllllllleong/complianceauditflow/internal/store"
)

// AuditRunnerConfig holds the settings that are specific to the audit-runner function.
type AuditRunnerConfig struct {
	ProjectID      string
	ReportsBucket  string
	CollectionName string
}

// AuditRunnerFunction runs the audit engine over one extracted document.
type AuditRunnerFunction struct {
	storageClient   *storage.Client
	firestoreClient *firestore.Client
	gateway         *llm.Gateway
	criteria        *criteria.Repository
	findings        store.FindingStore
	concurrency     int
	config          AuditRunnerConfig
}

// NewAuditRunner wires every client the runner needs. Criteria are not read until the first run.
func NewAuditRunner(ctx context.Context) (*AuditRunnerFunction, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	runnerCfg := AuditRunnerConfig{
		ProjectID:      cfg.Store.ProjectID,
		ReportsBucket:  gcp.GetEnv("REPORTS_BUCKET", ""),
		CollectionName: gcp.GetEnv("FIRESTORE_COLLECTION", "documents"),
	}
	if runnerCfg.ProjectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	if runnerCfg.ReportsBucket == "" {
		return nil, fmt.Errorf("REPORTS_BUCKET environment variable must be set")
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	firestoreClient, err := gcp.NewFirestoreClient(ctx, runnerCfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	sources, err := criteria.SourcesFromPaths(cfg.Audit.CriteriaPaths, storageClient)
	if err != nil {
		return nil, err
	}
	findingStore, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open finding store: %w", err)
	}

	slog.Info("Audit runner initialized.", "defaultProvider", cfg.LLM.DefaultProvider, "storeBackend", cfg.Store.Backend, "concurrency", cfg.Audit.Concurrency)
	return &AuditRunnerFunction{
		storageClient:   storageClient,
		firestoreClient: firestoreClient,
		gateway:         llm.NewGateway(cfg.LLM),
		criteria:        criteria.NewRepository(sources...),
		findings:        findingStore,
		concurrency:     cfg.Audit.Concurrency,
		config:          runnerCfg,
	}, nil
}

func validateAuditRunRequest(req *models.AuditRunRequest) error {
	if req.AuditID == "" || req.DocumentID == "" || req.PagesGCSUri == "" {
		return fmt.Errorf("%w: auditId, documentId and pagesGcsUri are required", ErrInvalidRequest)
	}
	if _, _, err := gcp.ParseGCSUri(req.PagesGCSUri); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Process audits the pages of one document and stores what was found.
func (f *AuditRunnerFunction) Process(ctx context.Context, req *models.AuditRunRequest) (*models.AuditRunResponse, error) {
	if err := validateAuditRunRequest(req); err != nil {
		return nil, err
	}
	logCtx := slog.With("auditId", req.AuditID, "documentId", req.DocumentID, "executionId", req.ExecutionID)
	logCtx.Info("Starting audit run.")
	docRef := f.firestoreClient.Collection(f.config.CollectionName).Doc(req.DocumentID)

	provider, err := f.gateway.ProviderFor(req.Provider)
	if err != nil {
		return nil, handleError(ctx, logCtx, docRef, "invalid provider", err)
	}
	criteriaList, err := f.criteria.Load(ctx)
	if err != nil {
		return nil, handleError(ctx, logCtx, docRef, "failed to load audit criteria", err)
	}
	pages, err := f.loadPages(ctx, req.PagesGCSUri)
	if err != nil {
		return nil, handleError(ctx, logCtx, docRef, "failed to load pages", err)
	}

	if err := updateStatus(ctx, docRef, models.StatusAuditing, ""); err != nil {
		logCtx.Warn("Failed to update status to AUDITING.", "error", err)
	}

	engine := audit.NewEngine(f.gateway, audit.WithConcurrency(f.concurrency), audit.WithLogger(logCtx))
	result, err := engine.Run(ctx, pages, criteriaList, audit.RunParams{Model: req.Model, Provider: provider})
	if err != nil {
		return nil, handleError(ctx, logCtx, docRef, "audit run could not start", err)
	}

	saved, err := f.findings.SaveFindings(ctx, req.AuditID, req.DocumentID, result.Findings)
	if err != nil {
		// Best effort: the findings file below still carries everything.
		logCtx.Warn("Some findings were not persisted.", "saved", saved, "total", len(result.Findings), "error", err)
	}

	findingsURI, err := f.saveFindingsFile(ctx, req, result)
	if err != nil {
		return nil, handleError(ctx, logCtx, docRef, "failed to save findings file", err)
	}

	updates := []firestore.Update{
		{Path: "status", Value: models.StatusAudited},
		{Path: "findingCount", Value: len(result.Findings)},
	}
	if _, err := docRef.Update(ctx, updates); err != nil {
		return nil, handleError(ctx, logCtx, docRef, "failed to update status to AUDITED", err)
	}

	logCtx.Info("Audit run complete.", "findingCount", len(result.Findings), "failed", result.Stats.Failed, "findingsGcsUri", findingsURI)
	return &models.AuditRunResponse{
		Status:         "success",
		FindingCount:   len(result.Findings),
		SavedCount:     saved,
		UnitCount:      result.Stats.Units,
		FailedCount:    result.Stats.Failed,
		SkippedCount:   result.Stats.Skipped,
		FindingsGCSUri: findingsURI,
	}, nil
}

func (f *AuditRunnerFunction) loadPages(ctx context.Context, uri string) ([]models.Page, error) {
	data, err := gcp.ReadGCSObject(ctx, f.storageClient, uri)
	if err != nil {
		return nil, err
	}
	var pages []models.Page
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("failed to decode pages from %s: %w", uri, err)
	}
	return pages, nil
}

type findingsFile struct {
	AuditID    string           `json:"auditId"`
	DocumentID string           `json:"documentId"`
	Stats      audit.RunStats   `json:"stats"`
	Findings   []models.Finding `json:"findings"`
}

func (f *AuditRunnerFunction) saveFindingsFile(ctx context.Context, req *models.AuditRunRequest, result *audit.RunResult) (string, error) {
	data, err := json.MarshalIndent(findingsFile{
		AuditID:    req.AuditID,
		DocumentID: req.DocumentID,
		Stats:      result.Stats,
		Findings:   result.Findings,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal findings: %w", err)
	}
	objectName := fmt.Sprintf("%s/%s/findings.json", req.AuditID, req.DocumentID)
	if err := gcp.SaveToGCSAtomically(ctx, f.storageClient.Bucket(f.config.ReportsBucket), objectName, data); err != nil {
		return "", err
	}
	return gcp.GCSUri(f.config.ReportsBucket, objectName), nil
}

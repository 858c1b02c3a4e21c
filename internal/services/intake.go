package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"

	"github.com/Lllllllleong/complianceauditflow/internal/extractor"
	"github.com/Lllllllleong/complianceauditflow/internal/gcp"
	"github.com/Lllllllleong/complianceauditflow/internal/models"
)

type IntakeConfig struct {
	ProjectID        string
	PagesBucket      string
	CollectionName   string
	WorkflowID       string
	WorkflowLocation string
}

// IntakeFunction turns an uploaded audit document into pages and hands it to the audit workflow.
type IntakeFunction struct {
	storageClient    *storage.Client
	firestoreClient  *firestore.Client
	executionsClient *executions.Client
	config           IntakeConfig
}

type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

func NewIntake(ctx context.Context) (*IntakeFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	config := IntakeConfig{
		ProjectID:        projectID,
		PagesBucket:      gcp.GetEnv("PAGES_BUCKET", ""),
		CollectionName:   gcp.GetEnv("FIRESTORE_COLLECTION", "documents"),
		WorkflowLocation: gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		WorkflowID:       gcp.GetEnv("WORKFLOW_ID", "compliance-audit-orchestrator"),
	}
	if config.PagesBucket == "" {
		return nil, fmt.Errorf("PAGES_BUCKET environment variable must be set")
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	executionsClient, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
	}

	f := &IntakeFunction{
		firestoreClient:  firestoreClient,
		storageClient:    storageClient,
		executionsClient: executionsClient,
		config:           config,
	}
	slog.Info("Document intake initialized.", "workflowId", config.WorkflowID)
	return f, nil
}

// parseUploadName splits an object name of the form {auditID}/{filename}.
func parseUploadName(name string) (auditID, filename string, err error) {
	auditID, rest, ok := strings.Cut(name, "/")
	if !ok || auditID == "" || rest == "" || strings.HasSuffix(rest, "/") {
		return "", "", fmt.Errorf("object %q is not of the form {auditId}/{filename}", name)
	}
	return auditID, path.Base(rest), nil
}

func (f *IntakeFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	logCtx.Info("Processing new upload.")

	auditID, filename, err := parseUploadName(e.Name)
	if err != nil {
		logCtx.Warn("Ignoring upload outside an audit folder.", "error", err)
		return nil
	}
	fileType, err := extractor.DetectFileType(filename)
	if err != nil {
		logCtx.Warn("Ignoring unsupported upload.", "error", err)
		return nil
	}
	logCtx = logCtx.With("auditId", auditID)

	tempDir, err := os.MkdirTemp("", "document-intake-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	localPath := filepath.Join(tempDir, "source"+filepath.Ext(filename))
	if err := f.streamGCSObject(ctx, e.Bucket, e.Name, localPath); err != nil {
		logCtx.Error("Failed to download upload", "error", err)
		return err
	}

	fileHash, err := calculateFileHash(localPath)
	if err != nil {
		logCtx.Error("Failed to calculate file hash", "error", err)
		return fmt.Errorf("failed to calculate file hash: %w", err)
	}
	logCtx = logCtx.With("fileHash", fileHash)

	isDuplicate, docID, err := f.isDuplicate(ctx, auditID, fileHash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return err
	}
	if isDuplicate {
		logCtx.Info("Document already uploaded to this audit. Skipping.", "existingDocId", docID)
		return nil
	}

	docRef, err := f.createInitialDocument(ctx, auditID, fileHash, filename, fileType)
	if err != nil {
		logCtx.Error("Failed to create initial Firestore document", "error", err)
		return err
	}
	logCtx = logCtx.With("documentId", docRef.ID)
	logCtx.Info("Created master document in Firestore.")

	pages, err := extractor.Extract(ctx, localPath, filename)
	if err != nil {
		return handleError(ctx, logCtx, docRef, "failed to extract text", err)
	}

	pagesURI, err := f.savePages(ctx, logCtx, docRef, pages)
	if err != nil {
		return err
	}

	if err := f.triggerWorkflow(ctx, logCtx, docRef, models.WorkflowArgument{
		AuditID:     auditID,
		DocumentID:  docRef.ID,
		PagesGCSUri: pagesURI,
		PageCount:   len(pages),
	}); err != nil {
		return err
	}

	logCtx.Info("Hand-off to workflow complete.")
	return nil
}

func (f *IntakeFunction) isDuplicate(ctx context.Context, auditID, fileHash string) (bool, string, error) {
	docs, err := f.firestoreClient.Collection(f.config.CollectionName).
		Where("auditId", "==", auditID).
		Where("fileHash", "==", fileHash).
		Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return false, "", fmt.Errorf("failed to query for duplicates: %w", err)
	}
	if len(docs) > 0 {
		return true, docs[0].Ref.ID, nil
	}
	return false, "", nil
}

func (f *IntakeFunction) createInitialDocument(ctx context.Context, auditID, fileHash, filename string, fileType extractor.FileType) (*firestore.DocumentRef, error) {
	newDoc := models.Document{
		AuditID:          auditID,
		FileHash:         fileHash,
		OriginalFilename: filename,
		FileType:         string(fileType),
		Status:           models.StatusExtracting,
		CreatedAt:        time.Now(),
	}
	docRef, _, err := f.firestoreClient.Collection(f.config.CollectionName).Add(ctx, newDoc)
	if err != nil {
		return nil, fmt.Errorf("failed to create master document: %w", err)
	}
	return docRef, nil
}

func (f *IntakeFunction) savePages(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, pages []models.Page) (string, error) {
	data, err := json.Marshal(pages)
	if err != nil {
		return "", handleError(ctx, logCtx, docRef, "failed to marshal pages", err)
	}
	objectName := fmt.Sprintf("%s/pages.json", docRef.ID)
	if err := gcp.SaveToGCSAtomically(ctx, f.storageClient.Bucket(f.config.PagesBucket), objectName, data); err != nil {
		return "", handleError(ctx, logCtx, docRef, "failed to save pages", err)
	}
	pagesURI := gcp.GCSUri(f.config.PagesBucket, objectName)

	updates := []firestore.Update{
		{Path: "status", Value: models.StatusExtracted},
		{Path: "pageCount", Value: len(pages)},
		{Path: "pagesGcsUri", Value: pagesURI},
	}
	if _, err := docRef.Update(ctx, updates); err != nil {
		return "", handleError(ctx, logCtx, docRef, "failed to update status to EXTRACTED", err)
	}
	logCtx.Info("Pages extracted and saved.", "pageCount", len(pages), "pagesGcsUri", pagesURI)
	return pagesURI, nil
}

func (f *IntakeFunction) triggerWorkflow(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, arg models.WorkflowArgument) error {
	logCtx.Info("Triggering workflow.")
	payloadBytes, err := json.Marshal(arg)
	if err != nil {
		return handleError(ctx, logCtx, docRef, "failed to marshal workflow payload", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", f.config.ProjectID, f.config.WorkflowLocation, f.config.WorkflowID),
		Execution: &executionspb.Execution{
			Argument: string(payloadBytes),
		},
	}
	execution, err := f.executionsClient.CreateExecution(ctx, req)
	if err != nil {
		return handleError(ctx, logCtx, docRef, "failed to trigger workflow execution", err)
	}
	if _, err := docRef.Update(ctx, []firestore.Update{{Path: "workflowExecutionId", Value: execution.GetName()}}); err != nil {
		logCtx.Warn("Failed to record workflow execution id.", "error", err)
	}
	return nil
}

func (f *IntakeFunction) streamGCSObject(ctx context.Context, bucket, object, destPath string) error {
	gcsReader, err := f.storageClient.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to get GCS object reader for %s: %w", gcp.GCSUri(bucket, object), err)
	}
	defer gcsReader.Close()
	localFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file at %s: %w", destPath, err)
	}
	defer localFile.Close()
	if _, err := io.Copy(localFile, gcsReader); err != nil {
		return fmt.Errorf("failed to copy GCS object to local file: %w", err)
	}
	return nil
}

func calculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/Lllllllleong/complianceauditflow/internal/models"
)

// DefaultAuditCollection is the top-level collection findings are nested under.
const DefaultAuditCollection = "audits"

const findingsCollection = "findings"

// FirestoreStore keeps findings at {collection}/{auditID}/findings/{findingID}.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	return &FirestoreStore{client: client, collection: collection, now: time.Now}
}

func (s *FirestoreStore) findings(auditID string) *firestore.CollectionRef {
	return s.client.Collection(s.collection).Doc(auditID).Collection(findingsCollection)
}

func (s *FirestoreStore) SaveFindings(ctx context.Context, auditID, documentID string, findings []models.Finding) (int, error) {
	logCtx := slog.With("auditId", auditID, "documentId", documentID)
	createdAt := s.now()

	var errs []error
	saved := 0
	for _, f := range findings {
		record := StoredFinding{Finding: f, AuditID: auditID, DocumentID: documentID, CreatedAt: createdAt}
		if _, err := s.findings(auditID).Doc(f.ID).Set(ctx, record); err != nil {
			logCtx.Error("Failed to save finding.", "findingId", f.ID, "page", f.PageNumber, "error", err)
			errs = append(errs, fmt.Errorf("finding %s: %w", f.ID, err))
			continue
		}
		saved++
	}
	logCtx.Info("Findings saved to Firestore.", "saved", saved, "total", len(findings))
	return saved, errors.Join(errs...)
}

func (s *FirestoreStore) ListFindings(ctx context.Context, auditID string) ([]StoredFinding, error) {
	it := s.findings(auditID).Documents(ctx)
	defer it.Stop()

	var out []StoredFinding
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list findings for audit %s: %w", auditID, err)
		}
		var sf StoredFinding
		if err := doc.DataTo(&sf); err != nil {
			return nil, fmt.Errorf("failed to decode finding %s: %w", doc.Ref.ID, err)
		}
		out = append(out, sf)
	}
	sortStored(out)
	return out, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// Package store persists audit findings against the audit and document they belong to.
package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Lllllllleong/complianceauditflow/internal/config"
	"github.com/Lllllllleong/complianceauditflow/internal/gcp"
	"github.com/Lllllllleong/complianceauditflow/internal/models"
)

// StoredFinding is a finding together with the keys it was saved under.
type StoredFinding struct {
	models.Finding
	AuditID    string    `json:"auditId" firestore:"auditId"`
	DocumentID string    `json:"documentId" firestore:"documentId"`
	CreatedAt  time.Time `json:"createdAt" firestore:"createdAt"`
}

// FindingStore is the external workflow store as seen by the audit services.
//
// SaveFindings is best effort: every finding is attempted, the number stored is
// returned and the failures are joined into the error.
type FindingStore interface {
	SaveFindings(ctx context.Context, auditID, documentID string, findings []models.Finding) (int, error)
	ListFindings(ctx context.Context, auditID string) ([]StoredFinding, error)
	Close() error
}

// New opens the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.StoreConfig) (FindingStore, error) {
	switch cfg.Backend {
	case "", "firestore":
		client, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, err
		}
		return NewFirestoreStore(client, DefaultAuditCollection), nil
	case "mysql":
		s, err := OpenMySQL(ctx, cfg.MySQL)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: unsupported STORE_BACKEND %q", models.ErrConfiguration, cfg.Backend)
}

// sortStored orders findings by document, then page, then save time.
func sortStored(findings []StoredFinding) {
	slices.SortStableFunc(findings, func(a, b StoredFinding) int {
		return cmp.Or(
			cmp.Compare(a.DocumentID, b.DocumentID),
			cmp.Compare(a.PageNumber, b.PageNumber),
			a.CreatedAt.Compare(b.CreatedAt),
		)
	})
}

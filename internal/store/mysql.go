package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/Lllllllleong/complianceauditflow/internal/config"
	"github.com/Lllllllleong/complianceauditflow/internal/models"
)

const createEvidenceTable = `
CREATE TABLE IF NOT EXISTS evidence (
	id               VARCHAR(36)  NOT NULL,
	audit_id         VARCHAR(64)  NOT NULL,
	document_id      VARCHAR(64)  NOT NULL,
	criterion_id     VARCHAR(64)  NULL,
	audit_area       VARCHAR(255) NOT NULL,
	checklist_item   TEXT         NOT NULL,
	definition       VARCHAR(255) NULL,
	page_number      INT          NOT NULL,
	extracted_text   TEXT         NOT NULL,
	ai_explanation   JSON         NULL,
	confidence_score INT          NOT NULL DEFAULT 0,
	created_at       DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (id),
	INDEX idx_audit (audit_id),
	INDEX idx_audit_document (audit_id, document_id)
);`

const insertEvidence = `
INSERT INTO evidence (
	id, audit_id, document_id, criterion_id, audit_area, checklist_item, definition,
	page_number, extracted_text, ai_explanation, confidence_score, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectEvidence = `
SELECT id, audit_id, document_id, criterion_id, audit_area, checklist_item, definition,
	page_number, extracted_text, ai_explanation, confidence_score, created_at
FROM evidence
WHERE audit_id = ?
ORDER BY document_id, page_number, created_at`

// aiExplanation is the JSON document kept in evidence.ai_explanation.
type aiExplanation struct {
	Explanation string           `json:"explanation"`
	Remarks     string           `json:"remarks"`
	RiskLevel   models.RiskLevel `json:"risk_level"`
}

// MySQLStore keeps findings in the relational evidence table.
type MySQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func mysqlDSN(cfg config.MySQLConfig) string {
	c := mysql.NewConfig()
	c.User = cfg.Username
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
	c.DBName = cfg.Database
	c.ParseTime = true
	return c.FormatDSN()
}

// OpenMySQL connects, checks the connection and makes sure the evidence table exists.
func OpenMySQL(ctx context.Context, cfg config.MySQLConfig) (*MySQLStore, error) {
	db, err := sql.Open("mysql", mysqlDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL at %s:%s: %w", cfg.Host, cfg.Port, err)
	}
	s := NewMySQLStore(db)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("Connected to MySQL.", "host", cfg.Host, "port", cfg.Port, "database", cfg.Database)
	return s, nil
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db, now: time.Now}
}

func (s *MySQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createEvidenceTable); err != nil {
		return fmt.Errorf("failed to create evidence table: %w", err)
	}
	return nil
}

func (s *MySQLStore) SaveFindings(ctx context.Context, auditID, documentID string, findings []models.Finding) (int, error) {
	logCtx := slog.With("auditId", auditID, "documentId", documentID)
	createdAt := s.now().UTC()

	var errs []error
	saved := 0
	for _, f := range findings {
		explanation, err := json.Marshal(aiExplanation{Explanation: f.Explanation, Remarks: f.Remarks, RiskLevel: f.RiskLevel})
		if err != nil {
			errs = append(errs, fmt.Errorf("finding %s: %w", f.ID, err))
			continue
		}
		_, err = s.db.ExecContext(ctx, insertEvidence,
			f.ID, auditID, documentID, nullString(f.CriterionID), f.Category, f.CriterionStatement, nullString(f.Factor),
			f.PageNumber, f.Evidence, string(explanation), f.ComplianceScore, createdAt,
		)
		if err != nil {
			logCtx.Error("Failed to insert evidence row.", "findingId", f.ID, "page", f.PageNumber, "error", err)
			errs = append(errs, fmt.Errorf("finding %s: %w", f.ID, err))
			continue
		}
		saved++
	}
	logCtx.Info("Findings saved to MySQL.", "saved", saved, "total", len(findings))
	return saved, errors.Join(errs...)
}

func (s *MySQLStore) ListFindings(ctx context.Context, auditID string) ([]StoredFinding, error) {
	rows, err := s.db.QueryContext(ctx, selectEvidence, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence for audit %s: %w", auditID, err)
	}
	defer rows.Close()

	var out []StoredFinding
	for rows.Next() {
		var (
			sf                  StoredFinding
			criterionID, factor sql.NullString
			explanation         sql.NullString
		)
		if err := rows.Scan(&sf.ID, &sf.AuditID, &sf.DocumentID, &criterionID, &sf.Category, &sf.CriterionStatement,
			&factor, &sf.PageNumber, &sf.Evidence, &explanation, &sf.ComplianceScore, &sf.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evidence row: %w", err)
		}
		sf.CriterionID = criterionID.String
		sf.Factor = factor.String
		applyExplanation(&sf.Finding, explanation)
		out = append(out, sf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read evidence rows: %w", err)
	}
	return out, nil
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// applyExplanation copies the ai_explanation column into f. Rows written by other
// tools may hold plain text there, which is kept as the explanation.
func applyExplanation(f *models.Finding, col sql.NullString) {
	f.RiskLevel = models.RiskUnknown
	if !col.Valid || col.String == "" {
		return
	}
	var ex aiExplanation
	if err := json.Unmarshal([]byte(col.String), &ex); err != nil {
		f.Explanation = col.String
		return
	}
	f.Explanation = ex.Explanation
	f.Remarks = ex.Remarks
	f.RiskLevel = models.ParseRiskLevel(string(ex.RiskLevel))
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

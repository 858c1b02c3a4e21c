// Package criteria loads the audit criteria definition that every run evaluates pages against.
package criteria

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Lllllllleong/complianceauditflow/internal/models"
)

// Repository loads criteria from the first available source and keeps the result.
//
// Sources are tried in order and only a missing source falls through to the next,
// so a rich criteria file can shadow a generic one. A source that exists but cannot
// be read or parsed is a configuration error.
type Repository struct {
	sources []Source

	mu     sync.Mutex
	loaded []models.CriterionDefinition
}

// NewRepository creates a repository over the given sources.
func NewRepository(sources ...Source) *Repository {
	return &Repository{sources: sources}
}

// Load returns the criteria, reading a source only on the first successful call.
// The returned slice is shared and must not be modified.
func (r *Repository) Load(ctx context.Context) ([]models.CriterionDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded != nil {
		return r.loaded, nil
	}

	var tried []string
	for _, src := range r.sources {
		rc, err := src.Open(ctx)
		if err != nil {
			if isNotFound(err) {
				tried = append(tried, src.Name())
				continue
			}
			return nil, fmt.Errorf("%w: failed to open criteria source %s: %v", models.ErrConfiguration, src.Name(), err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read criteria source %s: %v", models.ErrConfiguration, src.Name(), err)
		}

		list, err := Parse(data, formatOf(src.Name()))
		if err != nil {
			return nil, fmt.Errorf("%w: criteria source %s: %v", models.ErrConfiguration, src.Name(), err)
		}
		slog.Info("Audit criteria loaded.", "source", src.Name(), "criteriaCount", len(list))
		r.loaded = list
		return list, nil
	}
	return nil, fmt.Errorf("%w: no criteria source found (tried %s)", models.ErrConfiguration, strings.Join(tried, ", "))
}

// Format is the serialization of a criteria document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func formatOf(name string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// rawCriterion accepts both known schemas. The generic schema names the criterion
// text "criteria"; some exports call it "statement".
type rawCriterion struct {
	ID                     any       `json:"id" yaml:"id"`
	Category               string    `json:"category" yaml:"category"`
	Factor                 string    `json:"factor" yaml:"factor"`
	Criteria               string    `json:"criteria" yaml:"criteria"`
	Statement              string    `json:"statement" yaml:"statement"`
	Description            string    `json:"description" yaml:"description"`
	ComplianceRequirements *[]string `json:"compliance_requirements" yaml:"compliance_requirements"`
	EvidenceRequired       []string  `json:"evidence_required" yaml:"evidence_required"`
}

// Parse decodes and validates a criteria document. The document must be a non-empty
// list and every item needs a category and a criterion statement. Whether an item is
// rich or plain is decided here, once, by the presence of compliance_requirements.
func Parse(data []byte, format Format) ([]models.CriterionDefinition, error) {
	var raw []rawCriterion
	var err error
	if format == FormatYAML {
		err = yaml.Unmarshal(data, &raw)
	} else {
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("expected a list of criteria: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("criteria list is empty")
	}

	out := make([]models.CriterionDefinition, 0, len(raw))
	for i, rc := range raw {
		statement := strings.TrimSpace(rc.Criteria)
		if statement == "" {
			statement = strings.TrimSpace(rc.Statement)
		}
		if statement == "" {
			return nil, fmt.Errorf("criterion %d: missing criteria statement", i)
		}
		if strings.TrimSpace(rc.Category) == "" {
			return nil, fmt.Errorf("criterion %d (%s): missing category", i, statement)
		}

		def := models.CriterionDefinition{
			ID:               idString(rc.ID),
			Category:         rc.Category,
			Factor:           rc.Factor,
			Statement:        statement,
			Description:      rc.Description,
			EvidenceRequired: rc.EvidenceRequired,
			Kind:             models.KindPlain,
		}
		if rc.ComplianceRequirements != nil {
			def.Kind = models.KindRich
			def.ComplianceRequirements = *rc.ComplianceRequirements
		}
		out = append(out, def)
	}
	return out, nil
}

func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

package models

// CriterionKind selects the prompt strategy used to evaluate a criterion.
type CriterionKind int

const (
	// KindPlain criteria carry only a statement and description.
	KindPlain CriterionKind = iota
	// KindRich criteria carry compliance requirements and get the detailed prompt.
	KindRich
)

func (k CriterionKind) String() string {
	if k == KindRich {
		return "rich"
	}
	return "plain"
}

// CriterionDefinition is a single auditable requirement loaded from the criteria source.
// It is never mutated after load.
type CriterionDefinition struct {
	ID                     string        `json:"id,omitempty" yaml:"id,omitempty"`
	Category               string        `json:"category" yaml:"category"`
	Factor                 string        `json:"factor,omitempty" yaml:"factor,omitempty"`
	Statement              string        `json:"criteria" yaml:"criteria"`
	Description            string        `json:"description,omitempty" yaml:"description,omitempty"`
	ComplianceRequirements []string      `json:"compliance_requirements,omitempty" yaml:"compliance_requirements,omitempty"`
	EvidenceRequired       []string      `json:"evidence_required,omitempty" yaml:"evidence_required,omitempty"`
	Kind                   CriterionKind `json:"-" yaml:"-"`
}

// Label identifies the criterion in logs. It prefers the ID and falls back to the statement.
func (c CriterionDefinition) Label() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Statement
}

package models

import (
	"strings"
	"unicode"
)

// Page is one unit of extracted document text. PageNumber is 1-indexed.
type Page struct {
	PageNumber int    `json:"pageNumber"`
	Text       string `json:"text"`
}

// RiskLevel is the model's assessment of the compliance risk behind a finding.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
	RiskUnknown  RiskLevel = "Unknown"
)

// Severity orders risk levels so the worst of several can be picked. Unknown ranks lowest.
func (r RiskLevel) Severity() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	}
	return 0
}

var riskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}

// ParseRiskLevel maps free-form model output onto a RiskLevel, case-insensitively.
// The first level named as a whole word wins unless it is negated ("not high"), so
// "High risk to intake" is RiskHigh and "not high, low" is RiskLow. Failing that,
// the earliest substring mention is used. Anything else is RiskUnknown.
func ParseRiskLevel(s string) RiskLevel {
	lower := strings.ToLower(strings.TrimSpace(s))
	if lower == "" {
		return RiskUnknown
	}
	words := strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) })
	for i, w := range words {
		if i > 0 && (words[i-1] == "not" || words[i-1] == "no") {
			continue
		}
		for _, lvl := range riskLevels {
			if w == strings.ToLower(string(lvl)) {
				return lvl
			}
		}
	}

	best, bestIdx := RiskUnknown, -1
	for _, lvl := range riskLevels {
		idx := strings.Index(lower, strings.ToLower(string(lvl)))
		if idx >= 0 && (bestIdx < 0 || idx < bestIdx) {
			best, bestIdx = lvl, idx
		}
	}
	return best
}

// EvaluationOutcome is the parsed model answer for one (page, criterion) pair.
type EvaluationOutcome struct {
	Evidence        string
	Explanation     string
	Remarks         string
	ComplianceScore int
	RiskLevel       RiskLevel
}

// Finding is a persisted record of evidence found for one (page, criterion) pair.
type Finding struct {
	ID                 string    `json:"id" firestore:"id"`
	CriterionID        string    `json:"criterionId,omitempty" firestore:"criterionId,omitempty"`
	CriterionStatement string    `json:"criteria" firestore:"criteria"`
	Category           string    `json:"category" firestore:"category"`
	Factor             string    `json:"factor" firestore:"factor"`
	PageNumber         int       `json:"page" firestore:"pageNumber"`
	Evidence           string    `json:"evidence" firestore:"evidence"`
	Explanation        string    `json:"explanation" firestore:"explanation"`
	Remarks            string    `json:"remarks" firestore:"remarks"`
	ComplianceScore    int       `json:"compliance_score" firestore:"complianceScore"`
	RiskLevel          RiskLevel `json:"risk_level" firestore:"riskLevel"`
}

// Package interpreter turns loosely structured model output into an EvaluationOutcome.
//
// Models are asked for a bare JSON object but routinely wrap it in markdown fences,
// surround it with prose, or emit something that is almost JSON. Interpret tries a
// fixed chain of strategies, from strict to forgiving, and stops at the first that
// yields fields. An answer without evidence means "nothing found on this page" and
// is reported as nil; nothing in this package returns an error or panics on input.
package interpreter

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Lllllllleong/complianceauditflow/internal/models"
)

// strategy extracts raw fields from fence-stripped model text.
type strategy func(text string) (map[string]any, bool)

// strategies is tried in order; each is a pure function.
var strategies = []strategy{
	parseWhole,
	parseEmbeddedObject,
	extractFields,
}

// Interpret returns the outcome encoded in raw, or nil when raw holds no evidence.
func Interpret(raw string) *models.EvaluationOutcome {
	text := stripFences(raw)
	if text == "" {
		return nil
	}
	for _, try := range strategies {
		fields, ok := try(text)
		if !ok {
			continue
		}
		return toOutcome(fields)
	}
	return nil
}

var (
	leadingFence  = regexp.MustCompile("(?i)^```[a-z]*[ \t]*")
	trailingFence = regexp.MustCompile("```$")
)

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = leadingFence.ReplaceAllString(s, "")
	s = trailingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func parseWhole(text string) (map[string]any, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(text), &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

// embeddedObject matches a brace-balanced object with at most one level of nesting.
var embeddedObject = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)

func parseEmbeddedObject(text string) (map[string]any, bool) {
	match := embeddedObject.FindString(text)
	if match == "" {
		return nil, false
	}
	return parseWhole(match)
}

var (
	foundField = regexp.MustCompile(`(?i)"found"\s*:\s*(true|false)`)
	scoreField = regexp.MustCompile(`"compliance_score"\s*:\s*"?(-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?)`)
)

// stringField matches "name": "value" where value may contain escaped quotes.
func stringField(name string) *regexp.Regexp {
	return regexp.MustCompile(`"` + name + `"\s*:\s*"((?:[^"\\]|\\.)*)"`)
}

var textFields = map[string]*regexp.Regexp{
	"evidence":    stringField("evidence"),
	"explanation": stringField("explanation"),
	"remarks":     stringField("remarks"),
	"risk_level":  stringField("risk_level"),
}

// extractFields is the last resort for output that is not valid JSON at all, such as
// an object cut off by the token limit. It only succeeds if evidence, or the legacy
// found flag, can be located.
func extractFields(text string) (map[string]any, bool) {
	fields := make(map[string]any)
	for name, re := range textFields {
		if m := re.FindStringSubmatch(text); m != nil {
			fields[name] = unescape(m[1])
		}
	}
	if m := scoreField.FindStringSubmatch(text); m != nil {
		fields["compliance_score"] = m[1]
	}
	_, hasEvidence := fields["evidence"]
	hasFound := foundField.MatchString(text)
	if !hasEvidence && !hasFound {
		return nil, false
	}
	return fields, true
}

func unescape(s string) string {
	if u, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return u
	}
	return s
}

func toOutcome(fields map[string]any) *models.EvaluationOutcome {
	evidence := asText(fields["evidence"])
	if strings.TrimSpace(evidence) == "" {
		return nil
	}
	return &models.EvaluationOutcome{
		Evidence:        evidence,
		Explanation:     asText(fields["explanation"]),
		Remarks:         asText(fields["remarks"]),
		ComplianceScore: asScore(fields["compliance_score"]),
		RiskLevel:       models.ParseRiskLevel(asText(fields["risk_level"])),
	}
}

// asText keeps strings verbatim and flattens lists of quotes into one block.
func asText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := asText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case bool:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

func asScore(v any) int {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "%")), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, f))))
}

package interpreter

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/Lllllllleong/complianceauditflow/internal/models"
)

const validJSON = `{"evidence": "primary source verification", "explanation": "Policy names PSV.", "remarks": "none", "compliance_score": 85, "risk_level": "Low"}`

func TestInterpret_StrictJSON(t *testing.T) {
	got := Interpret(validJSON)
	want := &models.EvaluationOutcome{
		Evidence:        "primary source verification",
		Explanation:     "Policy names PSV.",
		Remarks:         "none",
		ComplianceScore: 85,
		RiskLevel:       models.RiskLow,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestInterpret_Defaults(t *testing.T) {
	got := Interpret(`{"evidence": "section 4.2"}`)
	if got == nil {
		t.Fatal("expected an outcome")
	}
	if got.Explanation != "" || got.Remarks != "" || got.ComplianceScore != 0 || got.RiskLevel != models.RiskUnknown {
		t.Errorf("expected documented defaults, got %+v", got)
	}
}

func TestInterpret_EvidenceVerbatim(t *testing.T) {
	inputs := []string{
		"  leading and trailing spaces  ",
		"line one\nline two",
		`quoted "policy" text`,
		"unicode – ✓",
	}
	for _, evidence := range inputs {
		raw := `{"evidence": ` + quote(evidence) + `}`
		got := Interpret(raw)
		if got == nil {
			t.Fatalf("expected outcome for %q", evidence)
		}
		if got.Evidence != evidence {
			t.Errorf("expected evidence %q, got %q", evidence, got.Evidence)
		}
	}
}

func TestInterpret_NoEvidence(t *testing.T) {
	inputs := map[string]string{
		"empty":             "",
		"whitespace":        "   \n\t ",
		"empty fence":       "```json\n```",
		"empty evidence":    `{"evidence": "", "explanation": "nothing here"}`,
		"blank evidence":    `{"evidence": "   "}`,
		"null evidence":     `{"evidence": null}`,
		"missing evidence":  `{"explanation": "no policy found", "compliance_score": 10}`,
		"prose":             "I could not find anything relevant on this page.",
		"legacy found only": `"found": false, "explanation": "n/a"`,
		"json null":         "null",
	}
	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			if got := Interpret(raw); got != nil {
				t.Errorf("expected nil, got %+v", got)
			}
		})
	}
}

func TestInterpret_FenceRoundTrip(t *testing.T) {
	plain := Interpret(validJSON)
	for _, wrapped := range []string{
		"```json\n" + validJSON + "\n```",
		"```JSON " + validJSON + "```",
		"```\n" + validJSON + "\n```",
		"\n\n```json\n" + validJSON + "\n```\n",
	} {
		if got := Interpret(wrapped); !reflect.DeepEqual(got, plain) {
			t.Errorf("fenced input %q: expected %+v, got %+v", wrapped, plain, got)
		}
	}
}

func TestInterpret_Idempotent(t *testing.T) {
	raw := "Here you go:\n" + validJSON + "\nThanks!"
	first := Interpret(raw)
	second := Interpret(raw)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected identical outcomes, got %+v and %+v", first, second)
	}
}

func TestInterpret_EmbeddedObject(t *testing.T) {
	raw := `Sure! Based on the page, here is my assessment: {"evidence": "annual review", "meta": {"source": "p1"}, "compliance_score": 70, "risk_level": "Medium"} Let me know if you need more.`
	got := Interpret(raw)
	if got == nil {
		t.Fatal("expected outcome from embedded object")
	}
	if got.Evidence != "annual review" || got.ComplianceScore != 70 || got.RiskLevel != models.RiskMedium {
		t.Errorf("unexpected outcome %+v", got)
	}
}

func TestInterpret_FieldFallback(t *testing.T) {
	// Truncated by the token limit: not parseable as JSON.
	raw := `{"evidence": "Committee reviews \"all\" files", "explanation": "Partial", "remarks": "check minutes", "compliance_score": "65", "risk_level": "High", "found": tr`
	got := Interpret(raw)
	if got == nil {
		t.Fatal("expected outcome from field fallback")
	}
	want := &models.EvaluationOutcome{
		Evidence:        `Committee reviews "all" files`,
		Explanation:     "Partial",
		Remarks:         "check minutes",
		ComplianceScore: 65,
		RiskLevel:       models.RiskHigh,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestInterpret_LegacyFoundFlag(t *testing.T) {
	raw := `"found": true, "evidence": "credentialing committee charter", "compliance_score": 90`
	got := Interpret(raw)
	if got == nil || got.Evidence != "credentialing committee charter" || got.ComplianceScore != 90 {
		t.Errorf("unexpected outcome %+v", got)
	}
}

func TestInterpret_ScoreCoercion(t *testing.T) {
	tests := map[string]int{
		`{"evidence":"e","compliance_score":85}`:     85,
		`{"evidence":"e","compliance_score":"85%"}`:  85,
		`{"evidence":"e","compliance_score":72.6}`:   73,
		`{"evidence":"e","compliance_score":140}`:    100,
		`{"evidence":"e","compliance_score":-5}`:     0,
		`{"evidence":"e","compliance_score":"high"}`: 0,
		`{"evidence":"e","compliance_score":true}`:   0,
	}
	for raw, want := range tests {
		got := Interpret(raw)
		if got == nil {
			t.Fatalf("expected outcome for %s", raw)
		}
		if got.ComplianceScore != want {
			t.Errorf("%s: expected score %d, got %d", raw, want, got.ComplianceScore)
		}
	}
}

func TestInterpret_FieldFallbackScore(t *testing.T) {
	// The trailing "tr" keeps each of these off the JSON paths.
	tests := map[string]int{
		`{"evidence":"e","compliance_score":1e309,"found":tr`: 0,
		`{"evidence":"e","compliance_score":72.6,"found":tr`:  73,
		`{"evidence":"e","compliance_score":8e1,"found":tr`:   80,
		`{"evidence":"e","compliance_score":-3,"found":tr`:    0,
	}
	for raw, want := range tests {
		got := Interpret(raw)
		if got == nil {
			t.Fatalf("expected outcome for %s", raw)
		}
		if got.ComplianceScore != want {
			t.Errorf("%s: expected score %d, got %d", raw, want, got.ComplianceScore)
		}
	}
}

func TestInterpret_EvidenceList(t *testing.T) {
	got := Interpret(`{"evidence": ["quote one", "", "quote two"]}`)
	if got == nil || got.Evidence != "quote one\nquote two" {
		t.Errorf("expected joined quotes, got %+v", got)
	}
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

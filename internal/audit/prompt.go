package audit

import (
	"fmt"
	"strings"

	"github.com/Lllllllleong/complianceauditflow/internal/models"
)

const responseFormat = `RESPOND WITH A SINGLE JSON OBJECT (no markdown, no code blocks):
{
    "evidence": "The exact text from the page that supports compliance",
    "explanation": "How the evidence demonstrates compliance or why it is insufficient",
    "remarks": "Additional observations, recommendations, or areas of concern",
    "compliance_score": 0-100,
    "risk_level": "Low/Medium/High/Critical"
}`

const silenceInstruction = `If this page contains no evidence for the criterion, respond with nothing at all.
Do not explain that nothing was found.`

const scoringGuide = `COMPLIANCE SCORING GUIDE:
- 90-100: Fully compliant with strong evidence
- 70-89: Mostly compliant with minor gaps
- 50-69: Partially compliant with significant gaps
- 30-49: Minimally compliant with major concerns
- 0-29: Non-compliant or insufficient evidence

RISK LEVEL ASSESSMENT:
- Low: Minor compliance gaps with low impact
- Medium: Moderate gaps that may affect quality
- High: Significant gaps that could impact patient care
- Critical: Major compliance failures requiring immediate attention`

// buildPrompt picks the template for the criterion's kind.
func buildPrompt(c models.CriterionDefinition, page models.Page) string {
	if c.Kind == models.KindRich {
		return richPrompt(c, page)
	}
	return plainPrompt(c, page)
}

func richPrompt(c models.CriterionDefinition, page models.Page) string {
	var b strings.Builder
	b.WriteString("You are a healthcare compliance auditor specializing in NCQA standards. ")
	b.WriteString("Audit one page of a document against a single criterion.\n\n")

	b.WriteString("CRITERIA DETAILS:\n")
	fmt.Fprintf(&b, "- ID: %s\n", orNA(c.ID))
	fmt.Fprintf(&b, "- Category: %s\n", orNA(c.Category))
	fmt.Fprintf(&b, "- Factor: %s\n", orNA(c.Factor))
	fmt.Fprintf(&b, "- Criteria: %s\n", c.Statement)
	fmt.Fprintf(&b, "- Description: %s\n\n", orNA(c.Description))

	b.WriteString("COMPLIANCE REQUIREMENTS:\n")
	writeList(&b, c.ComplianceRequirements)
	b.WriteString("\nEVIDENCE REQUIRED:\n")
	writeList(&b, c.EvidenceRequired)

	fmt.Fprintf(&b, "\nPAGE %d OF THE DOCUMENT TO AUDIT:\n%s\n\n", page.PageNumber, page.Text)

	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString("1. Analyze the page for evidence of compliance with this criterion.\n")
	b.WriteString("2. Look for specific policies, procedures, or documentation that address the requirements.\n")
	b.WriteString("3. Quote the evidence exactly as it appears on the page.\n")
	b.WriteString("4. Evaluate the completeness and adequacy of the evidence found.\n\n")

	b.WriteString(silenceInstruction)
	b.WriteString("\n\n")
	b.WriteString(responseFormat)
	b.WriteString("\n\n")
	b.WriteString(scoringGuide)
	b.WriteString("\n")
	return b.String()
}

func plainPrompt(c models.CriterionDefinition, page models.Page) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Audit the following page for this criterion: '%s'.\n", c.Statement)
	fmt.Fprintf(&b, "Category: %s.\n", c.Category)
	if c.Factor != "" {
		fmt.Fprintf(&b, "Factor: %s.\n", c.Factor)
	}
	if c.Description != "" {
		fmt.Fprintf(&b, "Description: %s.\n", c.Description)
	}
	fmt.Fprintf(&b, "\nPage %d:\n%s\n\n", page.PageNumber, page.Text)
	b.WriteString(silenceInstruction)
	b.WriteString("\n\n")
	b.WriteString(responseFormat)
	b.WriteString("\n")
	return b.String()
}

func writeList(b *strings.Builder, items []string) {
	if len(items) == 0 {
		b.WriteString("- N/A\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

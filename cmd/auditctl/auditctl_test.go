package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func writeTestDOCX(t *testing.T, dir, text string) string {
	t.Helper()
	path := filepath.Join(dir, "policy.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	body := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` +
		text + `</w:t></w:r></w:p></w:body></w:document>`
	if _, err := w.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestExtractCommand(t *testing.T) {
	path := writeTestDOCX(t, t.TempDir(), "Credentialing policy text")
	out, err := execute(t, "extract", "--file", path)
	if err != nil {
		t.Fatal(err)
	}
	var pages []struct {
		PageNumber int    `json:"pageNumber"`
		Text       string `json:"text"`
	}
	if err := json.Unmarshal([]byte(out), &pages); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(pages) != 1 || pages[0].PageNumber != 1 || pages[0].Text != "Credentialing policy text" {
		t.Errorf("unexpected pages %+v", pages)
	}
}

func TestRunCommand(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			Prompt      string  `json:"prompt"`
			Temperature float32 `json:"temperature"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(req.Prompt, "Board oversight") {
			// Nothing on this page for the plain criterion.
			_ = json.NewEncoder(w).Encode(map[string]string{"response": ""})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"response": "```json\n{\"evidence\": \"primary source verification\", \"compliance_score\": 85, \"risk_level\": \"Low\"}\n```",
		})
	}))
	defer srv.Close()

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("LLM_PROVIDER", "custom")
	t.Setenv("CUSTOM_LLM_ENDPOINT", srv.URL)
	t.Setenv("AUDIT_CONCURRENCY", "2")

	criteriaPath := filepath.Join(dir, "criteria.json")
	criteriaJSON := `[
		{"id": "CR-1", "category": "Credentialing", "criteria": "Credentialing Policy Documented", "compliance_requirements": ["PSV"]},
		{"category": "Governance", "criteria": "Board oversight", "description": "Board reviews reports."}
	]`
	if err := os.WriteFile(criteriaPath, []byte(criteriaJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	docPath := writeTestDOCX(t, dir, "Our credentialing policy requires primary source verification.")
	outPath := filepath.Join(dir, "findings.json")

	if _, err := execute(t, "run", "-f", docPath, "-c", filepath.Join(dir, "missing.json")+","+criteriaPath, "-o", outPath); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected one call per criterion, got %d", calls.Load())
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	var got runOutput
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Provider != "custom" || got.Stats.Units != 2 || got.Stats.WithFinding != 1 || got.Stats.WithoutFinding != 1 {
		t.Errorf("unexpected output header %+v", got)
	}
	if len(got.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(got.Findings))
	}
	f := got.Findings[0]
	if f.CriterionID != "CR-1" || f.PageNumber != 1 || f.Evidence != "primary source verification" || f.ComplianceScore != 85 {
		t.Errorf("unexpected finding %+v", f)
	}
}

func TestRunCommand_UnknownProvider(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeTestDOCX(t, t.TempDir(), "text")
	if _, err := execute(t, "run", "--file", path, "--provider", "bard"); err == nil {
		t.Error("expected an error for an unknown provider")
	}
}

package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Lllllllleong/complianceauditflow/internal/llm"
	"github.com/Lllllllleong/complianceauditflow/internal/models"
)

// stubBackend answers every prompt with respond and records what it was sent.
type stubBackend struct {
	respond func(ctx context.Context, prompt string) (string, error)

	mu           sync.Mutex
	prompts      []string
	temperatures []float32
	models       []string
}

func (s *stubBackend) Complete(ctx context.Context, prompt, model string, temperature float32) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.temperatures = append(s.temperatures, temperature)
	s.models = append(s.models, model)
	s.mu.Unlock()
	return s.respond(ctx, prompt)
}

func (s *stubBackend) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

type stubResolver struct {
	backend llm.Backend
	err     error
}

func (r stubResolver) Backend(ctx context.Context, p llm.Provider) (llm.Backend, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.backend, nil
}

func constant(raw string) func(context.Context, string) (string, error) {
	return func(context.Context, string) (string, error) { return raw, nil }
}

var credentialing = models.CriterionDefinition{
	ID:                     "CR-1",
	Category:               "Credentialing",
	Factor:                 "Factor 1",
	Statement:              "Credentialing Policy Documented",
	ComplianceRequirements: []string{"Policy requires primary source verification"},
	Kind:                   models.KindRich,
}

var params = RunParams{Model: "test-model", Provider: llm.ProviderCustom}

func TestRun_RichCriterionFinding(t *testing.T) {
	backend := &stubBackend{respond: constant(`{"evidence": "primary source verification", "explanation": "Policy states PSV.", "compliance_score": 85, "risk_level": "Low"}`)}
	pages := []models.Page{{PageNumber: 1, Text: "Our credentialing policy requires primary source verification..."}}

	res, err := NewEngine(stubResolver{backend: backend}).Run(context.Background(), pages, []models.CriterionDefinition{credentialing}, params)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(res.Findings))
	}
	f := res.Findings[0]
	if f.PageNumber != 1 || f.ComplianceScore != 85 || f.RiskLevel != models.RiskLow {
		t.Errorf("unexpected finding %+v", f)
	}
	if f.CriterionStatement != "Credentialing Policy Documented" || f.Category != "Credentialing" || f.CriterionID != "CR-1" {
		t.Errorf("expected criterion metadata on finding, got %+v", f)
	}
	if f.ID == "" {
		t.Error("expected a finding id")
	}
	if backend.temperatures[0] != DefaultTemperature || backend.models[0] != "test-model" {
		t.Errorf("unexpected call settings: temperature %v model %q", backend.temperatures[0], backend.models[0])
	}
	if !strings.Contains(backend.prompts[0], "Policy requires primary source verification") {
		t.Error("expected rich prompt to carry compliance requirements")
	}
	if !strings.Contains(backend.prompts[0], pages[0].Text) {
		t.Error("expected prompt to embed the full page text")
	}
	if res.Stats != (RunStats{Units: 1, WithFinding: 1}) {
		t.Errorf("unexpected stats %+v", res.Stats)
	}
}

func TestRun_SilenceMeansNoFinding(t *testing.T) {
	backend := &stubBackend{respond: constant("")}
	pages := []models.Page{{PageNumber: 1, Text: "Our credentialing policy requires primary source verification..."}}

	res, err := NewEngine(stubResolver{backend: backend}).Run(context.Background(), pages, []models.CriterionDefinition{credentialing}, params)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Findings) != 0 {
		t.Errorf("expected no findings, got %+v", res.Findings)
	}
	if res.Stats != (RunStats{Units: 1, WithoutFinding: 1}) {
		t.Errorf("unexpected stats %+v", res.Stats)
	}
}

func TestRun_CompletionErrorOnSecondPage(t *testing.T) {
	backend := &stubBackend{respond: func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "second page") {
			return "", &llm.CompletionError{Provider: llm.ProviderCustom, Cause: errors.New("connection refused")}
		}
		return `{"evidence": "committee charter"}`, nil
	}}
	pages := []models.Page{
		{PageNumber: 1, Text: "first page"},
		{PageNumber: 2, Text: "second page"},
	}

	res, err := NewEngine(stubResolver{backend: backend}).Run(context.Background(), pages, []models.CriterionDefinition{credentialing}, params)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Findings) != 1 || res.Findings[0].PageNumber != 1 {
		t.Fatalf("expected a single finding on page 1, got %+v", res.Findings)
	}
	if res.Stats.Failed != 1 || res.Stats.WithFinding != 1 {
		t.Errorf("unexpected stats %+v", res.Stats)
	}
}

func TestRun_FaultIsolation(t *testing.T) {
	criteria := []models.CriterionDefinition{
		{Category: "A", Statement: "crit-a"},
		{Category: "B", Statement: "crit-b"},
		{Category: "C", Statement: "crit-c"},
	}
	pages := []models.Page{{PageNumber: 1, Text: "page one"}, {PageNumber: 2, Text: "page two"}}
	backend := &stubBackend{respond: func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "crit-b") && strings.Contains(prompt, "page one") {
			return "", errors.New("simulated network error")
		}
		return `{"evidence": "something relevant"}`, nil
	}}

	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency %d", concurrency), func(t *testing.T) {
			res, err := NewEngine(stubResolver{backend: backend}, WithConcurrency(concurrency)).Run(context.Background(), pages, criteria, params)
			if err != nil {
				t.Fatal(err)
			}
			if len(res.Findings) != 5 {
				t.Errorf("expected 5 findings, got %d", len(res.Findings))
			}
			if res.Stats.Failed != 1 || res.Stats.Units != 6 {
				t.Errorf("unexpected stats %+v", res.Stats)
			}
		})
	}
}

func TestRun_PageMajorOrderUnderConcurrency(t *testing.T) {
	criteria := []models.CriterionDefinition{
		{Category: "cat", Statement: "crit-0"},
		{Category: "cat", Statement: "crit-1"},
		{Category: "cat", Statement: "crit-2"},
	}
	var pages []models.Page
	for i := 1; i <= 4; i++ {
		pages = append(pages, models.Page{PageNumber: i, Text: fmt.Sprintf("text of page %d", i)})
	}

	var inFlight, maxInFlight atomic.Int32
	backend := &stubBackend{respond: func(ctx context.Context, prompt string) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		// Earlier pages answer last so completion order is the reverse of input order.
		page := 0
		for i := 1; i <= 4; i++ {
			if strings.Contains(prompt, fmt.Sprintf("text of page %d", i)) {
				page = i
			}
		}
		time.Sleep(time.Duration(5-page) * 5 * time.Millisecond)
		for j := range criteria {
			if strings.Contains(prompt, criteria[j].Statement) {
				return fmt.Sprintf(`{"evidence": "p%d-%s"}`, page, criteria[j].Statement), nil
			}
		}
		return "", nil
	}}

	res, err := NewEngine(stubResolver{backend: backend}, WithConcurrency(3)).Run(context.Background(), pages, criteria, params)
	if err != nil {
		t.Fatal(err)
	}
	var want []string
	for _, p := range pages {
		for _, c := range criteria {
			want = append(want, fmt.Sprintf("p%d-%s", p.PageNumber, c.Statement))
		}
	}
	if len(res.Findings) != len(want) {
		t.Fatalf("expected %d findings, got %d", len(want), len(res.Findings))
	}
	for i, f := range res.Findings {
		if f.Evidence != want[i] {
			t.Errorf("finding %d: expected %s, got %s", i, want[i], f.Evidence)
		}
	}
	if got := maxInFlight.Load(); got > 3 {
		t.Errorf("expected at most 3 calls in flight, saw %d", got)
	}
}

func TestRun_CancellationStopsScheduling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var callCtxErr error
	backend := &stubBackend{respond: func(callCtx context.Context, prompt string) (string, error) {
		cancel()
		callCtxErr = callCtx.Err()
		return `{"evidence": "in-flight result"}`, nil
	}}
	pages := []models.Page{{PageNumber: 1, Text: "one"}, {PageNumber: 2, Text: "two"}, {PageNumber: 3, Text: "three"}}

	res, err := NewEngine(stubResolver{backend: backend}).Run(ctx, pages, []models.CriterionDefinition{credentialing}, params)
	if err != nil {
		t.Fatal(err)
	}
	if backend.calls() != 1 {
		t.Errorf("expected exactly one call before cancellation took effect, got %d", backend.calls())
	}
	if callCtxErr != nil {
		t.Errorf("expected the in-flight call to keep running, its context reported %v", callCtxErr)
	}
	if len(res.Findings) != 1 || res.Findings[0].Evidence != "in-flight result" {
		t.Errorf("expected the in-flight finding to be kept, got %+v", res.Findings)
	}
	if res.Stats != (RunStats{Units: 3, WithFinding: 1, Skipped: 2}) {
		t.Errorf("unexpected stats %+v", res.Stats)
	}
}

func TestRun_ConfigurationErrorBeforeWork(t *testing.T) {
	backend := &stubBackend{respond: constant(`{"evidence": "x"}`)}
	resolverErr := fmt.Errorf("%w: provider openai is not configured", models.ErrConfiguration)

	res, err := NewEngine(stubResolver{backend: backend, err: resolverErr}).Run(context.Background(),
		[]models.Page{{PageNumber: 1, Text: "text"}}, []models.CriterionDefinition{credentialing}, params)
	if !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if res != nil {
		t.Errorf("expected no result, got %+v", res)
	}
	if backend.calls() != 0 {
		t.Errorf("expected no completion calls, got %d", backend.calls())
	}
}

func TestRun_BlankPageSkipsCall(t *testing.T) {
	backend := &stubBackend{respond: constant(`{"evidence": "should not appear"}`)}
	pages := []models.Page{{PageNumber: 1, Text: "  \n\t"}, {PageNumber: 2, Text: ""}}

	res, err := NewEngine(stubResolver{backend: backend}).Run(context.Background(), pages, []models.CriterionDefinition{credentialing}, params)
	if err != nil {
		t.Fatal(err)
	}
	if backend.calls() != 0 {
		t.Errorf("expected no calls for blank pages, got %d", backend.calls())
	}
	if res.Stats != (RunStats{Units: 2, WithoutFinding: 2}) {
		t.Errorf("unexpected stats %+v", res.Stats)
	}
}

func TestRun_PanicIsContained(t *testing.T) {
	backend := &stubBackend{respond: func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "bad page") {
			panic("boom")
		}
		return `{"evidence": "fine"}`, nil
	}}
	pages := []models.Page{{PageNumber: 1, Text: "bad page"}, {PageNumber: 2, Text: "good page"}}

	res, err := NewEngine(stubResolver{backend: backend}, WithConcurrency(2)).Run(context.Background(), pages, []models.CriterionDefinition{credentialing}, params)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Findings) != 1 || res.Findings[0].PageNumber != 2 {
		t.Errorf("expected a finding on page 2 only, got %+v", res.Findings)
	}
	if res.Stats.Failed != 1 {
		t.Errorf("expected the panic to count as a failure, got %+v", res.Stats)
	}
}

func TestRun_FindingCountBounded(t *testing.T) {
	criteria := []models.CriterionDefinition{{Category: "a", Statement: "s1"}, credentialing}
	pages := []models.Page{{PageNumber: 1, Text: "x"}, {PageNumber: 2, Text: "y"}, {PageNumber: 3, Text: "z"}}
	responses := []string{"", `{"evidence": "e"}`, "garbage", `{"evidence": ""}`, "```json\n{\"evidence\": \"q\"}\n```", `{"found": true}`}

	for _, raw := range responses {
		backend := &stubBackend{respond: constant(raw)}
		res, err := NewEngine(stubResolver{backend: backend}, WithConcurrency(2)).Run(context.Background(), pages, criteria, params)
		if err != nil {
			t.Fatal(err)
		}
		if n := len(res.Findings); n < 0 || n > len(pages)*len(criteria) {
			t.Errorf("response %q: finding count %d out of bounds", raw, n)
		}
		s := res.Stats
		if s.WithFinding+s.WithoutFinding+s.Failed+s.Skipped != s.Units {
			t.Errorf("response %q: stats do not add up: %+v", raw, s)
		}
	}
}

func TestRun_EmptyInputs(t *testing.T) {
	backend := &stubBackend{respond: constant(`{"evidence": "e"}`)}
	res, err := NewEngine(stubResolver{backend: backend}).Run(context.Background(), nil, []models.CriterionDefinition{credentialing}, params)
	if err != nil {
		t.Fatal(err)
	}
	if res.Findings == nil || len(res.Findings) != 0 || res.Stats.Units != 0 {
		t.Errorf("expected an empty non-nil result, got %+v", res)
	}
}

func TestBuildPrompt_SelectsTemplateByKind(t *testing.T) {
	page := models.Page{PageNumber: 7, Text: "page body"}
	plain := models.CriterionDefinition{Category: "Governance", Statement: "Board oversight", Description: "Board reviews reports."}

	rich := buildPrompt(credentialing, page)
	if !strings.Contains(rich, "COMPLIANCE REQUIREMENTS") || !strings.Contains(rich, "- ID: CR-1") {
		t.Error("expected the rich template for a rich criterion")
	}
	if !strings.Contains(rich, "PAGE 7") || !strings.Contains(rich, silenceInstruction) {
		t.Error("expected page number and silence instruction in rich prompt")
	}

	p := buildPrompt(plain, page)
	if strings.Contains(p, "COMPLIANCE REQUIREMENTS") {
		t.Error("expected the plain template for a plain criterion")
	}
	for _, want := range []string{"'Board oversight'", "Governance", "Board reviews reports.", "Page 7", "page body", silenceInstruction} {
		if !strings.Contains(p, want) {
			t.Errorf("expected plain prompt to contain %q", want)
		}
	}
}

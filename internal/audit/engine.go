// Package audit evaluates every page of a document against every audit criterion
// and collects the findings the model reports evidence for.
package audit

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/complianceauditflow/internal/interpreter"
	"github.com/Lllllllleong/complianceauditflow/internal/llm"
	"github.com/Lllllllleong/complianceauditflow/internal/models"
)

// DefaultTemperature keeps model answers close to deterministic.
const DefaultTemperature float32 = 0.1

// BackendResolver hands out the completion backend for a provider.
// *llm.Gateway satisfies it.
type BackendResolver interface {
	Backend(ctx context.Context, p llm.Provider) (llm.Backend, error)
}

// RunParams are the per-run model settings. An empty Model selects the provider default.
type RunParams struct {
	Model    string
	Provider llm.Provider
}

// RunStats counts how each (page, criterion) unit of a run ended.
// Units == WithFinding + WithoutFinding + Failed + Skipped.
type RunStats struct {
	Units          int `json:"units"`
	WithFinding    int `json:"withFinding"`
	WithoutFinding int `json:"withoutFinding"`
	Failed         int `json:"failed"`
	Skipped        int `json:"skipped"`
}

// RunResult holds the findings of a run in page-major, criterion-minor order.
type RunResult struct {
	Findings []models.Finding
	Stats    RunStats
}

type unitState int

const (
	statePending unitState = iota
	stateWithFinding
	stateWithoutFinding
	stateFailed
)

type unitResult struct {
	state   unitState
	finding models.Finding
}

// Engine runs audits. It keeps no state between runs.
type Engine struct {
	resolver    BackendResolver
	concurrency int
	temperature float32
	logger      *slog.Logger
	newID       func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithConcurrency caps the number of completions in flight. Values below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.concurrency = n
	}
}

// WithTemperature overrides the sampling temperature sent with every evaluation.
func WithTemperature(t float32) Option {
	return func(e *Engine) { e.temperature = t }
}

// WithLogger sets the logger used for per-unit diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine that evaluates one unit at a time unless WithConcurrency says otherwise.
func NewEngine(resolver BackendResolver, opts ...Option) *Engine {
	e := &Engine{
		resolver:    resolver,
		concurrency: 1,
		temperature: DefaultTemperature,
		logger:      slog.Default(),
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run evaluates every (page, criterion) pair.
//
// The only error Run returns is a configuration error from resolving the backend, and it
// is returned before any evaluation starts. A unit whose completion fails is logged and
// counted in Stats.Failed; the run carries on. Cancelling ctx stops new units from
// starting; units already calling the model run to completion or to the gateway timeout,
// and the ones never started are counted in Stats.Skipped.
func (e *Engine) Run(ctx context.Context, pages []models.Page, criteria []models.CriterionDefinition, params RunParams) (*RunResult, error) {
	backend, err := e.resolver.Backend(ctx, params.Provider)
	if err != nil {
		return nil, err
	}

	units := len(pages) * len(criteria)
	results := make([]unitResult, units)
	callCtx := context.WithoutCancel(ctx)

	e.logger.Info("Starting audit run.",
		"pageCount", len(pages),
		"criteriaCount", len(criteria),
		"provider", params.Provider.String(),
		"model", params.Model,
		"concurrency", e.concurrency,
	)

	var eg errgroup.Group
	eg.SetLimit(e.concurrency)

schedule:
	for i := range pages {
		for j := range criteria {
			if ctx.Err() != nil {
				break schedule
			}
			idx := i*len(criteria) + j
			page, crit := pages[i], criteria[j]
			eg.Go(func() error {
				// A slot may free up only after cancellation.
				if ctx.Err() != nil {
					return nil
				}
				results[idx] = e.evaluate(callCtx, backend, page, crit, params)
				return nil
			})
		}
	}
	_ = eg.Wait()

	res := &RunResult{Findings: []models.Finding{}, Stats: RunStats{Units: units}}
	for _, r := range results {
		switch r.state {
		case stateWithFinding:
			res.Stats.WithFinding++
			res.Findings = append(res.Findings, r.finding)
		case stateWithoutFinding:
			res.Stats.WithoutFinding++
		case stateFailed:
			res.Stats.Failed++
		default:
			res.Stats.Skipped++
		}
	}

	logAttrs := []any{
		"findingCount", len(res.Findings),
		"units", units,
		"failed", res.Stats.Failed,
		"skipped", res.Stats.Skipped,
	}
	if ctx.Err() != nil {
		e.logger.Warn("Audit run cancelled before all units were scheduled.", logAttrs...)
	} else {
		e.logger.Info("Audit run complete.", logAttrs...)
	}
	return res, nil
}

func (e *Engine) evaluate(ctx context.Context, backend llm.Backend, page models.Page, crit models.CriterionDefinition, params RunParams) (res unitResult) {
	logCtx := e.logger.With("page", page.PageNumber, "criterion", crit.Label())
	defer func() {
		if r := recover(); r != nil {
			logCtx.Error("Evaluation panicked.", "panic", r)
			res = unitResult{state: stateFailed}
		}
	}()

	if strings.TrimSpace(page.Text) == "" {
		logCtx.Debug("Blank page, nothing to evaluate.")
		return unitResult{state: stateWithoutFinding}
	}

	raw, err := backend.Complete(ctx, buildPrompt(crit, page), params.Model, e.temperature)
	if err != nil {
		logCtx.Error("Completion failed.", "error", err)
		return unitResult{state: stateFailed}
	}

	outcome := interpreter.Interpret(raw)
	if outcome == nil {
		return unitResult{state: stateWithoutFinding}
	}
	logCtx.Info("Evidence found.", "complianceScore", outcome.ComplianceScore, "riskLevel", outcome.RiskLevel)
	return unitResult{
		state: stateWithFinding,
		finding: models.Finding{
			ID:                 e.newID(),
			CriterionID:        crit.ID,
			CriterionStatement: crit.Statement,
			Category:           crit.Category,
			Factor:             crit.Factor,
			PageNumber:         page.PageNumber,
			Evidence:           outcome.Evidence,
			Explanation:        outcome.Explanation,
			Remarks:            outcome.Remarks,
			ComplianceScore:    outcome.ComplianceScore,
			RiskLevel:          outcome.RiskLevel,
		},
	}
}

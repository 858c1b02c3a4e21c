package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/complianceauditflow/internal/audit"
	"github.com/Lllllllleong/complianceauditflow/internal/config"
	"github.com/Lllllllleong/complianceauditflow/internal/criteria"
	"github.com/Lllllllleong/complianceauditflow/internal/extractor"
	"github.com/Lllllllleong/complianceauditflow/internal/llm"
	"github.com/Lllllllleong/complianceauditflow/internal/models"
)

type runOptions struct {
	file         string
	criteriaPath []string
	provider     string
	model        string
	concurrency  int
	out          string
}

type runOutput struct {
	File     string           `json:"file"`
	Provider string           `json:"provider"`
	Model    string           `json:"model,omitempty"`
	Stats    audit.RunStats   `json:"stats"`
	Findings []models.Finding `json:"findings"`
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Audit a document and print the findings as JSON",
		Long: `Audit a document and print the findings as JSON.

Provider credentials and defaults come from the environment (or a .env file),
exactly as for the deployed functions. Flags override the criteria paths,
provider, model and concurrency.`,
		Example: `  auditctl run --file policy.pdf --provider openai --model gpt-4o-mini
  auditctl run -f policy.pdf -c criteria/ncqa_audit_criteria.json,criteria/audit_criteria.json -n 4 -o findings.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "document to audit (PDF or DOCX)")
	cmd.Flags().StringSliceVarP(&opts.criteriaPath, "criteria", "c", nil, "criteria sources tried in order (default from CRITERIA_PATHS)")
	cmd.Flags().StringVarP(&opts.provider, "provider", "p", "", "openai, gemini, huggingface or custom (default from LLM_PROVIDER)")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "model name (default is the provider's)")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "n", 0, "completions in flight (default from AUDIT_CONCURRENCY)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write JSON here instead of stdout")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runAudit(cmd *cobra.Command, opts *runOptions) error {
	ctx := cmd.Context()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if len(opts.criteriaPath) > 0 {
		cfg.Audit.CriteriaPaths = opts.criteriaPath
	}
	if opts.concurrency > 0 {
		cfg.Audit.Concurrency = opts.concurrency
	}

	gateway := llm.NewGateway(cfg.LLM)
	defer gateway.Close()

	provider, err := gateway.ProviderFor(opts.provider)
	if err != nil {
		return err
	}
	// gs:// criteria are only reachable from the deployed functions.
	sources, err := criteria.SourcesFromPaths(cfg.Audit.CriteriaPaths, nil)
	if err != nil {
		return err
	}
	criteriaList, err := criteria.NewRepository(sources...).Load(ctx)
	if err != nil {
		return err
	}

	pages, err := extractor.Extract(ctx, opts.file, filepath.Base(opts.file))
	if err != nil {
		return err
	}

	engine := audit.NewEngine(gateway, audit.WithConcurrency(cfg.Audit.Concurrency))
	result, err := engine.Run(ctx, pages, criteriaList, audit.RunParams{Model: opts.model, Provider: provider})
	if err != nil {
		return err
	}
	if result.Stats.Failed > 0 {
		slog.Warn("Some evaluations failed.", "failed", result.Stats.Failed, "units", result.Stats.Units)
	}

	if err := writeJSON(cmd.OutOrStdout(), opts.out, runOutput{
		File:     opts.file,
		Provider: provider.String(),
		Model:    opts.model,
		Stats:    result.Stats,
		Findings: result.Findings,
	}); err != nil {
		return err
	}
	if opts.out != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d findings written to %s\n", len(result.Findings), opts.out)
	}
	return nil
}

package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/complianceauditflow/internal/extractor"
)

func newExtractCmd() *cobra.Command {
	var file, out string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Print the pages extracted from a PDF or DOCX file as JSON",
		Example: `  auditctl extract --file policy.pdf
  auditctl extract --file handbook.docx --out pages.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pages, err := extractor.Extract(cmd.Context(), file, filepath.Base(file))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out, pages)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "document to extract (PDF or DOCX)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write JSON here instead of stdout")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

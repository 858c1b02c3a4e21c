package extractor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Lllllllleong/complianceauditflow/internal/models"
)

// validatePDF rejects files pdfcpu cannot make sense of, even in relaxed mode.
func validatePDF(path string) error {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return api.ValidateFile(path, cfg)
}

// extractPDF returns one page per physical page. pdfcpu decides how many pages there
// are; a page whose text cannot be read (scanned images, odd encodings) comes back
// empty rather than failing the document.
func extractPDF(ctx context.Context, path string) ([]models.Page, error) {
	if err := validatePDF(path); err != nil {
		return nil, fmt.Errorf("failed to validate PDF: %w", err)
	}
	pageCount, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF for text extraction: %w", err)
	}
	defer f.Close()

	pages := make([]models.Page, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages = append(pages, models.Page{PageNumber: i, Text: pageText(reader, i)})
	}
	return pages, nil
}

func pageText(reader *pdf.Reader, number int) string {
	if number > reader.NumPage() {
		slog.Warn("Page missing from text layer, treating as empty.", "page", number, "textPages", reader.NumPage())
		return ""
	}
	p := reader.Page(number)
	if p.V.IsNull() {
		return ""
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		slog.Warn("Could not read page text, treating as empty.", "page", number, "error", err)
		return ""
	}
	return text
}

package extractor

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Lllllllleong/complianceauditflow/internal/models"
)

const docxBody = "word/document.xml"

// extractDOCX returns the whole document as page 1, paragraphs joined by newlines.
// Word files carry no reliable pagination.
func extractDOCX(path string) ([]models.Page, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DOCX archive: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != docxBody {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", docxBody, err)
		}
		defer rc.Close()

		paragraphs, err := docxParagraphs(rc)
		if err != nil {
			return nil, err
		}
		return []models.Page{{PageNumber: 1, Text: strings.Join(paragraphs, "\n")}}, nil
	}
	return nil, fmt.Errorf("not a Word document: %s is missing", docxBody)
}

// docxParagraphs walks WordprocessingML and collects the text of every w:p element in
// document order. Paragraphs nested in text boxes are kept as their own entries and do
// not cut into the paragraph that anchors them. mc:Fallback subtrees repeat the
// mc:Choice content and are skipped, as are paragraph properties.
func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		paragraphs []string
		open       []int
		builders   []*strings.Builder
		inText     bool
	)
	current := func() *strings.Builder {
		if len(builders) == 0 {
			return nil
		}
		return builders[len(builders)-1]
	}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", docxBody, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Fallback", "pPr":
				// pPr holds tab stop definitions that share the w:tab name.
				if err := dec.Skip(); err != nil {
					return nil, fmt.Errorf("failed to parse %s: %w", docxBody, err)
				}
			case "p":
				// Reserve the slot now so an anchoring paragraph precedes its text boxes.
				open = append(open, len(paragraphs))
				paragraphs = append(paragraphs, "")
				builders = append(builders, &strings.Builder{})
			case "t":
				inText = true
			case "tab":
				if b := current(); b != nil {
					b.WriteString("\t")
				}
			case "br", "cr":
				if b := current(); b != nil {
					b.WriteString("\n")
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if len(open) == 0 {
					continue
				}
				last := len(open) - 1
				paragraphs[open[last]] = builders[last].String()
				open, builders = open[:last], builders[:last]
			case "t":
				inText = false
			}
		case xml.CharData:
			if b := current(); inText && b != nil {
				b.Write(t)
			}
		}
	}
	return paragraphs, nil
}

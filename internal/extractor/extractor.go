// Package extractor turns uploaded documents into ordered page text.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/complianceauditflow/internal/models"
)

// FileType is a supported upload format.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
)

// DetectFileType maps a filename onto a supported type by extension.
func DetectFileType(filename string) (FileType, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FileTypePDF, nil
	case ".docx":
		return FileTypeDOCX, nil
	}
	return "", fmt.Errorf("unsupported file type %q: only PDF and DOCX are supported", filepath.Ext(filename))
}

// Extract reads the local file at path and returns its pages numbered from 1.
// filename is the original upload name and decides the format.
func Extract(ctx context.Context, path, filename string) ([]models.Page, error) {
	fileType, err := DetectFileType(filename)
	if err != nil {
		return nil, err
	}

	var pages []models.Page
	switch fileType {
	case FileTypePDF:
		pages, err = extractPDF(ctx, path)
	case FileTypeDOCX:
		pages, err = extractDOCX(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", filename, err)
	}
	slog.Info("Text extracted.", "filename", filename, "fileType", string(fileType), "pageCount", len(pages))
	return pages, nil
}

// Package extractor converts stored documents into transient text plus
// quality metadata. Extraction is a pure function of the file bytes: no
// writes, no caching, so redelivered tasks can safely re-extract.
package extractor

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/domain"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/ports"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeText = "text/plain"
)

type Service struct {
	storage ports.ObjectStorage
}

func NewService(storage ports.ObjectStorage) *Service {
	return &Service{storage: storage}
}

func (s *Service) Extract(ctx context.Context, doc *domain.Document) (domain.ExtractedDocument, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExtractedDocument{}, &domain.ExtractionError{Reason: domain.ExtractionUnreadableFile, Err: err}
	}

	reader, err := s.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return domain.ExtractedDocument{}, &domain.ExtractionError{Reason: domain.ExtractionUnreadableFile, Err: err}
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return domain.ExtractedDocument{}, &domain.ExtractionError{Reason: domain.ExtractionUnreadableFile, Err: err}
	}
	if len(raw) == 0 {
		return domain.ExtractedDocument{}, &domain.ExtractionError{Reason: domain.ExtractionEmptyDocument}
	}

	return ExtractBytes(raw, doc.MimeType, doc.Filename)
}

// ExtractBytes runs the engine for the detected format over an in-memory
// payload. Deterministic for identical bytes.
func ExtractBytes(raw []byte, mimeType, filename string) (domain.ExtractedDocument, error) {
	var (
		text  string
		pages int
		err   error
	)

	switch normalizeMime(mimeType, filename, raw) {
	case mimePDF:
		text, pages, err = extractPDF(raw)
	case mimeDOCX:
		text, pages, err = extractDOCX(raw)
	case mimeXLSX:
		text, pages, err = extractXLSX(raw)
	case mimeText:
		text, pages, err = extractPlaintext(raw)
	default:
		return domain.ExtractedDocument{}, &domain.ExtractionError{Reason: domain.ExtractionUnsupportedFormat}
	}
	if err != nil {
		if extErr, ok := err.(*domain.ExtractionError); ok {
			return domain.ExtractedDocument{}, extErr
		}
		return domain.ExtractedDocument{}, &domain.ExtractionError{Reason: domain.ExtractionEngineFailure, Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ExtractedDocument{}, &domain.ExtractionError{Reason: domain.ExtractionEmptyDocument}
	}
	if pages < 1 {
		pages = 1
	}

	return domain.ExtractedDocument{
		Text:       text,
		Confidence: confidence(text),
		PageCount:  pages,
	}, nil
}

// confidence is the ratio of printable runes in the extracted text. Garbled
// engine output (control bytes, replacement runes) drags it toward zero.
func confidence(text string) float64 {
	total, printable := 0, 0
	for _, r := range text {
		total++
		if r == '�' {
			continue
		}
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(printable) / float64(total)
}

func normalizeMime(mimeType, filename string, raw []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))

	if strings.HasPrefix(clean, "text/") || clean == "application/json" {
		return mimeText
	}
	if clean == "application/zip" {
		if mapped := mapOOXMLFromZip(raw); mapped != "" {
			return mapped
		}
	}
	if clean != "" && clean != "application/zip" && clean != "application/octet-stream" {
		return clean
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return mimePDF
	case ".docx":
		return mimeDOCX
	case ".xlsx":
		return mimeXLSX
	case ".txt", ".md", ".csv", ".json":
		return mimeText
	default:
		return clean
	}
}

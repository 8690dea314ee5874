package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/domain"
)

type storageFake struct {
	objects map[string][]byte
	openErr error
}

func (f *storageFake) Save(context.Context, string, io.Reader) error { return nil }

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	raw, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object missing")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	entry, err := w.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := entry.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

const docxBody = `<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>Rating decision for tinnitus.</w:t></w:r></w:p><w:p><w:r><w:lastRenderedPageBreak/><w:t>Second page.</w:t></w:r></w:p><w:p><w:r><w:lastRenderedPageBreak/><w:t>Third page.</w:t></w:r></w:p></w:body></w:document>`

func TestExtractPlaintext(t *testing.T) {
	store := &storageFake{objects: map[string][]byte{"docs/a.txt": []byte("  VA claim notes\n")}}
	svc := NewService(store)

	doc := &domain.Document{StoragePath: "docs/a.txt", MimeType: "text/plain", Filename: "a.txt"}
	out, err := svc.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if out.Text != "VA claim notes" {
		t.Fatalf("unexpected text: %q", out.Text)
	}
	if out.PageCount != 1 {
		t.Fatalf("expected 1 page, got %d", out.PageCount)
	}
	if out.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0 for clean text, got %v", out.Confidence)
	}
}

func TestExtractDOCXCountsPageBreaks(t *testing.T) {
	raw := buildDOCX(t, docxBody)
	out, err := ExtractBytes(raw, mimeDOCX, "decision.docx")
	if err != nil {
		t.Fatalf("ExtractBytes() error = %v", err)
	}
	if out.PageCount != 3 {
		t.Fatalf("expected 3 pages, got %d", out.PageCount)
	}
	if !bytes.Contains([]byte(out.Text), []byte("Rating decision for tinnitus.")) {
		t.Fatalf("text missing paragraph content: %q", out.Text)
	}
}

func TestExtractDeterministic(t *testing.T) {
	raw := buildDOCX(t, docxBody)
	first, err := ExtractBytes(raw, mimeDOCX, "decision.docx")
	if err != nil {
		t.Fatalf("first ExtractBytes() error = %v", err)
	}
	second, err := ExtractBytes(raw, mimeDOCX, "decision.docx")
	if err != nil {
		t.Fatalf("second ExtractBytes() error = %v", err)
	}
	if first.Text != second.Text || first.Confidence != second.Confidence || first.PageCount != second.PageCount {
		t.Fatalf("extraction not deterministic: %+v vs %+v", first, second)
	}
}

func TestExtractXLSX(t *testing.T) {
	book := excelize.NewFile()
	if err := book.SetCellValue("Sheet1", "A1", "condition"); err != nil {
		t.Fatalf("SetCellValue: %v", err)
	}
	if err := book.SetCellValue("Sheet1", "B1", "rating"); err != nil {
		t.Fatalf("SetCellValue: %v", err)
	}
	buf, err := book.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	out, err := ExtractBytes(buf.Bytes(), "application/zip", "ratings.xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes() error = %v", err)
	}
	if out.PageCount != 1 {
		t.Fatalf("expected sheet count 1, got %d", out.PageCount)
	}
	if !bytes.Contains([]byte(out.Text), []byte("condition\trating")) {
		t.Fatalf("unexpected sheet text: %q", out.Text)
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	_, err := ExtractBytes([]byte{0x89, 0x50, 0x4e, 0x47}, "image/png", "scan.png")
	if err == nil {
		t.Fatalf("expected error for unsupported format")
	}
	var extErr *domain.ExtractionError
	if !errors.As(err, &extErr) || extErr.Reason != domain.ExtractionUnsupportedFormat {
		t.Fatalf("expected unsupported_format, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrExtraction) {
		t.Fatalf("expected permanent extraction failure, got %v", err)
	}
}

func TestExtractInvalidEncoding(t *testing.T) {
	_, err := ExtractBytes([]byte{0xff, 0xfe, 0x00, 0x41}, "text/plain", "notes.txt")
	var extErr *domain.ExtractionError
	if !errors.As(err, &extErr) || extErr.Reason != domain.ExtractionInvalidEncoding {
		t.Fatalf("expected invalid_encoding, got %v", err)
	}
}

func TestExtractEmptyDocument(t *testing.T) {
	_, err := ExtractBytes([]byte("   \n\t  "), "text/plain", "blank.txt")
	var extErr *domain.ExtractionError
	if !errors.As(err, &extErr) || extErr.Reason != domain.ExtractionEmptyDocument {
		t.Fatalf("expected empty_document, got %v", err)
	}
}

func TestExtractCorruptPDF(t *testing.T) {
	_, err := ExtractBytes([]byte("definitely not a pdf"), "application/pdf", "x.pdf")
	var extErr *domain.ExtractionError
	if !errors.As(err, &extErr) || extErr.Reason != domain.ExtractionEngineFailure {
		t.Fatalf("expected engine_failure, got %v", err)
	}
}

func TestExtractStorageFailureIsTemporary(t *testing.T) {
	store := &storageFake{openErr: errors.New("disk detached")}
	svc := NewService(store)

	doc := &domain.Document{StoragePath: "docs/a.txt", MimeType: "text/plain", Filename: "a.txt"}
	_, err := svc.Extract(context.Background(), doc)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("storage failure should be temporary, got %v", err)
	}
	var extErr *domain.ExtractionError
	if !errors.As(err, &extErr) || extErr.Reason != domain.ExtractionUnreadableFile {
		t.Fatalf("expected unreadable_file reason, got %v", err)
	}
}

func TestConfidenceDropsForGarbledText(t *testing.T) {
	clean := confidence("Readable decision letter text.")
	garbled := confidence("Read\x01\x02\x03able��")
	if clean != 1.0 {
		t.Fatalf("clean text confidence = %v, want 1.0", clean)
	}
	if garbled >= clean {
		t.Fatalf("garbled confidence %v should be below clean %v", garbled, clean)
	}
}

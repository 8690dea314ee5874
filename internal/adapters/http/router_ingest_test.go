package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/config"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/domain"
)

type ingestSuccessFake struct{}

func (f ingestSuccessFake) Upload(_ context.Context, filename, mimeType string, kind domain.AnalysisKind, body io.Reader) (*domain.Document, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", io.EOF)
	}

	now := time.Now().UTC()
	return &domain.Document{
		ID:               "doc-1",
		Filename:         filename,
		MimeType:         mimeType,
		StoragePath:      "doc-1_file.txt",
		AnalysisKind:     kind,
		Status:           domain.StatusUploading,
		ExtractionStatus: domain.ExtractionPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func newRouterForIngestTests() http.Handler {
	return NewRouter(config.Config{}, ingestSuccessFake{}, docsErrFake{}, nil).Handler()
}

func uploadRequest(t *testing.T, kind string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "file.txt")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if kind != "" {
		if err := writer.WriteField("kind", kind); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newRouterForIngestTests()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestUploadDocumentSuccess(t *testing.T) {
	handler := newRouterForIngestTests()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, uploadRequest(t, "decision_letter"))

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}

	var docResp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&docResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if docResp["id"] != "doc-1" {
		t.Fatalf("unexpected response: %+v", docResp)
	}
	if docResp["analysis_kind"] != "decision_letter" {
		t.Fatalf("expected analysis_kind echoed, got %+v", docResp)
	}
	if docResp["status"] != "uploading" {
		t.Fatalf("expected status uploading, got %+v", docResp)
	}
}

func TestUploadDocumentRejectsUnknownKind(t *testing.T) {
	handler := newRouterForIngestTests()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, uploadRequest(t, "tax_return"))

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", res.Code)
	}
}

func TestUploadDocumentMissingMultipartField(t *testing.T) {
	handler := newRouterForIngestTests()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewBufferString("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestServeContractDocument(t *testing.T) {
	handler := newRouterForIngestTests()

	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !bytes.Contains(res.Body.Bytes(), []byte("/v1/documents")) {
		t.Fatalf("expected contract to describe /v1/documents")
	}
}

// Package httpadapter exposes the document API. Handlers stay thin: parse,
// call a use case, map the error, encode. Responses carry lifecycle state and
// the validated analysis payload; extracted text is never part of any
// response body.
package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/config"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/domain"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/ports"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/observability/metrics"
)

// overloadWait bounds how long a request may queue for an in-flight slot
// before the backpressure gate sheds it.
const overloadWait = 100 * time.Millisecond

type Router struct {
	cfg     config.Config
	ingest  ports.DocumentIngestor
	docs    ports.DocumentReader
	metrics *metrics.HTTPServerMetrics
}

// NewRouter accepts a nil metrics registry; the handler then runs without
// the /metrics endpoint or request instrumentation.
func NewRouter(cfg config.Config, ingest ports.DocumentIngestor, docs ports.DocumentReader, httpMetrics *metrics.HTTPServerMetrics) *Router {
	return &Router{
		cfg:     cfg,
		ingest:  ingest,
		docs:    docs,
		metrics: httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/openapi.yaml", serveContract)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)

	handler := loadContract().middleware(mux)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, overloadWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	kind, err := domain.ParseAnalysisKind(r.FormValue("kind"))
	if err != nil {
		writeError(w, err)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		kind,
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

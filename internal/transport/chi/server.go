// Package chi is the HTTP transport: request decoding, error mapping, and
// response shaping around the investigation pipeline.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/intelforge/deepsearch/internal/domain"
)

// errorCode is the machine-readable error discriminator in responses.
type errorCode string

const (
	codeBadRequest       errorCode = "bad_request"
	codeValidationFailed errorCode = "validation_failed"
	codeDocumentNotFound errorCode = "document_not_found"
	codeSearchFailed     errorCode = "search_failed"
	codeTaskTimeout      errorCode = "task_timeout"
	codeInternalError    errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Investigator runs one investigation end to end.
type Investigator interface {
	Run(ctx context.Context, profile domain.TargetProfile, turns []domain.Turn) (domain.Report, error)
}

// DocumentReader reads persisted documents and their evaluation history.
type DocumentReader interface {
	Get(ctx context.Context, docID string) (domain.Document, error)
	ListEvaluationsByDoc(ctx context.Context, docID string) ([]domain.Evaluation, error)
	CountDocuments(ctx context.Context) (int, error)
}

// Pinger checks a dependency for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP API server.
type Server struct {
	investigator  Investigator
	documents     DocumentReader
	pingers       map[string]Pinger
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. pingers maps dependency names to
// their health checks; nil entries are skipped.
func NewServer(
	investigator Investigator,
	documents DocumentReader,
	pingers map[string]Pinger,
	logger *zap.Logger,
) *Server {
	s := &Server{
		investigator: investigator,
		documents:    documents,
		pingers:      pingers,
		logger:       logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrSearchFailed, http.StatusBadGateway, codeSearchFailed),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, codeTaskTimeout),
	}
	return s
}

// Register mounts the API routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/investigations", s.CreateInvestigation)
		r.Get("/documents/{docID}", s.GetDocument)
		r.Get("/documents/{docID}/evaluations", s.ListDocumentEvaluations)
	})
}

type turnPayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type investigationRequest struct {
	Description  string            `json:"description,omitempty"`
	Query        string            `json:"query"`
	Size         int               `json:"size,omitempty"`
	Include      map[string]string `json:"include,omitempty"`
	ContextLines int               `json:"context_lines,omitempty"`
	Turns        []turnPayload     `json:"turns,omitempty"`
}

type citationPayload struct {
	Ref   int    `json:"ref"`
	DocID string `json:"doc_id"`
	Title string `json:"title"`
}

type discardPayload struct {
	DocID  string `json:"doc_id"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

type investigationResponse struct {
	Escalated bool              `json:"escalated"`
	Outcome   string            `json:"outcome,omitempty"`
	Report    string            `json:"report,omitempty"`
	Citations []citationPayload `json:"citations,omitempty"`
	Discarded []discardPayload  `json:"discarded,omitempty"`
}

// CreateInvestigation handles POST /v1/investigations.
func (s *Server) CreateInvestigation(w http.ResponseWriter, r *http.Request) {
	var req investigationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Query is required")
		return
	}

	profile := domain.TargetProfile{
		Description:  req.Description,
		Query:        req.Query,
		Size:         req.Size,
		Include:      req.Include,
		ContextLines: req.ContextLines,
	}
	turns := make([]domain.Turn, len(req.Turns))
	for i, t := range req.Turns {
		turns[i] = domain.Turn{Role: t.Role, Content: t.Content}
	}

	report, err := s.investigator.Run(r.Context(), profile, turns)
	if err != nil {
		// A declined escalation is a valid outcome, not an error.
		if errors.Is(err, domain.ErrEscalationDeclined) {
			writeJSON(w, http.StatusOK, investigationResponse{Escalated: false})
			return
		}
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, investigationToPayload(report))
}

func investigationToPayload(report domain.Report) investigationResponse {
	resp := investigationResponse{
		Escalated: true,
		Outcome:   string(report.Outcome),
		Report:    report.Body,
	}
	for _, c := range report.Citations {
		resp.Citations = append(resp.Citations, citationPayload{Ref: c.Ref, DocID: c.DocID, Title: c.Title})
	}
	for _, d := range report.Discarded {
		resp.Discarded = append(resp.Discarded, discardPayload{DocID: d.DocID, Title: d.Title, Reason: d.Reason})
	}
	return resp
}

type documentPayload struct {
	DocID     string            `json:"doc_id"`
	Query     string            `json:"query"`
	Title     string            `json:"title"`
	Kind      string            `json:"kind"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// GetDocument handles GET /v1/documents/{docID}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")

	doc, err := s.documents.Get(r.Context(), docID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, documentPayload{
		DocID:     doc.DocID,
		Query:     doc.Query,
		Title:     doc.Title,
		Kind:      string(doc.Content.Kind),
		Content:   doc.Content.Raw,
		Metadata:  doc.Metadata,
		CreatedAt: doc.CreatedAt,
	})
}

type evaluationPayload struct {
	EvaluationID   string    `json:"evaluation_id"`
	DocID          string    `json:"doc_id"`
	Query          string    `json:"query"`
	RelevanceScore int       `json:"relevance_score"`
	InsightScore   int       `json:"insight_score"`
	EvaluationText string    `json:"evaluation_text"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListDocumentEvaluations handles GET /v1/documents/{docID}/evaluations.
func (s *Server) ListDocumentEvaluations(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")

	if _, err := s.documents.Get(r.Context(), docID); err != nil {
		s.handleDomainError(w, err)
		return
	}
	evals, err := s.documents.ListEvaluationsByDoc(r.Context(), docID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]evaluationPayload, len(evals))
	for i, ev := range evals {
		items[i] = evaluationPayload{
			EvaluationID:   ev.EvaluationID,
			DocID:          ev.DocID,
			Query:          ev.Query,
			RelevanceScore: ev.RelevanceScore,
			InsightScore:   ev.InsightScore,
			EvaluationText: ev.EvaluationText,
			CreatedAt:      ev.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Checks: make(map[string]string)}
	httpStatus := http.StatusOK

	for name, p := range s.pingers {
		if p == nil {
			continue
		}
		if err := p.Ping(r.Context()); err != nil {
			s.logger.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			resp.Checks[name] = "unhealthy"
			resp.Status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "healthy"
	}

	writeJSON(w, httpStatus, resp)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrDocumentNotFound,
		domain.ErrSearchFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "task timed out"
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

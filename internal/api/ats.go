package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/etk18/portfolio/internal/ats"
	"github.com/etk18/portfolio/internal/gate"
	"github.com/etk18/portfolio/internal/identity"
	"github.com/etk18/portfolio/internal/llm"
	"github.com/go-chi/chi/v5"
)

// User-facing resume checker messages.
const (
	msgNoResume       = "Please upload a resume file."
	msgFileTooLarge   = "File is too large. Please upload a smaller file."
	msgUnsupported    = "Unsupported file format. Please upload PDF or DOCX."
	msgUnreadable     = "Could not read the file. Please ensure it is a valid PDF or DOCX."
	msgNotEnoughText  = "Could not extract enough text from the file. Please ensure the resume has readable content."
	msgLimitReached   = "You've used all free checks. Enter a passkey for unlimited access."
	msgParseFailed    = "Failed to parse analysis results"
	msgAnalysisFailed = "Failed to analyze resume"
	msgAIUnavailable  = "AI analysis is not configured."
	msgAIRateLimited  = "AI analysis is busy right now. Please try again shortly."
	msgInvalidPasskey = "Invalid passkey"
)

// multipartOverhead is slack for multipart framing on top of the file limit.
const multipartOverhead = 1 << 20

// ResumeChecker runs gated resume checks.
type ResumeChecker interface {
	Check(ctx context.Context, visitorID, filename string, data []byte) (*ats.Result, error)
	Usage(ctx context.Context, visitorID string) (ats.Usage, error)
	Unlock(ctx context.Context, visitorID, passkey string) (ats.Usage, error)
}

// ATSHandler serves the resume checker.
type ATSHandler struct {
	checker  ResumeChecker
	maxBytes int64
	limit    func(http.Handler) http.Handler
}

// NewATSHandler creates a resume checker handler.
func NewATSHandler(checker ResumeChecker, maxBytes int64, limit func(http.Handler) http.Handler) *ATSHandler {
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &ATSHandler{checker: checker, maxBytes: maxBytes, limit: limit}
}

// RegisterRoutes registers resume checker routes.
func (h *ATSHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/ats", func(r chi.Router) {
		r.Get("/usage", h.Usage)
		r.Post("/unlock", h.Unlock)
		if h.limit != nil {
			r.With(h.limit).Post("/analyze", h.Analyze)
		} else {
			r.Post("/analyze", h.Analyze)
		}
	})
}

// Analyze checks an uploaded resume from the multipart field "resume".
func (h *ATSHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	visitorID := identity.VisitorIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, msgFileTooLarge)
			return
		}
		Error(w, http.StatusBadRequest, msgNoResume)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("resume")
	if err != nil {
		Error(w, http.StatusBadRequest, msgNoResume)
		return
	}
	defer file.Close()
	if header.Size > h.maxBytes {
		Error(w, http.StatusRequestEntityTooLarge, msgFileTooLarge)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		Error(w, http.StatusBadRequest, msgNoResume)
		return
	}

	res, err := h.checker.Check(r.Context(), visitorID, header.Filename, data)
	if err != nil {
		h.writeCheckError(w, r, visitorID, err)
		return
	}
	slog.Info("Resume analyzed", "visitor_id", visitorID, "score", res.Report.ATSScore)
	JSON(w, http.StatusOK, res)
}

func (h *ATSHandler) writeCheckError(w http.ResponseWriter, r *http.Request, visitorID string, err error) {
	switch {
	case errors.Is(err, ats.ErrLimitReached):
		usage, _ := h.checker.Usage(r.Context(), visitorID)
		JSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"error": msgLimitReached,
			"usage": usage,
		})
	case errors.Is(err, ats.ErrUnsupportedFormat):
		Error(w, http.StatusUnsupportedMediaType, msgUnsupported)
	case errors.Is(err, ats.ErrUnreadableDocument):
		Error(w, http.StatusUnprocessableEntity, msgUnreadable)
	case errors.Is(err, ats.ErrInsufficientText):
		Error(w, http.StatusUnprocessableEntity, msgNotEnoughText)
	case errors.Is(err, ats.ErrParseReport):
		slog.Warn("Resume analysis unparseable", "visitor_id", visitorID, "error", err)
		Error(w, http.StatusBadGateway, msgParseFailed)
	case errors.Is(err, llm.ErrNotConfigured):
		Error(w, http.StatusServiceUnavailable, msgAIUnavailable)
	case errors.Is(err, llm.ErrRateLimited):
		Error(w, http.StatusServiceUnavailable, msgAIRateLimited)
	default:
		slog.Error("Resume analysis failed", "visitor_id", visitorID, "error", err)
		Error(w, http.StatusBadGateway, msgAnalysisFailed)
	}
}

// Usage returns the visitor's check quota.
func (h *ATSHandler) Usage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.checker.Usage(r.Context(), identity.VisitorIDFromContext(r.Context()))
	if err != nil {
		slog.Error("Failed to load ATS usage", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load usage")
		return
	}
	JSON(w, http.StatusOK, usage)
}

// Unlock grants unlimited checks for a valid passkey.
func (h *ATSHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req passkeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	usage, err := h.checker.Unlock(r.Context(), identity.VisitorIDFromContext(r.Context()), req.Passkey)
	if errors.Is(err, gate.ErrInvalidPasskey) {
		Error(w, http.StatusForbidden, msgInvalidPasskey)
		return
	}
	if err != nil {
		slog.Error("ATS unlock failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to unlock")
		return
	}
	JSON(w, http.StatusOK, usage)
}

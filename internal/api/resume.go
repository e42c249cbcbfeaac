package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/innofolio/innofolio/internal/auth"
	"github.com/innofolio/innofolio/internal/log"
	"github.com/innofolio/innofolio/internal/resume"
)

// ResumeAnalyzer produces structured feedback for resume text.
type ResumeAnalyzer interface {
	Analyze(ctx context.Context, resumeText, careerStage, targetRole string) (resume.Analysis, error)
}

// ResumeStore persists analysis results.
type ResumeStore interface {
	Save(ctx context.Context, ownerID, filename string, analysis resume.Analysis) (*resume.Record, error)
	List(ctx context.Context, ownerID string) ([]resume.Record, error)
	Get(ctx context.Context, ownerID string, id uuid.UUID) (*resume.Record, error)
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
}

// ResumeHandler serves resume upload, analysis, and history endpoints.
type ResumeHandler struct {
	extractor resume.Extractor
	analyzer  ResumeAnalyzer
	store     ResumeStore
	logger    log.Logger
}

func NewResumeHandler(extractor resume.Extractor, analyzer ResumeAnalyzer, store ResumeStore, logger log.Logger) *ResumeHandler {
	return &ResumeHandler{
		extractor: extractor,
		analyzer:  analyzer,
		store:     store,
		logger:    logger,
	}
}

// RegisterRoutes registers resume routes on the given mux.
func (h *ResumeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/resume/analyze", h.analyze)
	mux.HandleFunc("GET /api/resumes", h.list)
	mux.HandleFunc("GET /api/resume/{id}", h.get)
	mux.HandleFunc("DELETE /api/resume/{id}", h.delete)
}

type resumeRecordJSON struct {
	ID        string          `json:"id"`
	Filename  string          `json:"filename"`
	Score     int             `json:"score"`
	Analysis  resume.Analysis `json:"analysis"`
	CreatedAt time.Time       `json:"created_at"`
}

func toResumeJSON(r *resume.Record) resumeRecordJSON {
	return resumeRecordJSON{
		ID:        r.ID.String(),
		Filename:  r.Filename,
		Score:     r.Score,
		Analysis:  r.Analysis,
		CreatedAt: r.CreatedAt,
	}
}

// analyze accepts a multipart upload under the "file" field, extracts
// text, runs the analysis, and persists the result for authenticated
// callers. A persistence failure does not fail the request; the caller
// still gets the analysis.
func (h *ResumeHandler) analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, resume.MaxFileSize+64*1024)
	if err := r.ParseMultipartForm(resume.MaxFileSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, resume.MaxFileSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "failed to read file")
		return
	}

	mime := header.Header.Get("Content-Type")
	text, err := h.extractor.Extract(data, mime)
	if err != nil {
		writeExtractionError(w, err)
		return
	}
	if err := resume.ValidateUpload(data, text); err != nil {
		writeExtractionError(w, err)
		return
	}

	var careerStage, targetRole string
	identity, authenticated := auth.IdentityFrom(r.Context())
	if authenticated {
		careerStage = identity.CareerStage
		targetRole = identity.TargetRole
	}

	analysis, err := h.analyzer.Analyze(r.Context(), text, careerStage, targetRole)
	if err != nil {
		h.logger.Error("resume analysis failed", "error", err)
		writeError(w, http.StatusInternalServerError, "analysis_failed", "failed to analyze resume")
		return
	}

	response := struct {
		ID       string          `json:"id,omitempty"`
		Filename string          `json:"filename"`
		Analysis resume.Analysis `json:"analysis"`
	}{Filename: header.Filename, Analysis: analysis}

	if authenticated && h.store != nil {
		record, err := h.store.Save(r.Context(), identity.ID, header.Filename, analysis)
		if err != nil {
			h.logger.Warn("failed to save resume analysis", "error", err)
		} else {
			response.ID = record.ID.String()
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *ResumeHandler) list(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	records, err := h.store.List(r.Context(), identity.ID)
	if err != nil {
		h.logger.Error("failed to list resumes", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list resumes")
		return
	}
	out := make([]resumeRecordJSON, 0, len(records))
	for i := range records {
		out = append(out, toResumeJSON(&records[i]))
	}
	writeJSON(w, http.StatusOK, map[string][]resumeRecordJSON{"resumes": out})
}

func (h *ResumeHandler) get(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid resume id")
		return
	}
	record, err := h.store.Get(r.Context(), identity.ID, id)
	if err != nil {
		if errors.Is(err, resume.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "resume not found")
			return
		}
		h.logger.Error("failed to get resume", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get resume")
		return
	}
	writeJSON(w, http.StatusOK, toResumeJSON(record))
}

func (h *ResumeHandler) delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid resume id")
		return
	}
	if err := h.store.Delete(r.Context(), identity.ID, id); err != nil {
		if errors.Is(err, resume.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "resume not found")
			return
		}
		h.logger.Error("failed to delete resume", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete resume")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeExtractionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, resume.ErrUnsupportedType):
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_type", "only PDF, DOCX, and plain text files are supported")
	case errors.Is(err, resume.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds the 5MB limit")
	case errors.Is(err, resume.ErrInsufficientText):
		writeError(w, http.StatusBadRequest, "insufficient_text", "could not extract enough text from the file")
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "failed to process file")
	}
}

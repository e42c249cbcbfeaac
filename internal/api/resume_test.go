package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/innofolio/innofolio/internal/auth"
	"github.com/innofolio/innofolio/internal/log"
	"github.com/innofolio/innofolio/internal/resume"
)

type stubAnalyzer struct {
	analysis        resume.Analysis
	err             error
	lastText        string
	lastCareerStage string
	lastTargetRole  string
}

func (s *stubAnalyzer) Analyze(_ context.Context, resumeText, careerStage, targetRole string) (resume.Analysis, error) {
	s.lastText = resumeText
	s.lastCareerStage = careerStage
	s.lastTargetRole = targetRole
	if s.err != nil {
		return resume.Analysis{}, s.err
	}
	return s.analysis, nil
}

type stubResumeStore struct {
	records  []resume.Record
	err      error
	saveErr  error
	saved    *resume.Record
	deleting int
}

func (s *stubResumeStore) Save(_ context.Context, ownerID, filename string, analysis resume.Analysis) (*resume.Record, error) {
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	record := &resume.Record{ID: uuid.New(), OwnerID: ownerID, Filename: filename, Score: analysis.Score, Analysis: analysis}
	s.saved = record
	return record, nil
}

func (s *stubResumeStore) List(_ context.Context, _ string) ([]resume.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func (s *stubResumeStore) Get(_ context.Context, _ string, id uuid.UUID) (*resume.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &resume.Record{ID: id, Filename: "resume.txt"}, nil
}

func (s *stubResumeStore) Delete(_ context.Context, _ string, _ uuid.UUID) error {
	s.deleting++
	return s.err
}

const sampleResume = `Jane Doe
Software Engineer with 3 years of experience building web services.
Led a migration that reduced deployment time by 40 percent.
Skills: Go, PostgreSQL, Docker.`

func multipartUpload(t *testing.T, filename, mime, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", mime)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func resumeMux(analyzer ResumeAnalyzer, store ResumeStore) *http.ServeMux {
	mux := http.NewServeMux()
	NewResumeHandler(resume.PlainTextExtractor{}, analyzer, store, log.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestResumeHandler_Analyze(t *testing.T) {
	t.Parallel()

	analyzer := &stubAnalyzer{analysis: resume.Analysis{Score: 82, Summary: "Solid resume."}}
	store := &stubResumeStore{}
	mux := resumeMux(analyzer, store)

	body, contentType := multipartUpload(t, "resume.txt", resume.MimeText, sampleResume)
	req := httptest.NewRequest(http.MethodPost, "/api/resume/analyze", body)
	req.Header.Set("Content-Type", contentType)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{
		ID:          "user-1",
		CareerStage: "early-career",
		TargetRole:  "backend engineer",
	}))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID       string          `json:"id"`
		Filename string          `json:"filename"`
		Analysis resume.Analysis `json:"analysis"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Analysis.Score != 82 {
		t.Errorf("score = %d, want 82", resp.Analysis.Score)
	}
	if resp.Filename != "resume.txt" {
		t.Errorf("filename = %q", resp.Filename)
	}
	if resp.ID == "" {
		t.Error("saved record id missing from response")
	}
	if !strings.Contains(analyzer.lastText, "Jane Doe") {
		t.Errorf("extracted text = %q", analyzer.lastText)
	}
	if analyzer.lastCareerStage != "early-career" || analyzer.lastTargetRole != "backend engineer" {
		t.Errorf("profile = %q / %q", analyzer.lastCareerStage, analyzer.lastTargetRole)
	}
	if store.saved == nil || store.saved.Filename != "resume.txt" {
		t.Errorf("saved record = %+v", store.saved)
	}
}

func TestResumeHandler_Analyze_AnonymousSkipsPersistence(t *testing.T) {
	t.Parallel()

	analyzer := &stubAnalyzer{analysis: resume.Analysis{Score: 60}}
	store := &stubResumeStore{}
	mux := resumeMux(analyzer, store)

	body, contentType := multipartUpload(t, "resume.txt", resume.MimeText, sampleResume)
	req := httptest.NewRequest(http.MethodPost, "/api/resume/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.saved != nil {
		t.Error("anonymous analysis should not be persisted")
	}
	if analyzer.lastCareerStage != "" {
		t.Errorf("career stage = %q, want empty", analyzer.lastCareerStage)
	}
}

func TestResumeHandler_Analyze_SaveFailureStillReturnsAnalysis(t *testing.T) {
	t.Parallel()

	analyzer := &stubAnalyzer{analysis: resume.Analysis{Score: 70}}
	store := &stubResumeStore{saveErr: errors.New("db down")}
	mux := resumeMux(analyzer, store)

	body, contentType := multipartUpload(t, "resume.txt", resume.MimeText, sampleResume)
	req := httptest.NewRequest(http.MethodPost, "/api/resume/analyze", body)
	req.Header.Set("Content-Type", contentType)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{ID: "user-1"}))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ID != "" {
		t.Errorf("id = %q, want empty when save fails", resp.ID)
	}
}

func TestResumeHandler_Analyze_UnsupportedType(t *testing.T) {
	t.Parallel()

	mux := resumeMux(&stubAnalyzer{}, &stubResumeStore{})

	body, contentType := multipartUpload(t, "photo.png", "image/png", sampleResume)
	req := httptest.NewRequest(http.MethodPost, "/api/resume/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnsupportedMediaType)
	}
}

func TestResumeHandler_Analyze_InsufficientText(t *testing.T) {
	t.Parallel()

	mux := resumeMux(&stubAnalyzer{}, &stubResumeStore{})

	body, contentType := multipartUpload(t, "resume.txt", resume.MimeText, "too short")
	req := httptest.NewRequest(http.MethodPost, "/api/resume/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rec.Body.String(), "insufficient_text") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestResumeHandler_Analyze_MissingFileField(t *testing.T) {
	t.Parallel()

	mux := resumeMux(&stubAnalyzer{}, &stubResumeStore{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("other", "value")
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/resume/analyze", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestResumeHandler_Analyze_AnalyzerError(t *testing.T) {
	t.Parallel()

	mux := resumeMux(&stubAnalyzer{err: errors.New("model down")}, &stubResumeStore{})

	body, contentType := multipartUpload(t, "resume.txt", resume.MimeText, sampleResume)
	req := httptest.NewRequest(http.MethodPost, "/api/resume/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if strings.Contains(rec.Body.String(), "model down") {
		t.Error("internal error details leaked to the client")
	}
}

func TestResumeHandler_List(t *testing.T) {
	t.Parallel()

	store := &stubResumeStore{records: []resume.Record{
		{ID: uuid.New(), Filename: "v2.txt", Score: 82},
		{ID: uuid.New(), Filename: "v1.txt", Score: 61},
	}}
	mux := resumeMux(&stubAnalyzer{}, store)

	req := authed(httptest.NewRequest(http.MethodGet, "/api/resumes", nil))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Resumes []resumeRecordJSON `json:"resumes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Resumes) != 2 || resp.Resumes[0].Score != 82 {
		t.Errorf("resumes = %+v", resp.Resumes)
	}
}

func TestResumeHandler_RequiresAuth(t *testing.T) {
	t.Parallel()

	mux := resumeMux(&stubAnalyzer{}, &stubResumeStore{})
	routes := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/resumes"},
		{http.MethodGet, "/api/resume/" + uuid.NewString()},
		{http.MethodDelete, "/api/resume/" + uuid.NewString()},
	}
	for _, route := range routes {
		req := httptest.NewRequest(route.method, route.path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want %d", route.method, route.path, rec.Code, http.StatusUnauthorized)
		}
	}
}

func TestResumeHandler_GetAndDelete(t *testing.T) {
	t.Parallel()

	t.Run("get", func(t *testing.T) {
		mux := resumeMux(&stubAnalyzer{}, &stubResumeStore{})
		req := authed(httptest.NewRequest(http.MethodGet, "/api/resume/"+uuid.NewString(), nil))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("get not found", func(t *testing.T) {
		mux := resumeMux(&stubAnalyzer{}, &stubResumeStore{err: resume.ErrNotFound})
		req := authed(httptest.NewRequest(http.MethodGet, "/api/resume/"+uuid.NewString(), nil))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("delete", func(t *testing.T) {
		store := &stubResumeStore{}
		mux := resumeMux(&stubAnalyzer{}, store)
		req := authed(httptest.NewRequest(http.MethodDelete, "/api/resume/"+uuid.NewString(), nil))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
		}
		if store.deleting != 1 {
			t.Errorf("delete calls = %d", store.deleting)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		mux := resumeMux(&stubAnalyzer{}, &stubResumeStore{})
		req := authed(httptest.NewRequest(http.MethodDelete, "/api/resume/nope", nil))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

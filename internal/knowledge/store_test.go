package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"google.golang.org/genai"

	"github.com/innofolio/innofolio/internal/log"
)

// mockEmbedder implements ai.Embedder for testing.
type mockEmbedder struct {
	embedErr      error
	returnEmpty   bool
	dimension     int // 0 = VectorDimension
	callCount     int
	lastInputText string
	lastOptions   any
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(r api.Registry) {}

func (m *mockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++

	if len(req.Input) > 0 && len(req.Input[0].Content) > 0 {
		m.lastInputText = req.Input[0].Content[0].Text
	}
	m.lastOptions = req.Options

	if m.embedErr != nil {
		return nil, m.embedErr
	}

	if m.returnEmpty {
		return &ai.EmbedResponse{
			Embeddings: []*ai.Embedding{{Embedding: []float32{}}},
		}, nil
	}

	dim := m.dimension
	if dim == 0 {
		dim = VectorDimension
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = 0.5
	}

	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: vec}},
	}, nil
}

// mockQuerier implements Querier for testing.
type mockQuerier struct {
	upsertErr   error
	queryErr    error
	queryAllErr error
	countErr    error
	countAllErr error
	deleteErr   error

	queryResults    []QueryDocumentsRow
	queryAllResults []QueryDocumentsAllRow
	countResult     int64
	countAllResult  int64

	upsertCalls        int
	queryCalls         int
	queryAllCalls      int
	countCalls         int
	countAllCalls      int
	deleteCalls        int
	lastDeletedID      string
	lastUpsertParams   UpsertDocumentParams
	lastQueryParams    QueryDocumentsParams
	lastQueryAllParams QueryDocumentsAllParams
}

func (m *mockQuerier) UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error {
	m.upsertCalls++
	m.lastUpsertParams = arg
	return m.upsertErr
}

func (m *mockQuerier) QueryDocuments(ctx context.Context, arg QueryDocumentsParams) ([]QueryDocumentsRow, error) {
	m.queryCalls++
	m.lastQueryParams = arg
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.queryResults, nil
}

func (m *mockQuerier) QueryDocumentsAll(ctx context.Context, arg QueryDocumentsAllParams) ([]QueryDocumentsAllRow, error) {
	m.queryAllCalls++
	m.lastQueryAllParams = arg
	if m.queryAllErr != nil {
		return nil, m.queryAllErr
	}
	return m.queryAllResults, nil
}

func (m *mockQuerier) CountDocuments(ctx context.Context, filterMetadata []byte) (int64, error) {
	m.countCalls++
	return m.countResult, m.countErr
}

func (m *mockQuerier) CountDocumentsAll(ctx context.Context) (int64, error) {
	m.countAllCalls++
	return m.countAllResult, m.countAllErr
}

func (m *mockQuerier) DeleteDocument(ctx context.Context, id string) error {
	m.deleteCalls++
	m.lastDeletedID = id
	return m.deleteErr
}

func TestStore_Add(t *testing.T) {
	mq := &mockQuerier{}
	me := &mockEmbedder{}

	store := New(mq, me, log.NewNop())
	ctx := context.Background()

	doc := Document{
		ID:      "resume_formatting_0",
		Content: "Keep your resume to one page for entry-level roles.",
		Metadata: map[string]string{
			MetaCategory: "resume",
			MetaTitle:    "Resume Formatting Guide",
		},
		CreateAt: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	if err := store.Add(ctx, doc); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if me.callCount != 1 {
		t.Errorf("expected embedder to be called once, got %d", me.callCount)
	}
	if me.lastInputText != doc.Content {
		t.Errorf("embedder received wrong content: got %q, want %q", me.lastInputText, doc.Content)
	}
	if mq.upsertCalls != 1 {
		t.Errorf("expected upsert to be called once, got %d", mq.upsertCalls)
	}

	params := mq.lastUpsertParams
	if params.ID != doc.ID {
		t.Errorf("upsert ID mismatch: got %q, want %q", params.ID, doc.ID)
	}
	if params.Content != doc.Content {
		t.Error("upsert content mismatch")
	}
	if params.Embedding == nil {
		t.Fatal("embedding is nil")
	}
	if got := len(params.Embedding.Slice()); got != VectorDimension {
		t.Errorf("expected %d-dimension embedding, got %d", VectorDimension, got)
	}

	var metadata map[string]string
	if err := json.Unmarshal(params.Metadata, &metadata); err != nil {
		t.Fatalf("failed to unmarshal metadata: %v", err)
	}
	if metadata[MetaCategory] != "resume" {
		t.Errorf("metadata category mismatch: got %q", metadata[MetaCategory])
	}
	if !params.CreatedAt.Valid {
		t.Error("created_at should be valid for non-zero timestamp")
	}
}

func TestStore_EmbeddingTaskTypes(t *testing.T) {
	mq := &mockQuerier{}
	me := &mockEmbedder{}
	store := New(mq, me, log.NewNop())
	ctx := context.Background()

	doc := Document{ID: "doc-1", Content: "Negotiate after the offer, not before."}
	if err := store.Add(ctx, doc); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	cfg, ok := me.lastOptions.(*genai.EmbedContentConfig)
	if !ok {
		t.Fatalf("Add options = %T, want *genai.EmbedContentConfig", me.lastOptions)
	}
	if cfg.TaskType != "RETRIEVAL_DOCUMENT" {
		t.Errorf("Add task type = %q, want RETRIEVAL_DOCUMENT", cfg.TaskType)
	}

	if _, err := store.Query(ctx, "how do I negotiate salary"); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	cfg, ok = me.lastOptions.(*genai.EmbedContentConfig)
	if !ok {
		t.Fatalf("Query options = %T, want *genai.EmbedContentConfig", me.lastOptions)
	}
	if cfg.TaskType != "RETRIEVAL_QUERY" {
		t.Errorf("Query task type = %q, want RETRIEVAL_QUERY", cfg.TaskType)
	}
}

func TestStore_WithTaskOptionsDisabled(t *testing.T) {
	mq := &mockQuerier{}
	me := &mockEmbedder{}
	store := New(mq, me, log.NewNop(), WithTaskOptions(nil))

	if err := store.Add(context.Background(), Document{ID: "doc-1", Content: "plain"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if me.lastOptions != nil {
		t.Errorf("options = %v, want nil when task typing is disabled", me.lastOptions)
	}
}

func TestStore_Add_Errors(t *testing.T) {
	embedFailed := errors.New("embed backend down")
	upsertFailed := errors.New("connection reset")

	tests := []struct {
		name    string
		doc     Document
		querier *mockQuerier
		embed   *mockEmbedder
		wantSub string
	}{
		{
			name:    "empty ID",
			doc:     Document{Content: "text"},
			querier: &mockQuerier{},
			embed:   &mockEmbedder{},
			wantSub: "ID must not be empty",
		},
		{
			name:    "empty content",
			doc:     Document{ID: "doc-1"},
			querier: &mockQuerier{},
			embed:   &mockEmbedder{},
			wantSub: "empty content",
		},
		{
			name:    "embedder error",
			doc:     Document{ID: "doc-1", Content: "text"},
			querier: &mockQuerier{},
			embed:   &mockEmbedder{embedErr: embedFailed},
			wantSub: "embedding document",
		},
		{
			name:    "empty embedding",
			doc:     Document{ID: "doc-1", Content: "text"},
			querier: &mockQuerier{},
			embed:   &mockEmbedder{returnEmpty: true},
			wantSub: "no embeddings",
		},
		{
			name:    "dimension mismatch",
			doc:     Document{ID: "doc-1", Content: "text"},
			querier: &mockQuerier{},
			embed:   &mockEmbedder{dimension: 3},
			wantSub: "dimension",
		},
		{
			name:    "upsert error",
			doc:     Document{ID: "doc-1", Content: "text"},
			querier: &mockQuerier{upsertErr: upsertFailed},
			embed:   &mockEmbedder{},
			wantSub: "upserting document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := New(tt.querier, tt.embed, log.NewNop())
			err := store.Add(context.Background(), tt.doc)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not contain %q", err, tt.wantSub)
			}
		})
	}
}

func TestStore_AddBatch_PartialFailure(t *testing.T) {
	mq := &mockQuerier{}
	me := &mockEmbedder{}
	store := New(mq, me, log.NewNop())

	docs := []Document{
		{ID: "good-1", Content: "first"},
		{ID: "", Content: "missing id"},
		{ID: "good-2", Content: "second"},
	}

	if err := store.AddBatch(context.Background(), docs); err != nil {
		t.Fatalf("AddBatch should tolerate partial failure: %v", err)
	}
	if mq.upsertCalls != 2 {
		t.Errorf("expected 2 upserts, got %d", mq.upsertCalls)
	}
}

func TestStore_AddBatch_AllFail(t *testing.T) {
	mq := &mockQuerier{}
	me := &mockEmbedder{embedErr: errors.New("quota exhausted")}
	store := New(mq, me, log.NewNop())

	docs := []Document{
		{ID: "a", Content: "x"},
		{ID: "b", Content: "y"},
	}

	err := store.AddBatch(context.Background(), docs)
	if err == nil {
		t.Fatal("expected error when every document fails")
	}
	if !strings.Contains(err.Error(), "all 2 documents failed") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStore_Query(t *testing.T) {
	metadataJSON, _ := json.Marshal(map[string]string{MetaTitle: "Resume Formatting Guide"})
	mq := &mockQuerier{
		queryAllResults: []QueryDocumentsAllRow{
			{ID: "doc-1", Content: "closest", Metadata: metadataJSON, Distance: 0.12},
			{ID: "doc-2", Content: "further", Metadata: metadataJSON, Distance: 0.48},
		},
	}
	me := &mockEmbedder{}
	store := New(mq, me, log.NewNop())

	matches, err := store.Query(context.Background(), "resume formatting", WithTopK(2))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if mq.queryAllCalls != 1 {
		t.Errorf("expected one unfiltered query, got %d", mq.queryAllCalls)
	}
	if mq.lastQueryAllParams.ResultLimit != 2 {
		t.Errorf("expected limit 2, got %d", mq.lastQueryAllParams.ResultLimit)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Document.ID != "doc-1" || matches[1].Document.ID != "doc-2" {
		t.Errorf("matches out of order: %v, %v", matches[0].Document.ID, matches[1].Document.ID)
	}
	if matches[0].Distance >= matches[1].Distance {
		t.Errorf("distances not ascending: %v, %v", matches[0].Distance, matches[1].Distance)
	}
	if matches[0].Document.Metadata[MetaTitle] != "Resume Formatting Guide" {
		t.Errorf("metadata not parsed: %v", matches[0].Document.Metadata)
	}
}

func TestStore_Query_WithFilter(t *testing.T) {
	mq := &mockQuerier{
		queryResults: []QueryDocumentsRow{
			{ID: "doc-1", Content: "filtered", Metadata: []byte(`{}`), Distance: 0.2},
		},
	}
	me := &mockEmbedder{}
	store := New(mq, me, log.NewNop())

	matches, err := store.Query(context.Background(), "salary",
		WithTopK(3), WithFilter(MetaCategory, "interview"))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if mq.queryCalls != 1 {
		t.Errorf("expected one filtered query, got %d", mq.queryCalls)
	}
	if mq.queryAllCalls != 0 {
		t.Errorf("unfiltered query should not run, got %d calls", mq.queryAllCalls)
	}

	var filter map[string]string
	if err := json.Unmarshal(mq.lastQueryParams.FilterMetadata, &filter); err != nil {
		t.Fatalf("failed to unmarshal filter: %v", err)
	}
	if filter[MetaCategory] != "interview" {
		t.Errorf("filter not propagated: %v", filter)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
}

func TestStore_Query_Errors(t *testing.T) {
	tests := []struct {
		name    string
		querier *mockQuerier
		embed   *mockEmbedder
		opts    []QueryOption
		wantSub string
	}{
		{
			name:    "embed error",
			querier: &mockQuerier{},
			embed:   &mockEmbedder{embedErr: errors.New("backend down")},
			wantSub: "embedding query",
		},
		{
			name:    "query error",
			querier: &mockQuerier{queryAllErr: errors.New("relation missing")},
			embed:   &mockEmbedder{},
			wantSub: "vector query failed",
		},
		{
			name:    "invalid topK",
			querier: &mockQuerier{},
			embed:   &mockEmbedder{},
			opts:    []QueryOption{WithTopK(0)},
			wantSub: "topK must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := New(tt.querier, tt.embed, log.NewNop())
			_, err := store.Query(context.Background(), "anything", tt.opts...)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not contain %q", err, tt.wantSub)
			}
		})
	}
}

func TestStore_Count(t *testing.T) {
	mq := &mockQuerier{countResult: 7, countAllResult: 25}
	store := New(mq, &mockEmbedder{}, log.NewNop())
	ctx := context.Background()

	total, err := store.Count(ctx, nil)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if total != 25 {
		t.Errorf("expected 25, got %d", total)
	}
	if mq.countAllCalls != 1 {
		t.Errorf("expected one unfiltered count, got %d", mq.countAllCalls)
	}

	filtered, err := store.Count(ctx, map[string]string{MetaCategory: "resume"})
	if err != nil {
		t.Fatalf("Count with filter failed: %v", err)
	}
	if filtered != 7 {
		t.Errorf("expected 7, got %d", filtered)
	}
	if mq.countCalls != 1 {
		t.Errorf("expected one filtered count, got %d", mq.countCalls)
	}
}

func TestStore_Delete(t *testing.T) {
	mq := &mockQuerier{}
	store := New(mq, &mockEmbedder{}, log.NewNop())

	if err := store.Delete(context.Background(), "doc-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if mq.lastDeletedID != "doc-1" {
		t.Errorf("deleted wrong ID: %q", mq.lastDeletedID)
	}

	mq.deleteErr = errors.New("connection reset")
	if err := store.Delete(context.Background(), "doc-2"); err == nil {
		t.Fatal("expected error from failing delete")
	}
}

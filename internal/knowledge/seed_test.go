package knowledge

import (
	"context"
	"strings"
	"testing"

	"github.com/innofolio/innofolio/internal/log"
)

func TestSeedDocuments(t *testing.T) {
	docs := SeedDocuments()

	if len(docs) == 0 {
		t.Fatal("seed corpus is empty")
	}

	seen := make(map[string]bool, len(docs))
	categories := make(map[string]int)
	for _, doc := range docs {
		if doc.ID == "" {
			t.Error("seed document with empty ID")
		}
		if seen[doc.ID] {
			t.Errorf("duplicate seed ID %q", doc.ID)
		}
		seen[doc.ID] = true

		if doc.Content == "" {
			t.Errorf("seed document %q has empty content", doc.ID)
		}
		if doc.Metadata[MetaTitle] == "" {
			t.Errorf("seed document %q missing title", doc.ID)
		}
		category := doc.Metadata[MetaCategory]
		if category == "" {
			t.Errorf("seed document %q missing category", doc.ID)
		}
		categories[category]++

		wantPrefix := category + "_" + doc.Metadata[MetaSubcategory] + "_"
		if !strings.HasPrefix(doc.ID, wantPrefix) {
			t.Errorf("seed ID %q does not follow {category}_{subcategory}_{index}", doc.ID)
		}
	}

	for _, want := range []string{"resume", "interview", "job_search", "career"} {
		if categories[want] == 0 {
			t.Errorf("no seed documents in category %q", want)
		}
	}
}

func TestSeedDocuments_StableIDs(t *testing.T) {
	first := SeedDocuments()
	second := SeedDocuments()

	if len(first) != len(second) {
		t.Fatalf("seed corpus size changed between calls: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("seed ID at index %d not stable: %q vs %q", i, first[i].ID, second[i].ID)
		}
	}
}

func TestSeed(t *testing.T) {
	mq := &mockQuerier{}
	me := &mockEmbedder{}
	store := New(mq, me, log.NewNop())

	if err := Seed(context.Background(), store, log.NewNop()); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if mq.upsertCalls != len(SeedDocuments()) {
		t.Errorf("expected %d upserts, got %d", len(SeedDocuments()), mq.upsertCalls)
	}
}

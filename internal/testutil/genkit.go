package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
)

// NewGenkit initializes a plugin-free Genkit instance for registering mock
// models and embedders.
func NewGenkit(tb testing.TB) *genkit.Genkit {
	tb.Helper()

	g := genkit.Init(context.Background())
	if g == nil {
		tb.Fatal("genkit.Init returned nil")
	}
	return g
}

// GoogleAISetup contains resources for tests hitting the real Gemini API.
type GoogleAISetup struct {
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
}

// SetupGoogleAI initializes Genkit with the Google AI plugin and returns a
// real embedder. Skips the test when GEMINI_API_KEY is not set.
func SetupGoogleAI(t *testing.T) *GoogleAISetup {
	t.Helper()

	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("GEMINI_API_KEY not set - skipping test requiring embedder")
	}

	ctx := context.Background()
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		t.Fatal("genkit.Init returned nil")
	}

	return &GoogleAISetup{
		Genkit:   g,
		Embedder: googlegenai.GoogleAIEmbedder(g, "text-embedding-004"),
	}
}

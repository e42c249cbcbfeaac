package knowledge

import "time"

// VectorDimension is the embedding width produced by text-embedding-004.
// The documents.embedding column is declared vector(768) to match.
const VectorDimension = 768

// Document represents a knowledge base entry.
type Document struct {
	ID       string            // Unique identifier
	Content  string            // Document text content
	Metadata map[string]string // Optional metadata (title, category, ...)
	CreateAt time.Time         // Creation timestamp
}

// Match is a single query result. Distance is the cosine distance to the
// query embedding; smaller means more relevant. With normalized embeddings
// the value lies in [0, 2], and in practice [0, 1] for related text.
type Match struct {
	Document Document
	Distance float64
}

// QueryOption configures query behavior using the functional options pattern.
type QueryOption func(*queryConfig)

type queryConfig struct {
	topK    int
	filter  map[string]string
	timeout time.Duration
}

// WithTopK sets the maximum number of matches to return. Default is 5.
func WithTopK(k int) QueryOption {
	return func(c *queryConfig) {
		c.topK = k
	}
}

// WithFilter restricts matches to documents whose metadata contains the
// given key/value pair. Multiple calls combine with AND logic.
func WithFilter(key, value string) QueryOption {
	return func(c *queryConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// WithTimeout overrides the per-query timeout. Default is 10 seconds.
func WithTimeout(d time.Duration) QueryOption {
	return func(c *queryConfig) {
		c.timeout = d
	}
}

func buildQueryConfig(opts []QueryOption) *queryConfig {
	cfg := &queryConfig{
		topK:    5,
		filter:  nil,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

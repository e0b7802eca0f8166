package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"golang.org/x/sync/singleflight"
)

// Embedder turns text into a dense vector. The vector length must match
// the collection's configured dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// QdrantConfig holds configuration for connecting to Qdrant.
type QdrantConfig struct {
	URL        string // e.g. "https://xyz.cloud.qdrant.io:6333" or "http://localhost:6333"
	APIKey     string
	Collection string
	Dims       uint64
	TopK       int
}

// Document is one knowledge-base entry to index.
type Document struct {
	ID       uuid.UUID
	Category string
	Text     string
}

// QdrantSearcher implements Searcher backed by a Qdrant collection.
type QdrantSearcher struct {
	client     *qdrant.Client
	collection string
	dims       uint64
	topK       int
	embedder   Embedder
	logger     *slog.Logger

	healthGroup singleflight.Group
	healthErr   atomic.Value // stores *error (pointer-to-error, never nil pointer; inner error may be nil)
	healthAt    atomic.Int64 // unix nanos of last check
}

var _ Searcher = (*QdrantSearcher)(nil)

// parseQdrantURL extracts host, port, and TLS flag from a Qdrant URL.
// Accepts forms like "https://host:6333", "http://host:6333", or "host:6334".
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("search: invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("search: invalid port in qdrant URL: %q", portStr)
		}
		// If the user specified the REST port (6333), use the gRPC port (6334).
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	} else {
		port = 6334
	}

	return host, port, useTLS, nil
}

// NewQdrantSearcher creates a QdrantSearcher and connects to the Qdrant
// server via gRPC.
func NewQdrantSearcher(cfg QdrantConfig, embedder Embedder, logger *slog.Logger) (*QdrantSearcher, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("search: connect to qdrant at %s:%d: %w", host, port, err)
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	return &QdrantSearcher{
		client:     client,
		collection: cfg.Collection,
		dims:       cfg.Dims,
		topK:       topK,
		embedder:   embedder,
		logger:     logger,
	}, nil
}

// EnsureCollection creates the collection if it doesn't already exist
// and ensures the category payload index is present. CreateFieldIndex
// is idempotent on Qdrant, so it is always attempted.
func (q *QdrantSearcher) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("search: check collection exists: %w", err)
	}

	if !exists {
		if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: q.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     q.dims,
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("search: create collection %q: %w", q.collection, err)
		}
		q.logger.Info("qdrant: created collection", "collection", q.collection, "dims", q.dims)
	} else {
		q.logger.Info("qdrant: collection already exists", "collection", q.collection)
	}

	keywordType := qdrant.FieldType_FieldTypeKeyword
	if _, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		FieldName:      "category",
		FieldType:      &keywordType,
	}); err != nil {
		return fmt.Errorf("search: ensure index on %q: %w", "category", err)
	}
	return nil
}

// Upsert indexes documents into the collection.
func (q *QdrantSearcher) Upsert(ctx context.Context, docs []Document) error {
	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		vector, err := q.embedder.Embed(ctx, doc.Text)
		if err != nil {
			return fmt.Errorf("search: embed document %s: %w", doc.ID, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(doc.ID.String()),
			Vectors: qdrant.NewVectorsDense(vector),
			Payload: qdrant.NewValueMap(map[string]any{
				"category":   doc.Category,
				"chunk_text": doc.Text,
			}),
		})
	}

	if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("search: upsert %d points: %w", len(points), err)
	}
	q.logger.Info("qdrant: upserted documents", "collection", q.collection, "count", len(points))
	return nil
}

// Query embeds the text, searches the collection, and renders the hits.
func (q *QdrantSearcher) Query(ctx context.Context, text string) (string, error) {
	vector, err := q.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("search: embed query: %w", err)
	}

	limit := uint64(q.topK) //nolint:gosec
	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return "", fmt.Errorf("search: qdrant query: %w", err)
	}

	hits := make([]Hit, 0, len(scored))
	for _, sp := range scored {
		payload := sp.Payload
		hits = append(hits, Hit{
			Category: payload["category"].GetStringValue(),
			Text:     payload["chunk_text"].GetStringValue(),
			Score:    sp.Score,
		})
	}
	return Render(hits), nil
}

// Healthy returns nil if Qdrant is reachable. Results are cached for 5
// seconds to avoid hammering the health endpoint on every request.
// Concurrent calls after cache expiry are deduplicated via singleflight
// so only one gRPC call is made; all waiters share its result.
func (q *QdrantSearcher) Healthy(ctx context.Context) error {
	// Fast path: return the cached result if fresh.
	if time.Since(time.Unix(0, q.healthAt.Load())) < 5*time.Second {
		return q.loadHealthErr()
	}

	// Deduplicate concurrent checks. Use context.Background() instead of
	// the caller's ctx because singleflight reuses the first caller's
	// context — if that caller cancels, all waiters would get a stale
	// error.
	result, _, _ := q.healthGroup.Do("health", func() (any, error) {
		checkCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		_, err := q.client.HealthCheck(checkCtx)
		if err != nil {
			q.storeHealthErr(fmt.Errorf("search: qdrant unhealthy: %w", err))
		} else {
			q.storeHealthErr(nil)
		}
		q.healthAt.Store(time.Now().UnixNano())
		return q.loadHealthErr(), nil
	})
	if result == nil {
		return nil
	}
	return result.(error)
}

// Close releases the underlying gRPC connection.
func (q *QdrantSearcher) Close() error {
	return q.client.Close()
}

// storeHealthErr stores an error (or nil) in the atomic.Value.
// atomic.Value cannot store nil directly, so it is wrapped in a pointer.
func (q *QdrantSearcher) storeHealthErr(err error) {
	q.healthErr.Store(&err)
}

func (q *QdrantSearcher) loadHealthErr() error {
	if v := q.healthErr.Load(); v != nil {
		return *v.(*error)
	}
	return nil
}

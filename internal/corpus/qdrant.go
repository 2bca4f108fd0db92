package corpus

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/prepai-go/internal/vector"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name (default: questions).
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// Payload keys stored alongside each point.
const (
	payloadText       = "question_text"
	payloadTopic      = "topic"
	payloadDifficulty = "difficulty"
)

// QdrantStore implements [Store] backed by a Qdrant collection using
// Euclidean distance. Point ids are derived from the question text, so
// re-ingesting the same question overwrites rather than duplicates it.
// Query results do not carry embeddings.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it if necessary).
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "questions"
	}
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("corpus: qdrant: vector size must be positive")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("corpus: qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return unavailable("qdrant collection check", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Euclid,
		}),
	})
	if err != nil {
		return fmt.Errorf("corpus: qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// pointID maps question text onto a positive int64 id.
func pointID(text string) int64 {
	sum := sha256.Sum256([]byte(text))
	id := int64(binary.BigEndian.Uint64(sum[:8]) & 0x7fffffffffffffff)
	if id == 0 {
		id = 1
	}
	return id
}

// Insert upserts q under a text-derived id and waits for it to be indexed.
func (s *QdrantStore) Insert(ctx context.Context, q NewQuestion) (Question, error) {
	if err := validateNew(q, int(s.cfg.VectorSize)); err != nil {
		return Question{}, err
	}
	id := pointID(q.Text)

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDNum(uint64(id)),
			Vectors: qdrant.NewVectors(q.Embedding.Slice()...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadText:       q.Text,
				payloadTopic:      q.Topic,
				payloadDifficulty: q.Difficulty,
			}),
		}},
	})
	if err != nil {
		return Question{}, unavailable("qdrant upsert", err)
	}
	return Question{ID: id, Text: q.Text, Topic: q.Topic, Difficulty: q.Difficulty, Embedding: q.Embedding}, nil
}

// Get returns the question stored under id.
func (s *QdrantStore) Get(ctx context.Context, id int64) (Question, bool, error) {
	if id <= 0 {
		return Question{}, false, nil
	}
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.cfg.Collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDNum(uint64(id))},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return Question{}, false, unavailable("qdrant get", err)
	}
	if len(points) == 0 {
		return Question{}, false, nil
	}
	return questionFromPayload(int64(points[0].GetId().GetNum()), points[0].GetPayload()), true, nil
}

// Nearest returns the closest point whose id is not in excl, using a
// must_not has_id filter.
func (s *QdrantStore) Nearest(ctx context.Context, query vector.Vector, excl Exclusion) (Match, bool, error) {
	matches, err := s.search(ctx, query, excl, 1)
	if err != nil {
		return Match{}, false, err
	}
	if len(matches) == 0 {
		return Match{}, false, nil
	}
	return matches[0], true, nil
}

// TopK returns up to k closest points.
func (s *QdrantStore) TopK(ctx context.Context, query vector.Vector, k int) ([]Match, error) {
	if k <= 0 {
		if err := checkQuery(query, int(s.cfg.VectorSize)); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return s.search(ctx, query, Exclusion{}, k)
}

func (s *QdrantStore) search(ctx context.Context, query vector.Vector, excl Exclusion, k int) ([]Match, error) {
	if err := checkQuery(query, int(s.cfg.VectorSize)); err != nil {
		return nil, err
	}
	req := &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(query.Slice()...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if !excl.IsEmpty() {
		ids := make([]*qdrant.PointId, 0, excl.Len())
		for _, id := range excl.IDs() {
			if id > 0 {
				ids = append(ids, qdrant.NewIDNum(uint64(id)))
			}
		}
		req.Filter = &qdrant.Filter{MustNot: []*qdrant.Condition{qdrant.NewHasID(ids...)}}
	}

	results, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, unavailable("qdrant query", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		// For Euclid collections the score is the distance itself.
		matches = append(matches, Match{
			Question: questionFromPayload(int64(r.GetId().GetNum()), r.GetPayload()),
			Distance: float64(r.GetScore()),
		})
	}
	return matches, nil
}

func questionFromPayload(id int64, p map[string]*qdrant.Value) Question {
	q := Question{ID: id}
	if v, ok := p[payloadText]; ok {
		q.Text = v.GetStringValue()
	}
	if v, ok := p[payloadTopic]; ok {
		q.Topic = v.GetStringValue()
	}
	if v, ok := p[payloadDifficulty]; ok {
		q.Difficulty = v.GetStringValue()
	}
	return q
}

// Ping calls the Qdrant health check endpoint.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return unavailable("qdrant health", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

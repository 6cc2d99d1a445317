package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

// reviewDoc is the stored shape of one annotated review.
type reviewDoc struct {
	RunID       string     `bson:"run_id"`
	Site        string     `bson:"site"`
	RatingLabel string     `bson:"rating_label,omitempty"`
	Rating      *int       `bson:"rating,omitempty"`
	Title       string     `bson:"title"`
	Body        string     `bson:"body"`
	PublishedAt *time.Time `bson:"date,omitempty"`
	Tokens      []string   `bson:"tokens"`
	Sentiment   int        `bson:"sentiment"`
	StoredAt    time.Time  `bson:"_stored_at"`
}

func newReviewDoc(runID string, r types.AnnotatedRecord, now time.Time) reviewDoc {
	return reviewDoc{
		RunID:       runID,
		Site:        string(r.Site),
		RatingLabel: r.RatingLabel,
		Rating:      r.Rating,
		Title:       r.Title,
		Body:        r.Body,
		PublishedAt: r.PublishedAt,
		Tokens:      r.Tokens,
		Sentiment:   r.Sentiment,
		StoredAt:    now,
	}
}

// MongoStorage writes records to a MongoDB collection.
type MongoStorage struct {
	client     *mongo.Client
	collection *mongo.Collection
	runID      string
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewMongoStorage creates a new MongoDB storage backend.
func NewMongoStorage(uri, database, collection, runID string, logger *slog.Logger) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return &MongoStorage{
		client:     client,
		collection: client.Database(database).Collection(collection),
		runID:      runID,
		logger:     logger.With("component", "mongo_storage"),
	}, nil
}

func (s *MongoStorage) Name() string { return "mongodb" }

func (s *MongoStorage) Store(ctx context.Context, recs []types.AnnotatedRecord) error {
	if len(recs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	docs := make([]any, len(recs))
	for i, r := range recs {
		docs[i] = newReviewDoc(s.runID, r, now)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("mongodb insert: %w", err)
	}

	s.count += len(recs)
	s.logger.Debug("records stored in mongodb", "count", len(recs), "total", s.count)
	return nil
}

func (s *MongoStorage) Close() error {
	s.logger.Info("mongodb storage closing", "total_records", s.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// --- Multi-Storage Fan-Out ---

// MultiStorage writes records to multiple backends.
type MultiStorage struct {
	backends []Storage
	logger   *slog.Logger
}

// NewMultiStorage creates a storage that fans out to multiple backends.
func NewMultiStorage(backends []Storage, logger *slog.Logger) *MultiStorage {
	return &MultiStorage{
		backends: backends,
		logger:   logger.With("component", "multi_storage"),
	}
}

func (s *MultiStorage) Name() string { return "multi" }

// Store writes to every backend; one failing backend does not stop the others.
func (s *MultiStorage) Store(ctx context.Context, recs []types.AnnotatedRecord) error {
	var errs []error
	for _, backend := range s.backends {
		if err := backend.Store(ctx, recs); err != nil {
			s.logger.Error("backend store failed", "backend", backend.Name(), "error", err)
			errs = append(errs, &types.StorageError{Backend: backend.Name(), Err: err})
		}
	}
	return errors.Join(errs...)
}

func (s *MultiStorage) Close() error {
	var errs []error
	for _, backend := range s.backends {
		if err := backend.Close(); err != nil {
			errs = append(errs, &types.StorageError{Backend: backend.Name(), Err: err})
		}
	}
	return errors.Join(errs...)
}

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/hugaba/api-sentiment-analysis/internal/config"
	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

// Storage is the interface for all record export backends.
type Storage interface {
	// Store persists a batch of records.
	Store(ctx context.Context, recs []types.AnnotatedRecord) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// New builds the backends named by cfg.Types for one run. It returns nil
// when export is disabled. Several backends are combined with MultiStorage.
func New(cfg config.StorageConfig, runID string, logger *slog.Logger) (Storage, error) {
	var backends []Storage
	for _, t := range cfg.Types() {
		s, err := newBackend(t, cfg, runID, logger)
		if err != nil {
			for _, b := range backends {
				b.Close()
			}
			return nil, &types.StorageError{Backend: t, Err: err}
		}
		if s != nil {
			backends = append(backends, s)
		}
	}

	switch len(backends) {
	case 0:
		return nil, nil
	case 1:
		return backends[0], nil
	default:
		return NewMultiStorage(backends, logger), nil
	}
}

func newBackend(storageType string, cfg config.StorageConfig, runID string, logger *slog.Logger) (Storage, error) {
	switch storageType {
	case "none":
		return nil, nil
	case "mongodb":
		return NewMongoStorage(cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, runID, logger)
	case "sqlite":
		return NewSQLiteStorage(filepath.Join(cfg.OutputPath, "reviews.db"), runID, logger)
	default:
		return NewFileStorage(storageType, cfg.OutputPath, runID, logger)
	}
}

// Export writes recs to s in batches of batchSize (everything at once when
// batchSize <= 0) and closes s. Failures are wrapped in types.StorageError.
func Export(ctx context.Context, s Storage, recs []types.AnnotatedRecord, batchSize int) error {
	if batchSize <= 0 {
		batchSize = len(recs)
	}

	var storeErr error
	for start := 0; start < len(recs) && storeErr == nil; start += batchSize {
		end := min(start+batchSize, len(recs))
		if err := s.Store(ctx, recs[start:end]); err != nil {
			storeErr = &types.StorageError{Backend: s.Name(), Err: err}
		}
	}

	if err := s.Close(); err != nil && storeErr == nil {
		storeErr = &types.StorageError{Backend: s.Name(), Err: err}
	}
	return storeErr
}

// Load reads previously exported records. The format follows the file
// extension: .json, .jsonl, .csv, or .db/.sqlite.
func Load(ctx context.Context, path string) ([]types.AnnotatedRecord, error) {
	return LoadRun(ctx, path, "")
}

// LoadRun is Load restricted to one run. File exports already hold a single
// run each, so a run filter only applies to a SQLite database.
func LoadRun(ctx context.Context, path, runID string) ([]types.AnnotatedRecord, error) {
	var (
		recs []types.AnnotatedRecord
		err  error
	)
	ext := strings.ToLower(filepath.Ext(path))
	if runID != "" && ext != ".db" && ext != ".sqlite" {
		return nil, &types.StorageError{Backend: "file", Err: fmt.Errorf("run filter %q needs a SQLite database, got %q", runID, ext)}
	}
	switch ext {
	case ".json":
		recs, err = readJSON(path)
	case ".jsonl", ".ndjson":
		recs, err = readJSONL(path)
	case ".csv":
		recs, err = readCSV(path)
	case ".db", ".sqlite":
		recs, err = readSQLite(ctx, path, runID)
	default:
		return nil, &types.StorageError{Backend: "file", Err: fmt.Errorf("unsupported record file extension %q", ext)}
	}
	if err != nil {
		return nil, &types.StorageError{Backend: "file", Err: fmt.Errorf("%s: %w", path, err)}
	}
	return recs, nil
}

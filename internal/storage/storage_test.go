package storage

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hugaba/api-sentiment-analysis/internal/config"
	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func sampleRecords() []types.AnnotatedRecord {
	four := 4
	published := time.Date(2024, 3, 2, 10, 4, 5, 0, time.UTC)
	return []types.AnnotatedRecord{
		{
			ReviewRecord: types.ReviewRecord{
				Site:        "alpha.fr",
				RatingLabel: "Noté 4 sur 5 étoiles",
				Rating:      &four,
				Title:       "Très bien",
				Body:        "Colis reçu, \"nickel\", merci",
				PublishedAt: &published,
			},
			Tokens:    []string{"très", "bien", "colis", "reçu", "nickel", "merci"},
			Sentiment: types.SentimentPositive,
		},
		{
			ReviewRecord: types.ReviewRecord{Site: "beta.com", Title: "", Body: "Jamais reçu"},
			Tokens:       []string{"jamais", "reçu"},
			Sentiment:    types.SentimentNegative,
		},
	}
}

func TestFileRoundTrip(t *testing.T) {
	for _, kind := range []string{"json", "jsonl", "csv"} {
		t.Run(kind, func(t *testing.T) {
			dir := t.TempDir()
			s, err := NewFileStorage(kind, dir, "run1", testLogger)
			if err != nil {
				t.Fatal(err)
			}
			if err := Export(context.Background(), s, sampleRecords(), 1); err != nil {
				t.Fatalf("Export: %v", err)
			}

			path := filepath.Join(dir, "reviews-run1."+kind)
			got, err := Load(context.Background(), path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if diff := cmp.Diff(sampleRecords(), got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := config.StorageConfig{Type: "sqlite", OutputPath: dir}

	for _, run := range []string{"run1", "run2"} {
		s, err := New(cfg, run, testLogger)
		if err != nil {
			t.Fatal(err)
		}
		if err := Export(context.Background(), s, sampleRecords(), 0); err != nil {
			t.Fatalf("Export %s: %v", run, err)
		}
	}

	got, err := Load(context.Background(), filepath.Join(dir, "reviews.db"))
	if err != nil {
		t.Fatal(err)
	}
	want := append(sampleRecords(), sampleRecords()...)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sqlite mismatch (-want +got):\n%s", diff)
	}

	one, err := LoadRun(context.Background(), filepath.Join(dir, "reviews.db"), "run2")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(sampleRecords(), one); diff != "" {
		t.Errorf("run2 mismatch (-want +got):\n%s", diff)
	}

	none, err := LoadRun(context.Background(), filepath.Join(dir, "reviews.db"), "run3")
	if err != nil || len(none) != 0 {
		t.Errorf("unknown run: got %d records, err %v", len(none), err)
	}
}

func TestNewDisabled(t *testing.T) {
	s, err := New(config.StorageConfig{Type: "none"}, "run", testLogger)
	if err != nil || s != nil {
		t.Fatalf("expected no storage, got %v, %v", s, err)
	}
}

func TestNewMulti(t *testing.T) {
	dir := t.TempDir()
	s, err := New(config.StorageConfig{Type: "jsonl,csv", OutputPath: dir}, "r", testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if s.Name() != "multi" {
		t.Fatalf("expected multi storage, got %s", s.Name())
	}
	if err := Export(context.Background(), s, sampleRecords(), 10); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"reviews-r.jsonl", "reviews-r.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestNewUnsupported(t *testing.T) {
	_, err := New(config.StorageConfig{Type: "jsonl,s3", OutputPath: t.TempDir()}, "r", testLogger)
	var se *types.StorageError
	if !errors.As(err, &se) || se.Backend != "s3" {
		t.Fatalf("expected StorageError for s3, got %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(context.Background(), filepath.Join(dir, "reviews.parquet")); err == nil {
		t.Error("expected error for unknown extension")
	}
	if _, err := Load(context.Background(), filepath.Join(dir, "missing.jsonl")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}

	if _, err := LoadRun(context.Background(), filepath.Join(dir, "reviews-r.jsonl"), "r"); err == nil {
		t.Error("expected error for a run filter on a file export")
	}

	bad := filepath.Join(dir, "bad.csv")
	os.WriteFile(bad, []byte("site,title\nx,y\n"), 0o644)
	if _, err := Load(context.Background(), bad); err == nil {
		t.Error("expected error for CSV without the record columns")
	}
}

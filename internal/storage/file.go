package storage

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

// --- JSON Storage ---

// JSONStorage buffers records and writes them as one JSON array on Close.
type JSONStorage struct {
	path   string
	recs   []types.AnnotatedRecord
	mu     sync.Mutex
	logger *slog.Logger
}

// NewJSONStorage creates a new JSON file storage.
func NewJSONStorage(outputPath string, logger *slog.Logger) (*JSONStorage, error) {
	if err := ensureDir(outputPath); err != nil {
		return nil, err
	}
	return &JSONStorage{
		path:   outputPath,
		recs:   make([]types.AnnotatedRecord, 0),
		logger: logger.With("component", "json_storage"),
	}, nil
}

func (s *JSONStorage) Name() string { return "json" }

// Path returns the output file.
func (s *JSONStorage) Path() string { return s.path }

func (s *JSONStorage) Store(_ context.Context, recs []types.AnnotatedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, recs...)
	s.logger.Debug("records buffered", "count", len(recs), "total", len(s.recs))
	return nil
}

func (s *JSONStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.recs); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}

	s.logger.Info("JSON written", "path", s.path, "records", len(s.recs))
	return nil
}

func readJSON(path string) ([]types.AnnotatedRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var recs []types.AnnotatedRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	return recs, nil
}

// --- JSONL Storage ---

// JSONLStorage writes records as newline-delimited JSON (one object per line).
type JSONLStorage struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLStorage creates a new JSONL file storage (streaming writes).
func NewJSONLStorage(outputPath string, logger *slog.Logger) (*JSONLStorage, error) {
	if err := ensureDir(outputPath); err != nil {
		return nil, err
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}

	return &JSONLStorage{
		path:   outputPath,
		file:   f,
		enc:    json.NewEncoder(f),
		logger: logger.With("component", "jsonl_storage"),
	}, nil
}

func (s *JSONLStorage) Name() string { return "jsonl" }

// Path returns the output file.
func (s *JSONLStorage) Path() string { return s.path }

func (s *JSONLStorage) Store(_ context.Context, recs []types.AnnotatedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range recs {
		if err := s.enc.Encode(r); err != nil {
			return fmt.Errorf("encode JSONL: %w", err)
		}
		s.count++
	}
	return nil
}

func (s *JSONLStorage) Close() error {
	s.logger.Info("JSONL written", "path", s.path, "records", s.count)
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

func readJSONL(path string) ([]types.AnnotatedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var recs []types.AnnotatedRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var r types.AnnotatedRecord
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		recs = append(recs, r)
	}
	return recs, sc.Err()
}

// --- CSV Storage ---

var csvHeader = []string{"site", "rating_label", "rating", "title", "body", "date", "tokens", "sentiment"}

// CSVStorage writes records as CSV rows. Tokens are space separated.
type CSVStorage struct {
	path   string
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewCSVStorage creates a new CSV file storage and writes the header row.
func NewCSVStorage(outputPath string, logger *slog.Logger) (*CSVStorage, error) {
	if err := ensureDir(outputPath); err != nil {
		return nil, err
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write CSV header: %w", err)
	}

	return &CSVStorage{
		path:   outputPath,
		file:   f,
		writer: w,
		logger: logger.With("component", "csv_storage"),
	}, nil
}

func (s *CSVStorage) Name() string { return "csv" }

// Path returns the output file.
func (s *CSVStorage) Path() string { return s.path }

func (s *CSVStorage) Store(_ context.Context, recs []types.AnnotatedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range recs {
		if err := s.writer.Write(csvRow(r)); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
		s.count++
	}

	s.writer.Flush()
	return s.writer.Error()
}

func (s *CSVStorage) Close() error {
	s.logger.Info("CSV written", "path", s.path, "records", s.count)
	if s.writer != nil {
		s.writer.Flush()
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

func csvRow(r types.AnnotatedRecord) []string {
	rating, date := "", ""
	if r.Rating != nil {
		rating = strconv.Itoa(*r.Rating)
	}
	if r.PublishedAt != nil {
		date = r.PublishedAt.Format(time.RFC3339)
	}
	return []string{
		string(r.Site), r.RatingLabel, rating, r.Title, r.Body, date,
		strings.Join(r.Tokens, " "), strconv.Itoa(r.Sentiment),
	}
}

func readCSV(path string) ([]types.AnnotatedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rd := csv.NewReader(f)
	header, err := rd.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}
	for _, h := range csvHeader {
		if _, ok := col[h]; !ok {
			return nil, fmt.Errorf("CSV header lacks column %q", h)
		}
	}

	var recs []types.AnnotatedRecord
	for {
		row, err := rd.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		r, err := parseCSVRow(row, col)
		if err != nil {
			return nil, fmt.Errorf("CSV row %d: %w", len(recs)+1, err)
		}
		recs = append(recs, r)
	}
	return recs, nil
}

func parseCSVRow(row []string, col map[string]int) (types.AnnotatedRecord, error) {
	get := func(name string) string { return row[col[name]] }

	r := types.AnnotatedRecord{
		ReviewRecord: types.ReviewRecord{
			Site:        types.ResolvedSite(get("site")),
			RatingLabel: get("rating_label"),
			Title:       get("title"),
			Body:        get("body"),
		},
		Tokens: strings.Fields(get("tokens")),
	}
	if v := get("rating"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return r, fmt.Errorf("rating: %w", err)
		}
		r.Rating = &n
	}
	if v := get("date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return r, fmt.Errorf("date: %w", err)
		}
		r.PublishedAt = &t
	}
	n, err := strconv.Atoi(get("sentiment"))
	if err != nil {
		return r, fmt.Errorf("sentiment: %w", err)
	}
	r.Sentiment = n
	return r, nil
}

// NewFileStorage creates the appropriate file-based storage by type. Files
// are named after the run so concurrent runs never share one.
func NewFileStorage(storageType, outputDir, runID string, logger *slog.Logger) (Storage, error) {
	name := "reviews"
	if runID != "" {
		name += "-" + runID
	}
	switch storageType {
	case "json":
		return NewJSONStorage(filepath.Join(outputDir, name+".json"), logger)
	case "jsonl":
		return NewJSONLStorage(filepath.Join(outputDir, name+".jsonl"), logger)
	case "csv":
		return NewCSVStorage(filepath.Join(outputDir, name+".csv"), logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}

package train

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"loan-risk/internal/features"
)

// LoadStats describes what a Loader read and kept.
type LoadStats struct {
	Chunks      int `json:"chunks"`
	RowsRead    int `json:"rows_read"`
	RowsSampled int `json:"rows_sampled"`
}

// Loader reads historical loan records in fixed-size chunks and keeps a
// seeded uniform sample of each chunk.
type Loader struct {
	ChunkSize      int
	SampleFraction float64
	Seed           int64
}

// Load auto-detects the format from the file name: .json and .jsonl are
// read as a stream of JSON objects, everything else as CSV with a header.
// A trailing .gz is decompressed transparently.
func (l *Loader) Load(ctx context.Context, path string) ([]features.Record, LoadStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("failed to open data file: %w", err)
	}
	defer file.Close()

	var r io.Reader = file
	name := strings.ToLower(path)
	if strings.HasSuffix(name, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, LoadStats{}, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
		name = strings.TrimSuffix(name, ".gz")
	}

	var (
		records []features.Record
		stats   LoadStats
	)
	switch {
	case strings.HasSuffix(name, ".json"), strings.HasSuffix(name, ".jsonl"):
		records, stats, err = l.LoadJSON(ctx, r)
	default:
		records, stats, err = l.LoadCSV(ctx, r)
	}
	if err != nil {
		return nil, stats, err
	}

	log.Info().
		Str("file", path).
		Int("chunks", stats.Chunks).
		Int("rows_read", stats.RowsRead).
		Int("rows_sampled", stats.RowsSampled).
		Msg("Training data loaded")
	return records, stats, nil
}

// LoadCSV reads a CSV stream with a header row.
func (l *Loader) LoadCSV(ctx context.Context, r io.Reader) ([]features.Record, LoadStats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	return l.chunked(ctx, func() (features.Record, error) {
		row, err := reader.Read()
		if err != nil {
			return nil, err
		}
		return features.RecordFromRow(header, row), nil
	})
}

// LoadJSON reads a stream of JSON objects, one record each.
func (l *Loader) LoadJSON(ctx context.Context, r io.Reader) ([]features.Record, LoadStats, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	return l.chunked(ctx, func() (features.Record, error) {
		if !decoder.More() {
			return nil, io.EOF
		}
		var rec features.Record
		if err := decoder.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode JSON record: %w", err)
		}
		return rec, nil
	})
}

func (l *Loader) chunked(ctx context.Context, next func() (features.Record, error)) ([]features.Record, LoadStats, error) {
	var (
		out   []features.Record
		stats LoadStats
	)
	size := l.ChunkSize
	if size < 1 {
		size = 1
	}
	chunk := make([]features.Record, 0, min(size, 4096))

	flush := func() {
		if len(chunk) == 0 {
			return
		}
		stats.Chunks++
		kept := l.sample(chunk)
		stats.RowsSampled += len(kept)
		out = append(out, kept...)
		chunk = chunk[:0]
	}

	for {
		rec, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("row %d: %w", stats.RowsRead+1, err)
		}
		stats.RowsRead++
		chunk = append(chunk, rec)
		if len(chunk) == size {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
			flush()
		}
	}
	flush()
	return out, stats, nil
}

// sample keeps round(fraction*len(chunk)) rows chosen without replacement.
// Every chunk uses a fresh generator from the same seed, and kept rows stay in
// file order.
func (l *Loader) sample(chunk []features.Record) []features.Record {
	if l.SampleFraction >= 1 {
		return append([]features.Record(nil), chunk...)
	}
	k := int(math.RoundToEven(l.SampleFraction * float64(len(chunk))))
	if k <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(l.Seed))
	idx := rng.Perm(len(chunk))[:k]
	sort.Ints(idx)
	out := make([]features.Record, k)
	for i, j := range idx {
		out[i] = chunk[j]
	}
	return out
}

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"stockdash/internal/domain"
)

// Compile-time interface check.
var _ SeriesArchive = (*ParquetStore)(nil)

// ParquetStore implements SeriesArchive using Parquet files on disk.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// SampleRecord is the Parquet schema for one archived price sample.
type SampleRecord struct {
	Ticker    string   `parquet:"ticker"`
	Minutes   int32    `parquet:"minutes"`                          // 0 for full history
	Timestamp int64    `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Price     float64  `parquet:"price"`
	Volume    *float64 `parquet:"volume,optional"`
}

// ---------------------------------------------------------------------------
// SeriesArchive implementation
// ---------------------------------------------------------------------------

// WriteSeries writes samples to Parquet files organized by ticker, window
// and UTC day, merging with what is already archived:
//
//	<DataDir>/<TICKER>/<minutes|all>/<YYYY-MM-DD>.parquet
func (s *ParquetStore) WriteSeries(_ context.Context, ticker domain.Ticker, window domain.Window, series domain.PriceSeries) error {
	if len(series) == 0 {
		return nil
	}

	groups := make(map[string][]SampleRecord)
	for _, p := range series {
		day := p.Timestamp.UTC().Format(time.DateOnly)
		groups[day] = append(groups[day], SampleRecord{
			Ticker:    string(ticker),
			Minutes:   int32(window),
			Timestamp: p.Timestamp.UnixMilli(),
			Price:     p.Price,
			Volume:    p.Volume,
		})
	}

	for day, records := range groups {
		t, _ := time.Parse(time.DateOnly, day)
		path := s.seriesPath(ticker, window, t)

		existing, _ := readParquetFile[SampleRecord](path)
		merged := mergeSampleRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing samples for %s/%s/%s: %w", ticker, window.Key(), day, err)
		}
	}
	return nil
}

// ReadSeries reads archived samples for ticker and window within [start, end].
func (s *ParquetStore) ReadSeries(_ context.Context, ticker domain.Ticker, window domain.Window, start, end time.Time) (domain.PriceSeries, error) {
	start, end = start.UTC(), end.UTC()
	var series domain.PriceSeries
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	for d := first; !d.After(end); d = d.AddDate(0, 0, 1) {
		records, err := readParquetFile[SampleRecord](s.seriesPath(ticker, window, d))
		if err != nil {
			// No archive for this day.
			continue
		}
		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if ts.Before(start) || ts.After(end) {
				continue
			}
			series = append(series, domain.PricePoint{
				Price:     r.Price,
				Timestamp: ts,
				Volume:    r.Volume,
			})
		}
	}
	return series, nil
}

// ListTickers returns the tickers with archived samples.
func (s *ParquetStore) ListTickers() ([]domain.Ticker, error) {
	entries, err := os.ReadDir(s.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var tickers []domain.Ticker
	for _, e := range entries {
		if e.IsDir() {
			tickers = append(tickers, domain.Ticker(e.Name()))
		}
	}
	sort.Slice(tickers, func(i, j int) bool { return tickers[i] < tickers[j] })
	return tickers, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// seriesPath returns the filesystem path for a sample Parquet file.
// Layout: <dataDir>/<TICKER>/<minutes|all>/<YYYY-MM-DD>.parquet
func (s *ParquetStore) seriesPath(ticker domain.Ticker, window domain.Window, day time.Time) string {
	return filepath.Join(s.DataDir, strings.ToUpper(string(ticker)), window.Key(), day.Format(time.DateOnly)+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// mergeSampleRecords deduplicates records by timestamp, preferring incoming
// records over existing ones. Results are sorted by timestamp.
func mergeSampleRecords(existing, incoming []SampleRecord) []SampleRecord {
	seen := make(map[int64]SampleRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]SampleRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}

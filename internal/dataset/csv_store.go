package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"adherence.onebusaway.org/internal/logging"
	"adherence.onebusaway.org/internal/models"
)

// CSVStore reads and writes the delay dataset as a CSV file. Paths ending in
// ".gz" are gzip compressed.
type CSVStore struct {
	path     string
	location *time.Location
	logger   *slog.Logger
}

func NewCSVStore(path string, loc *time.Location, logger *slog.Logger) *CSVStore {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVStore{
		path:     path,
		location: loc,
		logger:   logger.With(slog.String("component", "csv_store")),
	}
}

func (s *CSVStore) Path() string {
	return s.path
}

func (s *CSVStore) compressed() bool {
	return strings.HasSuffix(strings.ToLower(s.path), ".gz")
}

// Load reads the persisted dataset. A missing file is an empty dataset.
// Rows that cannot be parsed are skipped and logged.
func (s *CSVStore) Load(ctx context.Context) ([]models.MatchedDelayRecord, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", s.path, err)
	}
	defer logging.SafeCloseWithLogging(f, s.logger, "dataset file")

	var r io.Reader = f
	if s.compressed() {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip dataset %s: %w", s.path, err)
		}
		defer logging.SafeCloseWithLogging(gz, s.logger, "dataset gzip reader")
		r = gz
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))] = i
	}

	var (
		records []models.MatchedDelayRecord
		skipped int
		line    int
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			skipped++
			continue
		}
		rec, err := models.DelayRecordFromRow(index, row, s.location)
		if err != nil {
			skipped++
			if skipped <= 5 {
				s.logger.Debug("skipping malformed dataset row", slog.Int("line", line+1), slog.String("error", err.Error()))
			}
			continue
		}
		records = append(records, rec)
	}

	if skipped > 0 {
		s.logger.Warn("skipped malformed dataset rows",
			slog.String("path", s.path), slog.Int("skipped", skipped), slog.Int("loaded", len(records)))
	}
	return records, nil
}

// Persist implements Sink by rewriting the whole file with merged.
func (s *CSVStore) Persist(ctx context.Context, merged, _ []models.MatchedDelayRecord) error {
	return s.Save(ctx, merged)
}

// Save writes records to a temporary file next to the dataset and renames it
// into place, so readers never observe a partially written file.
func (s *CSVStore) Save(ctx context.Context, records []models.MatchedDelayRecord) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dataset directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp dataset: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := s.write(ctx, tmp, records); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp dataset: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace dataset %s: %w", s.path, err)
	}
	committed = true

	s.logger.Debug("dataset written", slog.String("path", s.path), slog.Int("rows", len(records)))
	return nil
}

func (s *CSVStore) write(ctx context.Context, w io.Writer, records []models.MatchedDelayRecord) error {
	var gz *gzip.Writer
	if s.compressed() {
		gz = gzip.NewWriter(w)
		w = gz
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(models.DelayRecordColumns); err != nil {
		return fmt.Errorf("write dataset header: %w", err)
	}
	for i, rec := range records {
		if i%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := cw.Write(rec.Row()); err != nil {
			return fmt.Errorf("write dataset row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush dataset: %w", err)
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("finish gzip dataset: %w", err)
		}
	}
	return nil
}

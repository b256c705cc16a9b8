// Package ingestion extracts the breed collection from the catalog API and appends it to the raw table.
package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/giobale/dog-breed-explorer/internal/landing"
	"github.com/giobale/dog-breed-explorer/internal/warehouse"
)

// RawWriter appends rows to the raw table.
type RawWriter interface {
	EnsureRawTable(ctx context.Context) error
	AppendRaw(ctx context.Context, rows []warehouse.RawRow) (int64, error)
}

// IngestionService handles the extract-and-load logic.
type IngestionService struct {
	client  BreedClient
	writer  RawWriter
	archive landing.Store // nil disables archiving
	dataset string
	table   string
	log     *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewIngestionService creates a new IngestionService.
func NewIngestionService(client BreedClient, writer RawWriter, archive landing.Store, dataset, table string, log *zap.Logger) *IngestionService {
	return &IngestionService{
		client:  client,
		writer:  writer,
		archive: archive,
		dataset: dataset,
		table:   table,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// IngestBreeds fetches every breed record and appends it to the raw table.
// All rows of one run share a single updated_at and load_id; row_id is 1-based within the run.
func (s *IngestionService) IngestBreeds(ctx context.Context) (*LoadInfo, error) {
	info := &LoadInfo{
		LoadID:    s.newID(),
		Dataset:   s.dataset,
		Table:     s.table,
		StartedAt: s.now(),
	}
	log := s.log.With(zap.String("load_id", info.LoadID))
	log.Info("Starting breed extraction", zap.String("dataset", s.dataset), zap.String("table", s.table))

	records, err := s.client.FetchBreeds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch breeds: %w", err)
	}
	log.Info("Fetched breed records", zap.Int("records", len(records)))

	if s.archive != nil {
		key, err := s.archivePayload(ctx, records, info)
		if err != nil {
			return nil, err
		}
		info.ArchiveKey = key
		log.Info("Archived raw payload", zap.String("key", key), zap.String("driver", string(s.archive.Driver())))
	}

	if err := s.writer.EnsureRawTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare raw table: %w", err)
	}

	if len(records) == 0 {
		log.Warn("Breed catalog returned no records; nothing loaded")
		info.FinishedAt = s.now()
		return info, nil
	}

	updatedAt := info.StartedAt
	rows := make([]warehouse.RawRow, len(records))
	for i, rec := range records {
		rows[i] = warehouse.RawRow{
			RowID:     int64(i + 1),
			BreedJSON: rec,
			UpdatedAt: updatedAt,
			LoadID:    info.LoadID,
			RowUID:    s.newID(),
		}
	}

	loaded, err := s.writer.AppendRaw(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to load breeds into %s.%s: %w", s.dataset, s.table, err)
	}
	info.RowsLoaded = loaded
	info.FinishedAt = s.now()

	log.Info("Breed extraction completed",
		zap.Int64("rows_loaded", loaded),
		zap.Duration("duration", info.FinishedAt.Sub(info.StartedAt)))
	return info, nil
}

func (s *IngestionService) archivePayload(ctx context.Context, records []json.RawMessage, info *LoadInfo) (string, error) {
	if records == nil {
		records = []json.RawMessage{}
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("failed to encode raw payload: %w", err)
	}
	key := landing.BreedsKey(info.StartedAt, info.LoadID)
	if _, err := s.archive.Put(ctx, key, bytes.NewReader(payload), "application/json"); err != nil {
		return "", fmt.Errorf("failed to archive raw payload to %s: %w", key, err)
	}
	return key, nil
}

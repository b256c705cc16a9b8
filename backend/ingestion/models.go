package ingestion

import "time"

// LoadInfo summarizes one extraction run.
type LoadInfo struct {
	LoadID     string    `json:"load_id"`
	Dataset    string    `json:"dataset"`
	Table      string    `json:"table"`
	RowsLoaded int64     `json:"rows_loaded"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	ArchiveKey string    `json:"archive_key,omitempty"`
}

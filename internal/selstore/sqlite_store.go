// Package selstore persists committed selections using SQLite.
package selstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/thehyve/single-cell-explorer/internal/crossfilter"
	"github.com/thehyve/single-cell-explorer/internal/selection"
	"github.com/thehyve/single-cell-explorer/pkg/rangeenc"
)

// timeLayout has fixed width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Record is one committed or cleared selection.
type Record struct {
	ID        string           `json:"id"`
	DatasetID string           `json:"dataset_id"`
	Layout    string           `json:"layout"`
	Tool      string           `json:"tool"`
	Kind      string           `json:"kind"`
	Shape     json.RawMessage  `json:"shape"`
	Count     int              `json:"count"`
	Indices   []rangeenc.Entry `json:"indices"`
	CreatedAt time.Time        `json:"created_at"`
}

// Store provides persistent storage for selections using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore creates a new SQLite-based selection store.
func NewStore(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS selections (
		selection_id TEXT PRIMARY KEY,
		dataset_id TEXT NOT NULL,
		layout TEXT NOT NULL,
		tool TEXT NOT NULL,
		kind TEXT NOT NULL,
		shape_json TEXT NOT NULL,
		n_selected INTEGER NOT NULL,
		indices_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_selections_dataset ON selections(dataset_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Insert stores a record, assigning an ID and creation time when unset.
func (s *Store) Insert(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Shape == nil {
		rec.Shape = json.RawMessage(`{"type":"none"}`)
	}
	if rec.Indices == nil {
		rec.Indices = []rangeenc.Entry{}
	}
	indicesJSON, err := json.Marshal(rec.Indices)
	if err != nil {
		return fmt.Errorf("failed to marshal indices: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO selections (selection_id, dataset_id, layout, tool, kind, shape_json, n_selected, indices_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.DatasetID,
		rec.Layout,
		rec.Tool,
		rec.Kind,
		string(rec.Shape),
		rec.Count,
		string(indicesJSON),
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	return err
}

// Get retrieves a record by ID. It returns nil when there is none.
func (s *Store) Get(id string) (*Record, error) {
	rows, err := s.db.Query(`
		SELECT selection_id, dataset_id, layout, tool, kind, shape_json, n_selected, indices_json, created_at
		FROM selections WHERE selection_id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

// ListByDataset returns the most recent records of a dataset, newest
// first. A limit of zero or less returns all of them.
func (s *Store) ListByDataset(datasetID string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT selection_id, dataset_id, layout, tool, kind, shape_json, n_selected, indices_json, created_at
		FROM selections WHERE dataset_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, datasetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// DeleteExpired deletes records older than retentionDays.
func (s *Store) DeleteExpired(retentionDays int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(timeLayout)
	res, err := s.db.Exec(`DELETE FROM selections WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes one record.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM selections WHERE selection_id = ?`, id)
	return err
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var out []*Record
	for rows.Next() {
		var rec Record
		var shapeJSON, indicesJSON, createdAtStr string
		if err := rows.Scan(
			&rec.ID,
			&rec.DatasetID,
			&rec.Layout,
			&rec.Tool,
			&rec.Kind,
			&shapeJSON,
			&rec.Count,
			&indicesJSON,
			&createdAtStr,
		); err != nil {
			return nil, err
		}
		rec.Shape = json.RawMessage(shapeJSON)
		if err := json.Unmarshal([]byte(indicesJSON), &rec.Indices); err != nil {
			return nil, fmt.Errorf("failed to unmarshal indices: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(timeLayout, createdAtStr)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Recorder returns a selection listener that stores every commit and
// clear of a dataset, with the selected cells range encoded.
func (s *Store) Recorder(datasetID string, cf *crossfilter.Crossfilter, minRunLength int) func(selection.Event, selection.Shape) {
	return func(ev selection.Event, shape selection.Shape) {
		if ev.Kind != selection.EventCommit && ev.Kind != selection.EventClear {
			return
		}
		shapeJSON, err := selection.MarshalShape(shape)
		if err != nil {
			log.Printf("[SelectionStore] Failed to encode shape: %v", err)
			return
		}
		rec := &Record{
			DatasetID: datasetID,
			Layout:    ev.Layout,
			Tool:      ev.Tool.String(),
			Kind:      ev.Kind.String(),
			Shape:     shapeJSON,
			Count:     cf.CountSelected(),
			Indices:   rangeenc.Encode(cf.SelectedIndices(), minRunLength, true),
		}
		if err := s.Insert(rec); err != nil {
			log.Printf("[SelectionStore] Failed to record selection for %s: %v", datasetID, err)
		}
	}
}

package localstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"sceneflow-backend/internal/models"
)

// Store is the embedded offline backend: one SQLite table keyed by
// aggregate id, value is the serialized full aggregate. Single-writer
// from the client's perspective; SQLite's own atomicity is all the
// locking needed.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS aggregates (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			last_updated TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate local store: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Put(agg models.ProjectAggregate) error {
	data, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("failed to serialize aggregate: %w", err)
	}

	// RFC 3339 sorts lexicographically, so ORDER BY on the column gives
	// recency order.
	lastUpdated := agg.Metadata.LastUpdated.UTC().Format(time.RFC3339Nano)

	_, err = s.db.Exec(`
		INSERT INTO aggregates (id, data, last_updated)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			data = excluded.data,
			last_updated = excluded.last_updated
	`, agg.ID, string(data), lastUpdated)
	if err != nil {
		return fmt.Errorf("failed to put aggregate: %w", err)
	}
	return nil
}

func (s *Store) Get(id string) (*models.ProjectAggregate, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM aggregates WHERE id = $1`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get aggregate: %w", err)
	}

	var agg models.ProjectAggregate
	if err := json.Unmarshal([]byte(data), &agg); err != nil {
		return nil, fmt.Errorf("failed to deserialize aggregate: %w", err)
	}
	return &agg, nil
}

// GetAll returns every stored aggregate, most recently updated first,
// ties broken by id. A corrupt record degrades the whole read to an
// empty result instead of failing it.
func (s *Store) GetAll() ([]models.ProjectAggregate, error) {
	rows, err := s.db.Query(`SELECT data FROM aggregates ORDER BY last_updated DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read aggregates: %w", err)
	}
	defer rows.Close()

	aggs := []models.ProjectAggregate{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return []models.ProjectAggregate{}, nil
		}
		var agg models.ProjectAggregate
		if err := json.Unmarshal([]byte(data), &agg); err != nil {
			return []models.ProjectAggregate{}, nil
		}
		aggs = append(aggs, agg)
	}
	if err := rows.Err(); err != nil {
		return []models.ProjectAggregate{}, nil
	}

	return aggs, nil
}

func (s *Store) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM aggregates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete aggregate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

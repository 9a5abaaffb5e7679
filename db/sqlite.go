package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// PredictionRecord is one audited diagnosis.
type PredictionRecord struct {
	ID            string             `json:"id"`
	Positive      bool               `json:"positive"`
	Probability   float64            `json:"probability"`
	Confidence    float64            `json:"confidence"`
	RiskScore     int                `json:"risk_score"`
	SchemaVersion string             `json:"schema_version"`
	Verified      bool               `json:"verified"`
	Features      map[string]float64 `json:"features"`
	CreatedAt     time.Time          `json:"created_at"`
}

type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the SQLite database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	database.SetMaxOpenConns(1)

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id TEXT PRIMARY KEY,
        positive INTEGER NOT NULL,
        probability REAL NOT NULL,
        confidence REAL NOT NULL,
        risk_score INTEGER NOT NULL,
        schema_version TEXT,
        verified INTEGER NOT NULL,
        features TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) SavePrediction(p PredictionRecord) error {
	if s.db == nil {
		return errors.New("database not initialized")
	}
	if p.ID == "" {
		return errors.New("prediction id required")
	}
	features, err := json.Marshal(p.Features)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
        INSERT INTO predictions (
            id, positive, probability, confidence, risk_score,
            schema_version, verified, features, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		p.ID,
		p.Positive,
		p.Probability,
		p.Confidence,
		p.RiskScore,
		p.SchemaVersion,
		p.Verified,
		string(features),
		p.CreatedAt.UTC(),
	)
	return err
}

// QueryPredictions returns the most recent predictions first.
func (s *Store) QueryPredictions(limit int) ([]PredictionRecord, error) {
	if s.db == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
        SELECT id, positive, probability, confidence, risk_score,
               schema_version, verified, features, created_at
        FROM predictions
        ORDER BY created_at DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PredictionRecord, 0)
	for rows.Next() {
		var p PredictionRecord
		var schemaVersion sql.NullString
		var features string
		if err := rows.Scan(&p.ID, &p.Positive, &p.Probability, &p.Confidence, &p.RiskScore,
			&schemaVersion, &p.Verified, &features, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.SchemaVersion = schemaVersion.String
		if err := json.Unmarshal([]byte(features), &p.Features); err != nil {
			return nil, fmt.Errorf("decode features for %s: %w", p.ID, err)
		}
		records = append(records, p)
	}
	return records, rows.Err()
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mtskcm/iot-service-notifier/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS readings (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	metric TEXT NOT NULL,
	value  REAL NOT NULL,
	unit   TEXT NOT NULL,
	ts     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_readings_metric_ts ON readings(metric, ts);
`

// SQLite is the embedded fallback Store for single-host deployments without
// an InfluxDB instance.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and if needed initializes) a SQLite-backed store at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) WritePoint(ctx context.Context, r models.MetricReading) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO readings (metric, value, unit, ts) VALUES (?, ?, ?, ?)`,
		r.Name, r.Value, r.Unit, r.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("%w: sqlite insert: %v", models.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *SQLite) Query(ctx context.Context, metric string, start, end time.Time) ([]Sample, error) {
	q := `SELECT metric, value, ts FROM readings WHERE ts >= ? AND ts <= ?`
	args := []interface{}{start.UTC(), end.UTC()}
	if metric != "" {
		q += ` AND metric = ?`
		args = append(args, metric)
	}
	q += ` ORDER BY ts ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: sqlite query: %v", models.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var sm Sample
		if err := rows.Scan(&sm.Metric, &sm.Value, &sm.Time); err != nil {
			return nil, fmt.Errorf("%w: sqlite scan: %v", models.ErrStorageUnavailable, err)
		}
		samples = append(samples, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: sqlite rows: %v", models.ErrStorageUnavailable, err)
	}

	return samples, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

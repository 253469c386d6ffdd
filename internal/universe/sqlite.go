package universe

import (
	"database/sql"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3"

	"featlab/internal/domain"
)

// InitDB opens the feature database produced by the extraction pipeline and
// makes sure the expected tables exist. The engine only ever reads from it;
// the schema is created so an empty path still yields a loadable (empty)
// universe in development.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS features (
		id    INTEGER PRIMARY KEY,
		label TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS feature_metrics (
		feature_id INTEGER NOT NULL,
		metric     TEXT NOT NULL,
		value      REAL,
		PRIMARY KEY (feature_id, metric)
	);
	CREATE INDEX IF NOT EXISTS idx_fm_metric ON feature_metrics(metric);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return db, nil
}

// Loader fetches the full feature universe. Fetched once per session and
// re-fetched only on explicit cache invalidation.
type Loader interface {
	Load() (*Universe, error)
}

// SQLiteLoader reads the universe out of the feature database.
type SQLiteLoader struct {
	DB *sql.DB
}

func (l *SQLiteLoader) Load() (*Universe, error) {
	rows, err := l.DB.Query(`SELECT id, label FROM features ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("loading features: %w", err)
	}
	defer rows.Close()

	var features []domain.Feature
	for rows.Next() {
		var f domain.Feature
		if err := rows.Scan(&f.ID, &f.Label); err != nil {
			return nil, fmt.Errorf("scanning feature: %w", err)
		}
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading features: %w", err)
	}

	u := New(features)

	mrows, err := l.DB.Query(`SELECT feature_id, metric, value FROM feature_metrics`)
	if err != nil {
		return nil, fmt.Errorf("loading feature metrics: %w", err)
	}
	defer mrows.Close()

	columns := make(map[string]map[int]float64)
	for mrows.Next() {
		var (
			id     int
			metric string
			value  sql.NullFloat64
		)
		if err := mrows.Scan(&id, &metric, &value); err != nil {
			return nil, fmt.Errorf("scanning feature metric: %w", err)
		}
		// NULL and NaN both mean "no defined value"; such features belong
		// to no bin of this metric.
		if !value.Valid || math.IsNaN(value.Float64) {
			continue
		}
		if _, ok := u.byID[id]; !ok {
			continue
		}
		col, ok := columns[metric]
		if !ok {
			col = make(map[int]float64)
			columns[metric] = col
		}
		col[id] = value.Float64
	}
	if err := mrows.Err(); err != nil {
		return nil, fmt.Errorf("reading feature metrics: %w", err)
	}

	for metric, col := range columns {
		u.SetColumn(metric, col)
	}
	return u, nil
}

// InsertFeatures bulk-inserts feature records. The engine itself never
// writes; this exists for fixtures and for the pipeline's import tool.
func InsertFeatures(db *sql.DB, features []domain.Feature) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO features (id, label) VALUES (?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, f := range features {
		if _, err := stmt.Exec(f.ID, f.Label); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, tx.Commit()
}

// InsertMetricValues bulk-inserts one metric column. NaN is stored as NULL.
func InsertMetricValues(db *sql.DB, metric string, values map[int]*float64) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO feature_metrics (feature_id, metric, value) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for id, v := range values {
		var arg any
		if v != nil && !math.IsNaN(*v) {
			arg = *v
		}
		if _, err := stmt.Exec(id, metric, arg); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, tx.Commit()
}

package universe

import (
	"database/sql"
	"math"
	"path/filepath"
	"testing"

	"featlab/internal/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "features-test.db"))
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func fv(v float64) *float64 { return &v }

func TestSQLiteLoaderRoundTrip(t *testing.T) {
	db := newTestDB(t)

	features := []domain.Feature{
		{ID: 1, Label: "first"},
		{ID: 2, Label: "second"},
		{ID: 3},
	}
	if n, err := InsertFeatures(db, features); err != nil || n != 3 {
		t.Fatalf("InsertFeatures = %d, %v", n, err)
	}
	if _, err := InsertMetricValues(db, "density", map[int]*float64{
		1: fv(0.01), 2: fv(0.8), 3: fv(0.5),
	}); err != nil {
		t.Fatalf("InsertMetricValues failed: %v", err)
	}

	u, err := (&SQLiteLoader{DB: db}).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if u.Size() != 3 {
		t.Fatalf("Size = %d, want 3", u.Size())
	}
	f, ok := u.Feature(2)
	if !ok || f.Label != "second" {
		t.Fatalf("Feature(2) = %+v, %v", f, ok)
	}
	if v, ok := u.Value("density", 2); !ok || v != 0.8 {
		t.Fatalf("Value(density, 2) = %v, %v", v, ok)
	}
}

func TestSQLiteLoaderSkipsNullAndNaN(t *testing.T) {
	db := newTestDB(t)

	if _, err := InsertFeatures(db, []domain.Feature{{ID: 1}, {ID: 2}, {ID: 3}}); err != nil {
		t.Fatalf("InsertFeatures failed: %v", err)
	}
	if _, err := InsertMetricValues(db, "interp", map[int]*float64{
		1: fv(0.5),
		2: nil,
		3: fv(math.NaN()),
	}); err != nil {
		t.Fatalf("InsertMetricValues failed: %v", err)
	}

	u, err := (&SQLiteLoader{DB: db}).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := u.Value("interp", 2); ok {
		t.Fatalf("NULL metric value should read as undefined")
	}
	if _, ok := u.Value("interp", 3); ok {
		t.Fatalf("NaN metric value should read as undefined")
	}
	if len(u.Column("interp")) != 1 {
		t.Fatalf("column size = %d, want 1", len(u.Column("interp")))
	}
}

func TestSQLiteLoaderIgnoresOrphanMetrics(t *testing.T) {
	db := newTestDB(t)

	if _, err := InsertFeatures(db, []domain.Feature{{ID: 1}}); err != nil {
		t.Fatalf("InsertFeatures failed: %v", err)
	}
	// Metric row for a feature id missing from the features table.
	if _, err := InsertMetricValues(db, "m", map[int]*float64{99: fv(0.5)}); err != nil {
		t.Fatalf("InsertMetricValues failed: %v", err)
	}

	u, err := (&SQLiteLoader{DB: db}).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if u.HasMetric("m") {
		t.Fatalf("orphan metric row produced a column")
	}
}

func TestSQLiteLoaderEmptyDB(t *testing.T) {
	db := newTestDB(t)

	u, err := (&SQLiteLoader{DB: db}).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if u.Size() != 0 {
		t.Fatalf("Size = %d, want 0", u.Size())
	}
}

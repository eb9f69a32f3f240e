package migrations_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/yavuzozge/homeseer-dimmers/internal/history"
	"github.com/yavuzozge/homeseer-dimmers/internal/infrastructure/config"
	"github.com/yavuzozge/homeseer-dimmers/internal/infrastructure/database"
	"github.com/yavuzozge/homeseer-dimmers/migrations"
)

func TestSchemaServesRunHistory(t *testing.T) {
	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "dimmersync.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	n, err := db.Migrate(ctx, migrations.FS)
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if n == 0 {
		t.Fatal("no embedded migrations applied")
	}

	repo := history.NewSQLiteRepository(db.DB)
	run := history.Run{
		ID:        "7c1f0d3e-0000-4000-8000-000000000001",
		Kind:      history.KindReconcile,
		Trigger:   "input",
		Result:    history.ResultConverged,
		Attempts:  1,
		Devices:   2,
		Writes:    5,
		StartedAt: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC),
		Elapsed:   1200 * time.Millisecond,
	}
	if err := repo.RecordRun(ctx, run); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	runs, err := repo.ListRuns(ctx, history.KindReconcile, 10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 1 || runs[0].Writes != 5 || runs[0].Elapsed != run.Elapsed {
		t.Errorf("ListRuns() = %+v", runs)
	}

	// The kind CHECK constraint rejects unknown kinds.
	if err := repo.RecordRun(ctx, history.Run{ID: "x", Kind: "bogus", Result: "x"}); err == nil {
		t.Error("RecordRun() accepted an unknown kind")
	}

	if err := db.MigrateDown(ctx, migrations.FS); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
}

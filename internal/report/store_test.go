package report

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const testSchema = `
CREATE TABLE tasks (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    house      TEXT      NOT NULL,
    work_type  TEXT      NOT NULL,
    work_data  TEXT      NOT NULL DEFAULT '',
    report_dir TEXT      NOT NULL UNIQUE,
    status     TEXT      NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);`

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlx.Connect("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return NewStore(db)
}

func TestStorePutAndPending(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	recs := []struct {
		rec Record
		dir string
	}{
		{Record{House: "16", WorkType: "Покраска", Status: StatusPending}, "/r/2024/A/05/report_1"},
		{Record{House: "16", WorkType: "Кровля", Status: StatusDone}, "/r/2024/A/05/report_2"},
		{Record{House: "3", WorkType: "Отмостка", Status: StatusPending}, "/r/2024/B/05/report_1"},
	}
	for _, e := range recs {
		if err := store.Put(ctx, e.rec, e.dir); err != nil {
			t.Fatalf("put %s: %v", e.dir, err)
		}
	}

	pending, err := store.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].ReportDir != "/r/2024/A/05/report_1" || pending[1].ReportDir != "/r/2024/B/05/report_1" {
		t.Fatalf("pending order = %s, %s", pending[0].ReportDir, pending[1].ReportDir)
	}

	p, total, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if p != 2 || total != 3 {
		t.Fatalf("counts = %d/%d, want 2/3", p, total)
	}
}

func TestStorePutIsUpsert(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	rec := Record{House: "16", WorkType: "Покраска", Status: StatusPending}
	if err := store.Put(ctx, rec, "/dir"); err != nil {
		t.Fatal(err)
	}
	rec.Status = StatusDone
	if err := store.Put(ctx, rec, "/dir"); err != nil {
		t.Fatal(err)
	}

	task, err := store.ByDir(ctx, "/dir")
	if err != nil {
		t.Fatalf("by dir: %v", err)
	}
	if task.Status != string(StatusDone) {
		t.Fatalf("status = %s", task.Status)
	}

	_, total, err := store.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Fatalf("total = %d, want 1", total)
	}
}

func TestStoreSetStatus(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	rec := Record{House: "16", WorkType: "Покраска", Status: StatusPending}
	if err := store.Put(ctx, rec, "/dir"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetStatus(ctx, "/dir", StatusDone); err != nil {
		t.Fatalf("set status: %v", err)
	}

	task, err := store.ByDir(ctx, "/dir")
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != string(StatusDone) {
		t.Fatalf("status = %s", task.Status)
	}

	byID, err := store.ByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("by id: %v", err)
	}
	if byID.ReportDir != "/dir" {
		t.Fatalf("by id dir = %s", byID.ReportDir)
	}

	if err := store.SetStatus(ctx, "/absent", StatusDone); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("err = %v, want ErrTaskNotFound", err)
	}
	if _, err := store.ByID(ctx, 9999); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestStoreReconcile(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	root := t.TempDir()

	seedTask(t, root, "2024/A/05/report_1", Record{House: "16", WorkType: "Покраска", Status: StatusPending})
	seedTask(t, root, "2024/A/05/report_2", Record{House: "16", WorkType: "Кровля", Status: StatusDone})

	scanned, err := ScanAll(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Reconcile(ctx, scanned); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	pending, total := 0, 0
	if pending, total, err = store.Counts(ctx); err != nil {
		t.Fatal(err)
	}
	if pending != 1 || total != 2 {
		t.Fatalf("counts = %d/%d, want 1/2", pending, total)
	}

	// Reconciling again must not duplicate rows.
	if err := store.Reconcile(ctx, scanned); err != nil {
		t.Fatal(err)
	}
	if _, total, err = store.Counts(ctx); err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Fatalf("total after second reconcile = %d, want 2", total)
	}
}

package worker

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlx.Connect("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE workers (
		telegram_id INTEGER PRIMARY KEY,
		phone       TEXT NOT NULL DEFAULT '',
		full_name   TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	);`); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return NewStore(db)
}

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	known, err := store.Known(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if known {
		t.Fatal("fresh store must not know the worker")
	}

	w := Worker{TelegramID: 7, Phone: "+7 900 000-00-00", FullName: "Иванов Иван"}
	if err := store.Save(ctx, w); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Phone != w.Phone || got.FullName != w.FullName {
		t.Fatalf("got = %+v", got)
	}

	// Saving again refreshes the row instead of duplicating it.
	w.FullName = "Иванов И. И."
	if err := store.Save(ctx, w); err != nil {
		t.Fatal(err)
	}
	got, err = store.Get(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if got.FullName != "Иванов И. И." {
		t.Fatalf("full name = %q", got.FullName)
	}
}

func TestGetUnknown(t *testing.T) {
	store := testStore(t)
	if _, err := store.Get(context.Background(), 404); err == nil {
		t.Fatal("expected error for unknown worker")
	}
}

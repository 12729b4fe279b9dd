package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var testRecord = Record{
	House:    "16",
	WorkType: "Покраска фасада",
	WorkData: "краска, кисти",
	Status:   StatusPending,
}

func TestRecordRoundTrip(t *testing.T) {
	dir := t.TempDir()
	if err := WriteRecord(dir, testRecord); err != nil {
		t.Fatalf("write: %v", err)
	}

	rec, err := ReadRecord(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rec != testRecord {
		t.Fatalf("read = %+v, want %+v", rec, testRecord)
	}
	if !rec.Pending() {
		t.Fatal("fresh record must be pending")
	}
}

func TestSetStatusTouchesOnlyStatusLine(t *testing.T) {
	dir := t.TempDir()
	if err := WriteRecord(dir, testRecord); err != nil {
		t.Fatalf("write: %v", err)
	}
	before, err := os.ReadFile(filepath.Join(dir, RecordFileName))
	if err != nil {
		t.Fatal(err)
	}

	if err := SetStatus(dir, StatusDone); err != nil {
		t.Fatalf("set status: %v", err)
	}
	after, err := os.ReadFile(filepath.Join(dir, RecordFileName))
	if err != nil {
		t.Fatal(err)
	}

	beforeLines := strings.Split(string(before), "\n")
	afterLines := strings.Split(string(after), "\n")
	if len(beforeLines) != len(afterLines) {
		t.Fatalf("line count changed: %d -> %d", len(beforeLines), len(afterLines))
	}
	for i := range beforeLines {
		if strings.HasPrefix(beforeLines[i], "Статус: ") {
			if afterLines[i] != "Статус: выполнено" {
				t.Fatalf("status line = %q", afterLines[i])
			}
			continue
		}
		if beforeLines[i] != afterLines[i] {
			t.Fatalf("line %d changed: %q -> %q", i, beforeLines[i], afterLines[i])
		}
	}

	rec, err := ReadRecord(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rec.Pending() {
		t.Fatal("record must be done")
	}
}

func TestSetStatusReaffirmIsNoOp(t *testing.T) {
	dir := t.TempDir()
	if err := WriteRecord(dir, testRecord); err != nil {
		t.Fatalf("write: %v", err)
	}
	before, _ := os.ReadFile(filepath.Join(dir, RecordFileName))

	if err := SetStatus(dir, StatusPending); err != nil {
		t.Fatalf("re-affirm: %v", err)
	}
	after, _ := os.ReadFile(filepath.Join(dir, RecordFileName))
	if string(before) != string(after) {
		t.Fatalf("re-affirming pending changed the file:\n%q\n%q", before, after)
	}
}

func TestReadRecordMissing(t *testing.T) {
	_, err := ReadRecord(t.TempDir())
	if !errors.Is(err, ErrNoRecord) {
		t.Fatalf("err = %v, want ErrNoRecord", err)
	}
	if err := SetStatus(t.TempDir(), StatusDone); !errors.Is(err, ErrNoRecord) {
		t.Fatalf("set status err = %v, want ErrNoRecord", err)
	}
}

func TestReadRecordMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, RecordFileName), []byte("junk\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadRecord(dir); err == nil {
		t.Fatal("expected error for malformed record")
	}
}

func TestPhotoLegacyFallback(t *testing.T) {
	dir := t.TempDir()

	path, ok := PhotoBeforePath(dir)
	if ok {
		t.Fatal("no photo yet")
	}
	if path != filepath.Join(dir, PhotoBeforeName) {
		t.Fatalf("canonical path = %s", path)
	}

	legacy := filepath.Join(dir, "до.jpg")
	if err := os.WriteFile(legacy, []byte("jpg"), 0o644); err != nil {
		t.Fatal(err)
	}
	path, ok = PhotoBeforePath(dir)
	if !ok || path != legacy {
		t.Fatalf("legacy fallback = %s, %v", path, ok)
	}

	canonical := filepath.Join(dir, PhotoBeforeName)
	if err := os.WriteFile(canonical, []byte("jpg"), 0o644); err != nil {
		t.Fatal(err)
	}
	path, ok = PhotoBeforePath(dir)
	if !ok || path != canonical {
		t.Fatalf("canonical must win over legacy: %s, %v", path, ok)
	}
}

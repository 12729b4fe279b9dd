package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fixedClock(t *testing.T) func() time.Time {
	t.Helper()
	ts := time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return ts }
}

func TestAllocateSequential(t *testing.T) {
	root := t.TempDir()
	alloc := NewAllocator(root).WithClock(fixedClock(t))

	const address = "Ufa, Bekhtereva St., h. 16"
	first, err := alloc.Allocate(address)
	if err != nil {
		t.Fatalf("first allocate: %v", err)
	}
	second, err := alloc.Allocate(address)
	if err != nil {
		t.Fatalf("second allocate: %v", err)
	}

	wantFirst := filepath.Join(root, "2024", address, "05", "report_1")
	wantSecond := filepath.Join(root, "2024", address, "05", "report_2")
	if first != wantFirst {
		t.Fatalf("first = %s, want %s", first, wantFirst)
	}
	if second != wantSecond {
		t.Fatalf("second = %s, want %s", second, wantSecond)
	}
	for _, dir := range []string{first, second} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("allocated dir %s missing: %v", dir, err)
		}
	}
}

func TestAllocateSkipsExisting(t *testing.T) {
	root := t.TempDir()
	alloc := NewAllocator(root).WithClock(fixedClock(t))

	base := filepath.Join(root, "2024", "X", "05")
	if err := os.MkdirAll(filepath.Join(base, "report_1"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(base, "report_2"), 0o755); err != nil {
		t.Fatal(err)
	}

	dir, err := alloc.Allocate("X")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if want := filepath.Join(base, "report_3"); dir != want {
		t.Fatalf("dir = %s, want %s", dir, want)
	}
}

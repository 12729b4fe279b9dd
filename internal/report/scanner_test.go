package report

import (
	"os"
	"path/filepath"
	"testing"
)

func seedTask(t *testing.T, root, rel string, rec Record) string {
	t.Helper()
	dir := filepath.Join(root, rel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := WriteRecord(dir, rec); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestScanReturnsOnlyPending(t *testing.T) {
	root := t.TempDir()

	p1 := seedTask(t, root, "2024/Addr A/05/report_1", Record{House: "16", WorkType: "Покраска", Status: StatusPending})
	seedTask(t, root, "2024/Addr A/05/report_2", Record{House: "16", WorkType: "Кровля", Status: StatusDone})
	p2 := seedTask(t, root, "2024/Addr B/06/report_1", Record{House: "3", WorkType: "Отмостка", Status: StatusPending})

	// Malformed record, must be skipped without failing the scan.
	badDir := filepath.Join(root, "2024/Addr C/07/report_1")
	if err := os.MkdirAll(badDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(badDir, RecordFileName), []byte("garbage\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	pending, err := Scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d tasks, want 2", len(pending))
	}
	// WalkDir is lexicographic, so Addr A comes before Addr B.
	if pending[0].Dir != p1 || pending[0].House != "16" || pending[0].WorkType != "Покраска" {
		t.Fatalf("pending[0] = %+v", pending[0])
	}
	if pending[1].Dir != p2 || pending[1].House != "3" {
		t.Fatalf("pending[1] = %+v", pending[1])
	}
}

func TestScanAllIncludesDone(t *testing.T) {
	root := t.TempDir()
	seedTask(t, root, "2024/A/05/report_1", Record{House: "1", WorkType: "W", Status: StatusPending})
	seedTask(t, root, "2024/A/05/report_2", Record{House: "1", WorkType: "W", Status: StatusDone})

	all, err := ScanAll(root)
	if err != nil {
		t.Fatalf("scan all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all = %d tasks, want 2", len(all))
	}
}

func TestScanMissingRoot(t *testing.T) {
	pending, err := Scan(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending = %v, want empty", pending)
	}
}

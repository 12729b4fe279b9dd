package render

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nusakov/remontbot/internal/report"
)

func TestRenderMissingBeforePhoto(t *testing.T) {
	r := New("testdata/absent.ttf")
	rec := report.Record{House: "16", WorkType: "Покраска", Status: report.StatusDone}

	_, err := r.Render(t.TempDir(), rec)
	if !errors.Is(err, ErrMissingArtifact) {
		t.Fatalf("err = %v, want ErrMissingArtifact", err)
	}
}

func TestRenderDoneRequiresAfterPhoto(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, report.PhotoBeforeName), []byte("jpg"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New("testdata/absent.ttf")
	rec := report.Record{House: "16", WorkType: "Покраска", Status: report.StatusDone}

	_, err := r.Render(dir, rec)
	if !errors.Is(err, ErrMissingArtifact) {
		t.Fatalf("err = %v, want ErrMissingArtifact", err)
	}
}

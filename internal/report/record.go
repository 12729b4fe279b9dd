// Package report owns the on-disk report tree: directory allocation, the
// plain-text task record inside each report folder, the tree scanner, and the
// sqlite task index that accelerates pending-task queries.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Status is the task completion marker persisted in the record file.
type Status string

const (
	// StatusPending marks work that still waits for its after-photo.
	StatusPending Status = "не выполнено"
	// StatusDone marks completed work.
	StatusDone Status = "выполнено"
)

// Record file layout, byte-compatible with the existing archive.
const (
	RecordFileName = "report.txt"

	labelHouse  = "Номер дома: "
	labelWork   = "Тип работ: "
	labelData   = "Данные: "
	labelStatus = "Статус: "
)

// Photo file names inside a report directory. Legacy archives used Cyrillic
// names; readers fall back to them, writers always use the Latin ones.
const (
	PhotoBeforeName       = "before.jpg"
	PhotoAfterName        = "after.jpg"
	legacyPhotoBeforeName = "до.jpg"
	legacyPhotoAfterName  = "после.jpg"
)

// ErrNoRecord is returned when a report directory has no record file.
var ErrNoRecord = errors.New("report: record file not found")

// Record is one task record: the persisted state of a unit of work tied to a
// report folder. Records are created Pending, flipped to Done, never deleted.
type Record struct {
	House    string
	WorkType string
	WorkData string
	Status   Status
}

// Pending reports whether the record still waits for its after-photo.
func (r Record) Pending() bool {
	return r.Status == StatusPending
}

// WriteRecord persists the record atomically: the content is written to a
// temp file in the same directory and renamed over the record file, so a
// crash mid-write never leaves a truncated record.
func WriteRecord(dir string, rec Record) error {
	var b strings.Builder
	b.WriteString(labelHouse + rec.House + "\n")
	b.WriteString(labelWork + rec.WorkType + "\n")
	b.WriteString(labelData + rec.WorkData + "\n")
	b.WriteString(labelStatus + string(rec.Status) + "\n")
	return replaceFile(filepath.Join(dir, RecordFileName), []byte(b.String()))
}

// ReadRecord parses the record file of a report directory.
func ReadRecord(dir string) (Record, error) {
	path := filepath.Join(dir, RecordFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, fmt.Errorf("%w: %s", ErrNoRecord, dir)
		}
		return Record{}, fmt.Errorf("report: read record %s: %w", path, err)
	}

	var rec Record
	var haveHouse, haveWork, haveStatus bool
	for _, line := range strings.Split(string(data), "\n") {
		switch {
		case strings.HasPrefix(line, labelHouse):
			rec.House = strings.TrimSpace(strings.TrimPrefix(line, labelHouse))
			haveHouse = true
		case strings.HasPrefix(line, labelWork):
			rec.WorkType = strings.TrimSpace(strings.TrimPrefix(line, labelWork))
			haveWork = true
		case strings.HasPrefix(line, labelData):
			rec.WorkData = strings.TrimSpace(strings.TrimPrefix(line, labelData))
		case strings.HasPrefix(line, labelStatus):
			rec.Status = Status(strings.TrimSpace(strings.TrimPrefix(line, labelStatus)))
			haveStatus = true
		}
	}
	if !haveHouse || !haveWork || !haveStatus {
		return Record{}, fmt.Errorf("report: malformed record %s", path)
	}
	return rec, nil
}

// SetStatus rewrites only the status line of the record file; every other
// line stays byte-identical. Re-affirming the current status is a valid
// no-op. The replacement is atomic.
func SetStatus(dir string, status Status) error {
	path := filepath.Join(dir, RecordFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNoRecord, dir)
		}
		return fmt.Errorf("report: read record %s: %w", path, err)
	}

	lines := strings.Split(string(data), "\n")
	found := false
	for i, line := range lines {
		if strings.HasPrefix(line, labelStatus) {
			lines[i] = labelStatus + string(status)
			found = true
		}
	}
	if !found {
		return fmt.Errorf("report: record %s has no status line", path)
	}
	return replaceFile(path, []byte(strings.Join(lines, "\n")))
}

// PhotoBefore returns the canonical write path for the before photo.
func PhotoBefore(dir string) string {
	return filepath.Join(dir, PhotoBeforeName)
}

// PhotoAfter returns the canonical write path for the after photo.
func PhotoAfter(dir string) string {
	return filepath.Join(dir, PhotoAfterName)
}

// PhotoBeforePath resolves the before-photo inside a report directory,
// falling back to the legacy Cyrillic file name. The boolean reports whether
// the file exists.
func PhotoBeforePath(dir string) (string, bool) {
	return resolvePhoto(dir, PhotoBeforeName, legacyPhotoBeforeName)
}

// PhotoAfterPath resolves the after-photo inside a report directory.
func PhotoAfterPath(dir string) (string, bool) {
	return resolvePhoto(dir, PhotoAfterName, legacyPhotoAfterName)
}

func resolvePhoto(dir, name, legacyName string) (string, bool) {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		return path, true
	}
	legacy := filepath.Join(dir, legacyName)
	if _, err := os.Stat(legacy); err == nil {
		return legacy, true
	}
	return path, false
}

func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".record-*")
	if err != nil {
		return fmt.Errorf("report: create temp record: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("report: write temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("report: close temp record: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("report: replace record %s: %w", path, err)
	}
	return nil
}

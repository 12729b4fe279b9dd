package report

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nusakov/remontbot/core/logger"
	"log/slog"
)

// PendingTask is one incomplete unit of work found in the report tree.
type PendingTask struct {
	House    string
	WorkType string
	WorkData string
	Dir      string
}

// ScannedTask is any task record found in the tree, regardless of status.
// The startup reconciler feeds these into the index.
type ScannedTask struct {
	Record
	Dir string
}

// Scan walks the report tree and returns every record still marked pending.
// Traversal is lexicographic by path (filepath.WalkDir's order), which makes
// the result deterministic. Malformed or unreadable records are logged and
// skipped; partial results are always returned. A missing root is an empty
// result, not an error.
func Scan(root string) ([]PendingTask, error) {
	all, err := ScanAll(root)
	if err != nil {
		return nil, err
	}
	var pending []PendingTask
	for _, t := range all {
		if t.Pending() {
			pending = append(pending, PendingTask{
				House:    t.House,
				WorkType: t.WorkType,
				WorkData: t.WorkData,
				Dir:      t.Dir,
			})
		}
	}
	return pending, nil
}

// ScanAll walks the report tree and returns every parseable task record.
func ScanAll(root string) ([]ScannedTask, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}

	var tasks []ScannedTask
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.SVCReports.Warn("scan step failed",
				slog.String("event", "reports.scan"),
				slog.String("path", path),
				slog.String("err", err.Error()),
			)
			return nil
		}
		if d.IsDir() || d.Name() != RecordFileName {
			return nil
		}
		dir := filepath.Dir(path)
		rec, readErr := ReadRecord(dir)
		if readErr != nil {
			logger.SVCReports.Warn("record skipped",
				slog.String("event", "reports.scan"),
				slog.String("path", path),
				slog.String("err", readErr.Error()),
			)
			return nil
		}
		tasks = append(tasks, ScannedTask{Record: rec, Dir: dir})
		return nil
	})
	if walkErr != nil {
		return tasks, walkErr
	}

	logger.SVCReports.Debug("tree scanned",
		slog.String("event", "reports.scan"),
		slog.String("path", root),
		slog.Int("tasks", len(tasks)),
	)
	return tasks, nil
}

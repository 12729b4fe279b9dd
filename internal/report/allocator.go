package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nusakov/remontbot/core/logger"
	"log/slog"
)

// Allocator hands out fresh report directories under
// <root>/<YYYY>/<address>/<MM>/report_<n>.
type Allocator struct {
	root string
	now  func() time.Time
}

// NewAllocator builds an allocator rooted at the reports directory.
func NewAllocator(root string) *Allocator {
	return &Allocator{root: root, now: time.Now}
}

// WithClock overrides the clock; used by tests to pin year and month.
func (a *Allocator) WithClock(now func() time.Time) *Allocator {
	a.now = now
	return a
}

// Root returns the reports tree root.
func (a *Allocator) Root() string {
	return a.root
}

// Allocate creates and returns the first report_<n> directory that does not
// exist for the given address in the current year/month. The final component
// is created exclusively, so a concurrent allocation for the same address
// collides on EEXIST and simply advances to the next n.
func (a *Allocator) Allocate(address string) (string, error) {
	now := a.now()
	base := filepath.Join(a.root, now.Format("2006"), address, now.Format("01"))
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("report: create base dir %s: %w", base, err)
	}

	for n := 1; ; n++ {
		dir := filepath.Join(base, fmt.Sprintf("report_%d", n))
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			logger.SVCReports.Info("report directory allocated",
				slog.String("event", "reports.allocate"),
				slog.String("address", address),
				slog.String("report_dir", dir),
			)
			return dir, nil
		}
		if os.IsExist(err) {
			continue
		}
		return "", fmt.Errorf("report: create report dir %s: %w", dir, err)
	}
}

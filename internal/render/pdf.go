// Package render produces the printable PDF summary of a finished (or
// still pending) maintenance task from the artifacts in its report folder.
package render

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/nusakov/remontbot/core/logger"
	"github.com/nusakov/remontbot/internal/report"
)

// PDFName is the file produced inside a report folder.
const PDFName = "report.pdf"

// ErrMissingArtifact is returned when a report folder lacks the photos its
// record status requires.
var ErrMissingArtifact = errors.New("render: required photo missing")

const (
	fontFamily = "DejaVu"
	pageTitle  = "Отчёт о выполненных работах"

	photoY     = 50.0
	photoW     = 90.0
	beforeX    = 10.0
	afterX     = 110.0
	labelH     = 8.0
	titleSize  = 16.0
	bodySize   = 12.0
	noteAfterY = 150.0
)

// Renderer builds report PDFs. FontPath must point to a TTF with Cyrillic
// coverage; fpdf's builtin core fonts cannot encode the record text.
type Renderer struct {
	fontPath string
	now      func() time.Time
}

// New returns a Renderer using the given TTF font file.
func New(fontPath string) *Renderer {
	return &Renderer{fontPath: fontPath, now: time.Now}
}

// WithClock overrides the timestamp source, for tests.
func (r *Renderer) WithClock(now func() time.Time) *Renderer {
	r.now = now
	return r
}

// Render writes report.pdf into dir from its record and photos and returns
// the PDF path. A pending task renders with the before photo only; a done
// task requires both photos and fails with ErrMissingArtifact otherwise.
func (r *Renderer) Render(dir string, rec report.Record) (string, error) {
	before, haveBefore := report.PhotoBeforePath(dir)
	after, haveAfter := report.PhotoAfterPath(dir)
	if !haveBefore {
		return "", fmt.Errorf("%w: %s", ErrMissingArtifact, filepath.Join(dir, report.PhotoBeforeName))
	}
	if !rec.Pending() && !haveAfter {
		return "", fmt.Errorf("%w: %s", ErrMissingArtifact, filepath.Join(dir, report.PhotoAfterName))
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddUTF8Font(fontFamily, "", r.fontPath)
	pdf.AddPage()

	pdf.SetFont(fontFamily, "", titleSize)
	pdf.CellFormat(0, labelH+2, pageTitle, "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont(fontFamily, "", bodySize)
	lines := []string{
		"Номер дома: " + rec.House,
		"Тип работ: " + rec.WorkType,
		"Статус: " + string(rec.Status),
		"Дата: " + r.now().Format("02.01.2006 15:04"),
	}
	if rec.WorkData != "" {
		lines = append(lines[:2], append([]string{"Данные: " + rec.WorkData}, lines[2:]...)...)
	}
	for _, line := range lines {
		pdf.CellFormat(0, labelH, line, "", 1, "L", false, 0, "")
	}

	opts := fpdf.ImageOptions{ImageType: "JPG", ReadDpi: true}
	pdf.ImageOptions(before, beforeX, photoY, photoW, 0, false, opts, 0, "")
	if haveAfter {
		pdf.ImageOptions(after, afterX, photoY, photoW, 0, false, opts, 0, "")
	} else {
		pdf.SetXY(afterX, noteAfterY)
		pdf.CellFormat(photoW, labelH, "Фото после: работа не завершена", "", 1, "L", false, 0, "")
	}
	if err := pdf.Error(); err != nil {
		return "", fmt.Errorf("render: build pdf for %s: %w", dir, err)
	}

	out := filepath.Join(dir, PDFName)
	tmp := out + ".tmp"
	if err := pdf.OutputFileAndClose(tmp); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("render: write pdf %s: %w", out, err)
	}
	if err := os.Rename(tmp, out); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("render: write pdf %s: %w", out, err)
	}

	logger.SVCRender.Info("report rendered",
		slog.String("event", "render.pdf"),
		slog.String("house", rec.House),
		slog.String("work_type", rec.WorkType),
		slog.String("path", out),
	)
	return out, nil
}

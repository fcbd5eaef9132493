// Package pdfreader opens stored receipt documents with MuPDF to confirm what was written.
package pdfreader

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// Report describes a rendered document as read back from storage
type Report struct {
	PageCount int
	Pages     []string // extracted text per page
}

// Text joins all page text
func (r *Report) Text() string {
	return strings.Join(r.Pages, "\n")
}

// Contains reports whether every needle appears in the extracted text
func (r *Report) Contains(needles ...string) bool {
	text := r.Text()
	for _, n := range needles {
		if !strings.Contains(text, n) {
			return false
		}
	}
	return true
}

// Reader reads PDF documents
type Reader struct {
	logger *zap.Logger
}

// NewReader creates a new Reader
func NewReader(logger *zap.Logger) *Reader {
	return &Reader{logger: logger}
}

// Inspect extracts page count and text from PDF bytes
func (r *Reader) Inspect(data []byte) (*Report, error) {
	doc, err := open(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	return r.report(doc)
}

// Thumbnail renders the first page of the PDF as JPEG
func (r *Reader) Thumbnail(data []byte) ([]byte, error) {
	doc, err := open(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("failed to render first page: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

func open(data []byte) (*fitz.Document, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, fmt.Errorf("not a PDF document")
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return doc, nil
}

func (r *Reader) report(doc *fitz.Document) (*Report, error) {
	rep := &Report{PageCount: doc.NumPage()}
	for page := 0; page < rep.PageCount; page++ {
		text, err := doc.Text(page)
		if err != nil {
			r.logger.Warn("Failed to extract page text", zap.Int("page", page), zap.Error(err))
			return nil, fmt.Errorf("failed to extract text of page %d: %w", page+1, err)
		}
		rep.Pages = append(rep.Pages, text)
	}

	r.logger.Debug("Inspected PDF", zap.Int("page_count", rep.PageCount))
	return rep, nil
}

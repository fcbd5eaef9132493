package document

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/clinic-receipts/internal/domain/apperr"
	"github.com/garyjia/clinic-receipts/internal/domain/entity"
)

var stamp = time.Date(2025, 10, 16, 0, 0, 0, 0, time.UTC)

func writeLogo(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.RGBA{R: 20, G: 120, B: 200, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "logo.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestPDFWriter_Write(t *testing.T) {
	l := BuildLayout(layoutReceipt(), testClinic, testPatient, layoutOptions())

	out, err := NewPDFWriter(stamp).Write(l)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Contains(t, string(out[len(out)-16:]), "%EOF")
}

func TestPDFWriter_WithLogo(t *testing.T) {
	clinic := testClinic
	clinic.LogoPath = writeLogo(t)
	l := BuildLayout(layoutReceipt(), clinic, testPatient, layoutOptions())

	out, err := NewPDFWriter(stamp).Write(l)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestPDFWriter_MissingLogo(t *testing.T) {
	clinic := testClinic
	clinic.LogoPath = filepath.Join(t.TempDir(), "missing.png")
	r := layoutReceipt()
	snapshot := r.Clone()

	_, err := NewPDFWriter(stamp).Write(BuildLayout(r, clinic, testPatient, layoutOptions()))
	assert.ErrorIs(t, err, apperr.ErrRender)
	assert.Equal(t, snapshot, r)
}

func TestPDFWriter_UnsupportedLogo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logo.bmp")
	require.NoError(t, os.WriteFile(path, []byte("BM"), 0644))
	clinic := testClinic
	clinic.LogoPath = path

	_, err := NewPDFWriter(stamp).Write(BuildLayout(layoutReceipt(), clinic, testPatient, layoutOptions()))
	assert.ErrorIs(t, err, apperr.ErrRender)
}

func TestPDFWriter_ManyItemsPaginate(t *testing.T) {
	r := layoutReceipt()
	r.Items = nil
	for i := 0; i < 80; i++ {
		r.Items = append(r.Items, entity.LineItem{
			ID:          int64(i + 1),
			Description: fmt.Sprintf("Treatment %02d with a fairly long description that wraps across the description column", i+1),
			UnitPrice:   d("10.00"),
			Quantity:    1,
		})
	}
	short := BuildLayout(layoutReceipt(), testClinic, testPatient, layoutOptions())
	long := BuildLayout(r, testClinic, testPatient, layoutOptions())

	a, err := NewPDFWriter(stamp).Write(short)
	require.NoError(t, err)
	b, err := NewPDFWriter(stamp).Write(long)
	require.NoError(t, err)

	assert.Greater(t, bytes.Count(b, []byte("/Type /Page")), bytes.Count(a, []byte("/Type /Page")))
}

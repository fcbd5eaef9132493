package document

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/garyjia/clinic-receipts/internal/domain/apperr"
)

const (
	pageMargin  = 18.0
	lineHeight  = 5.0
	rowPadding  = 1.5
	logoMaxW    = 52.0
	logoMaxH    = 30.0
	footerSpace = 14.0
)

// item table column ratios: description, qty, unit price, amount
var itemColumns = [4]float64{0.50, 0.12, 0.18, 0.20}

// progress table column ratios
var progressColumns = [5]float64{0.08, 0.20, 0.28, 0.22, 0.22}

// PDFWriter encodes a Layout as an A4 PDF
type PDFWriter struct {
	// Stamp is written as the document creation date so repeated renders match
	Stamp time.Time
}

// NewPDFWriter creates a writer stamping documents with the given time
func NewPDFWriter(stamp time.Time) *PDFWriter {
	return &PDFWriter{Stamp: stamp.UTC()}
}

// Write renders l and returns the PDF bytes. A configured logo that cannot be read is a render error.
func (w *PDFWriter) Write(l *Layout) ([]byte, error) {
	if l.Clinic.LogoPath != "" {
		if err := checkLogo(l.Clinic.LogoPath); err != nil {
			return nil, err
		}
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(w.Stamp)
	pdf.SetCatalogSort(true)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin+footerSpace)
	pdf.SetTitle(l.Title, true)
	pdf.SetAuthor(l.Clinic.Name, true)
	pdf.SetCreator("clinic-receipts", true)
	pdf.AliasNbPages("")

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-(pageMargin + 4))
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, lineHeight, tr(l.Footer)+"    Page "+strconv.Itoa(pdf.PageNo())+"/{nb}", "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	r := &pageRenderer{pdf: pdf, tr: tr}
	r.header(l)
	r.title(l.Title)
	r.parties(l)
	r.items(l.Items)
	r.totals(l.Totals)
	if len(l.Current) > 0 {
		r.totals(l.Current)
	}
	r.payments(l)
	r.notes(l.Notes)

	if err := pdf.Error(); err != nil {
		return nil, apperr.Render("render_document", "pdf layout failed", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, apperr.Render("render_document", "pdf encoding failed", err)
	}
	return buf.Bytes(), nil
}

func checkLogo(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return apperr.Render("render_document", "logo "+path+" is not readable", err)
	}
	if info.IsDir() {
		return apperr.Render("render_document", "logo "+path+" is a directory", nil)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return nil
	default:
		return apperr.Render("render_document", "logo "+path+" must be png, jpg or gif", nil)
	}
}

type pageRenderer struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func (p *pageRenderer) contentWidth() float64 {
	w, _ := p.pdf.GetPageSize()
	left, _, right, _ := p.pdf.GetMargins()
	return w - left - right
}

func (p *pageRenderer) ensureSpace(h float64) bool {
	_, pageH := p.pdf.GetPageSize()
	if p.pdf.GetY()+h > pageH-pageMargin-footerSpace {
		p.pdf.AddPage()
		return true
	}
	return false
}

func (p *pageRenderer) header(l *Layout) {
	pdf := p.pdf
	left, top, _, _ := pdf.GetMargins()
	textX := left
	bottom := top

	if l.Clinic.LogoPath != "" {
		info := pdf.RegisterImageOptions(l.Clinic.LogoPath, gofpdf.ImageOptions{ReadDpi: true})
		if info != nil {
			iw, ih := info.Extent()
			scale := 1.0
			if iw > 0 && ih > 0 {
				scale = minFloat(logoMaxW/iw, logoMaxH/ih, 1.0)
			}
			dw, dh := iw*scale, ih*scale
			pdf.ImageOptions(l.Clinic.LogoPath, left, top, dw, dh, false, gofpdf.ImageOptions{ReadDpi: true}, 0, "")
			textX = left + dw + 4
			bottom = top + dh
		}
	}

	textW := p.contentWidth() - (textX - left)
	pdf.SetXY(textX, top)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(textW, 7, p.tr(l.Clinic.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range l.Clinic.Lines {
		for _, wrapped := range pdf.SplitLines([]byte(p.tr(line)), textW) {
			pdf.SetX(textX)
			pdf.CellFormat(textW, lineHeight, string(wrapped), "", 1, "L", false, 0, "")
		}
	}
	if y := pdf.GetY(); y > bottom {
		bottom = y
	}
	pdf.SetXY(left, bottom+4)
}

func (p *pageRenderer) title(title string) {
	pdf := p.pdf
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 9, p.tr(title), "", 1, "C", false, 0, "")
	left, _, _, _ := pdf.GetMargins()
	y := pdf.GetY() + 1
	pdf.Line(left, y, left+p.contentWidth(), y)
	pdf.Ln(5)
}

func (p *pageRenderer) parties(l *Layout) {
	pdf := p.pdf
	left, _, _, _ := pdf.GetMargins()
	colW := (p.contentWidth() - 6) / 2
	top := pdf.GetY()

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(colW, 6, "Received from", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range l.Patient {
		pdf.CellFormat(colW, lineHeight, p.tr(line), "", 1, "L", false, 0, "")
	}
	patientBottom := pdf.GetY()

	pdf.SetXY(left+colW+6, top)
	for _, line := range l.Meta {
		pdf.SetX(left + colW + 6)
		pdf.CellFormat(colW, lineHeight, p.tr(line), "", 1, "L", false, 0, "")
	}
	bottom := pdf.GetY()
	if patientBottom > bottom {
		bottom = patientBottom
	}
	pdf.SetXY(left, bottom+6)
}

func (p *pageRenderer) itemHeader(widths []float64) {
	pdf := p.pdf
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range ItemHeaders {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 7, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
}

func (p *pageRenderer) items(rows []ItemRow) {
	pdf := p.pdf
	widths := columnWidths(itemColumns[:], p.contentWidth())
	p.itemHeader(widths)

	for _, row := range rows {
		text := row.Description
		if row.Remark != "" {
			text += "\n" + row.Remark
		}
		var lines [][]byte
		for _, segment := range strings.Split(p.tr(text), "\n") {
			lines = append(lines, pdf.SplitLines([]byte(segment), widths[0]-2)...)
		}
		if len(lines) == 0 {
			lines = [][]byte{{}}
		}
		h := float64(len(lines))*lineHeight + 2*rowPadding

		if p.ensureSpace(h) {
			p.itemHeader(widths)
		}
		x, y := pdf.GetXY()
		pdf.Rect(x, y, widths[0], h, "D")
		for i, line := range lines {
			pdf.SetXY(x+1, y+rowPadding+float64(i)*lineHeight)
			pdf.CellFormat(widths[0]-2, lineHeight, string(line), "", 0, "L", false, 0, "")
		}
		cx := x + widths[0]
		for i, val := range []string{row.Quantity, row.UnitPrice, row.Amount} {
			pdf.SetXY(cx, y)
			pdf.CellFormat(widths[i+1], h, p.tr(val), "1", 0, "R", false, 0, "")
			cx += widths[i+1]
		}
		pdf.SetXY(x, y+h)
	}
	pdf.Ln(4)
}

func (p *pageRenderer) amountRows(rows []AmountRow, labelW, amountW, indent float64) {
	pdf := p.pdf
	left, _, _, _ := pdf.GetMargins()
	for _, row := range rows {
		p.ensureSpace(6)
		style := ""
		if row.Strong {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.SetX(left + indent)
		pdf.CellFormat(labelW, 6, p.tr(row.Label), "", 0, "L", false, 0, "")
		pdf.CellFormat(amountW, 6, p.tr(row.Amount), "", 1, "R", false, 0, "")
	}
}

func (p *pageRenderer) totals(rows []AmountRow) {
	width := p.contentWidth()
	summaryW := width * 0.42
	p.amountRows(rows, summaryW*0.5, summaryW*0.5, width-summaryW)
	p.pdf.Ln(3)
}

func (p *pageRenderer) section(title string) {
	p.ensureSpace(14)
	p.pdf.SetFont("Helvetica", "B", 11)
	p.pdf.CellFormat(0, 7, p.tr(title), "", 1, "L", false, 0, "")
}

func (p *pageRenderer) payments(l *Layout) {
	width := p.contentWidth()
	p.section("Payment Details")
	p.amountRows(l.Payments, width*0.7, width*0.3, 0)

	if !l.IsInstallment() {
		return
	}
	pdf := p.pdf
	pdf.Ln(3)
	p.section("Payment Progress")
	widths := columnWidths(progressColumns[:], width)
	progressHeader := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, h := range ProgressHeaders {
			pdf.CellFormat(widths[i], 6, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}
	progressHeader()
	for _, row := range l.Progress {
		if p.ensureSpace(6) {
			progressHeader()
		}
		vals := []string{row.Seq, row.Date, row.Method, row.Amount, row.Cumulative}
		aligns := []string{"C", "C", "L", "R", "R"}
		for i, v := range vals {
			pdf.CellFormat(widths[i], 6, p.tr(v), "1", 0, aligns[i], false, 0, "")
		}
		pdf.Ln(-1)
	}
	p.amountRows([]AmountRow{l.Balance}, width*0.7, width*0.3, 0)
}

func (p *pageRenderer) notes(notes []string) {
	if len(notes) == 0 {
		return
	}
	pdf := p.pdf
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 10)
	for _, n := range notes {
		p.ensureSpace(6)
		pdf.MultiCell(0, lineHeight, p.tr(n), "", "L", false)
	}
}

func columnWidths(ratios []float64, total float64) []float64 {
	widths := make([]float64, len(ratios))
	for i, r := range ratios {
		widths[i] = total * r
	}
	return widths
}

func minFloat(values ...float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

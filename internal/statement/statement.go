// Package statement exports a receipt's installment history as an xlsx workbook.
package statement

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/clinic-receipts/internal/domain/entity"
)

// Sheet names
const (
	SheetItems    = "Items"
	SheetPayments = "Payments"
	SheetSummary  = "Summary"
)

// builtin number format "#,##0.00"
const moneyNumFmt = 4

// Exporter builds statement workbooks
type Exporter struct {
	currency string
	policy   entity.Policy
	logger   *zap.Logger
}

// NewExporter creates a new Exporter
func NewExporter(currency string, policy entity.Policy, logger *zap.Logger) *Exporter {
	return &Exporter{currency: currency, policy: policy, logger: logger}
}

// Export returns the workbook for r. methodLabels maps payment codes to descriptions.
func (e *Exporter) Export(r *entity.Receipt, patient entity.PatientRef, methodLabels map[string]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetItems); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetPayments, SheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: moneyNumFmt})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}
	headStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	w := &sheetWriter{f: f, logger: e.logger}
	w.items(r, moneyStyle, headStyle)
	w.payments(r, methodLabels, e.policy, moneyStyle, headStyle)
	w.summary(r, patient, e.currency, e.policy, moneyStyle, headStyle)
	if w.err != nil {
		return nil, w.err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Statement exported",
		zap.String("receipt_id", r.ID),
		zap.Int("items", len(r.Items)),
		zap.Int("payments", len(r.Payments)))
	return buf.Bytes(), nil
}

type sheetWriter struct {
	f      *excelize.File
	logger *zap.Logger
	err    error
}

func (w *sheetWriter) row(sheet string, row int, values ...interface{}) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err == nil {
		err = w.f.SetSheetRow(sheet, cell, &values)
	}
	if err != nil {
		w.logger.Warn("Failed to set row", zap.String("sheet", sheet), zap.Int("row", row), zap.Error(err))
		w.err = fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
}

func (w *sheetWriter) style(sheet, from, to string, style int) {
	if w.err != nil {
		return
	}
	if err := w.f.SetCellStyle(sheet, from, to, style); err != nil {
		w.err = fmt.Errorf("failed to style %s %s:%s: %w", sheet, from, to, err)
	}
}

func (w *sheetWriter) items(r *entity.Receipt, money, head int) {
	w.row(SheetItems, 1, "Code", "Description", "Qty", "Unit Price", "Amount", "Remark")
	w.style(SheetItems, "A1", "F1", head)
	for i, li := range r.Items {
		w.row(SheetItems, i+2, li.CatalogueCode, li.Description, li.Quantity, num(li.UnitPrice), num(li.LineTotal()), li.Remark)
	}
	if n := len(r.Items); n > 0 {
		w.style(SheetItems, "D2", fmt.Sprintf("E%d", n+1), money)
	}
	if w.err == nil {
		_ = w.f.SetColWidth(SheetItems, "B", "B", 40)
	}
}

func (w *sheetWriter) payments(r *entity.Receipt, labels map[string]string, policy entity.Policy, money, head int) {
	w.row(SheetPayments, 1, "#", "Date", "Method", "Amount", "Paid to Date", "Note")
	w.style(SheetPayments, "A1", "F1", head)
	cumulative := decimal.Zero
	for i, p := range r.Payments {
		cumulative = cumulative.Add(p.Amount)
		method := p.Method
		if label, ok := labels[p.Method]; ok && label != "" {
			method = label
		}
		w.row(SheetPayments, i+2, i+1, policy.Local(p.PaidAt).Format("2006-01-02"), method, num(p.Amount), num(cumulative), p.Note)
	}
	if n := len(r.Payments); n > 0 {
		w.style(SheetPayments, "D2", fmt.Sprintf("E%d", n+1), money)
	}
}

func (w *sheetWriter) summary(r *entity.Receipt, patient entity.PatientRef, currency string, policy entity.Policy, money, head int) {
	t := r.Totals(policy)
	status := "Unpaid"
	switch {
	case r.IsOverpaid(policy.SettleEpsilon):
		status = "Overpaid"
	case t.IsSettled:
		status = "Settled"
	case t.IsPartial:
		status = "Installments"
	}

	rows := [][]interface{}{
		{"Receipt No", r.ID},
		{"Patient", patient.DisplayName()},
		{"Issued", policy.Local(r.IssuedAt).Format("2006-01-02")},
		{"Currency", currency},
		{"Subtotal", num(t.Subtotal)},
		{"Discount", num(t.Discount)},
		{"Rounding", num(t.Rounding)},
		{"Grand Total", num(t.GrandTotal)},
		{"Paid", num(t.PaidTotal)},
		{"Balance", num(t.Balance)},
		{"Status", status},
		{"Revision", r.Revision},
	}
	for i, row := range rows {
		w.row(SheetSummary, i+1, row...)
	}
	w.style(SheetSummary, "A1", fmt.Sprintf("A%d", len(rows)), head)
	w.style(SheetSummary, "B5", "B10", money)
}

func num(d decimal.Decimal) float64 {
	return d.Round(entity.CurrencyPlaces).InexactFloat64()
}

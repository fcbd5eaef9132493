// Package document turns a receipt snapshot into a paginated receipt document.
//
// BuildLayout is pure: the same snapshot, profile and options always give the same
// Layout, and Layout.Lines gives its visible text in drawing order. PDFWriter encodes
// a Layout with gofpdf.
package document

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/clinic-receipts/internal/domain/entity"
)

// Title printed under the clinic header
const Title = "Official Receipt"

// Options control the parts of a layout not carried by the receipt itself
type Options struct {
	Currency     string            // printed before every amount, e.g. RM
	CopyIndex    int               // printed in the footer as pNN
	MethodLabels map[string]string // payment code to description
	Policy       entity.Policy
	PaymentID    int64 // payment this copy is issued for; 0 means the latest
}

// ClinicBlock is the header: logo, clinic name and contact lines
type ClinicBlock struct {
	Name     string
	Lines    []string
	LogoPath string
}

// ItemRow is one row of the items table
type ItemRow struct {
	Description string
	Remark      string
	Quantity    string
	UnitPrice   string
	Amount      string
}

// AmountRow is a label with a right-aligned amount
type AmountRow struct {
	Label  string
	Amount string
	Strong bool
}

// ProgressRow is one installment with the running paid total
type ProgressRow struct {
	Seq        string
	Date       string
	Method     string
	Amount     string
	Cumulative string
}

// Layout is the visible content of one receipt document
type Layout struct {
	Title    string
	Clinic   ClinicBlock
	Patient  []string // "Received from" block
	Meta     []string // receipt number, date, staff
	Items    []ItemRow
	Totals   []AmountRow
	Current  []AmountRow // previous, current and balance payment of an installment copy
	Payments []AmountRow
	Progress []ProgressRow // only for receipts in installments
	Balance  AmountRow     // closing row of the progress table
	Notes    []string
	Footer   string
}

// ItemHeaders are the items table column titles
var ItemHeaders = [4]string{"Description", "Qty", "Unit Price", "Amount"}

// ProgressHeaders are the installment table column titles
var ProgressHeaders = [5]string{"#", "Date", "Method", "Amount", "Paid to Date"}

// BuildLayout lays out r for rendering. r is not modified.
func BuildLayout(r *entity.Receipt, clinic entity.ClinicProfile, patient entity.PatientRef, opts Options) *Layout {
	money := func(d decimal.Decimal) string {
		return entity.FormatMoney(opts.Currency, d)
	}

	l := &Layout{
		Title:  Title,
		Clinic: clinicBlock(clinic),
		Footer: footer(r, opts.CopyIndex),
	}
	l.Patient = patientBlock(patient)
	l.Meta = metaBlock(r, opts)

	for _, li := range r.Items {
		l.Items = append(l.Items, ItemRow{
			Description: itemDescription(li),
			Remark:      strings.TrimSpace(li.Remark),
			Quantity:    fmt.Sprintf("%d", li.Quantity),
			UnitPrice:   money(li.UnitPrice),
			Amount:      money(li.LineTotal()),
		})
	}

	totals := r.Totals(opts.Policy)
	l.Totals = []AmountRow{
		{Label: "Subtotal", Amount: money(totals.Subtotal)},
		{Label: "Discount", Amount: money(totals.Discount.Neg())},
		{Label: "Rounding", Amount: money(totals.Rounding)},
		{Label: "Grand Total", Amount: money(totals.GrandTotal), Strong: true},
		{Label: "Paid", Amount: money(totals.PaidTotal)},
		{Label: "Balance", Amount: money(totals.Balance), Strong: true},
	}
	l.Current = currentPayment(r, opts, money)

	for _, p := range r.Payments {
		l.Payments = append(l.Payments, AmountRow{
			Label:  fmt.Sprintf("%s  %s", opts.Policy.Local(p.PaidAt).Format("02-01-2006"), methodLabel(p.Method, opts.MethodLabels)),
			Amount: money(p.Amount),
		})
	}
	if len(l.Payments) == 0 {
		l.Payments = []AmountRow{{Label: "No payment recorded"}}
	}

	if totals.IsPartial {
		cumulative := decimal.Zero
		for i, p := range r.Payments {
			cumulative = cumulative.Add(p.Amount)
			l.Progress = append(l.Progress, ProgressRow{
				Seq:        fmt.Sprintf("%d", i+1),
				Date:       opts.Policy.Local(p.PaidAt).Format("02-01-2006"),
				Method:     methodLabel(p.Method, opts.MethodLabels),
				Amount:     money(p.Amount),
				Cumulative: money(cumulative),
			})
		}
		l.Balance = AmountRow{Label: "Balance Remaining", Amount: money(totals.Balance), Strong: true}
	}

	if r.IsOverpaid(opts.Policy.SettleEpsilon) {
		l.Notes = append(l.Notes, "Overpaid by "+money(totals.Balance.Neg()))
	}
	if remark := strings.TrimSpace(r.Remark); remark != "" {
		l.Notes = append(l.Notes, "Remark: "+remark)
	}
	return l
}

// IsInstallment reports whether the layout carries a progress table
func (l *Layout) IsInstallment() bool {
	return len(l.Progress) > 0
}

// Lines returns the visible text in drawing order
func (l *Layout) Lines() []string {
	out := []string{l.Clinic.Name}
	out = append(out, l.Clinic.Lines...)
	out = append(out, l.Title, "Received from")
	out = append(out, l.Patient...)
	out = append(out, l.Meta...)
	out = append(out, strings.Join(ItemHeaders[:], " | "))
	for _, row := range l.Items {
		out = append(out, strings.Join([]string{row.Description, row.Quantity, row.UnitPrice, row.Amount}, " | "))
		if row.Remark != "" {
			out = append(out, "  "+row.Remark)
		}
	}
	for _, row := range l.Totals {
		out = append(out, row.Label+": "+row.Amount)
	}
	for _, row := range l.Current {
		out = append(out, row.Label+": "+row.Amount)
	}
	out = append(out, "Payment Details")
	for _, row := range l.Payments {
		out = append(out, strings.TrimSpace(row.Label+": "+row.Amount))
	}
	if l.IsInstallment() {
		out = append(out, "Payment Progress", strings.Join(ProgressHeaders[:], " | "))
		for _, row := range l.Progress {
			out = append(out, strings.Join([]string{row.Seq, row.Date, row.Method, row.Amount, row.Cumulative}, " | "))
		}
		out = append(out, l.Balance.Label+": "+l.Balance.Amount)
	}
	out = append(out, l.Notes...)
	return append(out, l.Footer)
}

// currentPayment splits the paid total around the selected payment in chronological
// order. A receipt settled by a single payment has no split.
func currentPayment(r *entity.Receipt, opts Options, money func(decimal.Decimal) string) []AmountRow {
	ordered := r.Clone()
	ordered.SortPayments()
	idx := ordered.FindPayment(opts.PaymentID)
	if idx < 0 {
		idx = len(ordered.Payments) - 1
	}
	if idx < 0 {
		return nil
	}

	previous := decimal.Zero
	for _, p := range ordered.Payments[:idx] {
		previous = previous.Add(p.Amount)
	}
	current := ordered.Payments[idx].Amount
	balance := decimal.Max(r.GrandTotal().Sub(previous).Sub(current), decimal.Zero)
	if !previous.IsPositive() && !balance.GreaterThan(opts.Policy.SettleEpsilon) {
		return nil
	}
	return []AmountRow{
		{Label: "Previous Payments", Amount: money(previous)},
		{Label: "Current Payment", Amount: money(current), Strong: true},
		{Label: "Balance Payment", Amount: money(balance)},
	}
}

func clinicBlock(c entity.ClinicProfile) ClinicBlock {
	b := ClinicBlock{Name: strings.TrimSpace(c.Name), LogoPath: strings.TrimSpace(c.LogoPath)}
	if b.Name == "" {
		b.Name = "Clinic"
	}
	b.Lines = splitLines(c.Address)
	if phone := strings.TrimSpace(c.Phone); phone != "" {
		b.Lines = append(b.Lines, "Phone: "+phone)
	}
	if email := strings.TrimSpace(c.Email); email != "" {
		b.Lines = append(b.Lines, "Email: "+email)
	}
	return b
}

func patientBlock(p entity.PatientRef) []string {
	lines := []string{p.DisplayName()}
	if id := strings.TrimSpace(p.IdentityNo); id != "" {
		lines = append(lines, "IC / Passport: "+id)
	}
	if company := strings.TrimSpace(p.Company); company != "" {
		lines = append(lines, "Company: "+company)
	}
	if phone := strings.TrimSpace(p.Phone); phone != "" {
		lines = append(lines, "Phone: "+phone)
	}
	if email := strings.TrimSpace(p.Email); email != "" {
		lines = append(lines, "Email: "+email)
	}
	return lines
}

func metaBlock(r *entity.Receipt, opts Options) []string {
	id := r.ID
	if id == "" {
		id = "DRAFT"
	}
	lines := []string{
		"Receipt No: " + id,
		"Date: " + opts.Policy.Local(r.IssuedAt).Format("2006-01-02 15:04"),
	}
	if code := strings.TrimSpace(r.PaymentCode); code != "" {
		lines = append(lines, "Payment: "+methodLabel(code, opts.MethodLabels))
	}
	if by := strings.TrimSpace(r.ProcessedBy); by != "" {
		lines = append(lines, "Processed by: "+by)
	}
	return lines
}

func footer(r *entity.Receipt, copyIndex int) string {
	if copyIndex < 1 {
		copyIndex = 1
	}
	return fmt.Sprintf("Copy p%02d  Revision %d", copyIndex, r.Revision)
}

func itemDescription(li entity.LineItem) string {
	if d := strings.TrimSpace(li.Description); d != "" {
		return d
	}
	return li.CatalogueCode
}

func methodLabel(code string, labels map[string]string) string {
	if label, ok := labels[code]; ok && strings.TrimSpace(label) != "" {
		return label
	}
	if code == "" {
		return entity.MethodOther
	}
	return code
}

func splitLines(text string) []string {
	var lines []string
	for _, segment := range strings.Split(strings.ReplaceAll(text, "\r", ""), "\n") {
		if s := strings.TrimSpace(segment); s != "" {
			lines = append(lines, s)
		}
	}
	return lines
}

package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ClinicProfile identifies the issuing clinic on a rendered receipt
type ClinicProfile struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	LogoPath string `json:"logo_path,omitempty"`
}

// PatientRef is the read-only patient view used by the renderer
type PatientRef struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	ReceiptName   string `json:"receipt_name,omitempty"`   // billing name override
	PreferredName string `json:"preferred_name,omitempty"` // shown when no billing name
	IdentityNo    string `json:"identity_no,omitempty"`
	Company       string `json:"company,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	Address       string `json:"address,omitempty"`
}

// DisplayName returns the receipt name, then the preferred name, then the registered name
func (p PatientRef) DisplayName() string {
	for _, n := range []string{p.ReceiptName, p.PreferredName, p.Name} {
		if s := strings.TrimSpace(n); s != "" {
			return s
		}
	}
	return ""
}

// CatalogueItem is a stock or treatment entry with its default price
type CatalogueItem struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// ChartEntry is one row of a visit note's treatment chart
type ChartEntry struct {
	NotationID    int64           `json:"notation_id,omitempty"`
	NotationTitle string          `json:"notation_title,omitempty"`
	ToothID       int             `json:"tooth_id,omitempty"`
	ToothPlan     string          `json:"tooth_plan,omitempty"` // E (existing) or a treatment plan letter
	StockCode     string          `json:"stock_code"`
	StockName     string          `json:"stock_name,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int             `json:"quantity,omitempty"`
	Remarks       string          `json:"remarks,omitempty"`
	BillStatus    int             `json:"bill_status"`
}

// ToothLabel renders the tooth reference as "E-11", or "" when no tooth is set
func (c ChartEntry) ToothLabel() string {
	plan := strings.ToUpper(strings.TrimSpace(c.ToothPlan))
	if plan == "" {
		plan = "E"
	}
	if c.ToothID == 0 {
		return ""
	}
	return fmt.Sprintf("%s-%d", plan[:1], c.ToothID)
}

// IsBilled returns true when the entry is already on a receipt
func (c ChartEntry) IsBilled() bool {
	return c.BillStatus != BillStatusUnbilled
}

// DocumentArtifact records one rendered receipt document
type DocumentArtifact struct {
	ID        int64     `json:"id"`
	ReceiptID string    `json:"receipt_id"`
	CopyIndex int       `json:"copy_index"`
	Revision  int64     `json:"revision"`
	Path      string    `json:"path"`
	Token     uuid.UUID `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// IsCurrent reports whether the artifact was rendered from the receipt's current revision
func (a *DocumentArtifact) IsCurrent(r *Receipt) bool {
	return a != nil && r != nil && a.ReceiptID == r.ID && a.Revision == r.Revision
}

// Package draft turns catalogue selections, typed rows and treatment charts into
// validated line-item drafts.
package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/garyjia/clinic-receipts/internal/application/port"
	"github.com/garyjia/clinic-receipts/internal/domain/apperr"
	"github.com/garyjia/clinic-receipts/internal/domain/entity"
	"github.com/garyjia/clinic-receipts/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Row is a free-typed settlement row. A nil UnitPrice or Quantity means "use the default".
type Row struct {
	CatalogueCode string           `json:"catalogue_code" validate:"omitempty,max=32"`
	Description   string           `json:"description" validate:"required_without=CatalogueCode,max=255"`
	UnitPrice     *decimal.Decimal `json:"unit_price,omitempty" validate:"-"`
	Quantity      *int             `json:"quantity,omitempty" validate:"-"`
	Remark        string           `json:"remark" validate:"max=500"`
}

// Builder builds line-item drafts
type Builder struct {
	catalogue port.CatalogueLookup
	validate  *validator.Validate
	logger    Logger
}

// NewBuilder creates a new Builder
func NewBuilder(catalogue port.CatalogueLookup, logger Logger) *Builder {
	return &Builder{
		catalogue: catalogue,
		validate:  validator.New(),
		logger:    logger,
	}
}

// FromCatalogue builds a draft from a catalogue code with the catalogue's label and price
func (b *Builder) FromCatalogue(ctx context.Context, code string, quantity *int) (entity.LineItem, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return entity.LineItem{}, apperr.Validation("build_draft_from_catalogue", "catalogue code is required")
	}
	qty, err := resolveQuantity(quantity)
	if err != nil {
		return entity.LineItem{}, err
	}

	item, err := b.lookup(ctx, code)
	if err != nil {
		return entity.LineItem{}, err
	}
	if item == nil {
		return entity.LineItem{}, apperr.NotFound("build_draft_from_catalogue", "catalogue item", code)
	}

	li := entity.LineItem{
		CatalogueCode: code,
		Description:   firstNonEmpty(item.Description, code),
		UnitPrice:     item.UnitPrice,
		Quantity:      qty,
	}
	return li, entity.ValidateLineItem(li)
}

// FromRow builds a draft from a typed row. Operator-entered price and description are
// kept verbatim; the catalogue fills only what the row leaves out.
func (b *Builder) FromRow(ctx context.Context, row Row) (entity.LineItem, error) {
	row.CatalogueCode = strings.TrimSpace(row.CatalogueCode)
	row.Description = strings.TrimSpace(utils.SanitizeString(row.Description))
	row.Remark = strings.TrimSpace(utils.SanitizeString(row.Remark))

	if err := b.validate.Struct(row); err != nil {
		return entity.LineItem{}, rowError(err)
	}
	qty, err := resolveQuantity(row.Quantity)
	if err != nil {
		return entity.LineItem{}, err
	}

	li := entity.LineItem{
		CatalogueCode: row.CatalogueCode,
		Description:   row.Description,
		Quantity:      qty,
		Remark:        row.Remark,
	}
	if row.UnitPrice != nil {
		li.UnitPrice = *row.UnitPrice
	}

	needsCatalogue := row.UnitPrice == nil || row.Description == ""
	if needsCatalogue {
		if row.CatalogueCode == "" {
			return entity.LineItem{}, apperr.Validation("build_draft_from_row", "a manual row needs a unit price")
		}
		item, err := b.lookup(ctx, row.CatalogueCode)
		if err != nil {
			return entity.LineItem{}, err
		}
		if item == nil {
			return entity.LineItem{}, apperr.NotFound("build_draft_from_row", "catalogue item", row.CatalogueCode)
		}
		if row.UnitPrice == nil {
			li.UnitPrice = item.UnitPrice
		}
		if li.Description == "" {
			li.Description = firstNonEmpty(item.Description, row.CatalogueCode)
		}
	}

	return li, entity.ValidateLineItem(li)
}

// FromChart pre-fills a settlement session from a visit note's treatment chart.
// Already-billed entries are skipped. Every remaining entry must carry a stock code
// known to the catalogue.
func (b *Builder) FromChart(ctx context.Context, entries []entity.ChartEntry) ([]entity.LineItem, error) {
	drafts := make([]entity.LineItem, 0, len(entries))
	for i, c := range entries {
		if c.IsBilled() {
			continue
		}
		li, err := b.fromChartEntry(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("chart entry %d: %w", i+1, err)
		}
		drafts = append(drafts, li)
	}

	b.logger.Info("Drafts built from chart", "entries", len(entries), "drafts", len(drafts))
	return drafts, nil
}

func (b *Builder) fromChartEntry(ctx context.Context, c entity.ChartEntry) (entity.LineItem, error) {
	code := strings.TrimSpace(c.StockCode)
	if code == "" {
		return entity.LineItem{}, apperr.Validation("build_draft_from_chart", "notation %d has no stock code", c.NotationID)
	}
	if c.Quantity < 0 {
		return entity.LineItem{}, apperr.Validation("build_draft_from_chart", "quantity must be at least 1, got %d", c.Quantity)
	}

	item, err := b.lookup(ctx, code)
	if err != nil {
		return entity.LineItem{}, err
	}
	if item == nil {
		return entity.LineItem{}, apperr.Validation("build_draft_from_chart", "stock code %s is not in the catalogue", code)
	}

	notation := ""
	if c.NotationID != 0 {
		notation = fmt.Sprintf("Notation #%d", c.NotationID)
	}

	li := entity.LineItem{
		CatalogueCode: code,
		Description:   utils.SanitizeString(firstNonEmpty(c.NotationTitle, c.StockName, item.Description, notation, code)),
		UnitPrice:     item.UnitPrice,
		Quantity:      1,
		Remark:        chartRemark(c),
	}
	if !c.UnitPrice.IsZero() {
		li.UnitPrice = c.UnitPrice
	}
	if c.Quantity > 0 {
		li.Quantity = c.Quantity
	}
	return li, entity.ValidateLineItem(li)
}

func (b *Builder) lookup(ctx context.Context, code string) (*entity.CatalogueItem, error) {
	item, err := b.catalogue.LookupItem(ctx, code)
	if err != nil {
		b.logger.Error("Catalogue lookup failed", "code", code, "error", err)
		return nil, apperr.Collaborator("lookup_catalogue_item", err)
	}
	return item, nil
}

func resolveQuantity(q *int) (int, error) {
	if q == nil {
		return 1, nil
	}
	if *q < 1 {
		return 0, apperr.Validation("build_draft", "quantity must be at least 1, got %d", *q)
	}
	return *q, nil
}

func rowError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return apperr.Validation("build_draft_from_row", "invalid row: %v", err)
	}
	fe := ve[0]
	switch fe.Tag() {
	case "required_without":
		return apperr.Validation("build_draft_from_row", "a row needs a description or catalogue code")
	case "max":
		return apperr.Validation("build_draft_from_row", "%s is longer than %s characters", strings.ToLower(fe.Field()), fe.Param())
	default:
		return apperr.Validation("build_draft_from_row", "%s failed %s", strings.ToLower(fe.Field()), fe.Tag())
	}
}

func chartRemark(c entity.ChartEntry) string {
	parts := make([]string, 0, 2)
	if label := c.ToothLabel(); label != "" {
		parts = append(parts, "Tooth "+label)
	}
	if r := strings.TrimSpace(utils.SanitizeString(c.Remarks)); r != "" {
		parts = append(parts, r)
	}
	return strings.Join(parts, "; ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/clinic-receipts/internal/application/draft"
	"github.com/garyjia/clinic-receipts/internal/application/service"
	"github.com/garyjia/clinic-receipts/internal/domain/apperr"
	"github.com/garyjia/clinic-receipts/internal/domain/entity"
	"github.com/garyjia/clinic-receipts/internal/domain/reconcile"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DraftBuilder builds line-item drafts
type DraftBuilder interface {
	FromCatalogue(ctx context.Context, code string, quantity *int) (entity.LineItem, error)
	FromRow(ctx context.Context, row draft.Row) (entity.LineItem, error)
	FromChart(ctx context.Context, entries []entity.ChartEntry) ([]entity.LineItem, error)
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	receipts  service.ReceiptService
	documents service.DocumentService
	drafts    DraftBuilder
	health    HealthReporter
	logger    Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	receipts service.ReceiptService,
	documents service.DocumentService,
	drafts DraftBuilder,
	health HealthReporter,
	logger Logger,
) *Handlers {
	return &Handlers{
		receipts:  receipts,
		documents: documents,
		drafts:    drafts,
		health:    health,
		logger:    logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    apperr.Kind `json:"kind,omitempty"`
	Retry   bool        `json:"retryable,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// ReconcileRequest proposes the state of a receipt. ReceiptID and Revision
// identify the snapshot the operator edited; both are empty for a new receipt.
type ReconcileRequest struct {
	ReceiptID   string            `json:"receipt_id"`
	Revision    int64             `json:"revision"`
	PatientID   int64             `json:"patient_id" binding:"required"`
	VisitNoteID int64             `json:"visit_note_id"`
	IssuedAt    time.Time         `json:"issued_at" binding:"required"`
	PaymentCode string            `json:"payment_code"`
	Remark      string            `json:"remark"`
	ProcessedBy string            `json:"processed_by"`
	Discount    decimal.Decimal   `json:"discount"`
	Rounding    decimal.Decimal   `json:"rounding"`
	Items       []entity.LineItem `json:"items"`
}

// Amount is a payment amount sent as a JSON number or as typed text such as "1,250.00"
type Amount struct {
	decimal.Decimal
}

// UnmarshalJSON parses the amount with entity.ParseAmount
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	v, err := entity.ParseAmount(raw)
	if err != nil {
		return fmt.Errorf("invalid amount %s", data)
	}
	a.Decimal = v
	return nil
}

// PaymentRequest records a payment against the receipt at Revision
type PaymentRequest struct {
	Revision int64      `json:"revision" binding:"required"`
	Amount   Amount     `json:"amount"`
	Method   string     `json:"method"`
	Note     string     `json:"note"`
	PaidAt   *time.Time `json:"paid_at"`
}

// AdjustPaymentRequest changes the amount of one payment
type AdjustPaymentRequest struct {
	Revision int64  `json:"revision" binding:"required"`
	Amount   Amount `json:"amount"`
}

// RenderRequest selects the copy to render. An empty copy index picks the next
// free copy; an empty payment id issues the copy for the latest payment.
type RenderRequest struct {
	CopyIndex *int  `json:"copy_index"`
	PaymentID int64 `json:"payment_id"`
}

// CatalogueDraftRequest drafts one item from a catalogue code
type CatalogueDraftRequest struct {
	Code     string `json:"code" binding:"required"`
	Quantity *int   `json:"quantity"`
}

// RowsDraftRequest drafts items from free-typed settlement rows
type RowsDraftRequest struct {
	Rows []draft.Row `json:"rows" binding:"required"`
}

// ChartDraftRequest drafts items from dental chart entries
type ChartDraftRequest struct {
	Entries []entity.ChartEntry `json:"entries" binding:"required"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if h.health != nil {
		ok, details := h.health(c.Request.Context())
		response.Components = details
		if !ok {
			response.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{
		Success: status == http.StatusOK,
		Data:    response,
	})
}

// GetReceipt handles GET /api/receipts/:id
func (h *Handlers) GetReceipt(c *gin.Context) {
	r, err := h.receipts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get receipt", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: r})
}

// ReconcileReceipt handles POST /api/receipts
func (h *Handlers) ReconcileReceipt(c *gin.Context) {
	var req ReconcileRequest
	if !h.bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	var existing *entity.Receipt
	if req.ReceiptID != "" {
		r, err := h.snapshot(ctx, "reconcile", req.ReceiptID, req.Revision)
		if err != nil {
			h.fail(c, "Failed to load receipt for reconcile", err)
			return
		}
		existing = r
	}

	result, err := h.receipts.Reconcile(ctx, existing, reconcile.Proposal{
		PatientID:   req.PatientID,
		VisitNoteID: req.VisitNoteID,
		IssuedAt:    req.IssuedAt,
		PaymentCode: req.PaymentCode,
		Remark:      req.Remark,
		ProcessedBy: req.ProcessedBy,
		Items:       req.Items,
		Discount:    req.Discount,
		Rounding:    req.Rounding,
	})
	if err != nil {
		h.fail(c, "Reconcile failed", err)
		return
	}

	status := http.StatusOK
	if result.Written && existing == nil && result.Plan != nil && result.Plan.Action == reconcile.ActionCreate {
		status = http.StatusCreated
	}
	c.JSON(status, Response{Success: true, Data: result})
}

// ListPayments handles GET /api/receipts/:id/payments
func (h *Handlers) ListPayments(c *gin.Context) {
	payments, err := h.receipts.ListPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to list payments", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: payments})
}

// AddPayment handles POST /api/receipts/:id/payments
func (h *Handlers) AddPayment(c *gin.Context) {
	var req PaymentRequest
	if !h.bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	r, err := h.snapshot(ctx, "add_payment", c.Param("id"), req.Revision)
	if err != nil {
		h.fail(c, "Failed to load receipt for payment", err)
		return
	}

	in := service.PaymentInput{Amount: req.Amount.Decimal, Method: req.Method, Note: req.Note}
	if req.PaidAt != nil {
		in.PaidAt = *req.PaidAt
	}
	updated, err := h.receipts.AddPayment(ctx, r, in)
	if err != nil {
		h.fail(c, "Failed to add payment", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: updated})
}

// AdjustPayment handles PATCH /api/receipts/:id/payments/:paymentID
func (h *Handlers) AdjustPayment(c *gin.Context) {
	paymentID, ok := h.paymentID(c)
	if !ok {
		return
	}
	var req AdjustPaymentRequest
	if !h.bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	r, err := h.snapshot(ctx, "adjust_payment", c.Param("id"), req.Revision)
	if err != nil {
		h.fail(c, "Failed to load receipt for payment", err)
		return
	}

	updated, err := h.receipts.AdjustPayment(ctx, r, paymentID, req.Amount.Decimal)
	if err != nil {
		h.fail(c, "Failed to adjust payment", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: updated})
}

// RemovePayment handles DELETE /api/receipts/:id/payments/:paymentID?revision=N
func (h *Handlers) RemovePayment(c *gin.Context) {
	paymentID, ok := h.paymentID(c)
	if !ok {
		return
	}
	revision, err := strconv.ParseInt(c.Query("revision"), 10, 64)
	if err != nil || revision < 1 {
		h.fail(c, "Invalid revision", apperr.Validation("remove_payment", "revision query parameter is required"))
		return
	}

	ctx := c.Request.Context()
	r, err := h.snapshot(ctx, "remove_payment", c.Param("id"), revision)
	if err != nil {
		h.fail(c, "Failed to load receipt for payment", err)
		return
	}

	updated, err := h.receipts.RemovePayment(ctx, r, paymentID)
	if err != nil {
		h.fail(c, "Failed to remove payment", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: updated})
}

// RenderDocument handles POST /api/receipts/:id/documents
func (h *Handlers) RenderDocument(c *gin.Context) {
	var req RenderRequest
	if c.Request.ContentLength > 0 && !h.bind(c, &req) {
		return
	}

	result, err := h.documents.Render(c.Request.Context(), c.Param("id"), service.RenderOptions{
		CopyIndex: req.CopyIndex,
		PaymentID: req.PaymentID,
	})
	if err != nil {
		h.fail(c, "Render failed", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: result})
}

// DocumentStatus handles GET /api/receipts/:id/documents/status
func (h *Handlers) DocumentStatus(c *gin.Context) {
	status, err := h.documents.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get document status", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: status})
}

// ExportStatement handles GET /api/receipts/:id/statement
func (h *Handlers) ExportStatement(c *gin.Context) {
	data, name, err := h.documents.ExportStatement(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Statement export failed", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// DraftFromCatalogue handles POST /api/drafts/catalogue
func (h *Handlers) DraftFromCatalogue(c *gin.Context) {
	var req CatalogueDraftRequest
	if !h.bind(c, &req) {
		return
	}
	item, err := h.drafts.FromCatalogue(c.Request.Context(), req.Code, req.Quantity)
	if err != nil {
		h.fail(c, "Catalogue draft failed", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: item})
}

// DraftFromRows handles POST /api/drafts/rows
func (h *Handlers) DraftFromRows(c *gin.Context) {
	var req RowsDraftRequest
	if !h.bind(c, &req) {
		return
	}
	items := make([]entity.LineItem, 0, len(req.Rows))
	for _, row := range req.Rows {
		item, err := h.drafts.FromRow(c.Request.Context(), row)
		if err != nil {
			h.fail(c, "Row draft failed", err)
			return
		}
		items = append(items, item)
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: items})
}

// DraftFromChart handles POST /api/drafts/chart
func (h *Handlers) DraftFromChart(c *gin.Context) {
	var req ChartDraftRequest
	if !h.bind(c, &req) {
		return
	}
	items, err := h.drafts.FromChart(c.Request.Context(), req.Entries)
	if err != nil {
		h.fail(c, "Chart draft failed", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: items})
}

// snapshot loads the receipt and checks that the caller edited the stored revision
func (h *Handlers) snapshot(ctx context.Context, op, id string, revision int64) (*entity.Receipt, error) {
	r, err := h.receipts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if revision != 0 && r.Revision != revision {
		return nil, apperr.Conflict(op, "receipt %s is at revision %d, request was made against %d", id, r.Revision, revision)
	}
	return r, nil
}

func (h *Handlers) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Error("Invalid request body", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body: " + err.Error(),
			Kind:    apperr.KindValidation,
		})
		return false
	}
	return true
}

func (h *Handlers) paymentID(c *gin.Context) (int64, bool) {
	raw := c.Param("paymentID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.fail(c, "Invalid payment ID", apperr.Validation("payment", "invalid payment id %q", raw))
		return 0, false
	}
	return id, true
}

// fail logs err once and writes the response for its kind
func (h *Handlers) fail(c *gin.Context, msg string, err error) {
	status := StatusFor(err)
	h.logger.Error(msg, "path", c.Request.URL.Path, "status", status, "error", err)
	c.JSON(status, Response{
		Success: false,
		Error:   publicMessage(err),
		Kind:    apperr.KindOf(err),
		Retry:   apperr.IsRetryable(err),
	})
}

// StatusFor maps an error kind to its HTTP status
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindCollaborator:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides collaborator causes from clients
func publicMessage(err error) string {
	var classified *apperr.Error
	if !errors.As(err, &classified) {
		return "internal error"
	}
	if classified.Kind == apperr.KindCollaborator {
		return "a backing service is unavailable, retry later"
	}
	if classified.Message != "" {
		return classified.Message
	}
	return classified.Error()
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/clinic-receipts/internal/application/port"
	"github.com/garyjia/clinic-receipts/internal/domain/apperr"
	"github.com/garyjia/clinic-receipts/internal/domain/entity"
	"github.com/garyjia/clinic-receipts/internal/domain/reconcile"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// paymentNoopThreshold is the smallest amount change a payment adjustment persists
var paymentNoopThreshold = decimal.New(5, -3)

// PaymentInput is a payment to record. A zero PaidAt means now.
type PaymentInput struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
	Note   string          `json:"note,omitempty"`
	PaidAt time.Time       `json:"paid_at,omitempty"`
}

// ReconcileResult is the persisted receipt and the plan that produced it
type ReconcileResult struct {
	Receipt *entity.Receipt `json:"receipt"`
	Plan    *reconcile.Plan `json:"plan"`
	Written bool            `json:"written"`
}

// ReceiptService manages the receipt ledger. Every method either fully succeeds and
// returns a fresh snapshot, or fails leaving both the argument and the store untouched.
type ReceiptService interface {
	Get(ctx context.Context, id string) (*entity.Receipt, error)
	ListPayments(ctx context.Context, id string) ([]entity.PaymentRecord, error)
	Reconcile(ctx context.Context, existing *entity.Receipt, p reconcile.Proposal) (*ReconcileResult, error)
	AddPayment(ctx context.Context, r *entity.Receipt, in PaymentInput) (*entity.Receipt, error)
	AdjustPayment(ctx context.Context, r *entity.Receipt, paymentID int64, amount decimal.Decimal) (*entity.Receipt, error)
	RemovePayment(ctx context.Context, r *entity.Receipt, paymentID int64) (*entity.Receipt, error)
}

type receiptServiceImpl struct {
	receipts  port.ReceiptRepository
	payments  port.PaymentRepository
	txManager port.TransactionManager
	policy    entity.Policy
	logger    Logger
}

// NewReceiptService creates a new ReceiptService
func NewReceiptService(
	receipts port.ReceiptRepository,
	payments port.PaymentRepository,
	txManager port.TransactionManager,
	policy entity.Policy,
	logger Logger,
) ReceiptService {
	return &receiptServiceImpl{
		receipts:  receipts,
		payments:  payments,
		txManager: txManager,
		policy:    policy,
		logger:    logger,
	}
}

// Get loads a receipt
func (s *receiptServiceImpl) Get(ctx context.Context, id string) (*entity.Receipt, error) {
	r, err := s.receipts.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to load receipt", "receipt_id", id, "error", err)
		return nil, apperr.Collaborator("load_receipt", err)
	}
	if r == nil {
		return nil, apperr.NotFound("load_receipt", "receipt", id)
	}
	r.SortPayments()
	return r, nil
}

// ListPayments returns the live payments of a receipt in chronological order
func (s *receiptServiceImpl) ListPayments(ctx context.Context, id string) ([]entity.PaymentRecord, error) {
	payments, err := s.payments.ListByReceipt(ctx, id)
	if err != nil {
		s.logger.Error("Failed to list payments", "receipt_id", id, "error", err)
		return nil, apperr.Collaborator("list_payments", err)
	}
	if len(payments) == 0 {
		// an unknown receipt has no payments either
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return []entity.PaymentRecord{}, nil
	}

	ledger := &entity.Receipt{ID: id, Payments: payments}
	ledger.SortPayments()
	for i := range ledger.Payments {
		ledger.Payments[i].PaidAt = s.policy.Local(ledger.Payments[i].PaidAt)
	}
	return ledger.Payments, nil
}

// Reconcile creates or replaces the receipt for p. With a nil or unsaved existing
// receipt, a receipt already issued for the same patient and visit note on the same
// day is reused. A replace that changes nothing is not written.
func (s *receiptServiceImpl) Reconcile(ctx context.Context, existing *entity.Receipt, p reconcile.Proposal) (*ReconcileResult, error) {
	base, err := s.reconcileBase(ctx, existing, p)
	if err != nil {
		return nil, err
	}

	merged, plan, err := reconcile.Reconcile(base, p, s.policy)
	if err != nil {
		return nil, err
	}
	if plan.IsNoop() {
		s.logger.Info("Reconcile produced no changes", "receipt_id", merged.ID)
		return &ReconcileResult{Receipt: merged, Plan: plan}, nil
	}

	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if plan.Action == reconcile.ActionCreate {
			_, err := s.receipts.Create(ctx, merged)
			return err
		}
		return s.receipts.Replace(ctx, merged, base.Revision)
	})
	if err != nil {
		s.logger.Error("Failed to persist receipt", "action", plan.Action, "receipt_id", merged.ID, "error", err)
		return nil, s.storeError("reconcile", merged.ID, err)
	}

	s.logger.Info("Receipt reconciled",
		"receipt_id", merged.ID,
		"action", plan.Action,
		"inserts", len(plan.Inserts),
		"updates", len(plan.Updates),
		"deletes", len(plan.Deletes),
		"revision", merged.Revision)
	return &ReconcileResult{Receipt: merged, Plan: plan, Written: true}, nil
}

// reconcileBase returns the stored receipt a proposal is merged into, or nil for a create
func (s *receiptServiceImpl) reconcileBase(ctx context.Context, existing *entity.Receipt, p reconcile.Proposal) (*entity.Receipt, error) {
	if existing == nil || !existing.IsPersisted() {
		if p.VisitNoteID == 0 {
			return nil, nil
		}
		found, err := s.receipts.FindByVisit(ctx, p.PatientID, p.VisitNoteID, s.policy.Local(p.IssuedAt))
		if err != nil {
			s.logger.Error("Failed to look up receipt for visit", "patient_id", p.PatientID, "visit_note_id", p.VisitNoteID, "error", err)
			return nil, apperr.Collaborator("reconcile", err)
		}
		if found != nil {
			s.logger.Info("Reusing receipt issued for visit", "receipt_id", found.ID, "visit_note_id", p.VisitNoteID)
		}
		return found, nil
	}

	stored, err := s.receipts.GetByID(ctx, existing.ID)
	if err != nil {
		s.logger.Error("Failed to load receipt", "receipt_id", existing.ID, "error", err)
		return nil, apperr.Collaborator("reconcile", err)
	}
	if stored == nil {
		return nil, apperr.NotFound("reconcile", "receipt", existing.ID)
	}
	if stored.Revision != existing.Revision {
		return nil, apperr.Conflict("reconcile", "receipt %s changed since revision %d (now %d); reload before editing",
			existing.ID, existing.Revision, stored.Revision)
	}
	stored.SortPayments()
	return stored, nil
}

// AddPayment records one payment against a saved receipt
func (s *receiptServiceImpl) AddPayment(ctx context.Context, r *entity.Receipt, in PaymentInput) (*entity.Receipt, error) {
	if err := requireSaved("add_payment", r); err != nil {
		return nil, err
	}
	p := entity.PaymentRecord{Amount: in.Amount, Method: strings.TrimSpace(in.Method), Note: in.Note, PaidAt: in.PaidAt}
	if p.Method == "" {
		p.Method = entity.MethodOther
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = time.Now()
	}

	// validate against a copy before anything is written
	if err := r.Clone().AddPayment(p, s.policy); err != nil {
		return nil, err
	}

	var revision int64
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		rev, err := s.receipts.BumpRevision(ctx, r.ID, r.Revision)
		if err != nil {
			return err
		}
		if _, err := s.payments.Add(ctx, r.ID, &p); err != nil {
			return err
		}
		revision = rev
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to add payment", "receipt_id", r.ID, "amount", in.Amount.String(), "error", err)
		return nil, s.storeError("add_payment", r.ID, err)
	}

	next := r.Clone()
	if err := next.AddPayment(p, s.policy); err != nil {
		return nil, err
	}
	next.Revision = revision
	s.logger.Info("Payment added", "receipt_id", r.ID, "payment_id", p.ID, "balance", next.Balance().String())
	return next, nil
}

// AdjustPayment changes the amount of one payment. A change below half a cent is a no-op.
func (s *receiptServiceImpl) AdjustPayment(ctx context.Context, r *entity.Receipt, paymentID int64, amount decimal.Decimal) (*entity.Receipt, error) {
	if err := entity.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if err := requireSaved("adjust_payment", r); err != nil {
		return nil, err
	}
	idx := r.FindPayment(paymentID)
	if idx < 0 {
		return nil, apperr.NotFound("adjust_payment", "payment", paymentID)
	}
	if amount.Sub(r.Payments[idx].Amount).Abs().LessThan(paymentNoopThreshold) {
		return r.Clone(), nil
	}

	next := r.Clone()
	if err := next.UpdatePaymentAmount(paymentID, amount, s.policy); err != nil {
		return nil, err
	}

	var revision int64
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		rev, err := s.receipts.BumpRevision(ctx, r.ID, r.Revision)
		if err != nil {
			return err
		}
		if err := s.payments.UpdateAmount(ctx, r.ID, paymentID, amount); err != nil {
			return err
		}
		revision = rev
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to adjust payment", "receipt_id", r.ID, "payment_id", paymentID, "error", err)
		return nil, s.storeError("adjust_payment", r.ID, err)
	}

	next.Revision = revision
	s.logger.Info("Payment adjusted", "receipt_id", r.ID, "payment_id", paymentID, "balance", next.Balance().String())
	return next, nil
}

// RemovePayment drops one payment from a saved receipt
func (s *receiptServiceImpl) RemovePayment(ctx context.Context, r *entity.Receipt, paymentID int64) (*entity.Receipt, error) {
	if err := requireSaved("remove_payment", r); err != nil {
		return nil, err
	}
	next := r.Clone()
	if err := next.RemovePayment(paymentID); err != nil {
		return nil, err
	}

	var revision int64
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		rev, err := s.receipts.BumpRevision(ctx, r.ID, r.Revision)
		if err != nil {
			return err
		}
		if err := s.payments.Remove(ctx, r.ID, paymentID); err != nil {
			return err
		}
		revision = rev
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to remove payment", "receipt_id", r.ID, "payment_id", paymentID, "error", err)
		return nil, s.storeError("remove_payment", r.ID, err)
	}

	next.Revision = revision
	s.logger.Info("Payment removed", "receipt_id", r.ID, "payment_id", paymentID, "balance", next.Balance().String())
	return next, nil
}

// storeError classifies a store failure
func (s *receiptServiceImpl) storeError(op, receiptID string, err error) error {
	switch {
	case errors.Is(err, port.ErrRevisionMismatch):
		return apperr.Conflict(op, "receipt %s was changed by another session; reload before retrying", receiptID)
	case errors.Is(err, port.ErrRecordNotFound):
		return &apperr.Error{Kind: apperr.KindNotFound, Op: op, Message: "no longer stored", Err: err}
	default:
		return apperr.Collaborator(op, err)
	}
}

func requireSaved(op string, r *entity.Receipt) error {
	if r == nil || !r.IsPersisted() {
		return apperr.Validation(op, "receipt must be saved before recording payments")
	}
	return nil
}

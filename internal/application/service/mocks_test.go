package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/clinic-receipts/internal/domain/entity"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type mockLogger struct{}

func (mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockTx struct {
	calls int
}

func (m *mockTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type mockReceiptRepo struct {
	getByIDFunc      func(ctx context.Context, id string) (*entity.Receipt, error)
	findByVisitFunc  func(ctx context.Context, patientID, visitNoteID int64, issuedOn time.Time) (*entity.Receipt, error)
	createFunc       func(ctx context.Context, r *entity.Receipt) (string, error)
	replaceFunc      func(ctx context.Context, r *entity.Receipt, expectedRevision int64) error
	bumpRevisionFunc func(ctx context.Context, id string, expectedRevision int64) (int64, error)

	creates, replaces, bumps int
}

func (m *mockReceiptRepo) GetByID(ctx context.Context, id string) (*entity.Receipt, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockReceiptRepo) FindByVisit(ctx context.Context, patientID, visitNoteID int64, issuedOn time.Time) (*entity.Receipt, error) {
	if m.findByVisitFunc != nil {
		return m.findByVisitFunc(ctx, patientID, visitNoteID, issuedOn)
	}
	return nil, nil
}

func (m *mockReceiptRepo) Create(ctx context.Context, r *entity.Receipt) (string, error) {
	m.creates++
	if m.createFunc != nil {
		return m.createFunc(ctx, r)
	}
	r.ID = "A000001/2025"
	r.Revision = 1
	for i := range r.Items {
		r.Items[i].ID = int64(i + 1)
	}
	return r.ID, nil
}

func (m *mockReceiptRepo) Replace(ctx context.Context, r *entity.Receipt, expectedRevision int64) error {
	m.replaces++
	if m.replaceFunc != nil {
		return m.replaceFunc(ctx, r, expectedRevision)
	}
	r.Revision = expectedRevision + 1
	return nil
}

func (m *mockReceiptRepo) BumpRevision(ctx context.Context, id string, expectedRevision int64) (int64, error) {
	m.bumps++
	if m.bumpRevisionFunc != nil {
		return m.bumpRevisionFunc(ctx, id, expectedRevision)
	}
	return expectedRevision + 1, nil
}

type mockPaymentRepo struct {
	addFunc          func(ctx context.Context, receiptID string, p *entity.PaymentRecord) (int64, error)
	updateAmountFunc func(ctx context.Context, receiptID string, paymentID int64, amount decimal.Decimal) error
	removeFunc       func(ctx context.Context, receiptID string, paymentID int64) error
	listFunc         func(ctx context.Context, receiptID string) ([]entity.PaymentRecord, error)

	nextID int64
	writes int
}

func (m *mockPaymentRepo) Add(ctx context.Context, receiptID string, p *entity.PaymentRecord) (int64, error) {
	m.writes++
	if m.addFunc != nil {
		return m.addFunc(ctx, receiptID, p)
	}
	m.nextID++
	p.ID = m.nextID
	return p.ID, nil
}

func (m *mockPaymentRepo) UpdateAmount(ctx context.Context, receiptID string, paymentID int64, amount decimal.Decimal) error {
	m.writes++
	if m.updateAmountFunc != nil {
		return m.updateAmountFunc(ctx, receiptID, paymentID, amount)
	}
	return nil
}

func (m *mockPaymentRepo) Remove(ctx context.Context, receiptID string, paymentID int64) error {
	m.writes++
	if m.removeFunc != nil {
		return m.removeFunc(ctx, receiptID, paymentID)
	}
	return nil
}

func (m *mockPaymentRepo) ListByReceipt(ctx context.Context, receiptID string) ([]entity.PaymentRecord, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, receiptID)
	}
	return nil, nil
}

type mockDocumentRepo struct {
	createFunc func(ctx context.Context, a *entity.DocumentArtifact) error
	docs       []*entity.DocumentArtifact
}

func (m *mockDocumentRepo) Create(ctx context.Context, a *entity.DocumentArtifact) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, a)
	}
	a.ID = int64(len(m.docs) + 1)
	m.docs = append(m.docs, a)
	return nil
}

func (m *mockDocumentRepo) Latest(ctx context.Context, receiptID string) (*entity.DocumentArtifact, error) {
	if len(m.docs) == 0 {
		return nil, nil
	}
	return m.docs[len(m.docs)-1], nil
}

func (m *mockDocumentRepo) ListByReceipt(ctx context.Context, receiptID string) ([]*entity.DocumentArtifact, error) {
	return m.docs, nil
}

type mockClinic struct {
	profile *entity.ClinicProfile
	err     error
}

func (m *mockClinic) LoadClinicProfile(ctx context.Context) (*entity.ClinicProfile, error) {
	return m.profile, m.err
}

type mockPatients map[int64]*entity.PatientRef

func (m mockPatients) LoadPatientRef(ctx context.Context, patientID int64) (*entity.PatientRef, error) {
	return m[patientID], nil
}

type mockMethods map[string]string

func (m mockMethods) Describe(ctx context.Context, code string) (string, error) {
	return m[code], nil
}

func savedReceipt() *entity.Receipt {
	day := time.Date(2025, 10, 16, 10, 0, 0, 0, time.UTC)
	return &entity.Receipt{
		ID:          "A000042/2025",
		PatientID:   7,
		VisitNoteID: 42,
		IssuedAt:    day,
		PaymentCode: entity.MethodCash,
		Items: []entity.LineItem{
			{ID: 1, Description: "Scaling", UnitPrice: d("50.00"), Quantity: 2},
			{ID: 2, Description: "X-ray", UnitPrice: d("20.00"), Quantity: 1},
		},
		Revision:  1,
		UpdatedAt: day,
	}
}

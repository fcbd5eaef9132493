package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/clinic-receipts/internal/application/port"
	"github.com/garyjia/clinic-receipts/internal/domain/entity"
	"github.com/garyjia/clinic-receipts/internal/infrastructure/persistence/sqldb"
)

// PatientRepository implements port.PatientDirectory over the patients table
type PatientRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPatientRepository creates a new patient repository
func NewPatientRepository(db *sql.DB, logger *zap.Logger) *PatientRepository {
	return &PatientRepository{
		db:     db,
		logger: logger,
	}
}

// LoadPatientRef returns the patient, or nil, nil when unknown.
// The mobile number is preferred over the fixed line.
func (r *PatientRepository) LoadPatientRef(ctx context.Context, patientID int64) (*entity.PatientRef, error) {
	query := `
		SELECT patient_id, name, receipt_name, preferred_name, icpassport, company,
			phone_mobile, phone_fixed, email, address
		FROM patients
		WHERE patient_id = ?
	`

	var p entity.PatientRef
	var mobile, fixed string
	err := sqldb.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, patientID).Scan(
		&p.ID,
		&p.Name,
		&p.ReceiptName,
		&p.PreferredName,
		&p.IdentityNo,
		&p.Company,
		&mobile,
		&fixed,
		&p.Email,
		&p.Address,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to load patient", zap.Int64("patient_id", patientID), zap.Error(err))
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}

	p.Phone = mobile
	if p.Phone == "" {
		p.Phone = fixed
	}
	return &p, nil
}

// Create inserts a patient row; Phone is stored as the mobile number
func (r *PatientRepository) Create(ctx context.Context, p *entity.PatientRef) error {
	query := `
		INSERT INTO patients (
			patient_id, name, receipt_name, preferred_name, icpassport, company,
			phone_mobile, phone_fixed, email, address
		) VALUES (?, ?, ?, ?, ?, ?, ?, '', ?, ?)
	`

	if _, err := sqldb.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		p.ID, p.Name, p.ReceiptName, p.PreferredName, p.IdentityNo, p.Company, p.Phone, p.Email, p.Address,
	); err != nil {
		r.logger.Error("Failed to create patient", zap.Int64("patient_id", p.ID), zap.Error(err))
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

var _ port.PatientDirectory = (*PatientRepository)(nil)

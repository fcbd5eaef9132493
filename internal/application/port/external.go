package port

import (
	"context"

	"github.com/garyjia/clinic-receipts/internal/domain/entity"
)

// CatalogueLookup resolves a stock or treatment code. Returns nil, nil for an unknown code.
type CatalogueLookup interface {
	LookupItem(ctx context.Context, code string) (*entity.CatalogueItem, error)
}

// PaymentMethodLookup maps a clinic payment code to its description.
// Returns "", nil for an unknown code.
type PaymentMethodLookup interface {
	Describe(ctx context.Context, code string) (string, error)
}

// ClinicProfileProvider supplies the issuing clinic identity
type ClinicProfileProvider interface {
	LoadClinicProfile(ctx context.Context) (*entity.ClinicProfile, error)
}

// PatientDirectory loads patient details. Returns nil, nil for an unknown patient.
type PatientDirectory interface {
	LoadPatientRef(ctx context.Context, patientID int64) (*entity.PatientRef, error)
}

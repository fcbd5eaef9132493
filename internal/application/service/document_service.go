package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/clinic-receipts/internal/application/port"
	"github.com/garyjia/clinic-receipts/internal/document"
	"github.com/garyjia/clinic-receipts/internal/domain/apperr"
	"github.com/garyjia/clinic-receipts/internal/domain/entity"
	"github.com/garyjia/clinic-receipts/internal/statement"
	"github.com/garyjia/clinic-receipts/pkg/utils"
)

// DocumentConfig holds rendering settings
type DocumentConfig struct {
	OutputDir string // relative to the storage root
	Currency  string
	Policy    entity.Policy
}

// RenderOptions select which copy of a receipt is rendered
type RenderOptions struct {
	CopyIndex *int  // nil takes the next free copy
	PaymentID int64 // payment the copy is issued for; 0 means the latest
}

// RenderResult describes one written receipt document
type RenderResult struct {
	Artifact  *entity.DocumentArtifact `json:"artifact,omitempty"` // nil for an unsaved draft
	FileName  string                   `json:"file_name"`
	Path      string                   `json:"path"`
	CopyIndex int                      `json:"copy_index"`
	Content   []byte                   `json:"-"`
}

// DocumentStatus reports whether the latest document reflects the receipt's current revision
type DocumentStatus struct {
	ReceiptID string                   `json:"receipt_id"`
	Revision  int64                    `json:"revision"`
	Latest    *entity.DocumentArtifact `json:"latest,omitempty"`
	Current   bool                     `json:"current"`
	Copies    int                      `json:"copies"`
}

// DocumentService renders receipt documents and statements
type DocumentService interface {
	Render(ctx context.Context, receiptID string, opts RenderOptions) (*RenderResult, error)
	RenderWith(ctx context.Context, r *entity.Receipt, clinic entity.ClinicProfile, patient entity.PatientRef, opts RenderOptions) (*RenderResult, error)
	Status(ctx context.Context, receiptID string) (*DocumentStatus, error)
	ExportStatement(ctx context.Context, receiptID string) ([]byte, string, error)
}

type documentServiceImpl struct {
	receipts  ReceiptService
	documents port.DocumentRepository
	clinic    port.ClinicProfileProvider
	patients  port.PatientDirectory
	methods   port.PaymentMethodLookup
	storage   port.FileStorage
	resolver  *document.Resolver
	exporter  *statement.Exporter
	cfg       DocumentConfig
	logger    Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	receipts ReceiptService,
	documents port.DocumentRepository,
	clinic port.ClinicProfileProvider,
	patients port.PatientDirectory,
	methods port.PaymentMethodLookup,
	storage port.FileStorage,
	exporter *statement.Exporter,
	cfg DocumentConfig,
	logger Logger,
) DocumentService {
	if cfg.Currency == "" {
		cfg.Currency = entity.DefaultCurrency
	}
	return &documentServiceImpl{
		receipts:  receipts,
		documents: documents,
		clinic:    clinic,
		patients:  patients,
		methods:   methods,
		storage:   storage,
		resolver:  document.NewResolver(storage, cfg.Policy.Location),
		exporter:  exporter,
		cfg:       cfg,
		logger:    logger,
	}
}

// Render loads the receipt with its clinic and patient and renders it
func (s *documentServiceImpl) Render(ctx context.Context, receiptID string, opts RenderOptions) (*RenderResult, error) {
	r, err := s.receipts.Get(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	clinic, err := s.loadClinic(ctx)
	if err != nil {
		return nil, err
	}
	patient, err := s.loadPatient(ctx, "render_document", r.PatientID)
	if err != nil {
		return nil, err
	}
	return s.RenderWith(ctx, r, *clinic, *patient, opts)
}

// RenderWith renders r and stores it at the resolved path. The receipt is never
// modified; a failed render leaves no file behind.
func (s *documentServiceImpl) RenderWith(ctx context.Context, r *entity.Receipt, clinic entity.ClinicProfile, patient entity.PatientRef, opts RenderOptions) (*RenderResult, error) {
	if r == nil || len(r.Items) == 0 {
		return nil, apperr.Validation("render_document", "a receipt must have at least one line item")
	}
	if opts.PaymentID != 0 && r.FindPayment(opts.PaymentID) < 0 {
		return nil, apperr.NotFound("render_document", "payment", opts.PaymentID)
	}
	resolved, err := s.resolver.Resolve(ctx, s.cfg.OutputDir, r, opts.CopyIndex)
	if err != nil {
		return nil, err
	}
	labels, err := s.methodLabels(ctx, r)
	if err != nil {
		return nil, err
	}

	layout := document.BuildLayout(r, clinic, patient, document.Options{
		Currency:     s.cfg.Currency,
		CopyIndex:    resolved.CopyIndex,
		MethodLabels: labels,
		Policy:       s.cfg.Policy,
		PaymentID:    opts.PaymentID,
	})
	content, err := document.NewPDFWriter(renderStamp(r)).Write(layout)
	if err != nil {
		s.logger.Error("Failed to render receipt", "receipt_id", r.ID, "error", err)
		return nil, err
	}

	replacing := s.storage.Exists(ctx, resolved.Path)
	if err := s.storage.Save(ctx, resolved.Path, content); err != nil {
		s.logger.Error("Failed to store receipt document", "receipt_id", r.ID, "path", resolved.Path, "error", err)
		return nil, apperr.Render("render_document", "output path "+resolved.Path+" is not writable", err)
	}

	result := &RenderResult{
		FileName:  resolved.FileName,
		Path:      resolved.Path,
		CopyIndex: resolved.CopyIndex,
		Content:   content,
	}
	if r.IsPersisted() {
		artifact := &entity.DocumentArtifact{
			ReceiptID: r.ID,
			CopyIndex: resolved.CopyIndex,
			Revision:  r.Revision,
			Path:      resolved.Path,
			Token:     uuid.New(),
		}
		if err := s.documents.Create(ctx, artifact); err != nil {
			s.logger.Error("Failed to record receipt document", "receipt_id", r.ID, "path", resolved.Path, "error", err)
			// only a copy this call created is removed
			if !replacing {
				if rmErr := s.storage.Delete(ctx, resolved.Path); rmErr != nil {
					s.logger.Error("Failed to remove unrecorded receipt document", "path", resolved.Path, "error", rmErr)
				}
			}
			return nil, apperr.Collaborator("render_document", err)
		}
		result.Artifact = artifact
	}

	s.logger.Info("Receipt rendered",
		"receipt_id", r.ID,
		"path", resolved.Path,
		"copy_index", resolved.CopyIndex,
		"revision", r.Revision,
		"installment", layout.IsInstallment())
	return result, nil
}

// Status reports the latest recorded document and whether it is current
func (s *documentServiceImpl) Status(ctx context.Context, receiptID string) (*DocumentStatus, error) {
	r, err := s.receipts.Get(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	docs, err := s.documents.ListByReceipt(ctx, r.ID)
	if err != nil {
		s.logger.Error("Failed to list receipt documents", "receipt_id", r.ID, "error", err)
		return nil, apperr.Collaborator("document_status", err)
	}
	latest, err := s.documents.Latest(ctx, r.ID)
	if err != nil {
		s.logger.Error("Failed to load latest receipt document", "receipt_id", r.ID, "error", err)
		return nil, apperr.Collaborator("document_status", err)
	}

	return &DocumentStatus{
		ReceiptID: r.ID,
		Revision:  r.Revision,
		Latest:    latest,
		Current:   latest.IsCurrent(r),
		Copies:    len(docs),
	}, nil
}

// ExportStatement builds the installment statement workbook and its file name
func (s *documentServiceImpl) ExportStatement(ctx context.Context, receiptID string) ([]byte, string, error) {
	r, err := s.receipts.Get(ctx, receiptID)
	if err != nil {
		return nil, "", err
	}
	patient, err := s.loadPatient(ctx, "export_statement", r.PatientID)
	if err != nil {
		return nil, "", err
	}
	labels, err := s.methodLabels(ctx, r)
	if err != nil {
		return nil, "", err
	}

	content, err := s.exporter.Export(r, *patient, labels)
	if err != nil {
		s.logger.Error("Failed to export statement", "receipt_id", r.ID, "error", err)
		return nil, "", apperr.Render("export_statement", "statement workbook failed", err)
	}
	return content, StatementFileName(r, s.cfg.Policy.Location), nil
}

// StatementFileName returns statement_{patient}_{receipt}_{YYYYMMDD}.xlsx, dated in loc
func StatementFileName(r *entity.Receipt, loc *time.Location) string {
	patient := entity.DefaultPatientSlug
	if r.PatientID != 0 {
		patient = strconv.FormatInt(r.PatientID, 10)
	}
	return fmt.Sprintf("statement_%s_%s_%s.xlsx",
		patient, utils.Slugify(r.ID, entity.DefaultReceiptSlug), entity.InLocation(r.IssuedAt, loc).Format("20060102"))
}

func (s *documentServiceImpl) loadClinic(ctx context.Context) (*entity.ClinicProfile, error) {
	clinic, err := s.clinic.LoadClinicProfile(ctx)
	if err != nil {
		s.logger.Error("Failed to load clinic profile", "error", err)
		return nil, apperr.Collaborator("load_clinic_profile", err)
	}
	if clinic == nil {
		return &entity.ClinicProfile{}, nil
	}
	return clinic, nil
}

func (s *documentServiceImpl) loadPatient(ctx context.Context, op string, patientID int64) (*entity.PatientRef, error) {
	patient, err := s.patients.LoadPatientRef(ctx, patientID)
	if err != nil {
		s.logger.Error("Failed to load patient", "patient_id", patientID, "error", err)
		return nil, apperr.Collaborator(op, err)
	}
	if patient == nil {
		return nil, apperr.NotFound(op, "patient", patientID)
	}
	return patient, nil
}

// methodLabels describes the header payment code and every payment method on r
func (s *documentServiceImpl) methodLabels(ctx context.Context, r *entity.Receipt) (map[string]string, error) {
	labels := make(map[string]string)
	if s.methods == nil {
		return labels, nil
	}

	codes := []string{r.PaymentCode}
	for _, p := range r.Payments {
		codes = append(codes, p.Method)
	}
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, done := labels[code]; done {
			continue
		}
		label, err := s.methods.Describe(ctx, code)
		if err != nil {
			s.logger.Error("Failed to describe payment method", "code", code, "error", err)
			return nil, apperr.Collaborator("describe_payment_method", err)
		}
		labels[code] = label
	}
	return labels, nil
}

// renderStamp is the creation date written into the PDF, fixed per revision
func renderStamp(r *entity.Receipt) time.Time {
	if !r.UpdatedAt.IsZero() {
		return r.UpdatedAt
	}
	return r.IssuedAt
}

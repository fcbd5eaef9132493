// Package container provides dependency injection and lifecycle management
// for the clinic receipt ledger.
package container

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/clinic-receipts/internal/application/draft"
	"github.com/garyjia/clinic-receipts/internal/application/port"
	"github.com/garyjia/clinic-receipts/internal/application/service"
	"github.com/garyjia/clinic-receipts/internal/config"
	"github.com/garyjia/clinic-receipts/internal/infrastructure/pdfreader"
	"github.com/garyjia/clinic-receipts/internal/infrastructure/persistence/repository"
	"github.com/garyjia/clinic-receipts/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/clinic-receipts/internal/infrastructure/settings"
	"github.com/garyjia/clinic-receipts/internal/infrastructure/storage"
	"github.com/garyjia/clinic-receipts/internal/statement"
	"github.com/garyjia/clinic-receipts/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqldb.DB
}

// ProvideDatabase opens the configured database, applies pending migrations
// and wraps the connection in a transaction manager.
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Driver:          cfg.Driver,
		Path:            cfg.Path,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	// An empty directory applies the migrations bundled for the driver
	if err := database.NewMigrator(db, logger).RunMigrations(cfg.MigrationsDir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqldb.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database bundle.
func ProvideRepositories(bundle *DatabaseBundle, prefix string, loc *time.Location, logger *zap.Logger) (*RepositoryBundle, error) {
	if bundle == nil || bundle.DB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	sqlDB := bundle.DB.DB
	return &RepositoryBundle{
		Receipt:       repository.NewReceiptRepository(bundle.TransactionMgr, prefix, loc, logger),
		Payment:       repository.NewPaymentRepository(sqlDB, logger),
		Document:      repository.NewDocumentRepository(sqlDB, logger),
		Catalogue:     repository.NewCatalogueRepository(sqlDB, logger),
		PaymentMethod: repository.NewPaymentMethodRepository(sqlDB, logger),
		Patient:       repository.NewPatientRepository(sqlDB, logger),
	}, nil
}

// ProvideStorage creates the artifact storage rooted at the receipt storage root.
func ProvideStorage(cfg *config.ReceiptConfig, logger *zap.Logger) (port.FileStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("receipt config is required")
	}
	if cfg.StorageRoot == "" {
		return nil, fmt.Errorf("receipt storage root is required")
	}
	return storage.NewLocalFileStorage(cfg.StorageRoot, logger), nil
}

// ProvideClinicProfile creates the clinic profile provider from configuration.
func ProvideClinicProfile(cfg *config.Config, logger *zap.Logger) port.ClinicProfileProvider {
	return settings.NewClinicProfileProvider(cfg.ClinicProfile(), cfg.BaseDir, logger)
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Config    *config.Config
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	Storage   port.FileStorage
	Clinic    port.ClinicProfileProvider
	Logger    *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Storage == nil {
		return nil, fmt.Errorf("file storage is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	policy := deps.Config.Policy()
	logger := &zapLoggerAdapter{logger: deps.Logger}

	receipts := service.NewReceiptService(
		deps.Repos.Receipt,
		deps.Repos.Payment,
		deps.TxManager,
		policy,
		logger,
	)

	documents := service.NewDocumentService(
		receipts,
		deps.Repos.Document,
		deps.Clinic,
		deps.Repos.Patient,
		deps.Repos.PaymentMethod,
		deps.Storage,
		statement.NewExporter(deps.Config.Receipt.Currency, policy, deps.Logger.Named("statement")),
		service.DocumentConfig{
			OutputDir: deps.Config.Receipt.OutputDir,
			Currency:  deps.Config.Receipt.Currency,
			Policy:    policy,
		},
		logger,
	)

	return &ServiceBundle{
		Receipt:  receipts,
		Document: documents,
		Drafts:   draft.NewBuilder(deps.Repos.Catalogue, logger),
		Reader:   pdfreader.NewReader(deps.Logger.Named("pdfreader")),
	}, nil
}

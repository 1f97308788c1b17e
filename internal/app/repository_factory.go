package app

import (
	"database/sql"
	"fmt"

	bookingDomain "github.com/felixgeelhaar/bookline/internal/booking/domain"
	bookingPersistence "github.com/felixgeelhaar/bookline/internal/booking/infrastructure/persistence"
	commissionDomain "github.com/felixgeelhaar/bookline/internal/commission/domain"
	commissionPersistence "github.com/felixgeelhaar/bookline/internal/commission/infrastructure/persistence"
	sharedApplication "github.com/felixgeelhaar/bookline/internal/shared/application"
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/database"
	sharedPersistence "github.com/felixgeelhaar/bookline/internal/shared/infrastructure/persistence"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryFactory creates repositories based on the database driver.
type RepositoryFactory struct {
	conn   database.Connection
	driver database.Driver
	tables database.Tables
}

// NewRepositoryFactory creates a new repository factory. The table names
// are validated before any repository is built.
func NewRepositoryFactory(conn database.Connection, tables database.Tables) (*RepositoryFactory, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return &RepositoryFactory{
		conn:   conn,
		driver: conn.Driver(),
		tables: tables,
	}, nil
}

// BookingRepository creates a booking repository for the configured driver.
func (f *RepositoryFactory) BookingRepository() (bookingDomain.Repository, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return bookingPersistence.NewPostgresBookingRepository(pool, f.tables.Bookings), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return bookingPersistence.NewSQLiteBookingRepository(db, f.tables.Bookings), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// RecordRepository creates a commission record repository for the configured driver.
func (f *RepositoryFactory) RecordRepository() (commissionDomain.RecordRepository, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return commissionPersistence.NewPostgresRecordRepository(pool, f.tables.Commissions), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return commissionPersistence.NewSQLiteRecordRepository(db, f.tables.Commissions), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// AvailabilityRepository creates a provider availability repository for the configured driver.
func (f *RepositoryFactory) AvailabilityRepository() (commissionDomain.AvailabilityRepository, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return commissionPersistence.NewPostgresAvailabilityRepository(pool, f.tables.Availability), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return commissionPersistence.NewSQLiteAvailabilityRepository(db, f.tables.Availability), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// AuditLog creates the audit log for the configured driver.
func (f *RepositoryFactory) AuditLog() (commissionDomain.AuditLog, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return commissionPersistence.NewPostgresAuditLog(pool, f.tables.Audit), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return commissionPersistence.NewSQLiteAuditLog(db, f.tables.Audit), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// UnitOfWork creates a unit of work for the configured driver.
func (f *RepositoryFactory) UnitOfWork() (sharedApplication.UnitOfWork, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return sharedPersistence.NewPostgresUnitOfWork(pool), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return sharedPersistence.NewSQLiteUnitOfWork(db), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// Repositories bundles everything the lifecycle services need.
type Repositories struct {
	Bookings     bookingDomain.Repository
	Records      commissionDomain.RecordRepository
	Availability commissionDomain.AvailabilityRepository
	Audit        commissionDomain.AuditLog
	UnitOfWork   sharedApplication.UnitOfWork
}

// All builds every repository.
func (f *RepositoryFactory) All() (*Repositories, error) {
	var (
		r   Repositories
		err error
	)
	if r.Bookings, err = f.BookingRepository(); err != nil {
		return nil, fmt.Errorf("failed to create booking repository: %w", err)
	}
	if r.Records, err = f.RecordRepository(); err != nil {
		return nil, fmt.Errorf("failed to create commission repository: %w", err)
	}
	if r.Availability, err = f.AvailabilityRepository(); err != nil {
		return nil, fmt.Errorf("failed to create availability repository: %w", err)
	}
	if r.Audit, err = f.AuditLog(); err != nil {
		return nil, fmt.Errorf("failed to create audit log: %w", err)
	}
	if r.UnitOfWork, err = f.UnitOfWork(); err != nil {
		return nil, fmt.Errorf("failed to create unit of work: %w", err)
	}
	return &r, nil
}

func (f *RepositoryFactory) getPostgresPool() (*pgxpool.Pool, error) {
	pgConn, ok := f.conn.(interface{ Pool() *pgxpool.Pool })
	if !ok {
		return nil, fmt.Errorf("postgres connection does not expose Pool()")
	}
	return pgConn.Pool(), nil
}

func (f *RepositoryFactory) getSQLiteDB() (*sql.DB, error) {
	sqliteConn, ok := f.conn.(interface{ DB() *sql.DB })
	if !ok {
		return nil, fmt.Errorf("sqlite connection does not expose DB()")
	}
	return sqliteConn.DB(), nil
}

// Driver returns the database driver type.
func (f *RepositoryFactory) Driver() database.Driver {
	return f.driver
}

package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrConfiguration marks a missing or malformed configuration value.
var ErrConfiguration = errors.New("configuration error")

// MissingError lists required keys that were not set.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return "missing required configuration: " + strings.Join(e.Keys, ", ")
}

// Is matches ErrConfiguration.
func (e *MissingError) Is(target error) bool {
	return target == ErrConfiguration
}

// Enforcer keys.
const (
	EnvEnforcerStoreEndpoint          = "ENFORCER_STORE_ENDPOINT"
	EnvEnforcerStoreCredentials       = "ENFORCER_STORE_CREDENTIALS"
	EnvEnforcerDatabaseID             = "ENFORCER_DATABASE_ID"
	EnvEnforcerCommissionCollection   = "ENFORCER_COMMISSION_COLLECTION"
	EnvEnforcerAvailabilityCollection = "ENFORCER_AVAILABILITY_COLLECTION"
	EnvEnforcerAuditCollection        = "ENFORCER_AUDIT_COLLECTION"
	EnvEnforcerBookingCollection      = "ENFORCER_BOOKING_COLLECTION"
	EnvEnforcerBatchSize              = "ENFORCER_BATCH_SIZE"
	EnvEnforcerTimeout                = "ENFORCER_TIMEOUT"
)

var requiredEnforcerKeys = []string{
	EnvEnforcerStoreEndpoint,
	EnvEnforcerStoreCredentials,
	EnvEnforcerDatabaseID,
	EnvEnforcerCommissionCollection,
	EnvEnforcerAvailabilityCollection,
	EnvEnforcerAuditCollection,
}

// EnforcerConfig is the configuration of one deadline enforcement run.
type EnforcerConfig struct {
	StoreEndpoint          string
	StoreCredentials       string
	DatabaseID             string
	CommissionCollection   string
	AvailabilityCollection string
	AuditCollection        string
	BookingCollection      string
	BatchSize              int
	Timeout                time.Duration
}

// LoadEnforcer reads the enforcer configuration. It is called on every run
// so a fixed environment takes effect without a restart. Any missing
// required key yields a *MissingError naming all of them.
func LoadEnforcer() (*EnforcerConfig, error) {
	_ = godotenv.Load()

	var missing []string
	for _, key := range requiredEnforcerKeys {
		if strings.TrimSpace(os.Getenv(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingError{Keys: missing}
	}

	batch := getIntEnv(EnvEnforcerBatchSize, 100)
	if batch <= 0 {
		batch = 100
	}

	return &EnforcerConfig{
		StoreEndpoint:          os.Getenv(EnvEnforcerStoreEndpoint),
		StoreCredentials:       os.Getenv(EnvEnforcerStoreCredentials),
		DatabaseID:             os.Getenv(EnvEnforcerDatabaseID),
		CommissionCollection:   os.Getenv(EnvEnforcerCommissionCollection),
		AvailabilityCollection: os.Getenv(EnvEnforcerAvailabilityCollection),
		AuditCollection:        os.Getenv(EnvEnforcerAuditCollection),
		BookingCollection:      getEnv(EnvEnforcerBookingCollection, "bookings"),
		BatchSize:              batch,
		Timeout:                getDurationEnv(EnvEnforcerTimeout, 2*time.Minute),
	}, nil
}

package database

import (
	"fmt"
	"regexp"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateIdentifier rejects anything that cannot be spliced into SQL as a
// bare table name.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid table identifier %q", name)
	}
	return nil
}

// Tables names the record collections used by the repositories.
type Tables struct {
	Bookings     string
	Commissions  string
	Availability string
	Audit        string
}

// DefaultTables matches the bundled migrations.
func DefaultTables() Tables {
	return Tables{
		Bookings:     "bookings",
		Commissions:  "commission_records",
		Availability: "provider_availability",
		Audit:        "audit_logs",
	}
}

// Validate checks every identifier.
func (t Tables) Validate() error {
	for _, name := range []string{t.Bookings, t.Commissions, t.Availability, t.Audit} {
		if err := ValidateIdentifier(name); err != nil {
			return err
		}
	}
	return nil
}

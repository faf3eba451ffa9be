// internal/config/database.go
package config

import "fmt"

// DSN renders the keyword/value connection string for the registry database.
// Timestamps are stored in UTC; legislative-time math happens in Go against
// LegislativeLocation.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

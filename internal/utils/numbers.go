// internal/utils/numbers.go
package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/rentalregistry/strr-backend/internal/models"
)

// Prefixes for registration numbers by type.
var registrationPrefixes = map[models.RegistrationType]string{
	models.RegistrationTypeHost:        "BCH",
	models.RegistrationTypePlatform:    "BCP",
	models.RegistrationTypeStrataHotel: "BCS",
}

func randomDigits(length int) (string, error) {
	const charset = "0123456789"
	b := make([]byte, length)

	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}

	return string(b), nil
}

// GenerateApplicationNumber produces a 14-digit application code. Uniqueness
// is enforced by the caller, which retries on collision.
func GenerateApplicationNumber() (string, error) {
	return randomDigits(14)
}

// GenerateRegistrationNumber produces a type-prefixed registration number:
// BCH/BCP/BCS + two-digit year + six random digits.
func GenerateRegistrationNumber(registrationType models.RegistrationType, now time.Time) (string, error) {
	prefix, ok := registrationPrefixes[registrationType]
	if !ok {
		return "", fmt.Errorf("unknown registration type: %s", registrationType)
	}

	digits, err := randomDigits(6)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%02d%s", prefix, now.Year()%100, digits), nil
}

// GenerateFileKey builds a unique object-store key for uploaded files.
func GenerateFileKey(folder, filename string) (string, error) {
	suffix, err := randomDigits(8)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%d-%s-%s", folder, time.Now().UnixNano(), suffix, filename), nil
}

// internal/services/permit_validation_service_test.go
package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rentalregistry/strr-backend/internal/models"
	"github.com/rentalregistry/strr-backend/internal/utils"
)

func newPermitValidationService(t *testing.T, db *gorm.DB) *PermitValidationService {
	t.Helper()

	cfg := testConfig()
	eventService := NewEventService(db)
	notificationService := NewNotificationServiceWithPublisher(db, cfg, &capturePublisher{})
	storageService, err := NewStorageService(cfg)
	require.NoError(t, err)
	return NewPermitValidationService(db, cfg, storageService, notificationService, eventService)
}

func createRegistrationWithProperty(t *testing.T, db *gorm.DB, owner *models.User, number string) *models.Registration {
	t.Helper()

	registration := &models.Registration{
		RegistrationNumber: number,
		RegistrationType:   models.RegistrationTypeHost,
		Status:             models.RegistrationStatusActive,
		StartDate:          time.Now(),
		ExpiryDate:         time.Now().AddDate(1, 0, 0),
		UserID:             owner.ID,
	}
	require.NoError(t, db.Create(registration).Error)
	require.NoError(t, db.Create(&models.RentalProperty{
		RegistrationID: registration.ID,
		UnitNumber:     "4",
		StreetNumber:   "123",
		StreetName:     "Main St",
		City:           "Victoria",
		Province:       "BC",
		PostalCode:     "V8V 1A1",
		OneLineAddress: "4-123 Main St Victoria BC V8V 1A1",
	}).Error)
	return registration
}

func matchingPermitRecord(number string) PermitRecord {
	return PermitRecord{
		RegistrationNumber: number,
		PermitNumber:       "P-2026-001",
		UnitNumber:         "4",
		StreetNumber:       "123",
		PostalCode:         "V8V 1A1",
		Address:            "4-123 Main St Victoria BC V8V 1A1",
		Status:             "ISSUED",
		ValidUntil:         "2027-01-31",
	}
}

func TestValidateBatch_MatchingRecord(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, models.UserRoleSubmitter)
	createRegistrationWithProperty(t, db, owner, "BCH26200001")
	svc := newPermitValidationService(t, db)

	results, err := svc.ValidateBatch(context.Background(), []PermitRecord{matchingPermitRecord("BCH26200001")})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, results[0].Valid)
	assert.Empty(t, results[0].Errors)
	assert.Equal(t, "ISSUED", results[0].PermitStatus)
	assert.Equal(t, "2027-01-31", results[0].PermitValidUntil)
}

func TestValidateBatch_MismatchCodes(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, models.UserRoleSubmitter)
	createRegistrationWithProperty(t, db, owner, "BCH26200002")
	svc := newPermitValidationService(t, db)

	tests := []struct {
		name   string
		mutate func(*PermitRecord)
		code   string
	}{
		{"street number", func(r *PermitRecord) { r.StreetNumber = "125" }, utils.ErrCodeStreetNumberMismatch},
		{"postal code", func(r *PermitRecord) { r.PostalCode = "V9A 2B2" }, utils.ErrCodePostalCodeMismatch},
		{"unit number", func(r *PermitRecord) { r.UnitNumber = "5" }, utils.ErrCodeUnitNumberMismatch},
		{"address", func(r *PermitRecord) { r.Address = "99 Other Rd Victoria BC V8V 1A1" }, utils.ErrCodeAddressMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := matchingPermitRecord("BCH26200002")
			tt.mutate(&record)

			results, err := svc.ValidateBatch(context.Background(), []PermitRecord{record})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.False(t, results[0].Valid)
			assert.Contains(t, results[0].Errors, tt.code)
		})
	}
}

func TestValidateBatch_NormalizesPostalCode(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, models.UserRoleSubmitter)
	createRegistrationWithProperty(t, db, owner, "BCH26200003")
	svc := newPermitValidationService(t, db)

	record := matchingPermitRecord("BCH26200003")
	record.PostalCode = "v8v1a1"

	results, err := svc.ValidateBatch(context.Background(), []PermitRecord{record})
	require.NoError(t, err)
	assert.True(t, results[0].Valid)
}

func TestValidateBatch_UnknownRegistration(t *testing.T) {
	db := setupTestDB(t)
	svc := newPermitValidationService(t, db)

	results, err := svc.ValidateBatch(context.Background(), []PermitRecord{matchingPermitRecord("BCH26999999")})
	require.NoError(t, err)
	assert.False(t, results[0].Valid)
	assert.Contains(t, results[0].Errors, utils.ErrCodeAddressMismatch)
}

func TestValidateBatch_PreservesInputOrder(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, models.UserRoleSubmitter)
	svc := newPermitValidationService(t, db)

	records := make([]PermitRecord, 20)
	for i := range records {
		number := fmt.Sprintf("BCH262100%02d", i)
		createRegistrationWithProperty(t, db, owner, number)
		records[i] = matchingPermitRecord(number)
	}

	results, err := svc.ValidateBatch(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, results, 20)
	for i, result := range results {
		assert.Equal(t, records[i].RegistrationNumber, result.RegistrationNumber)
		assert.True(t, result.Valid)
	}
}

func TestValidateBatch_CancelledContext(t *testing.T) {
	db := setupTestDB(t)
	svc := newPermitValidationService(t, db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := make([]PermitRecord, 100)
	for i := range records {
		records[i] = matchingPermitRecord(fmt.Sprintf("BCH26220%03d", i))
	}

	_, err := svc.ValidateBatch(ctx, records)
	assert.ErrorIs(t, err, context.Canceled)
}

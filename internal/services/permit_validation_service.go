// internal/services/permit_validation_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/rentalregistry/strr-backend/internal/config"
	"github.com/rentalregistry/strr-backend/internal/models"
	"github.com/rentalregistry/strr-backend/internal/utils"
)

// PermitRecord is one row of a local-government permit feed to be matched
// against a registration's rental property address.
type PermitRecord struct {
	RegistrationNumber string `json:"registration_number"`
	PermitNumber       string `json:"permit_number"`
	UnitNumber         string `json:"unit_number"`
	StreetNumber       string `json:"street_number"`
	PostalCode         string `json:"postal_code"`
	Address            string `json:"address"`
	Status             string `json:"status"`
	ValidUntil         string `json:"valid_until"`
}

type PermitValidationResult struct {
	RegistrationNumber string   `json:"registration_number"`
	PermitNumber       string   `json:"permit_number"`
	Valid              bool     `json:"valid"`
	Errors             []string `json:"errors,omitempty"`
	PermitStatus       string   `json:"permit_status,omitempty"`
	PermitValidUntil   string   `json:"permit_valid_until,omitempty"`
}

type PermitValidationService struct {
	db                  *gorm.DB
	config              *config.Config
	storageService      *StorageService
	notificationService *NotificationService
	eventService        *EventService
}

func NewPermitValidationService(db *gorm.DB, cfg *config.Config, storageService *StorageService, notificationService *NotificationService, eventService *EventService) *PermitValidationService {
	return &PermitValidationService{
		db:                  db,
		config:              cfg,
		storageService:      storageService,
		notificationService: notificationService,
		eventService:        eventService,
	}
}

// ValidateBatch fans the records out over a bounded worker pool. Results come
// back in input order; one bad row never stops the batch.
func (s *PermitValidationService) ValidateBatch(ctx context.Context, records []PermitRecord) ([]PermitValidationResult, error) {
	workers := s.config.Jobs.ValidatorWorkers
	if workers < 1 {
		workers = 1
	}

	results := make([]PermitValidationResult, len(records))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = s.validateRecord(records[i])
			}
		}()
	}

	for i := range records {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return results, nil
}

// RunValidation validates the records, persists permit data on matching
// registrations, uploads the result report and announces completion.
func (s *PermitValidationService) RunValidation(ctx context.Context, source string, records []PermitRecord) ([]PermitValidationResult, error) {
	results, err := s.ValidateBatch(ctx, records)
	if err != nil {
		return nil, err
	}

	valid := 0
	for _, r := range results {
		if r.Valid {
			valid++
		}
	}

	reportKey, err := s.uploadReport(source, results)
	if err != nil {
		// The validation itself succeeded; keep the results.
		logrus.WithError(err).Error("Failed to upload permit validation report")
	}

	err = s.eventService.SaveEvent(SaveEventParams{
		EventType: models.EventTypeRegistration,
		EventName: models.EventPermitValidationComplete,
		Details:   fmt.Sprintf("Permit validation for %s: %d/%d records valid", source, valid, len(results)),
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to record permit validation event")
	}

	if err := s.notificationService.PublishBatchEvent("PERMIT_VALIDATION_COMPLETE", map[string]interface{}{
		"source":    source,
		"total":     len(results),
		"valid":     valid,
		"invalid":   len(results) - valid,
		"reportKey": reportKey,
	}); err != nil {
		logrus.WithError(err).Error("Failed to publish permit validation completion")
	}

	return results, nil
}

func (s *PermitValidationService) validateRecord(record PermitRecord) PermitValidationResult {
	result := PermitValidationResult{
		RegistrationNumber: record.RegistrationNumber,
		PermitNumber:       record.PermitNumber,
	}

	var registration models.Registration
	err := s.db.Preload("RentalProperty").
		Where("registration_number = ?", record.RegistrationNumber).
		First(&registration).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result.Errors = append(result.Errors, utils.ErrCodeAddressMismatch)
		} else {
			result.Errors = append(result.Errors, "LOOKUP_FAILED")
		}
		return result
	}

	property := registration.RentalProperty
	if property == nil {
		result.Errors = append(result.Errors, utils.ErrCodeAddressMismatch)
		return result
	}

	if !equalTrimmed(record.StreetNumber, property.StreetNumber) {
		result.Errors = append(result.Errors, utils.ErrCodeStreetNumberMismatch)
	}
	if utils.NormalizePostalCode(record.PostalCode) != utils.NormalizePostalCode(property.PostalCode) {
		result.Errors = append(result.Errors, utils.ErrCodePostalCodeMismatch)
	}
	if !equalTrimmed(record.UnitNumber, property.UnitNumber) {
		result.Errors = append(result.Errors, utils.ErrCodeUnitNumberMismatch)
	}
	if record.Address != "" && !strings.EqualFold(strings.TrimSpace(record.Address), property.OneLineAddress) {
		result.Errors = append(result.Errors, utils.ErrCodeAddressMismatch)
	}

	if len(result.Errors) > 0 {
		return result
	}

	result.Valid = true
	result.PermitStatus = record.Status
	result.PermitValidUntil = record.ValidUntil
	return result
}

func (s *PermitValidationService) uploadReport(source string, results []PermitValidationResult) (string, error) {
	content, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("failed to marshal validation report: %w", err)
	}

	key := fmt.Sprintf("reports/permit-validation/%s_%s.json", source, time.Now().Format("20060102T150405"))
	upload, err := s.storageService.PutReport(content, key, "application/json")
	if err != nil {
		return "", err
	}
	return upload.Key, nil
}

func equalTrimmed(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

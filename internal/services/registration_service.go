// internal/services/registration_service.go
package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentalregistry/strr-backend/internal/config"
	"github.com/rentalregistry/strr-backend/internal/database"
	"github.com/rentalregistry/strr-backend/internal/models"
	"github.com/rentalregistry/strr-backend/internal/utils"
)

var (
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrRegistrationInactive = errors.New("registration is not active")
	ErrNumberExhausted      = errors.New("could not generate a unique number")
)

type RegistrationService struct {
	db           *gorm.DB
	config       *config.Config
	eventService *EventService
}

type RegistrationSearchParams struct {
	utils.PaginationParams
	UserID           *uuid.UUID                 `json:"user_id,omitempty"`
	RegistrationType *models.RegistrationType   `json:"registration_type,omitempty"`
	Status           *models.RegistrationStatus `json:"status,omitempty"`
	ExpiringBefore   *time.Time                 `json:"expiring_before,omitempty"`
}

type StatusActionRequest struct {
	Reason string `json:"reason,omitempty"`
}

type SendRegistrationNocRequest struct {
	Content string `json:"content" validate:"required"`
}

func NewRegistrationService(db *gorm.DB, cfg *config.Config, eventService *EventService) *RegistrationService {
	return &RegistrationService{
		db:           db,
		config:       cfg,
		eventService: eventService,
	}
}

// CreateFromApplication materializes a registration when an application
// reaches an approved status. Runs inside the caller's transaction so the
// application update and the new registration commit together.
func (s *RegistrationService) CreateFromApplication(tx *gorm.DB, application *models.Application, details models.RegistrationDetails) (*models.Registration, error) {
	now := time.Now().In(s.config.LegislativeLocation())

	number, err := s.generateUniqueRegistrationNumber(tx, application.RegistrationType, now)
	if err != nil {
		return nil, err
	}

	registration := &models.Registration{
		RegistrationNumber: number,
		RegistrationType:   application.RegistrationType,
		Status:             models.RegistrationStatusActive,
		StartDate:          now,
		ExpiryDate:         now.AddDate(0, 0, s.config.Registry.RegistrationTermDays),
		SbcAccountID:       application.PaymentAccount,
		UserID:             application.SubmitterID,
		ReviewerID:         application.ReviewerID,
	}

	if err := details.Apply(registration); err != nil {
		return nil, err
	}

	if err := tx.Create(registration).Error; err != nil {
		return nil, fmt.Errorf("failed to create registration: %w", err)
	}

	if err := s.snapshotTx(tx, registration); err != nil {
		return nil, err
	}

	if err := s.eventService.SaveEventTx(tx, SaveEventParams{
		EventType:          models.EventTypeRegistration,
		EventName:          models.EventRegistrationCreated,
		ApplicationID:      &application.ID,
		RegistrationID:     &registration.ID,
		UserID:             &application.SubmitterID,
		Details:            fmt.Sprintf("Registration %s created", registration.RegistrationNumber),
		VisibleToApplicant: true,
	}); err != nil {
		return nil, err
	}

	return registration, nil
}

// ExtendForRenewal applies the renewal extension law to an existing
// registration once a renewal application is approved.
//
// Extension rule: an EXPIRED registration restarts from today so the new
// expiry is always in the future; an ACTIVE one extends from its current
// expiry. The provisional flag guards against double extension on the
// provisional-then-manual approval path.
func (s *RegistrationService) ExtendForRenewal(tx *gorm.DB, application *models.Application, provisional bool) (*models.Registration, error) {
	if application.RegistrationID == nil {
		return nil, errors.New("renewal application has no registration")
	}

	var registration models.Registration
	if err := tx.First(&registration, *application.RegistrationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if registration.ProvisionalExtensionApplied {
		// Already extended provisionally this renewal cycle; the manual
		// approval closes the cycle without extending again.
		if !provisional {
			registration.ProvisionalExtensionApplied = false
			if err := tx.Save(&registration).Error; err != nil {
				return nil, fmt.Errorf("failed to update registration: %w", err)
			}
		}
		return &registration, nil
	}

	loc := s.config.LegislativeLocation()
	now := time.Now().In(loc)
	term := s.config.Registry.RegistrationTermDays

	if registration.Status == models.RegistrationStatusExpired {
		registration.ExpiryDate = now.AddDate(0, 0, term)
		registration.Status = models.RegistrationStatusActive
	} else {
		registration.ExpiryDate = registration.ExpiryDate.AddDate(0, 0, term)
	}
	registration.ProvisionalExtensionApplied = provisional

	if err := tx.Save(&registration).Error; err != nil {
		return nil, fmt.Errorf("failed to update registration: %w", err)
	}

	if err := s.snapshotTx(tx, &registration); err != nil {
		return nil, err
	}

	if err := s.eventService.SaveEventTx(tx, SaveEventParams{
		EventType:          models.EventTypeRegistration,
		EventName:          models.EventRegistrationRenewed,
		ApplicationID:      &application.ID,
		RegistrationID:     &registration.ID,
		UserID:             &application.SubmitterID,
		Details:            fmt.Sprintf("Registration %s renewed until %s", registration.RegistrationNumber, registration.ExpiryDate.Format("2006-01-02")),
		VisibleToApplicant: true,
	}); err != nil {
		return nil, err
	}

	return &registration, nil
}

// ResetRenewalCycle clears the double-extension guard when a new renewal
// application is submitted for the registration.
func (s *RegistrationService) ResetRenewalCycle(registrationID uuid.UUID) error {
	return s.db.Model(&models.Registration{}).
		Where("id = ?", registrationID).
		Update("provisional_extension_applied", false).Error
}

// Expire flips a single ACTIVE registration to EXPIRED once its expiry date
// has passed in legislative time. Returns gorm.ErrRecordNotFound semantics via
// ErrRegistrationNotFound.
func (s *RegistrationService) Expire(registrationID uuid.UUID) error {
	loc := s.config.LegislativeLocation()
	now := time.Now().In(loc)

	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var registration models.Registration
		if err := tx.First(&registration, registrationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRegistrationNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}

		if registration.Status != models.RegistrationStatusActive || !registration.ExpiryDate.Before(now) {
			return nil
		}

		registration.Status = models.RegistrationStatusExpired
		if err := tx.Save(&registration).Error; err != nil {
			return fmt.Errorf("failed to expire registration: %w", err)
		}

		if err := s.snapshotTx(tx, &registration); err != nil {
			return err
		}

		return s.eventService.SaveEventTx(tx, SaveEventParams{
			EventType:          models.EventTypeRegistration,
			EventName:          models.EventRegistrationExpired,
			RegistrationID:     &registration.ID,
			UserID:             &registration.UserID,
			Details:            fmt.Sprintf("Registration %s expired", registration.RegistrationNumber),
			VisibleToApplicant: true,
		})
	})
}

// Suspend is a staff action: ACTIVE -> SUSPENDED with an optional reason.
func (s *RegistrationService) Suspend(registrationID uuid.UUID, staffID uuid.UUID, req *StatusActionRequest) (*models.Registration, error) {
	return s.staffStatusChange(registrationID, staffID, models.RegistrationStatusSuspended, models.EventRegistrationSuspended, req.Reason)
}

// Cancel is a staff action: sets CANCELLED and records the cancellation date.
func (s *RegistrationService) Cancel(registrationID uuid.UUID, staffID uuid.UUID, req *StatusActionRequest) (*models.Registration, error) {
	return s.staffStatusChange(registrationID, staffID, models.RegistrationStatusCancelled, models.EventRegistrationCancelled, req.Reason)
}

// Reinstate reactivates a suspended or cancelled registration by explicit
// staff action.
func (s *RegistrationService) Reinstate(registrationID uuid.UUID, staffID uuid.UUID, req *StatusActionRequest) (*models.Registration, error) {
	return s.staffStatusChange(registrationID, staffID, models.RegistrationStatusActive, models.EventRegistrationReinstated, req.Reason)
}

func (s *RegistrationService) staffStatusChange(registrationID uuid.UUID, staffID uuid.UUID, target models.RegistrationStatus, eventName models.EventName, reason string) (*models.Registration, error) {
	var registration models.Registration

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.First(&registration, registrationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRegistrationNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}

		if registration.Status == target {
			return fmt.Errorf("registration is already %s", target)
		}

		registration.Status = target
		registration.DeciderID = &staffID
		if target == models.RegistrationStatusCancelled {
			now := time.Now()
			registration.CancelledDate = &now
		}
		if target == models.RegistrationStatusActive {
			registration.CancelledDate = nil
		}

		if err := tx.Save(&registration).Error; err != nil {
			return fmt.Errorf("failed to update registration: %w", err)
		}

		if err := s.snapshotTx(tx, &registration); err != nil {
			return err
		}

		return s.eventService.SaveEventTx(tx, SaveEventParams{
			EventType:          models.EventTypeRegistration,
			EventName:          eventName,
			RegistrationID:     &registration.ID,
			UserID:             &staffID,
			Details:            reason,
			VisibleToApplicant: true,
		})
	})
	if err != nil {
		return nil, err
	}

	return &registration, nil
}

// SendNoticeOfConsideration opens a registration-level NOC window for
// compliance actions outside a renewal flow.
func (s *RegistrationService) SendNoticeOfConsideration(registrationID uuid.UUID, staffID uuid.UUID, req *SendRegistrationNocRequest) (*models.RegistrationNoticeOfConsideration, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	loc := s.config.LegislativeLocation()
	start, end := nocWindow(time.Now(), loc, s.config.Registry.NocWindowDays)

	var noc *models.RegistrationNoticeOfConsideration
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var registration models.Registration
		if err := tx.First(&registration, registrationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRegistrationNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}

		if registration.Status != models.RegistrationStatusActive {
			return ErrRegistrationInactive
		}

		noc = &models.RegistrationNoticeOfConsideration{
			RegistrationID: registration.ID,
			Content:        req.Content,
			StartDate:      start,
			EndDate:        end,
		}
		if err := tx.Create(noc).Error; err != nil {
			return fmt.Errorf("failed to create notice of consideration: %w", err)
		}

		pending := models.NocStatusPending
		registration.NocStatus = &pending
		if err := tx.Save(&registration).Error; err != nil {
			return fmt.Errorf("failed to update registration: %w", err)
		}

		return s.eventService.SaveEventTx(tx, SaveEventParams{
			EventType:          models.EventTypeRegistration,
			EventName:          models.EventNocSent,
			RegistrationID:     &registration.ID,
			UserID:             &staffID,
			Details:            fmt.Sprintf("Notice of consideration sent, response due %s", end.Format("2006-01-02")),
			VisibleToApplicant: true,
		})
	})
	if err != nil {
		return nil, err
	}

	return noc, nil
}

// ExpireNoc flips a registration's NOC status to expired once the window has
// passed without a response.
func (s *RegistrationService) ExpireNoc(registrationID uuid.UUID) error {
	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var registration models.Registration
		if err := tx.First(&registration, registrationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRegistrationNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}

		if registration.NocStatus == nil || *registration.NocStatus != models.NocStatusPending {
			return nil
		}

		expired := models.NocStatusExpired
		registration.NocStatus = &expired
		if err := tx.Save(&registration).Error; err != nil {
			return fmt.Errorf("failed to update registration: %w", err)
		}

		return s.eventService.SaveEventTx(tx, SaveEventParams{
			EventType:      models.EventTypeRegistration,
			EventName:      models.EventNocExpired,
			RegistrationID: &registration.ID,
			Details:        "Notice of consideration window passed without response",
		})
	})
}

// IssueCertificate records a generated certificate file for an active
// registration.
func (s *RegistrationService) IssueCertificate(registrationID uuid.UUID, issuerID uuid.UUID, fileKey string) (*models.Certificate, error) {
	var registration models.Registration
	if err := s.db.First(&registration, registrationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if registration.Status != models.RegistrationStatusActive {
		return nil, ErrRegistrationInactive
	}

	certificate := &models.Certificate{
		RegistrationID: registration.ID,
		FileKey:        fileKey,
		IssuedDate:     time.Now(),
		IssuerID:       &issuerID,
	}
	if err := s.db.Create(certificate).Error; err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	if err := s.eventService.SaveEvent(SaveEventParams{
		EventType:          models.EventTypeRegistration,
		EventName:          models.EventCertificateIssued,
		RegistrationID:     &registration.ID,
		UserID:             &issuerID,
		VisibleToApplicant: true,
	}); err != nil {
		return nil, err
	}

	return certificate, nil
}

// AddDocument links an uploaded supporting file to the registration.
func (s *RegistrationService) AddDocument(registrationID uuid.UUID, fileName, fileKey, fileType, documentType string) (*models.Document, error) {
	var registration models.Registration
	if err := s.db.First(&registration, registrationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	document := &models.Document{
		RegistrationID: registration.ID,
		FileName:       fileName,
		FileKey:        fileKey,
		FileType:       fileType,
		DocumentType:   documentType,
	}
	if err := s.db.Create(document).Error; err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	return document, nil
}

func (s *RegistrationService) GetRegistration(id uuid.UUID) (*models.Registration, error) {
	var registration models.Registration
	if err := s.db.Preload("RentalProperty").Preload("PlatformRegistration").
		Preload("StrataHotelRegistration").Preload("Documents").Preload("Certificates").
		First(&registration, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &registration, nil
}

// GetExistingHostRegistrations is the duplicate-registration guard: it lists
// non-terminal host registrations the user already holds for the address.
// This is a validation-time check, not a schema constraint.
func (s *RegistrationService) GetExistingHostRegistrations(userID uuid.UUID, oneLineAddress string) ([]models.Registration, error) {
	var registrations []models.Registration
	err := s.db.
		Joins("JOIN rental_properties ON rental_properties.registration_id = registrations.id").
		Where("registrations.user_id = ? AND rental_properties.one_line_address = ?", userID, oneLineAddress).
		Where("registrations.status IN ?", []models.RegistrationStatus{
			models.RegistrationStatusActive,
			models.RegistrationStatusSuspended,
		}).
		Find(&registrations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch host registrations: %w", err)
	}
	return registrations, nil
}

func (s *RegistrationService) SearchRegistrations(params RegistrationSearchParams) ([]models.Registration, int64, error) {
	query := s.db.Model(&models.Registration{}).
		Preload("RentalProperty").Preload("PlatformRegistration").Preload("StrataHotelRegistration")

	if params.UserID != nil {
		query = query.Where("user_id = ?", *params.UserID)
	}
	if params.RegistrationType != nil {
		query = query.Where("registration_type = ?", *params.RegistrationType)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.ExpiringBefore != nil {
		query = query.Where("expiry_date < ?", *params.ExpiringBefore)
	}
	if params.Search != "" {
		query = query.Where("registration_number ILIKE ?", "%"+params.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count registrations: %w", err)
	}

	allowedSortFields := []string{"created_at", "expiry_date", "status", "registration_number"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var registrations []models.Registration
	if err := query.Find(&registrations).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch registrations: %w", err)
	}

	return registrations, total, nil
}

func (s *RegistrationService) generateUniqueRegistrationNumber(tx *gorm.DB, registrationType models.RegistrationType, now time.Time) (string, error) {
	for attempt := 0; attempt < s.config.Registry.NumberMaxAttempts; attempt++ {
		number, err := utils.GenerateRegistrationNumber(registrationType, now)
		if err != nil {
			return "", fmt.Errorf("failed to generate registration number: %w", err)
		}

		var count int64
		if err := tx.Model(&models.Registration{}).Where("registration_number = ?", number).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check registration number: %w", err)
		}
		if count == 0 {
			return number, nil
		}
	}
	return "", ErrNumberExhausted
}

func (s *RegistrationService) snapshotTx(tx *gorm.DB, registration *models.Registration) error {
	raw, err := json.Marshal(registration)
	if err != nil {
		return fmt.Errorf("failed to marshal registration snapshot: %w", err)
	}

	var snapshot models.JSONB
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return fmt.Errorf("failed to build registration snapshot: %w", err)
	}

	record := &models.RegistrationSnapshot{
		RegistrationID: registration.ID,
		Snapshot:       snapshot,
	}
	if err := tx.Create(record).Error; err != nil {
		return fmt.Errorf("failed to save registration snapshot: %w", err)
	}
	return nil
}

// internal/services/approval_service.go
package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/rentalregistry/strr-backend/internal/clients"
	"github.com/rentalregistry/strr-backend/internal/database"
	"github.com/rentalregistry/strr-backend/internal/models"
)

// ApprovalService classifies paid applications without human intervention
// where policy allows, and routes everything else to manual review.
type ApprovalService struct {
	db                  *gorm.DB
	geocoder            clients.Geocoder
	eventService        *EventService
	registrationService *RegistrationService
}

func NewApprovalService(db *gorm.DB, geocoder clients.Geocoder, eventService *EventService, registrationService *RegistrationService) *ApprovalService {
	return &ApprovalService{
		db:                  db,
		geocoder:            geocoder,
		eventService:        eventService,
		registrationService: registrationService,
	}
}

// ProcessAutoApproval decides the post-payment status of an application.
//
// HOST applications always land in FULL_REVIEW; the STR-requirements lookup
// result is recorded for the examiner but does not short-circuit the manual
// decision. PLATFORM applications are approved outright with an immediate
// registration. STRATA_HOTEL applications go straight to FULL_REVIEW.
//
// Classification failures are swallowed: the application falls back to
// FULL_REVIEW and the caller always gets a deterministic (status,
// registration id) pair.
func (s *ApprovalService) ProcessAutoApproval(application *models.Application) (status models.ApplicationStatus, registrationID *uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"application_number": application.ApplicationNumber,
				"panic":              r,
			}).Error("Auto approval panicked, routing to full review")
			status = s.fallbackToFullReview(application)
			registrationID = nil
		}
	}()

	var err error
	switch application.RegistrationType {
	case models.RegistrationTypeHost:
		status, err = s.processHost(application)
	case models.RegistrationTypePlatform:
		status, registrationID, err = s.processPlatform(application)
	default:
		status, err = s.routeToFullReview(application)
	}

	if err != nil {
		logrus.WithFields(logrus.Fields{
			"application_number": application.ApplicationNumber,
			"registration_type":  application.RegistrationType,
		}).WithError(err).Error("Auto approval failed, routing to full review")
		return s.fallbackToFullReview(application), nil
	}

	return status, registrationID
}

func (s *ApprovalService) processHost(application *models.Application) (models.ApplicationStatus, error) {
	address, form, err := hostUnitAddress(application)
	if err != nil {
		return "", err
	}

	requirements, err := s.geocoder.GetSTRDataForAddress(address)
	if err != nil {
		return "", fmt.Errorf("STR requirements lookup failed: %w", err)
	}

	record := models.JSONB{
		"address":                      address,
		"renting":                      !strings.EqualFold(form.OwnershipType, "own"),
		"serviceProvider":              form.HasPropertyManager,
		"prExempt":                     !requirements.IsPrincipalResidenceRequired,
		"bLProvided":                   form.BusinessLicense != "",
		"bLRequired":                   requirements.IsBusinessLicenceRequired,
		"strProhibited":                requirements.IsStrProhibited,
		"straaExempt":                  requirements.IsStraaExempt,
		"organizationNm":               requirements.OrganizationNm,
		"isPrincipalResidenceDeclared": form.IsPrincipalResidence,
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(&models.AutoApprovalRecord{
			ApplicationID: application.ID,
			Record:        record,
		}).Error; err != nil {
			return fmt.Errorf("failed to save auto approval record: %w", err)
		}

		return s.markFullReview(tx, application)
	})
	if err != nil {
		return "", err
	}

	return models.ApplicationStatusFullReview, nil
}

func (s *ApprovalService) processPlatform(application *models.Application) (models.ApplicationStatus, *uuid.UUID, error) {
	details, err := registrationDetails(application)
	if err != nil {
		return "", nil, err
	}

	var registrationID uuid.UUID
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		registration, err := s.registrationService.CreateFromApplication(tx, application, details)
		if err != nil {
			return err
		}
		registrationID = registration.ID

		now := time.Now()
		application.Status = models.ApplicationStatusAutoApproved
		application.DecisionDate = &now
		application.RegistrationID = &registration.ID
		if err := tx.Save(application).Error; err != nil {
			return fmt.Errorf("failed to update application: %w", err)
		}

		return s.eventService.SaveEventTx(tx, SaveEventParams{
			EventType:          models.EventTypeApplication,
			EventName:          models.EventAutoApprovalApproved,
			ApplicationID:      &application.ID,
			RegistrationID:     &registration.ID,
			UserID:             &application.SubmitterID,
			Details:            "Application auto approved",
			VisibleToApplicant: true,
		})
	})
	if err != nil {
		return "", nil, err
	}

	return models.ApplicationStatusAutoApproved, &registrationID, nil
}

func (s *ApprovalService) routeToFullReview(application *models.Application) (models.ApplicationStatus, error) {
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		return s.markFullReview(tx, application)
	})
	if err != nil {
		return "", err
	}
	return models.ApplicationStatusFullReview, nil
}

func (s *ApprovalService) markFullReview(tx *gorm.DB, application *models.Application) error {
	application.Status = models.ApplicationStatusFullReview
	if err := tx.Save(application).Error; err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}

	// Routing decisions are internal; applicants only see the outcome.
	return s.eventService.SaveEventTx(tx, SaveEventParams{
		EventType:     models.EventTypeApplication,
		EventName:     models.EventAutoApprovalFullReview,
		ApplicationID: &application.ID,
		Details:       "Application routed to full review",
	})
}

// fallbackToFullReview is the safety net: best-effort status write plus event,
// errors logged and discarded.
func (s *ApprovalService) fallbackToFullReview(application *models.Application) models.ApplicationStatus {
	application.Status = models.ApplicationStatusFullReview
	if err := s.db.Save(application).Error; err != nil {
		logrus.WithError(err).WithField("application_number", application.ApplicationNumber).
			Error("Failed to persist full review fallback")
	}
	if err := s.eventService.SaveEvent(SaveEventParams{
		EventType:     models.EventTypeApplication,
		EventName:     models.EventAutoApprovalFullReview,
		ApplicationID: &application.ID,
		Details:       "Application routed to full review after classification failure",
	}); err != nil {
		logrus.WithError(err).Error("Failed to save fallback event")
	}
	return models.ApplicationStatusFullReview
}

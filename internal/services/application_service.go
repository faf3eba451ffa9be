// internal/services/application_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/rentalregistry/strr-backend/internal/clients"
	"github.com/rentalregistry/strr-backend/internal/config"
	"github.com/rentalregistry/strr-backend/internal/database"
	"github.com/rentalregistry/strr-backend/internal/models"
	"github.com/rentalregistry/strr-backend/internal/utils"
)

var (
	ErrApplicationNotFound      = errors.New("application not found")
	ErrInvalidApplicationStatus = errors.New("invalid target application status")
	ErrApplicationTerminalState = errors.New("application is in a terminal state")
	ErrNotAssignee              = errors.New("user is not the assigned reviewer")
	ErrAssignmentStatus         = errors.New("application status does not allow assignment")
	ErrDuplicateRegistration    = errors.New("an active registration already exists for this property")
)

type ApplicationService struct {
	db                  *gorm.DB
	config              *config.Config
	payAPI              clients.PayAPI
	eventService        *EventService
	registrationService *RegistrationService
	notificationService *NotificationService
}

type CreateApplicationRequest struct {
	RegistrationType models.RegistrationType `json:"registration_type" validate:"required,registration_type"`
	Type             models.ApplicationType  `json:"type,omitempty"`
	RegistrationID   *uuid.UUID              `json:"registration_id,omitempty"`
	ApplicationJSON  map[string]interface{}  `json:"application_json" validate:"required"`
}

type StaffDecisionRequest struct {
	Status models.ApplicationStatus `json:"status" validate:"required"`
	Reason string                   `json:"reason,omitempty"`
}

type SendNocRequest struct {
	Content string `json:"content" validate:"required"`
}

type ApplicationSearchParams struct {
	utils.PaginationParams
	SubmitterID      *uuid.UUID                `json:"submitter_id,omitempty"`
	ReviewerID       *uuid.UUID                `json:"reviewer_id,omitempty"`
	RegistrationType *models.RegistrationType  `json:"registration_type,omitempty"`
	Statuses         []models.ApplicationStatus `json:"statuses,omitempty"`
	Requirement      string                    `json:"requirement,omitempty"`
	Unassigned       bool                      `json:"unassigned,omitempty"`
}

func NewApplicationService(db *gorm.DB, cfg *config.Config, payAPI clients.PayAPI, eventService *EventService, registrationService *RegistrationService, notificationService *NotificationService) *ApplicationService {
	return &ApplicationService{
		db:                  db,
		config:              cfg,
		payAPI:              payAPI,
		eventService:        eventService,
		registrationService: registrationService,
		notificationService: notificationService,
	}
}

// CreateApplication records a new submission in DRAFT with a freshly
// generated application number.
func (s *ApplicationService) CreateApplication(submitterID uuid.UUID, req *CreateApplicationRequest) (*models.Application, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	applicationType := req.Type
	if applicationType == "" {
		applicationType = models.ApplicationTypeRegistration
	}

	if applicationType == models.ApplicationTypeRenewal {
		if req.RegistrationID == nil {
			return nil, errors.New("renewal applications must reference a registration")
		}
		var registration models.Registration
		if err := s.db.First(&registration, *req.RegistrationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrRegistrationNotFound
			}
			return nil, fmt.Errorf("database error: %w", err)
		}
		if registration.UserID != submitterID {
			return nil, errors.New("registration does not belong to the submitter")
		}
		// A fresh renewal application opens a new renewal cycle.
		if err := s.registrationService.ResetRenewalCycle(registration.ID); err != nil {
			return nil, fmt.Errorf("failed to reset renewal cycle: %w", err)
		}
	}

	application := &models.Application{
		ApplicationJSON:  models.JSONB(req.ApplicationJSON),
		Type:             applicationType,
		RegistrationType: req.RegistrationType,
		Status:           models.ApplicationStatusDraft,
		ApplicationDate:  time.Now(),
		SubmitterID:      submitterID,
		RegistrationID:   req.RegistrationID,
	}

	// Host submissions are checked against existing registrations for the
	// same property; this is a validation-time guard, not a constraint.
	if req.RegistrationType == models.RegistrationTypeHost && applicationType == models.ApplicationTypeRegistration {
		address, _, err := hostUnitAddress(application)
		if err != nil {
			return nil, err
		}
		existing, err := s.registrationService.GetExistingHostRegistrations(submitterID, address)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return nil, ErrDuplicateRegistration
		}
	}

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		number, err := s.generateUniqueApplicationNumber(tx)
		if err != nil {
			return err
		}
		application.ApplicationNumber = number

		if err := tx.Create(application).Error; err != nil {
			return fmt.Errorf("failed to create application: %w", err)
		}

		return s.eventService.SaveEventTx(tx, SaveEventParams{
			EventType:          models.EventTypeApplication,
			EventName:          models.EventApplicationSubmitted,
			ApplicationID:      &application.ID,
			UserID:             &submitterID,
			Details:            fmt.Sprintf("Application %s submitted", application.ApplicationNumber),
			VisibleToApplicant: true,
		})
	})
	if err != nil {
		return nil, err
	}

	return application, nil
}

// CreateInvoice asks the pay-api for an invoice and moves the application to
// PAYMENT_DUE once the invoice exists.
func (s *ApplicationService) CreateInvoice(applicationID uuid.UUID, accountID string) (*models.Application, error) {
	application, err := s.getApplication(applicationID)
	if err != nil {
		return nil, err
	}

	if application.Status != models.ApplicationStatusDraft {
		return nil, ErrInvalidApplicationStatus
	}

	invoice, err := s.payAPI.CreateInvoice(accountID, s.filingType(application), s.feeAmount(application))
	if err != nil {
		return nil, fmt.Errorf("invoice creation failed: %w", err)
	}

	application.InvoiceID = &invoice.ID
	statusCode := models.PaymentStatus(invoice.StatusCode)
	application.PaymentStatusCode = &statusCode
	application.PaymentAccount = invoice.PaymentAccount
	application.PaymentAmount = invoice.Total
	if statusCode == models.PaymentStatusCreated {
		application.Status = models.ApplicationStatusPaymentDue
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Save(application).Error; err != nil {
			return fmt.Errorf("failed to update application: %w", err)
		}
		return s.eventService.SaveEventTx(tx, SaveEventParams{
			EventType:          models.EventTypeApplication,
			EventName:          models.EventInvoiceGenerated,
			ApplicationID:      &application.ID,
			UserID:             &application.SubmitterID,
			Details:            fmt.Sprintf("Invoice %d generated", invoice.ID),
			VisibleToApplicant: true,
		})
	})
	if err != nil {
		return nil, err
	}

	return application, nil
}

// UpdatePaymentStatus re-reads the invoice and applies the PAID transition on
// completion. Callers tolerate repeated delivery: an application already past
// PAYMENT_DUE is returned unchanged.
func (s *ApplicationService) UpdatePaymentStatus(applicationID uuid.UUID) (*models.Application, error) {
	application, err := s.getApplication(applicationID)
	if err != nil {
		return nil, err
	}

	if application.Status != models.ApplicationStatusPaymentDue {
		return application, nil
	}
	if application.InvoiceID == nil {
		return nil, errors.New("application has no invoice")
	}

	invoice, err := s.payAPI.GetInvoice(*application.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoice lookup failed: %w", err)
	}

	statusCode := models.PaymentStatus(invoice.StatusCode)
	application.PaymentStatusCode = &statusCode
	if statusCode != models.PaymentStatusCompleted && statusCode != models.PaymentStatusApproved {
		if err := s.db.Save(application).Error; err != nil {
			return nil, fmt.Errorf("failed to update application: %w", err)
		}
		return application, nil
	}

	now := time.Now()
	application.Status = models.ApplicationStatusPaid
	application.PaymentCompletionDate = &now

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Save(application).Error; err != nil {
			return fmt.Errorf("failed to update application: %w", err)
		}
		return s.eventService.SaveEventTx(tx, SaveEventParams{
			EventType:          models.EventTypeApplication,
			EventName:          models.EventPaymentComplete,
			ApplicationID:      &application.ID,
			UserID:             &application.SubmitterID,
			Details:            "Payment completed",
			VisibleToApplicant: true,
		})
	})
	if err != nil {
		return nil, err
	}

	return application, nil
}

// AssignReviewer sets the reviewer on an application that is in an assignable
// status. Assignment is mandatory before any status-changing staff action.
func (s *ApplicationService) AssignReviewer(applicationID uuid.UUID, reviewerID uuid.UUID) (*models.Application, error) {
	return s.setReviewer(applicationID, &reviewerID, models.EventApplicationAssigned)
}

func (s *ApplicationService) UnassignReviewer(applicationID uuid.UUID) (*models.Application, error) {
	return s.setReviewer(applicationID, nil, models.EventApplicationUnassigned)
}

func (s *ApplicationService) setReviewer(applicationID uuid.UUID, reviewerID *uuid.UUID, eventName models.EventName) (*models.Application, error) {
	application, err := s.getApplication(applicationID)
	if err != nil {
		return nil, err
	}

	if !statusIn(application.Status, models.ApplicationStatesAssignment) {
		return nil, ErrAssignmentStatus
	}

	application.ReviewerID = reviewerID
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Save(application).Error; err != nil {
			return fmt.Errorf("failed to update application: %w", err)
		}
		return s.eventService.SaveEventTx(tx, SaveEventParams{
			EventType:     models.EventTypeApplication,
			EventName:     eventName,
			ApplicationID: &application.ID,
			UserID:        reviewerID,
		})
	})
	if err != nil {
		return nil, err
	}

	return application, nil
}

// UpdateApplicationStatus applies an examiner's decision. Targets are limited
// to the staff-action whitelist; NOC targets go through
// SendNoticeOfConsideration instead so a notice body is always captured.
func (s *ApplicationService) UpdateApplicationStatus(applicationID uuid.UUID, examiner *models.User, req *StaffDecisionRequest) (*models.Application, error) {
	if !statusIn(req.Status, models.ApplicationStatesStaffAction) ||
		req.Status == models.ApplicationStatusNocPending ||
		req.Status == models.ApplicationStatusProvisionalNocPending {
		return nil, ErrInvalidApplicationStatus
	}

	application, err := s.getApplication(applicationID)
	if err != nil {
		return nil, err
	}

	if err := s.validateStaffAction(application, examiner); err != nil {
		return nil, err
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		now := time.Now()
		application.Status = req.Status
		application.IsSetAside = false

		var eventName models.EventName
		visible := true

		switch req.Status {
		case models.ApplicationStatusFullReviewApproved, models.ApplicationStatusProvisionallyApproved:
			provisional := req.Status == models.ApplicationStatusProvisionallyApproved
			if err := s.approve(tx, application, provisional); err != nil {
				return err
			}
			application.DecisionDate = &now
			eventName = models.EventFullReviewApproved
			if provisional {
				eventName = models.EventProvisionallyApproved
			}

		case models.ApplicationStatusDeclined, models.ApplicationStatusProvisionallyDeclined:
			application.DecisionDate = &now
			eventName = models.EventManuallyDeclined

		case models.ApplicationStatusAdditionalInfoRequested:
			eventName = models.EventAdditionalInfoRequested
		}

		if err := tx.Save(application).Error; err != nil {
			return fmt.Errorf("failed to update application: %w", err)
		}

		return s.eventService.SaveEventTx(tx, SaveEventParams{
			EventType:          models.EventTypeApplication,
			EventName:          eventName,
			ApplicationID:      &application.ID,
			RegistrationID:     application.RegistrationID,
			UserID:             &examiner.ID,
			Details:            req.Reason,
			VisibleToApplicant: visible,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.notificationService != nil {
		go s.notificationService.SendDecisionNotification(application)
	}

	return application, nil
}

// approve materializes or extends the registration for an approved
// application inside the decision transaction.
func (s *ApplicationService) approve(tx *gorm.DB, application *models.Application, provisional bool) error {
	if application.Type == models.ApplicationTypeRenewal {
		registration, err := s.registrationService.ExtendForRenewal(tx, application, provisional)
		if err != nil {
			return err
		}
		application.RegistrationID = &registration.ID
		return nil
	}

	details, err := registrationDetails(application)
	if err != nil {
		return err
	}
	registration, err := s.registrationService.CreateFromApplication(tx, application, details)
	if err != nil {
		return err
	}
	application.RegistrationID = &registration.ID
	return nil
}

// SendNoticeOfConsideration opens the NOC window before an adverse decision
// is finalized. Start is the next calendar day at 00:01 legislative time.
func (s *ApplicationService) SendNoticeOfConsideration(applicationID uuid.UUID, examiner *models.User, req *SendNocRequest) (*models.Application, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	application, err := s.getApplication(applicationID)
	if err != nil {
		return nil, err
	}

	if err := s.validateStaffAction(application, examiner); err != nil {
		return nil, err
	}

	loc := s.config.LegislativeLocation()
	start, end := nocWindow(time.Now(), loc, s.config.Registry.NocWindowDays)

	target := models.ApplicationStatusNocPending
	if application.Status == models.ApplicationStatusProvisionalReview ||
		application.Status == models.ApplicationStatusProvisionalNocExpired {
		target = models.ApplicationStatusProvisionalNocPending
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		noc := &models.NoticeOfConsideration{
			ApplicationID: application.ID,
			Content:       req.Content,
			StartDate:     start,
			EndDate:       end,
		}
		if err := tx.Create(noc).Error; err != nil {
			return fmt.Errorf("failed to create notice of consideration: %w", err)
		}

		application.Status = target
		if err := tx.Save(application).Error; err != nil {
			return fmt.Errorf("failed to update application: %w", err)
		}

		return s.eventService.SaveEventTx(tx, SaveEventParams{
			EventType:          models.EventTypeApplication,
			EventName:          models.EventNocSent,
			ApplicationID:      &application.ID,
			UserID:             &examiner.ID,
			Details:            fmt.Sprintf("Notice of consideration sent, response due %s", end.Format("2006-01-02")),
			VisibleToApplicant: true,
		})
	})
	if err != nil {
		return nil, err
	}

	return application, nil
}

// ExpireNoc moves a NOC_PENDING application to the matching expired status
// once the window has lapsed.
func (s *ApplicationService) ExpireNoc(applicationID uuid.UUID) error {
	application, err := s.getApplication(applicationID)
	if err != nil {
		return err
	}

	var target models.ApplicationStatus
	switch application.Status {
	case models.ApplicationStatusNocPending:
		target = models.ApplicationStatusNocExpired
	case models.ApplicationStatusProvisionalNocPending:
		target = models.ApplicationStatusProvisionalNocExpired
	default:
		return nil
	}

	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		application.Status = target
		if err := tx.Save(application).Error; err != nil {
			return fmt.Errorf("failed to update application: %w", err)
		}
		return s.eventService.SaveEventTx(tx, SaveEventParams{
			EventType:     models.EventTypeApplication,
			EventName:     models.EventNocExpired,
			ApplicationID: &application.ID,
			Details:       "Notice of consideration window passed without response",
		})
	})
}

// SetAside reopens a terminal decision without changing its recorded status.
func (s *ApplicationService) SetAside(applicationID uuid.UUID, staffID uuid.UUID, reason string) (*models.Application, error) {
	application, err := s.getApplication(applicationID)
	if err != nil {
		return nil, err
	}

	if !application.Status.IsTerminal() {
		return nil, ErrInvalidApplicationStatus
	}
	if application.IsSetAside {
		return application, nil
	}

	application.IsSetAside = true
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Save(application).Error; err != nil {
			return fmt.Errorf("failed to update application: %w", err)
		}
		return s.eventService.SaveEventTx(tx, SaveEventParams{
			EventType:     models.EventTypeApplication,
			EventName:     models.EventApplicationSetAside,
			ApplicationID: &application.ID,
			UserID:        &staffID,
			Details:       reason,
		})
	})
	if err != nil {
		return nil, err
	}

	return application, nil
}

func (s *ApplicationService) GetApplication(id uuid.UUID) (*models.Application, error) {
	var application models.Application
	if err := s.db.Preload("Registration").Preload("Nocs").First(&application, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &application, nil
}

func (s *ApplicationService) GetApplicationByNumber(number string) (*models.Application, error) {
	var application models.Application
	if err := s.db.Where("application_number = ?", number).First(&application).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &application, nil
}

func (s *ApplicationService) SearchApplications(params ApplicationSearchParams) ([]models.Application, int64, error) {
	query := s.db.Model(&models.Application{})

	if params.SubmitterID != nil {
		query = query.Where("submitter_id = ?", *params.SubmitterID)
	}
	if params.ReviewerID != nil {
		query = query.Where("reviewer_id = ?", *params.ReviewerID)
	}
	if params.Unassigned {
		query = query.Where("reviewer_id IS NULL")
	}
	if params.RegistrationType != nil {
		query = query.Where("registration_type = ?", *params.RegistrationType)
	}
	if len(params.Statuses) > 0 {
		query = query.Where("status IN ?", params.Statuses)
	}
	if params.Requirement != "" {
		// Requirement filters key off the recorded approval snapshot.
		query = query.Where(
			"id IN (SELECT application_id FROM auto_approval_records WHERE record ->> ? = 'true')",
			params.Requirement,
		)
	}
	if params.Search != "" {
		query = query.Where(
			"application_number ILIKE ? OR application_json ->> 'legalName' ILIKE ?",
			"%"+params.Search+"%", "%"+params.Search+"%",
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count applications: %w", err)
	}

	allowedSortFields := []string{"created_at", "application_date", "decision_date", "status"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var applications []models.Application
	if err := query.Find(&applications).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch applications: %w", err)
	}

	return applications, total, nil
}

func (s *ApplicationService) validateStaffAction(application *models.Application, examiner *models.User) error {
	if !application.Actionable() {
		return ErrApplicationTerminalState
	}
	if !examiner.IsStaff() {
		return ErrNotAssignee
	}
	if application.ReviewerID == nil || *application.ReviewerID != examiner.ID {
		return ErrNotAssignee
	}
	return nil
}

func (s *ApplicationService) getApplication(id uuid.UUID) (*models.Application, error) {
	var application models.Application
	if err := s.db.First(&application, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &application, nil
}

func (s *ApplicationService) generateUniqueApplicationNumber(tx *gorm.DB) (string, error) {
	for attempt := 0; attempt < s.config.Registry.NumberMaxAttempts; attempt++ {
		number, err := utils.GenerateApplicationNumber()
		if err != nil {
			return "", fmt.Errorf("failed to generate application number: %w", err)
		}

		var count int64
		if err := tx.Model(&models.Application{}).Where("application_number = ?", number).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check application number: %w", err)
		}
		if count == 0 {
			return number, nil
		}
		logrus.WithField("attempt", attempt+1).Warn("Application number collision, regenerating")
	}
	return "", ErrNumberExhausted
}

func (s *ApplicationService) filingType(application *models.Application) string {
	switch application.RegistrationType {
	case models.RegistrationTypeHost:
		return "RENTAL_FEE"
	case models.RegistrationTypePlatform:
		return "PLATREG_SM"
	default:
		return "STRATAREG"
	}
}

func (s *ApplicationService) feeAmount(application *models.Application) decimal.Decimal {
	switch application.RegistrationType {
	case models.RegistrationTypeHost:
		return decimal.NewFromFloat(s.config.Pay.HostFee)
	case models.RegistrationTypePlatform:
		return decimal.NewFromFloat(s.config.Pay.PlatformFee)
	default:
		return decimal.NewFromFloat(s.config.Pay.StrataHotelFee)
	}
}

func statusIn(status models.ApplicationStatus, set []models.ApplicationStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

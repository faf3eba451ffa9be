// internal/services/event_service.go
package services

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentalregistry/strr-backend/internal/models"
	"github.com/rentalregistry/strr-backend/internal/utils"
)

// EventService is the only write path into the audit trail. Events are never
// updated or deleted once saved.
type EventService struct {
	db *gorm.DB
}

type SaveEventParams struct {
	EventType          models.EventType
	EventName          models.EventName
	ApplicationID      *uuid.UUID
	RegistrationID     *uuid.UUID
	UserID             *uuid.UUID
	Details            string
	VisibleToApplicant bool
}

func NewEventService(db *gorm.DB) *EventService {
	return &EventService{db: db}
}

func (s *EventService) SaveEvent(params SaveEventParams) error {
	event := &models.Event{
		EventType:          params.EventType,
		EventName:          params.EventName,
		ApplicationID:      params.ApplicationID,
		RegistrationID:     params.RegistrationID,
		UserID:             params.UserID,
		Details:            params.Details,
		VisibleToApplicant: params.VisibleToApplicant,
	}

	if err := s.db.Create(event).Error; err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// SaveEventTx writes an event inside an existing transaction.
func (s *EventService) SaveEventTx(tx *gorm.DB, params SaveEventParams) error {
	event := &models.Event{
		EventType:          params.EventType,
		EventName:          params.EventName,
		ApplicationID:      params.ApplicationID,
		RegistrationID:     params.RegistrationID,
		UserID:             params.UserID,
		Details:            params.Details,
		VisibleToApplicant: params.VisibleToApplicant,
	}

	if err := tx.Create(event).Error; err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// ListApplicationEvents returns the audit history for an application. Staff
// see everything; applicants only see events flagged visible to them.
func (s *EventService) ListApplicationEvents(applicationID uuid.UUID, staffView bool, params utils.PaginationParams) ([]models.Event, int64, error) {
	query := s.db.Model(&models.Event{}).Where("application_id = ?", applicationID)
	if !staffView {
		query = query.Where("visible_to_applicant = ?", true)
	}

	return s.listEvents(query, params)
}

func (s *EventService) ListRegistrationEvents(registrationID uuid.UUID, staffView bool, params utils.PaginationParams) ([]models.Event, int64, error) {
	query := s.db.Model(&models.Event{}).Where("registration_id = ?", registrationID)
	if !staffView {
		query = query.Where("visible_to_applicant = ?", true)
	}

	return s.listEvents(query, params)
}

func (s *EventService) listEvents(query *gorm.DB, params utils.PaginationParams) ([]models.Event, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	allowedSortFields := []string{"created_at", "event_name"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var events []models.Event
	if err := query.Find(&events).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch events: %w", err)
	}

	return events, total, nil
}

// internal/services/event_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentalregistry/strr-backend/internal/models"
	"github.com/rentalregistry/strr-backend/internal/utils"
)

func TestListApplicationEvents_VisibilityFilter(t *testing.T) {
	db := setupTestDB(t)
	submitter := createTestUser(t, db, models.UserRoleSubmitter)
	application := createTestApplication(t, db, submitter, models.RegistrationTypeHost, models.ApplicationStatusFullReview)
	svc := NewEventService(db)

	require.NoError(t, svc.SaveEvent(SaveEventParams{
		EventType:          models.EventTypeApplication,
		EventName:          models.EventApplicationSubmitted,
		ApplicationID:      &application.ID,
		Details:            "Application submitted",
		VisibleToApplicant: true,
	}))
	require.NoError(t, svc.SaveEvent(SaveEventParams{
		EventType:     models.EventTypeApplication,
		EventName:     models.EventAutoApprovalFullReview,
		ApplicationID: &application.ID,
		Details:       "Application routed to full review",
	}))

	// Applicants only see events flagged for them.
	events, total, err := svc.ListApplicationEvents(application.ID, false, utils.PaginationParams{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventApplicationSubmitted, events[0].EventName)

	// Staff see the full trail.
	_, total, err = svc.ListApplicationEvents(application.ID, true, utils.PaginationParams{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestListRegistrationEvents(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, models.UserRoleSubmitter)
	svc := NewEventService(db)

	registration := createActiveRegistration(t, db, owner, "BCH26500001", time.Now().AddDate(0, 0, 100))
	require.NoError(t, svc.SaveEvent(SaveEventParams{
		EventType:          models.EventTypeRegistration,
		EventName:          models.EventRegistrationCreated,
		RegistrationID:     &registration.ID,
		VisibleToApplicant: true,
	}))

	events, total, err := svc.ListRegistrationEvents(registration.ID, false, utils.PaginationParams{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, models.EventRegistrationCreated, events[0].EventName)
}

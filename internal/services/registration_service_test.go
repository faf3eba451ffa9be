// internal/services/registration_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rentalregistry/strr-backend/internal/models"
)

func createActiveRegistration(t *testing.T, db *gorm.DB, owner *models.User, number string, expiry time.Time) *models.Registration {
	t.Helper()

	registration := &models.Registration{
		RegistrationNumber: number,
		RegistrationType:   models.RegistrationTypeHost,
		Status:             models.RegistrationStatusActive,
		StartDate:          expiry.AddDate(-1, 0, 0),
		ExpiryDate:         expiry,
		UserID:             owner.ID,
	}
	require.NoError(t, db.Create(registration).Error)
	return registration
}

func TestCreateFromApplication(t *testing.T) {
	db := setupTestDB(t)
	submitter := createTestUser(t, db, models.UserRoleSubmitter)
	_, _, registrationService, _ := newTestServices(t, db, &stubGeocoder{}, &stubPayAPI{})

	application := createTestApplication(t, db, submitter, models.RegistrationTypeStrataHotel, models.ApplicationStatusFullReview)
	application.PaymentAccount = "SBC-9000"
	require.NoError(t, db.Save(application).Error)

	details, err := registrationDetails(application)
	require.NoError(t, err)

	registration, err := registrationService.CreateFromApplication(db, application, details)
	require.NoError(t, err)

	assert.Equal(t, "BCS", registration.RegistrationNumber[:3])
	assert.Len(t, registration.RegistrationNumber, 11)
	assert.Equal(t, models.RegistrationStatusActive, registration.Status)
	assert.Equal(t, "SBC-9000", registration.SbcAccountID)
	assert.Equal(t, submitter.ID, registration.UserID)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 365), registration.ExpiryDate, time.Minute)

	var child models.StrataHotelRegistration
	require.NoError(t, db.Where("registration_id = ?", registration.ID).First(&child).Error)
	assert.Equal(t, "Harbour Suites", child.BrandName)

	var event models.Event
	require.NoError(t, db.Where("registration_id = ? AND event_name = ?", registration.ID, models.EventRegistrationCreated).First(&event).Error)
}

func TestExtendForRenewal_ExpiredRestartsFromToday(t *testing.T) {
	db := setupTestDB(t)
	submitter := createTestUser(t, db, models.UserRoleSubmitter)
	_, _, registrationService, _ := newTestServices(t, db, &stubGeocoder{}, &stubPayAPI{})

	registration := createActiveRegistration(t, db, submitter, "BCH25100001", time.Now().AddDate(0, 0, -30))
	require.NoError(t, db.Model(registration).Update("status", models.RegistrationStatusExpired).Error)

	application := createTestApplication(t, db, submitter, models.RegistrationTypeHost, models.ApplicationStatusFullReview)
	application.Type = models.ApplicationTypeRenewal
	application.RegistrationID = &registration.ID
	require.NoError(t, db.Save(application).Error)

	renewed, err := registrationService.ExtendForRenewal(db, application, false)
	require.NoError(t, err)

	// An expired registration restarts from today, not from its lapsed expiry.
	assert.Equal(t, models.RegistrationStatusActive, renewed.Status)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 365), renewed.ExpiryDate, time.Minute)
}

func TestExtendForRenewal_ActiveExtendsFromExpiry(t *testing.T) {
	db := setupTestDB(t)
	submitter := createTestUser(t, db, models.UserRoleSubmitter)
	_, _, registrationService, _ := newTestServices(t, db, &stubGeocoder{}, &stubPayAPI{})

	expiry := time.Now().AddDate(0, 0, 45)
	registration := createActiveRegistration(t, db, submitter, "BCH25100002", expiry)

	application := createTestApplication(t, db, submitter, models.RegistrationTypeHost, models.ApplicationStatusFullReview)
	application.Type = models.ApplicationTypeRenewal
	application.RegistrationID = &registration.ID
	require.NoError(t, db.Save(application).Error)

	renewed, err := registrationService.ExtendForRenewal(db, application, false)
	require.NoError(t, err)
	assert.WithinDuration(t, expiry.AddDate(0, 0, 365), renewed.ExpiryDate, time.Minute)
}

func TestExtendForRenewal_GuardBlocksSecondExtension(t *testing.T) {
	db := setupTestDB(t)
	submitter := createTestUser(t, db, models.UserRoleSubmitter)
	_, _, registrationService, _ := newTestServices(t, db, &stubGeocoder{}, &stubPayAPI{})

	expiry := time.Now().AddDate(0, 0, 45)
	registration := createActiveRegistration(t, db, submitter, "BCH25100003", expiry)

	application := createTestApplication(t, db, submitter, models.RegistrationTypeHost, models.ApplicationStatusProvisionalReview)
	application.Type = models.ApplicationTypeRenewal
	application.RegistrationID = &registration.ID
	require.NoError(t, db.Save(application).Error)

	first, err := registrationService.ExtendForRenewal(db, application, true)
	require.NoError(t, err)
	assert.True(t, first.ProvisionalExtensionApplied)
	extendedExpiry := first.ExpiryDate

	second, err := registrationService.ExtendForRenewal(db, application, false)
	require.NoError(t, err)
	assert.WithinDuration(t, extendedExpiry, second.ExpiryDate, time.Second)
	assert.False(t, second.ProvisionalExtensionApplied)

	// With the guard cleared the next renewal cycle extends normally.
	third, err := registrationService.ExtendForRenewal(db, application, false)
	require.NoError(t, err)
	assert.WithinDuration(t, extendedExpiry.AddDate(0, 0, 365), third.ExpiryDate, time.Second)
}

func TestExpire(t *testing.T) {
	db := setupTestDB(t)
	submitter := createTestUser(t, db, models.UserRoleSubmitter)
	_, _, registrationService, _ := newTestServices(t, db, &stubGeocoder{}, &stubPayAPI{})

	past := createActiveRegistration(t, db, submitter, "BCH25100004", time.Now().AddDate(0, 0, -1))
	future := createActiveRegistration(t, db, submitter, "BCH25100005", time.Now().AddDate(0, 0, 30))

	require.NoError(t, registrationService.Expire(past.ID))
	var expired models.Registration
	require.NoError(t, db.First(&expired, past.ID).Error)
	assert.Equal(t, models.RegistrationStatusExpired, expired.Status)

	var event models.Event
	require.NoError(t, db.Where("registration_id = ? AND event_name = ?", past.ID, models.EventRegistrationExpired).First(&event).Error)

	// Expiring again, or before the expiry date, is a no-op.
	require.NoError(t, registrationService.Expire(past.ID))
	require.NoError(t, registrationService.Expire(future.ID))
	var untouched models.Registration
	require.NoError(t, db.First(&untouched, future.ID).Error)
	assert.Equal(t, models.RegistrationStatusActive, untouched.Status)

	var events int64
	db.Model(&models.Event{}).Where("registration_id = ? AND event_name = ?", past.ID, models.EventRegistrationExpired).Count(&events)
	assert.EqualValues(t, 1, events)
}

func TestStaffStatusActions(t *testing.T) {
	db := setupTestDB(t)
	submitter := createTestUser(t, db, models.UserRoleSubmitter)
	examiner := createTestUser(t, db, models.UserRoleExaminer)
	_, _, registrationService, _ := newTestServices(t, db, &stubGeocoder{}, &stubPayAPI{})

	registration := createActiveRegistration(t, db, submitter, "BCH25100006", time.Now().AddDate(0, 0, 90))

	suspended, err := registrationService.Suspend(registration.ID, examiner.ID, &StatusActionRequest{Reason: "complaint under investigation"})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusSuspended, suspended.Status)
	require.NotNil(t, suspended.DeciderID)
	assert.Equal(t, examiner.ID, *suspended.DeciderID)

	// Suspending a suspended registration is rejected.
	_, err = registrationService.Suspend(registration.ID, examiner.ID, &StatusActionRequest{})
	assert.Error(t, err)

	cancelled, err := registrationService.Cancel(registration.ID, examiner.ID, &StatusActionRequest{Reason: "owner request"})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledDate)

	reinstated, err := registrationService.Reinstate(registration.ID, examiner.ID, &StatusActionRequest{Reason: "appeal upheld"})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusActive, reinstated.Status)
	assert.Nil(t, reinstated.CancelledDate)

	// Every status change leaves a snapshot.
	var snapshots int64
	db.Model(&models.RegistrationSnapshot{}).Where("registration_id = ?", registration.ID).Count(&snapshots)
	assert.EqualValues(t, 3, snapshots)
}

func TestRegistrationNocLifecycle(t *testing.T) {
	db := setupTestDB(t)
	submitter := createTestUser(t, db, models.UserRoleSubmitter)
	examiner := createTestUser(t, db, models.UserRoleExaminer)
	_, _, registrationService, _ := newTestServices(t, db, &stubGeocoder{}, &stubPayAPI{})

	registration := createActiveRegistration(t, db, submitter, "BCH25100007", time.Now().AddDate(0, 0, 90))

	noc, err := registrationService.SendNoticeOfConsideration(registration.ID, examiner.ID, &SendRegistrationNocRequest{
		Content: "Business licence no longer valid.",
	})
	require.NoError(t, err)
	assert.True(t, noc.EndDate.After(noc.StartDate))

	var updated models.Registration
	require.NoError(t, db.First(&updated, registration.ID).Error)
	require.NotNil(t, updated.NocStatus)
	assert.Equal(t, models.NocStatusPending, *updated.NocStatus)

	require.NoError(t, registrationService.ExpireNoc(registration.ID))
	require.NoError(t, db.First(&updated, registration.ID).Error)
	require.NotNil(t, updated.NocStatus)
	assert.Equal(t, models.NocStatusExpired, *updated.NocStatus)

	// Expiring again is a no-op.
	require.NoError(t, registrationService.ExpireNoc(registration.ID))

	// NOCs are only sent against active registrations.
	cancelled := createActiveRegistration(t, db, submitter, "BCH25100008", time.Now().AddDate(0, 0, 90))
	require.NoError(t, db.Model(cancelled).Update("status", models.RegistrationStatusCancelled).Error)
	_, err = registrationService.SendNoticeOfConsideration(cancelled.ID, examiner.ID, &SendRegistrationNocRequest{Content: "Notice"})
	assert.ErrorIs(t, err, ErrRegistrationInactive)
}

func TestIssueCertificate(t *testing.T) {
	db := setupTestDB(t)
	submitter := createTestUser(t, db, models.UserRoleSubmitter)
	examiner := createTestUser(t, db, models.UserRoleExaminer)
	_, _, registrationService, _ := newTestServices(t, db, &stubGeocoder{}, &stubPayAPI{})

	registration := createActiveRegistration(t, db, submitter, "BCH25100009", time.Now().AddDate(0, 0, 90))

	certificate, err := registrationService.IssueCertificate(registration.ID, examiner.ID, "certificates/BCH25100009.pdf")
	require.NoError(t, err)
	assert.Equal(t, "certificates/BCH25100009.pdf", certificate.FileKey)
	assert.False(t, certificate.IssuedDate.IsZero())

	suspended := createActiveRegistration(t, db, submitter, "BCH25100010", time.Now().AddDate(0, 0, 90))
	require.NoError(t, db.Model(suspended).Update("status", models.RegistrationStatusSuspended).Error)
	_, err = registrationService.IssueCertificate(suspended.ID, examiner.ID, "certificates/BCH25100010.pdf")
	assert.ErrorIs(t, err, ErrRegistrationInactive)
}

func TestAddDocument(t *testing.T) {
	db := setupTestDB(t)
	submitter := createTestUser(t, db, models.UserRoleSubmitter)
	_, _, registrationService, _ := newTestServices(t, db, &stubGeocoder{}, &stubPayAPI{})

	registration := createActiveRegistration(t, db, submitter, "BCH25100011", time.Now().AddDate(0, 0, 90))

	document, err := registrationService.AddDocument(registration.ID, "licence.pdf", "documents/abc/licence.pdf", "application/pdf", "business_licence")
	require.NoError(t, err)
	assert.Equal(t, registration.ID, document.RegistrationID)
	assert.Equal(t, "business_licence", document.DocumentType)

	_, err = registrationService.AddDocument(uuid.New(), "x.pdf", "k", "application/pdf", "other")
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
}

func TestSearchRegistrations(t *testing.T) {
	db := setupTestDB(t)
	ownerA := createTestUser(t, db, models.UserRoleSubmitter)
	ownerB := createTestUser(t, db, models.UserRoleSubmitter)
	_, _, registrationService, _ := newTestServices(t, db, &stubGeocoder{}, &stubPayAPI{})

	createActiveRegistration(t, db, ownerA, "BCH25100012", time.Now().AddDate(0, 0, 10))
	soonExpired := createActiveRegistration(t, db, ownerA, "BCH25100013", time.Now().AddDate(0, 0, 400))
	require.NoError(t, db.Model(soonExpired).Update("status", models.RegistrationStatusSuspended).Error)
	createActiveRegistration(t, db, ownerB, "BCH25100014", time.Now().AddDate(0, 0, 200))

	_, total, err := registrationService.SearchRegistrations(RegistrationSearchParams{PaginationParams: defaultPage(), UserID: &ownerA.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	active := models.RegistrationStatusActive
	_, total, err = registrationService.SearchRegistrations(RegistrationSearchParams{PaginationParams: defaultPage(), Status: &active})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	cutoff := time.Now().AddDate(0, 0, 30)
	results, total, err := registrationService.SearchRegistrations(RegistrationSearchParams{PaginationParams: defaultPage(), ExpiringBefore: &cutoff})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "BCH25100012", results[0].RegistrationNumber)
}

// internal/handlers/application_test.go
package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rentalregistry/strr-backend/internal/clients"
	"github.com/rentalregistry/strr-backend/internal/config"
	"github.com/rentalregistry/strr-backend/internal/models"
	"github.com/rentalregistry/strr-backend/internal/services"
)

func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Application{},
		&models.Registration{},
		&models.RentalProperty{},
		&models.PlatformRegistration{},
		&models.StrataHotelRegistration{},
		&models.Document{},
		&models.Certificate{},
		&models.NoticeOfConsideration{},
		&models.RegistrationNoticeOfConsideration{},
		&models.AutoApprovalRecord{},
		&models.RegistrationSnapshot{},
		&models.Event{},
	))
	return db
}

func handlerTestConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Registry: config.RegistryConfig{
			NocWindowDays:            8,
			RegistrationTermDays:     365,
			AutoApprovalDelayMinutes: 10,
			NumberMaxAttempts:        10,
			LegislativeTimezone:      "America/Vancouver",
		},
		Pay: config.PayConfig{
			HostFee:        100,
			PlatformFee:    1500,
			StrataHotelFee: 1500,
		},
		JWT: config.JWTConfig{AccessTokenTTL: 24},
	}
}

type handlerStubPayAPI struct{}

func (handlerStubPayAPI) CreateInvoice(accountID, filingType string, amount decimal.Decimal) (*clients.Invoice, error) {
	return &clients.Invoice{ID: 1, StatusCode: "CREATED", PaymentAccount: accountID, Total: amount}, nil
}

func (handlerStubPayAPI) GetInvoice(invoiceID int64) (*clients.Invoice, error) {
	return &clients.Invoice{ID: invoiceID, StatusCode: "COMPLETED"}, nil
}

func newApplicationTestHandler(t *testing.T, db *gorm.DB) *ApplicationHandler {
	t.Helper()

	cfg := handlerTestConfig()
	eventService := services.NewEventService(db)
	notificationService := services.NewNotificationServiceWithPublisher(db, cfg, nil)
	registrationService := services.NewRegistrationService(db, cfg, eventService)
	applicationService := services.NewApplicationService(db, cfg, handlerStubPayAPI{}, eventService, registrationService, notificationService)
	authService := services.NewAuthService(db, cfg)

	return NewApplicationHandler(applicationService, authService, eventService)
}

func createHandlerUser(t *testing.T, db *gorm.DB, role models.UserRole) *models.User {
	t.Helper()

	suffix := uuid.NewString()[:8]
	user := &models.User{
		Username: string(role) + "-" + suffix,
		Email:    string(role) + "-" + suffix + "@example.com",
		Role:     role,
		Status:   models.UserStatusActive,
	}
	require.NoError(t, user.SetPassword("password123"))
	require.NoError(t, db.Create(user).Error)
	return user
}

func createDraftApplication(t *testing.T, db *gorm.DB, submitter *models.User) *models.Application {
	t.Helper()

	application := &models.Application{
		ApplicationNumber: "1000000" + uuid.NewString()[:7],
		ApplicationJSON: models.JSONB{
			"platform": map[string]interface{}{"legalName": "Stays Inc"},
		},
		Type:             models.ApplicationTypeRegistration,
		RegistrationType: models.RegistrationTypePlatform,
		Status:           models.ApplicationStatusDraft,
		ApplicationDate:  time.Now(),
		SubmitterID:      submitter.ID,
	}
	require.NoError(t, db.Create(application).Error)
	return application
}

// actingAs stands in for the JWT middleware in handler tests.
func actingAs(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", user.ID.String())
		c.Set("username", user.Username)
		c.Set("user_role", string(user.Role))
		c.Next()
	}
}

func paymentTestRouter(handler *ApplicationHandler, user *models.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(actingAs(user))
	r.POST("/applications/:id/invoice", handler.CreateInvoice)
	r.PUT("/applications/:id/payment", handler.UpdatePaymentStatus)
	return r
}

func TestCreateInvoice_OtherSubmitterForbidden(t *testing.T) {
	db := setupHandlerTestDB(t)
	handler := newApplicationTestHandler(t, db)
	owner := createHandlerUser(t, db, models.UserRoleSubmitter)
	stranger := createHandlerUser(t, db, models.UserRoleSubmitter)
	application := createDraftApplication(t, db, owner)

	router := paymentTestRouter(handler, stranger)
	req := httptest.NewRequest(http.MethodPost, "/applications/"+application.ID.String()+"/invoice",
		strings.NewReader(`{"account_id":"SBC-9999"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusForbidden, resp.Code)

	var unchanged models.Application
	require.NoError(t, db.First(&unchanged, application.ID).Error)
	assert.Equal(t, models.ApplicationStatusDraft, unchanged.Status)
	assert.Nil(t, unchanged.InvoiceID)
}

func TestCreateInvoice_OwnerAllowed(t *testing.T) {
	db := setupHandlerTestDB(t)
	handler := newApplicationTestHandler(t, db)
	owner := createHandlerUser(t, db, models.UserRoleSubmitter)
	application := createDraftApplication(t, db, owner)

	router := paymentTestRouter(handler, owner)
	req := httptest.NewRequest(http.MethodPost, "/applications/"+application.ID.String()+"/invoice",
		strings.NewReader(`{"account_id":"SBC-1234"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)

	var invoiced models.Application
	require.NoError(t, db.First(&invoiced, application.ID).Error)
	assert.Equal(t, models.ApplicationStatusPaymentDue, invoiced.Status)
}

func TestUpdatePaymentStatus_OtherSubmitterForbidden(t *testing.T) {
	db := setupHandlerTestDB(t)
	handler := newApplicationTestHandler(t, db)
	owner := createHandlerUser(t, db, models.UserRoleSubmitter)
	stranger := createHandlerUser(t, db, models.UserRoleSubmitter)
	application := createDraftApplication(t, db, owner)

	// Drive the owner's application to PAYMENT_DUE first.
	ownerRouter := paymentTestRouter(handler, owner)
	req := httptest.NewRequest(http.MethodPost, "/applications/"+application.ID.String()+"/invoice",
		strings.NewReader(`{"account_id":"SBC-1234"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	ownerRouter.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	router := paymentTestRouter(handler, stranger)
	req = httptest.NewRequest(http.MethodPut, "/applications/"+application.ID.String()+"/payment", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusForbidden, resp.Code)

	var unchanged models.Application
	require.NoError(t, db.First(&unchanged, application.ID).Error)
	assert.Equal(t, models.ApplicationStatusPaymentDue, unchanged.Status)
}

func TestUpdatePaymentStatus_StaffExempt(t *testing.T) {
	db := setupHandlerTestDB(t)
	handler := newApplicationTestHandler(t, db)
	owner := createHandlerUser(t, db, models.UserRoleSubmitter)
	examiner := createHandlerUser(t, db, models.UserRoleExaminer)
	application := createDraftApplication(t, db, owner)

	ownerRouter := paymentTestRouter(handler, owner)
	req := httptest.NewRequest(http.MethodPost, "/applications/"+application.ID.String()+"/invoice",
		strings.NewReader(`{"account_id":"SBC-1234"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	ownerRouter.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	staffRouter := paymentTestRouter(handler, examiner)
	req = httptest.NewRequest(http.MethodPut, "/applications/"+application.ID.String()+"/payment", nil)
	resp = httptest.NewRecorder()
	staffRouter.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)

	var paid models.Application
	require.NoError(t, db.First(&paid, application.ID).Error)
	assert.Equal(t, models.ApplicationStatusPaid, paid.Status)
}

// internal/services/testhelpers_test.go
package services

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rentalregistry/strr-backend/internal/clients"
	"github.com/rentalregistry/strr-backend/internal/config"
	"github.com/rentalregistry/strr-backend/internal/models"
	"github.com/rentalregistry/strr-backend/internal/utils"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
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
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Registry: config.RegistryConfig{
			NocWindowDays:            8,
			RegistrationTermDays:     365,
			AutoApprovalDelayMinutes: 10,
			NumberMaxAttempts:        10,
			LegislativeTimezone:      "America/Vancouver",
		},
		Jobs: config.JobsConfig{
			BatchMaxAttempts:  5,
			BackoffCapSeconds: 60,
			ValidatorWorkers:  4,
		},
		Kafka: config.KafkaConfig{
			EmailTopic:   "strr.email",
			BatchTopic:   "strr.batch",
			WriteTimeout: 5,
			Source:       "strr-backend",
		},
		Pay: config.PayConfig{
			HostFee:        100,
			PlatformFee:    1500,
			StrataHotelFee: 1500,
		},
	}
}

func defaultPage() utils.PaginationParams {
	return utils.PaginationParams{Page: 1, Limit: 20, Sort: "created_at", Order: "desc"}
}

func createTestUser(t *testing.T, db *gorm.DB, role models.UserRole) *models.User {
	t.Helper()

	suffix := uuid.NewString()[:8]
	user := &models.User{
		Username: string(role) + "-" + suffix,
		Email:    string(role) + "-" + suffix + "@example.com",
		Role:     role,
		Status:   models.UserStatusActive,
	}
	if err := user.SetPassword("password123"); err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func hostApplicationJSON() models.JSONB {
	return models.JSONB{
		"unitAddress": map[string]interface{}{
			"streetNumber": "123",
			"streetName":   "Main St",
			"city":         "Victoria",
			"province":     "BC",
			"postalCode":   "V8V 1A1",
		},
		"ownershipType":        "own",
		"spaceType":            "entire_home",
		"isPrincipalResidence": true,
	}
}

func platformApplicationJSON() models.JSONB {
	return models.JSONB{
		"platform": map[string]interface{}{
			"legalName":        "Stays Inc",
			"homeJurisdiction": "BC",
			"listingSize":      "LARGE",
		},
	}
}

func strataApplicationJSON() models.JSONB {
	return models.JSONB{
		"strataHotel": map[string]interface{}{
			"brandName":       "Harbour Suites",
			"buildingAddress": "800 Douglas St Victoria BC",
			"numberOfUnits":   40,
		},
	}
}

func createTestApplication(t *testing.T, db *gorm.DB, submitter *models.User, registrationType models.RegistrationType, status models.ApplicationStatus) *models.Application {
	t.Helper()

	var doc models.JSONB
	switch registrationType {
	case models.RegistrationTypeHost:
		doc = hostApplicationJSON()
	case models.RegistrationTypePlatform:
		doc = platformApplicationJSON()
	default:
		doc = strataApplicationJSON()
	}

	number, err := generateTestNumber(db)
	if err != nil {
		t.Fatalf("Failed to generate application number: %v", err)
	}

	application := &models.Application{
		ApplicationNumber: number,
		ApplicationJSON:   doc,
		Type:              models.ApplicationTypeRegistration,
		RegistrationType:  registrationType,
		Status:            status,
		ApplicationDate:   time.Now(),
		SubmitterID:       submitter.ID,
	}
	if err := db.Create(application).Error; err != nil {
		t.Fatalf("Failed to create test application: %v", err)
	}
	return application
}

func generateTestNumber(db *gorm.DB) (string, error) {
	svc := &ApplicationService{db: db, config: testConfig()}
	return svc.generateUniqueApplicationNumber(db)
}

// stubGeocoder returns canned STR requirements.
type stubGeocoder struct {
	requirements *clients.STRRequirements
	err          error
	calls        int
}

func (g *stubGeocoder) GetSTRDataForAddress(address string) (*clients.STRRequirements, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	if g.requirements != nil {
		return g.requirements, nil
	}
	return &clients.STRRequirements{}, nil
}

// stubPayAPI returns canned invoices.
type stubPayAPI struct {
	createStatus string
	getStatus    string
	err          error
	nextID       int64
}

func (p *stubPayAPI) CreateInvoice(accountID string, filingType string, amount decimal.Decimal) (*clients.Invoice, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.nextID++
	status := p.createStatus
	if status == "" {
		status = "CREATED"
	}
	return &clients.Invoice{
		ID:             p.nextID,
		StatusCode:     status,
		PaymentAccount: accountID,
		Total:          amount,
	}, nil
}

func (p *stubPayAPI) GetInvoice(invoiceID int64) (*clients.Invoice, error) {
	if p.err != nil {
		return nil, p.err
	}
	status := p.getStatus
	if status == "" {
		status = "COMPLETED"
	}
	return &clients.Invoice{ID: invoiceID, StatusCode: status}, nil
}

// capturePublisher records messages instead of writing to Kafka.
type capturePublisher struct {
	messages []kafka.Message
}

func (p *capturePublisher) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	p.messages = append(p.messages, msgs...)
	return nil
}

func newTestServices(t *testing.T, db *gorm.DB, geocoder clients.Geocoder, payAPI clients.PayAPI) (*ApplicationService, *ApprovalService, *RegistrationService, *EventService) {
	t.Helper()

	cfg := testConfig()
	eventService := NewEventService(db)
	notificationService := NewNotificationServiceWithPublisher(db, cfg, &capturePublisher{})
	registrationService := NewRegistrationService(db, cfg, eventService)
	approvalService := NewApprovalService(db, geocoder, eventService, registrationService)
	applicationService := NewApplicationService(db, cfg, payAPI, eventService, registrationService, notificationService)
	return applicationService, approvalService, registrationService, eventService
}

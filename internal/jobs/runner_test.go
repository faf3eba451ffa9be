// internal/jobs/runner_test.go
package jobs

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rentalregistry/strr-backend/internal/clients"
	"github.com/rentalregistry/strr-backend/internal/config"
	"github.com/rentalregistry/strr-backend/internal/models"
	"github.com/rentalregistry/strr-backend/internal/services"
)

func setupJobTestDB(t *testing.T) *gorm.DB {
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

func jobTestConfig() *config.Config {
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
			BatchMaxAttempts:  2,
			BackoffCapSeconds: 1,
			ValidatorWorkers:  2,
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

type fixedGeocoder struct {
	requirements clients.STRRequirements
}

func (g *fixedGeocoder) GetSTRDataForAddress(string) (*clients.STRRequirements, error) {
	req := g.requirements
	return &req, nil
}

type noopPayAPI struct{}

func (noopPayAPI) CreateInvoice(accountID, filingType string, amount decimal.Decimal) (*clients.Invoice, error) {
	return &clients.Invoice{ID: 1, StatusCode: "CREATED", PaymentAccount: accountID, Total: amount}, nil
}

func (noopPayAPI) GetInvoice(invoiceID int64) (*clients.Invoice, error) {
	return &clients.Invoice{ID: invoiceID, StatusCode: "COMPLETED"}, nil
}

type recordingPublisher struct {
	messages []kafka.Message
}

func (p *recordingPublisher) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	p.messages = append(p.messages, msgs...)
	return nil
}

func newTestRunner(t *testing.T, db *gorm.DB) (*Runner, *recordingPublisher) {
	t.Helper()

	cfg := jobTestConfig()
	publisher := &recordingPublisher{}
	eventService := services.NewEventService(db)
	notificationService := services.NewNotificationServiceWithPublisher(db, cfg, publisher)
	registrationService := services.NewRegistrationService(db, cfg, eventService)
	approvalService := services.NewApprovalService(db, &fixedGeocoder{}, eventService, registrationService)
	applicationService := services.NewApplicationService(db, cfg, noopPayAPI{}, eventService, registrationService, notificationService)
	storageService, err := services.NewStorageService(cfg)
	require.NoError(t, err)
	permitValidationService := services.NewPermitValidationService(db, cfg, storageService, notificationService, eventService)

	return NewRunner(db, cfg, approvalService, applicationService, registrationService, notificationService, eventService, permitValidationService), publisher
}

func createJobUser(t *testing.T, db *gorm.DB, role models.UserRole) *models.User {
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

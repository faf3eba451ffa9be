// internal/jobs/runner.go
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/rentalregistry/strr-backend/internal/config"
	"github.com/rentalregistry/strr-backend/internal/services"
)

// Runner wires the batch jobs to the service layer. Each job is a single
// sweep; cmd/jobs decides whether to run once or on a ticker.
type Runner struct {
	db                      *gorm.DB
	cfg                     *config.Config
	approvalService         *services.ApprovalService
	applicationService      *services.ApplicationService
	registrationService     *services.RegistrationService
	notificationService     *services.NotificationService
	eventService            *services.EventService
	permitValidationService *services.PermitValidationService
}

func NewRunner(
	db *gorm.DB,
	cfg *config.Config,
	approvalService *services.ApprovalService,
	applicationService *services.ApplicationService,
	registrationService *services.RegistrationService,
	notificationService *services.NotificationService,
	eventService *services.EventService,
	permitValidationService *services.PermitValidationService,
) *Runner {
	return &Runner{
		db:                      db,
		cfg:                     cfg,
		approvalService:         approvalService,
		applicationService:      applicationService,
		registrationService:     registrationService,
		notificationService:     notificationService,
		eventService:            eventService,
		permitValidationService: permitValidationService,
	}
}

// withRetry reruns op with exponential backoff on database errors. The delay
// doubles each attempt (2^n seconds) up to the configured cap.
func (r *Runner) withRetry(ctx context.Context, job string, op func() error) error {
	maxAttempts := r.cfg.Jobs.BatchMaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}

		if attempt == maxAttempts {
			break
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		cap := time.Duration(r.cfg.Jobs.BackoffCapSeconds) * time.Second
		if backoff > cap {
			backoff = cap
		}

		logrus.WithFields(logrus.Fields{
			"job":     job,
			"attempt": attempt,
			"backoff": backoff,
		}).WithError(err).Warn("Job batch failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", job, maxAttempts, err)
}

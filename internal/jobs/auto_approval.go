// internal/jobs/auto_approval.go
package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rentalregistry/strr-backend/internal/models"
)

// RunAutoApprovalSweep picks up paid applications that have settled for at
// least the configured delay and runs each through the approval engine. The
// batch query retries on database errors; per-application failures are the
// engine's own problem, it always lands the application somewhere safe.
func (r *Runner) RunAutoApprovalSweep(ctx context.Context) error {
	cutoff := time.Now().Add(-time.Duration(r.cfg.Registry.AutoApprovalDelayMinutes) * time.Minute)

	var applications []models.Application
	err := r.withRetry(ctx, "auto-approval", func() error {
		return r.db.
			Where("status = ? AND payment_completion_date <= ?", models.ApplicationStatusPaid, cutoff).
			Order("payment_completion_date asc").
			Find(&applications).Error
	})
	if err != nil {
		return err
	}

	if len(applications) == 0 {
		logrus.Debug("Auto-approval sweep: nothing to process")
		return nil
	}

	logrus.WithField("count", len(applications)).Info("Auto-approval sweep starting")

	for i := range applications {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		application := &applications[i]
		status, registrationID := r.approvalService.ProcessAutoApproval(application)

		fields := logrus.Fields{
			"application_number": application.ApplicationNumber,
			"status":             status,
		}
		if registrationID != nil {
			fields["registration_id"] = registrationID.String()
		}
		logrus.WithFields(fields).Info("Auto-approval processed")
	}

	return nil
}

// internal/jobs/noc_expiry.go
package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rentalregistry/strr-backend/internal/models"
)

// RunNocExpirySweep closes notice-of-consideration windows that have lapsed,
// on both applications and registrations. Only the most recent notice per
// entity counts: a lapsed earlier cycle must not close a re-sent window.
// Each row is expired independently so one bad record cannot wedge the sweep.
func (r *Runner) RunNocExpirySweep(ctx context.Context) error {
	now := time.Now()

	var applications []models.Application
	err := r.withRetry(ctx, "noc-expiry", func() error {
		return r.db.
			Where("status IN ?", []models.ApplicationStatus{
				models.ApplicationStatusNocPending,
				models.ApplicationStatusProvisionalNocPending,
			}).
			Where("id IN (SELECT application_id FROM notice_of_considerations GROUP BY application_id HAVING MAX(end_date) < ?)", now).
			Find(&applications).Error
	})
	if err != nil {
		return err
	}

	expired := 0
	for i := range applications {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.applicationService.ExpireNoc(applications[i].ID); err != nil {
			logrus.WithError(err).
				WithField("application_number", applications[i].ApplicationNumber).
				Error("Failed to expire application NOC")
			continue
		}
		expired++
	}

	var registrations []models.Registration
	err = r.withRetry(ctx, "noc-expiry-registrations", func() error {
		return r.db.
			Where("noc_status = ?", models.NocStatusPending).
			Where("id IN (SELECT registration_id FROM registration_notice_of_considerations GROUP BY registration_id HAVING MAX(end_date) < ?)", now).
			Find(&registrations).Error
	})
	if err != nil {
		return err
	}

	for i := range registrations {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.registrationService.ExpireNoc(registrations[i].ID); err != nil {
			logrus.WithError(err).
				WithField("registration_number", registrations[i].RegistrationNumber).
				Error("Failed to expire registration NOC")
			continue
		}
		expired++
	}

	if expired > 0 {
		logrus.WithField("count", expired).Info("NOC expiry sweep complete")
	}
	return nil
}

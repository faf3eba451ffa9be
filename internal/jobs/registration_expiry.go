// internal/jobs/registration_expiry.go
package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rentalregistry/strr-backend/internal/models"
)

// RunRegistrationExpirySweep moves active registrations past their expiry
// date to EXPIRED. Expiry is judged in the legislative timezone. Rows fail
// independently; the sweep reports how many it actually expired.
func (r *Runner) RunRegistrationExpirySweep(ctx context.Context) error {
	now := time.Now().In(r.cfg.LegislativeLocation())

	var registrations []models.Registration
	err := r.withRetry(ctx, "registration-expiry", func() error {
		return r.db.
			Where("status = ? AND expiry_date < ?", models.RegistrationStatusActive, now).
			Find(&registrations).Error
	})
	if err != nil {
		return err
	}

	if len(registrations) == 0 {
		return nil
	}

	expired := 0
	for i := range registrations {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.registrationService.Expire(registrations[i].ID); err != nil {
			logrus.WithError(err).
				WithField("registration_number", registrations[i].RegistrationNumber).
				Error("Failed to expire registration")
			continue
		}
		expired++
	}

	logrus.WithFields(logrus.Fields{
		"candidates": len(registrations),
		"expired":    expired,
	}).Info("Registration expiry sweep complete")
	return nil
}

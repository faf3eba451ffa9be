// internal/jobs/renewal_reminders.go
package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rentalregistry/strr-backend/internal/models"
	"github.com/rentalregistry/strr-backend/internal/services"
)

// Reminder cadence per registration type: a first notice well before expiry
// and a final notice closer in. The final notice is suppressed once the
// registrant has a renewal application underway.
var reminderWindows = map[models.RegistrationType][2]int{
	models.RegistrationTypeHost:        {40, 14},
	models.RegistrationTypeStrataHotel: {60, 30},
}

// RunRenewalReminders emails registrants whose registration expires exactly
// N days from today (legislative time), for each configured window.
func (r *Runner) RunRenewalReminders(ctx context.Context) error {
	loc := r.cfg.LegislativeLocation()
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	sent := 0
	for registrationType, windows := range reminderWindows {
		for idx, days := range windows {
			finalNotice := idx == 1

			dueStart := today.AddDate(0, 0, days)
			dueEnd := dueStart.AddDate(0, 0, 1)

			var registrations []models.Registration
			err := r.withRetry(ctx, "renewal-reminders", func() error {
				return r.db.
					Where("registration_type = ? AND status = ?", registrationType, models.RegistrationStatusActive).
					Where("expiry_date >= ? AND expiry_date < ?", dueStart, dueEnd).
					Find(&registrations).Error
			})
			if err != nil {
				return err
			}

			for i := range registrations {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				registration := &registrations[i]

				if finalNotice {
					underway, err := r.renewalUnderway(registration.ID)
					if err != nil {
						logrus.WithError(err).
							WithField("registration_number", registration.RegistrationNumber).
							Error("Failed to check renewal application")
						continue
					}
					if underway {
						continue
					}
				}

				// One reminder per registration per day, so the sweep can be
				// re-run safely.
				already, err := r.reminderAlreadySent(registration.ID, today)
				if err != nil {
					logrus.WithError(err).
						WithField("registration_number", registration.RegistrationNumber).
						Error("Failed to check prior reminders")
					continue
				}
				if already {
					continue
				}

				if err := r.notificationService.SendRenewalReminder(registration, days); err != nil {
					logrus.WithError(err).
						WithField("registration_number", registration.RegistrationNumber).
						Error("Failed to send renewal reminder")
					continue
				}

				if err := r.eventService.SaveEvent(services.SaveEventParams{
					EventType:      models.EventTypeRegistration,
					EventName:      models.EventRenewalReminderSent,
					RegistrationID: &registration.ID,
					Details:        reminderDetails(days),
				}); err != nil {
					logrus.WithError(err).Error("Failed to record renewal reminder event")
				}
				sent++
			}
		}
	}

	if sent > 0 {
		logrus.WithField("count", sent).Info("Renewal reminders sent")
	}
	return nil
}

// renewalUnderway reports whether a renewal application for the registration
// is already drafted or awaiting payment.
func (r *Runner) renewalUnderway(registrationID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.Model(&models.Application{}).
		Where("registration_id = ? AND type = ?", registrationID, models.ApplicationTypeRenewal).
		Where("status IN ?", []models.ApplicationStatus{
			models.ApplicationStatusDraft,
			models.ApplicationStatusPaymentDue,
		}).
		Count(&count).Error
	return count > 0, err
}

func (r *Runner) reminderAlreadySent(registrationID uuid.UUID, since time.Time) (bool, error) {
	var count int64
	err := r.db.Model(&models.Event{}).
		Where("registration_id = ? AND event_name = ?", registrationID, models.EventRenewalReminderSent).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count > 0, err
}

func reminderDetails(days int) string {
	if days <= 30 {
		return "Final renewal reminder sent"
	}
	return "Renewal reminder sent"
}

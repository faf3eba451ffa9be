// cmd/jobs/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rentalregistry/strr-backend/internal/clients"
	"github.com/rentalregistry/strr-backend/internal/config"
	"github.com/rentalregistry/strr-backend/internal/database"
	"github.com/rentalregistry/strr-backend/internal/jobs"
	"github.com/rentalregistry/strr-backend/internal/services"
)

func main() {
	jobName := flag.String("job", "", "job to run: auto-approval, noc-expiry, registration-expiry, renewal-reminders, permit-validation")
	interval := flag.Duration("interval", 0, "rerun interval; zero runs the job once and exits")
	inputFile := flag.String("file", "", "input file for permit-validation")
	flag.Parse()

	if *jobName == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.Close(db)

	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		log.Fatal("Failed to initialize storage:", err)
	}

	eventService := services.NewEventService(db)
	notificationService := services.NewNotificationService(db, cfg)
	registrationService := services.NewRegistrationService(db, cfg, eventService)
	approvalService := services.NewApprovalService(db, clients.NewGeocoderClient(cfg.Geocoder), eventService, registrationService)
	applicationService := services.NewApplicationService(db, cfg, clients.NewPayClient(cfg.Pay), eventService, registrationService, notificationService)
	permitValidationService := services.NewPermitValidationService(db, cfg, storageService, notificationService, eventService)

	runner := jobs.NewRunner(db, cfg, approvalService, applicationService, registrationService, notificationService, eventService, permitValidationService)

	run := func(ctx context.Context) error {
		switch *jobName {
		case "auto-approval":
			return runner.RunAutoApprovalSweep(ctx)
		case "noc-expiry":
			return runner.RunNocExpirySweep(ctx)
		case "registration-expiry":
			return runner.RunRegistrationExpirySweep(ctx)
		case "renewal-reminders":
			return runner.RunRenewalReminders(ctx)
		case "permit-validation":
			return runner.RunPermitValidation(ctx, *inputFile)
		default:
			return fmt.Errorf("unknown job %q", *jobName)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *interval <= 0 {
		if err := run(ctx); err != nil {
			logrus.WithError(err).Fatal("Job failed")
		}
		return
	}

	logrus.WithFields(logrus.Fields{
		"job":      *jobName,
		"interval": interval.String(),
	}).Info("Job scheduler starting")

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		if err := run(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logrus.WithError(err).Error("Job run failed")
		}

		select {
		case <-ctx.Done():
			logrus.Info("Job scheduler stopping")
			return
		case <-ticker.C:
		}
	}
}

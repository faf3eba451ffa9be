// internal/services/notification_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/rentalregistry/strr-backend/internal/config"
	"github.com/rentalregistry/strr-backend/internal/models"
)

// QueuePublisher is the slice of the Kafka writer the service needs; tests
// swap in a capture implementation.
type QueuePublisher interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type NotificationService struct {
	db        *gorm.DB
	config    *config.Config
	publisher QueuePublisher
}

type EmailTemplate struct {
	Subject string
	Body    string
}

// QueueMessage is the envelope every message on the notify topics carries.
type QueueMessage struct {
	Source      string                 `json:"source"`
	MessageType string                 `json:"messageType"`
	Payload     map[string]interface{} `json:"payload"`
}

type EmailCommand struct {
	Recipients []string `json:"recipients"`
	RequestBy  string   `json:"requestBy"`
	Content    struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	} `json:"content"`
}

func NewNotificationService(db *gorm.DB, cfg *config.Config) *NotificationService {
	var publisher QueuePublisher
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		publisher = &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Kafka.Brokers...),
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireOne,
			WriteTimeout:           time.Duration(cfg.Kafka.WriteTimeout) * time.Second,
		}
	}
	return &NotificationService{db: db, config: cfg, publisher: publisher}
}

func NewNotificationServiceWithPublisher(db *gorm.DB, cfg *config.Config, publisher QueuePublisher) *NotificationService {
	return &NotificationService{db: db, config: cfg, publisher: publisher}
}

// SendDecisionNotification emails the submitter after an examiner decision.
// Failures are logged, never surfaced: a lost email must not undo a decision.
func (s *NotificationService) SendDecisionNotification(application *models.Application) {
	var submitter models.User
	if err := s.db.First(&submitter, application.SubmitterID).Error; err != nil {
		logrus.WithError(err).WithField("application_id", application.ID).Error("Failed to load submitter for decision notification")
		return
	}

	var tmplName string
	switch application.Status {
	case models.ApplicationStatusFullReviewApproved, models.ApplicationStatusAutoApproved, models.ApplicationStatusProvisionallyApproved:
		tmplName = "application_approved"
	case models.ApplicationStatusDeclined, models.ApplicationStatusProvisionallyDeclined:
		tmplName = "application_declined"
	default:
		return
	}

	data := map[string]interface{}{
		"Name":              submitter.Username,
		"ApplicationNumber": application.ApplicationNumber,
		"Status":            application.Status,
	}

	emailTmpl := s.getEmailTemplate(tmplName)
	body, err := s.renderTemplate(emailTmpl.Body, data)
	if err != nil {
		logrus.WithError(err).Error("Failed to render decision email template")
		return
	}

	if err := s.publishEmail([]string{submitter.Email}, emailTmpl.Subject, body); err != nil {
		logrus.WithError(err).WithField("application_id", application.ID).Error("Failed to publish decision notification")
	}
}

// SendRenewalReminder emails a registrant that their registration expires in
// the given number of days.
func (s *NotificationService) SendRenewalReminder(registration *models.Registration, daysUntilExpiry int) error {
	var user models.User
	if err := s.db.First(&user, registration.UserID).Error; err != nil {
		return fmt.Errorf("failed to load registrant: %w", err)
	}

	data := map[string]interface{}{
		"Name":               user.Username,
		"RegistrationNumber": registration.RegistrationNumber,
		"ExpiryDate":         registration.ExpiryDate.Format("January 2, 2006"),
		"DaysUntilExpiry":    daysUntilExpiry,
	}

	emailTmpl := s.getEmailTemplate("renewal_reminder")
	body, err := s.renderTemplate(emailTmpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render renewal reminder template: %w", err)
	}

	subject := fmt.Sprintf("%s - expires in %d days", emailTmpl.Subject, daysUntilExpiry)
	return s.publishEmail([]string{user.Email}, subject, body)
}

// SendNocNotification tells the submitter a notice of consideration was
// issued and when the response window closes.
func (s *NotificationService) SendNocNotification(application *models.Application, endDate time.Time) error {
	var submitter models.User
	if err := s.db.First(&submitter, application.SubmitterID).Error; err != nil {
		return fmt.Errorf("failed to load submitter: %w", err)
	}

	data := map[string]interface{}{
		"Name":              submitter.Username,
		"ApplicationNumber": application.ApplicationNumber,
		"ResponseDue":       endDate.Format("January 2, 2006"),
	}

	emailTmpl := s.getEmailTemplate("noc_issued")
	body, err := s.renderTemplate(emailTmpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render notice template: %w", err)
	}

	return s.publishEmail([]string{submitter.Email}, emailTmpl.Subject, body)
}

// PublishBatchEvent reports a batch job outcome on the batch topic so
// downstream consumers (reporting, audit) can react.
func (s *NotificationService) PublishBatchEvent(messageType string, payload map[string]interface{}) error {
	return s.publish(s.config.Kafka.BatchTopic, QueueMessage{
		Source:      s.config.Kafka.Source,
		MessageType: messageType,
		Payload:     payload,
	})
}

func (s *NotificationService) publishEmail(recipients []string, subject, body string) error {
	cmd := EmailCommand{Recipients: recipients, RequestBy: s.config.Kafka.Source}
	cmd.Content.Subject = subject
	cmd.Content.Body = body

	payload := map[string]interface{}{
		"recipients": cmd.Recipients,
		"requestBy":  cmd.RequestBy,
		"content": map[string]string{
			"subject": cmd.Content.Subject,
			"body":    cmd.Content.Body,
		},
	}
	return s.publish(s.config.Kafka.EmailTopic, QueueMessage{
		Source:      s.config.Kafka.Source,
		MessageType: "EMAIL",
		Payload:     payload,
	})
}

func (s *NotificationService) publish(topic string, message QueueMessage) error {
	if s.publisher == nil {
		logrus.WithFields(logrus.Fields{
			"topic":        topic,
			"message_type": message.MessageType,
		}).Info("Queue not configured, message dropped")
		return nil
	}

	value, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.config.Kafka.WriteTimeout)*time.Second)
	defer cancel()

	err = s.publisher.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(message.MessageType),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (s *NotificationService) renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *NotificationService) getEmailTemplate(templateType string) EmailTemplate {
	templates := map[string]EmailTemplate{
		"application_approved": {
			Subject: "Short-Term Rental Registration Approved",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Application Approved</h2>
	<p>Hello {{.Name}},</p>
	<p>Your application {{.ApplicationNumber}} has been approved.</p>
	<p>Your registration certificate is available in your dashboard.</p>
	<p>Short-Term Rental Registry</p>
</body>
</html>`,
		},
		"application_declined": {
			Subject: "Short-Term Rental Application Declined",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Application Declined</h2>
	<p>Hello {{.Name}},</p>
	<p>Your application {{.ApplicationNumber}} has been declined.</p>
	<p>Details are available in your dashboard.</p>
	<p>Short-Term Rental Registry</p>
</body>
</html>`,
		},
		"renewal_reminder": {
			Subject: "Short-Term Rental Registration Renewal",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Renewal Reminder</h2>
	<p>Hello {{.Name}},</p>
	<p>Your registration {{.RegistrationNumber}} expires on {{.ExpiryDate}} ({{.DaysUntilExpiry}} days from now).</p>
	<p>Submit a renewal application before the expiry date to keep your registration active.</p>
	<p>Short-Term Rental Registry</p>
</body>
</html>`,
		},
		"noc_issued": {
			Subject: "Notice of Consideration Issued",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Notice of Consideration</h2>
	<p>Hello {{.Name}},</p>
	<p>A notice of consideration has been issued for your application {{.ApplicationNumber}}.</p>
	<p>You have until {{.ResponseDue}} to respond before a decision is made.</p>
	<p>Short-Term Rental Registry</p>
</body>
</html>`,
		},
	}

	if tmpl, exists := templates[templateType]; exists {
		return tmpl
	}

	return EmailTemplate{
		Subject: "Short-Term Rental Registry Notification",
		Body:    "<p>{{.Message}}</p>",
	}
}

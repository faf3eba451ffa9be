// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserRole string

const (
	UserRoleSubmitter UserRole = "submitter"
	UserRoleExaminer  UserRole = "examiner"
	UserRoleAdmin     UserRole = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

type RegistrationType string

const (
	RegistrationTypeHost        RegistrationType = "HOST"
	RegistrationTypePlatform    RegistrationType = "PLATFORM"
	RegistrationTypeStrataHotel RegistrationType = "STRATA_HOTEL"
)

type ApplicationType string

const (
	ApplicationTypeRegistration ApplicationType = "registration"
	ApplicationTypeRenewal      ApplicationType = "renewal"
)

type ApplicationStatus string

const (
	ApplicationStatusDraft                   ApplicationStatus = "DRAFT"
	ApplicationStatusPaymentDue              ApplicationStatus = "PAYMENT_DUE"
	ApplicationStatusPaid                    ApplicationStatus = "PAID"
	ApplicationStatusAutoApproved            ApplicationStatus = "AUTO_APPROVED"
	ApplicationStatusProvisionallyApproved   ApplicationStatus = "PROVISIONALLY_APPROVED"
	ApplicationStatusFullReviewApproved      ApplicationStatus = "FULL_REVIEW_APPROVED"
	ApplicationStatusProvisionalReview       ApplicationStatus = "PROVISIONAL_REVIEW"
	ApplicationStatusAdditionalInfoRequested ApplicationStatus = "ADDITIONAL_INFO_REQUESTED"
	ApplicationStatusFullReview              ApplicationStatus = "FULL_REVIEW"
	ApplicationStatusDeclined                ApplicationStatus = "DECLINED"
	ApplicationStatusProvisional             ApplicationStatus = "PROVISIONAL"
	ApplicationStatusNocPending              ApplicationStatus = "NOC_PENDING"
	ApplicationStatusNocExpired              ApplicationStatus = "NOC_EXPIRED"
	ApplicationStatusProvisionallyDeclined   ApplicationStatus = "PROVISIONALLY_DECLINED"
	ApplicationStatusProvisionalNocPending   ApplicationStatus = "PROVISIONAL_NOC_PENDING"
	ApplicationStatusProvisionalNocExpired   ApplicationStatus = "PROVISIONAL_NOC_EXPIRED"
)

// ApplicationStatesStaffAction is the whitelist of target statuses an examiner
// may move an application into via a staff decision.
var ApplicationStatesStaffAction = []ApplicationStatus{
	ApplicationStatusFullReviewApproved,
	ApplicationStatusProvisionallyApproved,
	ApplicationStatusDeclined,
	ApplicationStatusProvisionallyDeclined,
	ApplicationStatusAdditionalInfoRequested,
	ApplicationStatusNocPending,
	ApplicationStatusProvisionalNocPending,
}

// ApplicationStatesAssignment lists the statuses in which a reviewer may be
// assigned or unassigned.
var ApplicationStatesAssignment = []ApplicationStatus{
	ApplicationStatusFullReview,
	ApplicationStatusProvisionalReview,
	ApplicationStatusAdditionalInfoRequested,
	ApplicationStatusNocPending,
	ApplicationStatusNocExpired,
	ApplicationStatusProvisionalNocPending,
	ApplicationStatusProvisionalNocExpired,
}

// ApplicationTerminalStates are decision states; a terminal application only
// becomes actionable again through set-aside.
var ApplicationTerminalStates = []ApplicationStatus{
	ApplicationStatusAutoApproved,
	ApplicationStatusProvisionallyApproved,
	ApplicationStatusFullReviewApproved,
	ApplicationStatusDeclined,
	ApplicationStatusProvisionallyDeclined,
}

func (s ApplicationStatus) IsTerminal() bool {
	for _, t := range ApplicationTerminalStates {
		if s == t {
			return true
		}
	}
	return false
}

func (s ApplicationStatus) IsApproved() bool {
	return s == ApplicationStatusAutoApproved ||
		s == ApplicationStatusProvisionallyApproved ||
		s == ApplicationStatusFullReviewApproved
}

type RegistrationStatus string

const (
	RegistrationStatusActive    RegistrationStatus = "ACTIVE"
	RegistrationStatusExpired   RegistrationStatus = "EXPIRED"
	RegistrationStatusSuspended RegistrationStatus = "SUSPENDED"
	RegistrationStatusCancelled RegistrationStatus = "CANCELLED"
)

type NocStatus string

const (
	NocStatusPending NocStatus = "NOC_PENDING"
	NocStatusExpired NocStatus = "NOC_EXPIRED"
)

type PaymentStatus string

const (
	PaymentStatusCreated   PaymentStatus = "CREATED"
	PaymentStatusApproved  PaymentStatus = "APPROVED"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusDeleted   PaymentStatus = "DELETED"
)

type EventType string

const (
	EventTypeApplication  EventType = "APPLICATION"
	EventTypeRegistration EventType = "REGISTRATION"
	EventTypeUser         EventType = "USER"
)

type EventName string

const (
	EventApplicationSubmitted     EventName = "APPLICATION_SUBMITTED"
	EventInvoiceGenerated         EventName = "INVOICE_GENERATED"
	EventPaymentComplete          EventName = "PAYMENT_COMPLETE"
	EventAutoApprovalFullReview   EventName = "AUTO_APPROVAL_FULL_REVIEW"
	EventAutoApprovalProvisional  EventName = "AUTO_APPROVAL_PROVISIONAL"
	EventAutoApprovalApproved     EventName = "AUTO_APPROVAL_APPROVED"
	EventFullReviewApproved       EventName = "FULL_REVIEW_APPROVED"
	EventProvisionallyApproved    EventName = "PROVISIONALLY_APPROVED"
	EventManuallyDeclined         EventName = "MANUALLY_DECLINED"
	EventAdditionalInfoRequested  EventName = "ADDITIONAL_INFO_REQUESTED"
	EventNocSent                  EventName = "NOC_SENT"
	EventNocExpired               EventName = "NOC_EXPIRED"
	EventApplicationAssigned      EventName = "APPLICATION_ASSIGNED"
	EventApplicationUnassigned    EventName = "APPLICATION_UNASSIGNED"
	EventApplicationSetAside      EventName = "APPLICATION_SET_ASIDE"
	EventRegistrationCreated      EventName = "REGISTRATION_CREATED"
	EventRegistrationRenewed      EventName = "REGISTRATION_RENEWED"
	EventRegistrationExpired      EventName = "REGISTRATION_EXPIRED"
	EventRegistrationSuspended    EventName = "REGISTRATION_SUSPENDED"
	EventRegistrationCancelled    EventName = "REGISTRATION_CANCELLED"
	EventRegistrationReinstated   EventName = "REGISTRATION_REINSTATED"
	EventCertificateIssued        EventName = "CERTIFICATE_ISSUED"
	EventRenewalReminderSent      EventName = "RENEWAL_REMINDER_SENT"
	EventPermitValidationComplete EventName = "PERMIT_VALIDATION_COMPLETE"
)

// internal/models/application.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Application struct {
	BaseModel
	ApplicationNumber     string            `json:"application_number" gorm:"uniqueIndex;size:14;not null"`
	ApplicationJSON       JSONB             `json:"application_json" gorm:"type:jsonb;not null"`
	Type                  ApplicationType   `json:"type" gorm:"type:varchar(20);not null;default:'registration';index"`
	RegistrationType      RegistrationType  `json:"registration_type" gorm:"type:varchar(20);not null;index"`
	Status                ApplicationStatus `json:"status" gorm:"type:varchar(30);default:'DRAFT';index"`
	ApplicationDate       time.Time         `json:"application_date"`
	DecisionDate          *time.Time        `json:"decision_date"`
	InvoiceID             *int64            `json:"invoice_id" gorm:"index"`
	PaymentStatusCode     *PaymentStatus    `json:"payment_status_code" gorm:"type:varchar(20)"`
	PaymentCompletionDate *time.Time        `json:"payment_completion_date"`
	PaymentAccount        string            `json:"payment_account" gorm:"size:50"`
	PaymentAmount         decimal.Decimal   `json:"payment_amount" gorm:"type:numeric(19,2)"`
	SubmitterID           uuid.UUID         `json:"submitter_id" gorm:"type:uuid;not null;index"`
	ReviewerID            *uuid.UUID        `json:"reviewer_id" gorm:"type:uuid;index"`
	RegistrationID        *uuid.UUID        `json:"registration_id" gorm:"type:uuid;index"`
	IsSetAside            bool              `json:"is_set_aside" gorm:"default:false"`

	// Relationships
	Submitter    User                    `json:"submitter,omitempty" gorm:"foreignKey:SubmitterID"`
	Reviewer     *User                   `json:"reviewer,omitempty" gorm:"foreignKey:ReviewerID"`
	Registration *Registration           `json:"registration,omitempty" gorm:"foreignKey:RegistrationID"`
	Nocs         []NoticeOfConsideration `json:"nocs,omitempty" gorm:"foreignKey:ApplicationID"`
}

// Actionable reports whether staff decisions are currently allowed: either the
// application is still in flight or a terminal decision has been set aside.
func (a *Application) Actionable() bool {
	return !a.Status.IsTerminal() || a.IsSetAside
}

type NoticeOfConsideration struct {
	BaseModel
	ApplicationID uuid.UUID `json:"application_id" gorm:"type:uuid;not null;index"`
	Content       string    `json:"content" gorm:"type:text;not null"`
	StartDate     time.Time `json:"start_date" gorm:"not null"`
	EndDate       time.Time `json:"end_date" gorm:"not null"`

	Application Application `json:"-" gorm:"foreignKey:ApplicationID"`
}

// AutoApprovalRecord is an append-only snapshot of the approval engine's
// decision inputs and outputs for one application.
type AutoApprovalRecord struct {
	BaseModel
	ApplicationID uuid.UUID `json:"application_id" gorm:"type:uuid;not null;index"`
	Record        JSONB     `json:"record" gorm:"type:jsonb;not null"`

	Application Application `json:"-" gorm:"foreignKey:ApplicationID"`
}

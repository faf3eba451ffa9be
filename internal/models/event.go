// internal/models/event.go
package models

import (
	"github.com/google/uuid"
)

// Event is an append-only audit record of a domain transition. The domain
// layer only ever creates events; there is no update or delete path.
type Event struct {
	BaseModel
	EventType          EventType  `json:"event_type" gorm:"type:varchar(20);not null;index"`
	EventName          EventName  `json:"event_name" gorm:"type:varchar(50);not null;index"`
	ApplicationID      *uuid.UUID `json:"application_id" gorm:"type:uuid;index"`
	RegistrationID     *uuid.UUID `json:"registration_id" gorm:"type:uuid;index"`
	UserID             *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Details            string     `json:"details" gorm:"type:text"`
	VisibleToApplicant bool       `json:"visible_to_applicant" gorm:"default:false"`
}

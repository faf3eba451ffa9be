// internal/models/registration.go
package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Registration struct {
	BaseModel
	RegistrationNumber           string             `json:"registration_number" gorm:"uniqueIndex;size:12;not null"`
	RegistrationType             RegistrationType   `json:"registration_type" gorm:"type:varchar(20);not null;index"`
	Status                       RegistrationStatus `json:"status" gorm:"type:varchar(20);default:'ACTIVE';index"`
	StartDate                    time.Time          `json:"start_date" gorm:"not null"`
	ExpiryDate                   time.Time          `json:"expiry_date" gorm:"not null;index"`
	NocStatus                    *NocStatus         `json:"noc_status" gorm:"type:varchar(20)"`
	ProvisionalExtensionApplied  bool               `json:"provisional_extension_applied" gorm:"default:false"`
	CancelledDate                *time.Time         `json:"cancelled_date"`
	IsSetAside                   bool               `json:"is_set_aside" gorm:"default:false"`
	SbcAccountID                 string             `json:"sbc_account_id" gorm:"size:50;index"`
	UserID                       uuid.UUID          `json:"user_id" gorm:"type:uuid;not null;index"`
	ReviewerID                   *uuid.UUID         `json:"reviewer_id" gorm:"type:uuid"`
	DeciderID                    *uuid.UUID         `json:"decider_id" gorm:"type:uuid"`

	// Exactly one of the three children is populated, keyed by RegistrationType.
	RentalProperty          *RentalProperty          `json:"rental_property,omitempty" gorm:"foreignKey:RegistrationID"`
	PlatformRegistration    *PlatformRegistration    `json:"platform_registration,omitempty" gorm:"foreignKey:RegistrationID"`
	StrataHotelRegistration *StrataHotelRegistration `json:"strata_hotel_registration,omitempty" gorm:"foreignKey:RegistrationID"`

	Documents    []Document                            `json:"documents,omitempty" gorm:"foreignKey:RegistrationID"`
	Certificates []Certificate                         `json:"certificates,omitempty" gorm:"foreignKey:RegistrationID"`
	Nocs         []RegistrationNoticeOfConsideration   `json:"nocs,omitempty" gorm:"foreignKey:RegistrationID"`
	Snapshots    []RegistrationSnapshot                `json:"snapshots,omitempty" gorm:"foreignKey:RegistrationID"`
	User         User                                  `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// RegistrationDetails carries exactly one populated child for a new
// registration. Use one of the Host/Platform/StrataHotel constructors so the
// one-of constraint is structural rather than a nullable-column convention.
type RegistrationDetails struct {
	registrationType RegistrationType
	host             *RentalProperty
	platform         *PlatformRegistration
	strataHotel      *StrataHotelRegistration
}

func HostDetails(property *RentalProperty) RegistrationDetails {
	return RegistrationDetails{registrationType: RegistrationTypeHost, host: property}
}

func PlatformDetails(platform *PlatformRegistration) RegistrationDetails {
	return RegistrationDetails{registrationType: RegistrationTypePlatform, platform: platform}
}

func StrataHotelDetails(strata *StrataHotelRegistration) RegistrationDetails {
	return RegistrationDetails{registrationType: RegistrationTypeStrataHotel, strataHotel: strata}
}

func (d RegistrationDetails) Type() RegistrationType {
	return d.registrationType
}

// Apply attaches the one populated child to the registration, rejecting
// mismatched or missing detail payloads.
func (d RegistrationDetails) Apply(r *Registration) error {
	if d.registrationType == "" {
		return errors.New("registration details are required")
	}
	if r.RegistrationType != d.registrationType {
		return errors.New("registration details do not match registration type")
	}

	switch d.registrationType {
	case RegistrationTypeHost:
		if d.host == nil {
			return errors.New("host registration requires a rental property")
		}
		r.RentalProperty = d.host
	case RegistrationTypePlatform:
		if d.platform == nil {
			return errors.New("platform registration requires platform details")
		}
		r.PlatformRegistration = d.platform
	case RegistrationTypeStrataHotel:
		if d.strataHotel == nil {
			return errors.New("strata hotel registration requires strata hotel details")
		}
		r.StrataHotelRegistration = d.strataHotel
	default:
		return errors.New("unknown registration type")
	}
	return nil
}

type RentalProperty struct {
	BaseModel
	RegistrationID    uuid.UUID      `json:"registration_id" gorm:"type:uuid;not null;uniqueIndex"`
	UnitNumber        string         `json:"unit_number" gorm:"size:20"`
	StreetNumber      string         `json:"street_number" gorm:"size:20;not null"`
	StreetName        string         `json:"street_name" gorm:"size:100;not null"`
	City              string         `json:"city" gorm:"size:100;not null"`
	Province          string         `json:"province" gorm:"size:5;default:'BC'"`
	PostalCode        string         `json:"postal_code" gorm:"size:10;not null"`
	OneLineAddress    string         `json:"one_line_address" gorm:"size:255;not null;index"`
	OwnershipType     string         `json:"ownership_type" gorm:"size:20"`
	SpaceType         string         `json:"space_type" gorm:"size:50"`
	IsPrincipalRes    bool           `json:"is_principal_residence" gorm:"default:false"`
	ListingURLs       pq.StringArray `json:"listing_urls" gorm:"type:text[]"`
}

type PlatformRegistration struct {
	BaseModel
	RegistrationID  uuid.UUID      `json:"registration_id" gorm:"type:uuid;not null;uniqueIndex"`
	LegalName       string         `json:"legal_name" gorm:"size:255;not null"`
	HomeJurisdiction string        `json:"home_jurisdiction" gorm:"size:100"`
	PlatformURLs    pq.StringArray `json:"platform_urls" gorm:"type:text[]"`
	ListingSize     string         `json:"listing_size" gorm:"size:20"`
}

type StrataHotelRegistration struct {
	BaseModel
	RegistrationID  uuid.UUID `json:"registration_id" gorm:"type:uuid;not null;uniqueIndex"`
	BrandName       string    `json:"brand_name" gorm:"size:255;not null"`
	BuildingAddress string    `json:"building_address" gorm:"size:255;not null"`
	NumberOfUnits   int       `json:"number_of_units"`
}

type Document struct {
	BaseModel
	RegistrationID uuid.UUID `json:"registration_id" gorm:"type:uuid;not null;index"`
	FileName       string    `json:"file_name" gorm:"size:255;not null"`
	FileKey        string    `json:"file_key" gorm:"size:255;not null;uniqueIndex"`
	FileType       string    `json:"file_type" gorm:"size:100"`
	DocumentType   string    `json:"document_type" gorm:"size:50;index"`
}

type Certificate struct {
	BaseModel
	RegistrationID uuid.UUID `json:"registration_id" gorm:"type:uuid;not null;index"`
	FileKey        string    `json:"file_key" gorm:"size:255;not null"`
	IssuedDate     time.Time `json:"issued_date" gorm:"not null"`
	IssuerID       *uuid.UUID `json:"issuer_id" gorm:"type:uuid"`
}

type RegistrationNoticeOfConsideration struct {
	BaseModel
	RegistrationID uuid.UUID `json:"registration_id" gorm:"type:uuid;not null;index"`
	Content        string    `json:"content" gorm:"type:text;not null"`
	StartDate      time.Time `json:"start_date" gorm:"not null"`
	EndDate        time.Time `json:"end_date" gorm:"not null"`
}

// RegistrationSnapshot is a point-in-time JSON capture written on every
// registration status change.
type RegistrationSnapshot struct {
	BaseModel
	RegistrationID uuid.UUID `json:"registration_id" gorm:"type:uuid;not null;index"`
	Snapshot       JSONB     `json:"snapshot" gorm:"type:jsonb;not null"`
}

// internal/services/details.go
package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/rentalregistry/strr-backend/internal/models"
)

// Submitted form shapes carried inside Application.ApplicationJSON. The full
// document is schema-validated at submission time; these structs pull out only
// the fields the lifecycle and approval engine act on.
type unitAddressForm struct {
	UnitNumber   string `json:"unitNumber"`
	StreetNumber string `json:"streetNumber"`
	StreetName   string `json:"streetName"`
	City         string `json:"city"`
	Province     string `json:"province"`
	PostalCode   string `json:"postalCode"`
}

type hostForm struct {
	UnitAddress          unitAddressForm `json:"unitAddress"`
	OwnershipType        string          `json:"ownershipType"`
	SpaceType            string          `json:"spaceType"`
	IsPrincipalResidence bool            `json:"isPrincipalResidence"`
	BusinessLicense      string          `json:"businessLicense"`
	ListingURLs          []string        `json:"listingUrls"`
	HasPropertyManager   bool            `json:"hasPropertyManager"`
}

type platformForm struct {
	LegalName        string   `json:"legalName"`
	HomeJurisdiction string   `json:"homeJurisdiction"`
	PlatformURLs     []string `json:"platformUrls"`
	ListingSize      string   `json:"listingSize"`
}

type strataHotelForm struct {
	BrandName       string `json:"brandName"`
	BuildingAddress string `json:"buildingAddress"`
	NumberOfUnits   int    `json:"numberOfUnits"`
}

func decodeForm(doc models.JSONB, key string, out interface{}) error {
	section, ok := doc[key]
	if !ok {
		return fmt.Errorf("application json is missing %q", key)
	}

	raw, err := json.Marshal(section)
	if err != nil {
		return fmt.Errorf("failed to re-encode %q section: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %q section: %w", key, err)
	}
	return nil
}

func (f unitAddressForm) oneLine() string {
	parts := []string{}
	if f.UnitNumber != "" {
		parts = append(parts, f.UnitNumber+"-"+f.StreetNumber)
	} else {
		parts = append(parts, f.StreetNumber)
	}
	parts = append(parts, f.StreetName, f.City, f.Province, f.PostalCode)
	return strings.Join(parts, " ")
}

// registrationDetails builds the type-discriminated child for a registration
// out of the submitted application document.
func registrationDetails(application *models.Application) (models.RegistrationDetails, error) {
	switch application.RegistrationType {
	case models.RegistrationTypeHost:
		var form hostForm
		if err := decodeForm(application.ApplicationJSON, "unitAddress", &form.UnitAddress); err != nil {
			return models.RegistrationDetails{}, err
		}
		// The remaining host fields live at the top level of the document.
		raw, err := json.Marshal(application.ApplicationJSON)
		if err != nil {
			return models.RegistrationDetails{}, fmt.Errorf("failed to re-encode application json: %w", err)
		}
		if err := json.Unmarshal(raw, &form); err != nil {
			return models.RegistrationDetails{}, fmt.Errorf("failed to decode host form: %w", err)
		}

		province := form.UnitAddress.Province
		if province == "" {
			province = "BC"
		}

		return models.HostDetails(&models.RentalProperty{
			UnitNumber:     form.UnitAddress.UnitNumber,
			StreetNumber:   form.UnitAddress.StreetNumber,
			StreetName:     form.UnitAddress.StreetName,
			City:           form.UnitAddress.City,
			Province:       province,
			PostalCode:     form.UnitAddress.PostalCode,
			OneLineAddress: form.UnitAddress.oneLine(),
			OwnershipType:  form.OwnershipType,
			SpaceType:      form.SpaceType,
			IsPrincipalRes: form.IsPrincipalResidence,
			ListingURLs:    pq.StringArray(form.ListingURLs),
		}), nil

	case models.RegistrationTypePlatform:
		var form platformForm
		if err := decodeForm(application.ApplicationJSON, "platform", &form); err != nil {
			return models.RegistrationDetails{}, err
		}
		if form.LegalName == "" {
			return models.RegistrationDetails{}, errors.New("platform registration requires a legal name")
		}
		return models.PlatformDetails(&models.PlatformRegistration{
			LegalName:        form.LegalName,
			HomeJurisdiction: form.HomeJurisdiction,
			PlatformURLs:     pq.StringArray(form.PlatformURLs),
			ListingSize:      form.ListingSize,
		}), nil

	case models.RegistrationTypeStrataHotel:
		var form strataHotelForm
		if err := decodeForm(application.ApplicationJSON, "strataHotel", &form); err != nil {
			return models.RegistrationDetails{}, err
		}
		if form.BrandName == "" {
			return models.RegistrationDetails{}, errors.New("strata hotel registration requires a brand name")
		}
		return models.StrataHotelDetails(&models.StrataHotelRegistration{
			BrandName:       form.BrandName,
			BuildingAddress: form.BuildingAddress,
			NumberOfUnits:   form.NumberOfUnits,
		}), nil
	}

	return models.RegistrationDetails{}, fmt.Errorf("unknown registration type: %s", application.RegistrationType)
}

// hostUnitAddress extracts the one-line unit address used to query the
// STR-requirements lookup.
func hostUnitAddress(application *models.Application) (string, hostForm, error) {
	var form hostForm
	raw, err := json.Marshal(application.ApplicationJSON)
	if err != nil {
		return "", form, fmt.Errorf("failed to re-encode application json: %w", err)
	}
	if err := json.Unmarshal(raw, &form); err != nil {
		return "", form, fmt.Errorf("failed to decode host form: %w", err)
	}
	if form.UnitAddress.StreetNumber == "" || form.UnitAddress.StreetName == "" {
		return "", form, errors.New("application json is missing the unit address")
	}
	return form.UnitAddress.oneLine(), form, nil
}

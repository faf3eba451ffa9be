// internal/handlers/permit.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rentalregistry/strr-backend/internal/models"
	"github.com/rentalregistry/strr-backend/internal/services"
	"github.com/rentalregistry/strr-backend/internal/utils"
)

type PermitHandler struct {
	permitValidationService *services.PermitValidationService
	registrationService     *services.RegistrationService
	storageService          *services.StorageService
}

func NewPermitHandler(permitValidationService *services.PermitValidationService, registrationService *services.RegistrationService, storageService *services.StorageService) *PermitHandler {
	return &PermitHandler{
		permitValidationService: permitValidationService,
		registrationService:     registrationService,
		storageService:          storageService,
	}
}

// POST /permits/validate (examiner)
func (h *PermitHandler) ValidatePermits(c *gin.Context) {
	var req struct {
		Source  string                   `json:"source" validate:"required"`
		Records []services.PermitRecord  `json:"records" validate:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	results, err := h.permitValidationService.RunValidation(c.Request.Context(), req.Source, req.Records)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	valid := 0
	for _, result := range results {
		if result.Valid {
			valid++
		}
	}

	utils.SuccessResponse(c, gin.H{
		"total":   len(results),
		"valid":   valid,
		"invalid": len(results) - valid,
		"results": results,
	})
}

// POST /registrations/:id/documents
func (h *PermitHandler) UploadDocument(c *gin.Context) {
	registration, ok := h.loadRegistration(c)
	if !ok {
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	role, _ := utils.GetUserRoleFromContext(c)
	if role == string(models.UserRoleSubmitter) && registration.UserID != userID {
		utils.ForbiddenResponse(c, "")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "File is required", err.Error())
		return
	}
	defer file.Close()

	documentType := c.PostForm("document_type")
	if documentType == "" {
		utils.BadRequestResponse(c, "document_type is required", nil)
		return
	}

	options := h.storageService.GetDefaultUploadOptions("documents")
	upload, err := h.storageService.UploadDocument(file, header, options)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	document, err := h.registrationService.AddDocument(registration.ID, header.Filename, upload.Key, upload.MimeType, documentType)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.CreatedResponse(c, gin.H{
		"document": document,
		"url":      upload.URL,
	})
}

func (h *PermitHandler) loadRegistration(c *gin.Context) (*models.Registration, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid registration ID", nil)
		return nil, false
	}

	registration, err := h.registrationService.GetRegistration(id)
	if err != nil {
		if errors.Is(err, services.ErrRegistrationNotFound) {
			utils.NotFoundResponse(c, "Registration")
			return nil, false
		}
		utils.InternalErrorResponse(c, err.Error())
		return nil, false
	}
	return registration, true
}

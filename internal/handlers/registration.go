// internal/handlers/registration.go
package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rentalregistry/strr-backend/internal/models"
	"github.com/rentalregistry/strr-backend/internal/services"
	"github.com/rentalregistry/strr-backend/internal/utils"
)

type RegistrationHandler struct {
	registrationService *services.RegistrationService
	eventService        *services.EventService
	storageService      *services.StorageService
}

func NewRegistrationHandler(registrationService *services.RegistrationService, eventService *services.EventService, storageService *services.StorageService) *RegistrationHandler {
	return &RegistrationHandler{
		registrationService: registrationService,
		eventService:        eventService,
		storageService:      storageService,
	}
}

// GET /registrations
func (h *RegistrationHandler) SearchRegistrations(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := services.RegistrationSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
	}

	role, _ := utils.GetUserRoleFromContext(c)
	if role == string(models.UserRoleSubmitter) {
		params.UserID = &userID
	} else if userIDStr := c.Query("user_id"); userIDStr != "" {
		if filterID, err := uuid.Parse(userIDStr); err == nil {
			params.UserID = &filterID
		}
	}

	if registrationType := c.Query("registration_type"); registrationType != "" {
		rt := models.RegistrationType(registrationType)
		params.RegistrationType = &rt
	}
	if status := c.Query("status"); status != "" {
		rs := models.RegistrationStatus(status)
		params.Status = &rs
	}
	if expiring := c.Query("expiring_before"); expiring != "" {
		if t, err := time.Parse("2006-01-02", expiring); err == nil {
			params.ExpiringBefore = &t
		}
	}

	registrations, total, err := h.registrationService.SearchRegistrations(params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(registrations, total, params.PaginationParams)
	utils.PaginatedResponse(c, result)
}

// GET /registrations/:id
func (h *RegistrationHandler) GetRegistration(c *gin.Context) {
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

	utils.SuccessResponse(c, gin.H{
		"registration": registration,
	})
}

// GET /registrations/:id/events
func (h *RegistrationHandler) GetRegistrationEvents(c *gin.Context) {
	registration, ok := h.loadRegistration(c)
	if !ok {
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	role, _ := utils.GetUserRoleFromContext(c)
	staffView := role != string(models.UserRoleSubmitter)
	if !staffView && registration.UserID != userID {
		utils.ForbiddenResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	events, total, err := h.eventService.ListRegistrationEvents(registration.ID, staffView, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(events, total, params)
	utils.PaginatedResponse(c, result)
}

// PUT /registrations/:id/suspend (examiner)
func (h *RegistrationHandler) SuspendRegistration(c *gin.Context) {
	h.staffStatusAction(c, h.registrationService.Suspend)
}

// PUT /registrations/:id/cancel (examiner)
func (h *RegistrationHandler) CancelRegistration(c *gin.Context) {
	h.staffStatusAction(c, h.registrationService.Cancel)
}

// PUT /registrations/:id/reinstate (examiner)
func (h *RegistrationHandler) ReinstateRegistration(c *gin.Context) {
	h.staffStatusAction(c, h.registrationService.Reinstate)
}

func (h *RegistrationHandler) staffStatusAction(c *gin.Context, action func(uuid.UUID, uuid.UUID, *services.StatusActionRequest) (*models.Registration, error)) {
	registration, ok := h.loadRegistration(c)
	if !ok {
		return
	}

	staffID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.StatusActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	updated, err := action(registration.ID, staffID, &req)
	if err != nil {
		if errors.Is(err, services.ErrRegistrationNotFound) {
			utils.NotFoundResponse(c, "Registration")
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"registration": updated,
	})
}

// POST /registrations/:id/notice-of-consideration (examiner)
func (h *RegistrationHandler) SendNoticeOfConsideration(c *gin.Context) {
	registration, ok := h.loadRegistration(c)
	if !ok {
		return
	}

	staffID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.SendRegistrationNocRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	noc, err := h.registrationService.SendNoticeOfConsideration(registration.ID, staffID, &req)
	if err != nil {
		if errors.Is(err, services.ErrRegistrationInactive) {
			utils.BadRequestWithCode(c, utils.ErrCodeInvalidApplicationStatus, "Registration is not active")
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"notice_of_consideration": noc,
	})
}

// POST /registrations/:id/certificate (examiner)
func (h *RegistrationHandler) IssueCertificate(c *gin.Context) {
	registration, ok := h.loadRegistration(c)
	if !ok {
		return
	}

	staffID, ok := currentUserID(c)
	if !ok {
		return
	}

	fileKey, err := utils.GenerateFileKey("certificates", registration.RegistrationNumber+".pdf")
	if err != nil {
		utils.InternalErrorResponse(c, "Failed to generate certificate key")
		return
	}

	certificate, err := h.registrationService.IssueCertificate(registration.ID, staffID, fileKey)
	if err != nil {
		if errors.Is(err, services.ErrRegistrationInactive) {
			utils.BadRequestWithCode(c, utils.ErrCodeInvalidApplicationStatus, "Registration is not active")
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"certificate": certificate,
	})
}

// GET /registrations/:id/certificate
func (h *RegistrationHandler) GetCertificateURL(c *gin.Context) {
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

	if len(registration.Certificates) == 0 {
		utils.NotFoundResponse(c, "Certificate")
		return
	}

	latest := registration.Certificates[len(registration.Certificates)-1]
	url, err := h.storageService.GeneratePresignedURL(latest.FileKey, 15*time.Minute)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"url": url,
	})
}

func (h *RegistrationHandler) loadRegistration(c *gin.Context) (*models.Registration, bool) {
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

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return uuid.Nil, false
	}
	return userID, true
}

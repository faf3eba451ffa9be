// internal/handlers/application.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rentalregistry/strr-backend/internal/models"
	"github.com/rentalregistry/strr-backend/internal/services"
	"github.com/rentalregistry/strr-backend/internal/utils"
)

type ApplicationHandler struct {
	applicationService *services.ApplicationService
	authService        *services.AuthService
	eventService       *services.EventService
}

func NewApplicationHandler(applicationService *services.ApplicationService, authService *services.AuthService, eventService *services.EventService) *ApplicationHandler {
	return &ApplicationHandler{
		applicationService: applicationService,
		authService:        authService,
		eventService:       eventService,
	}
}

// POST /applications
func (h *ApplicationHandler) CreateApplication(c *gin.Context) {
	submitterID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	application, err := h.applicationService.CreateApplication(submitterID, &req)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateRegistration) {
			utils.ConflictResponse(c, err.Error())
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"application": application,
	})
}

// GET /applications
func (h *ApplicationHandler) SearchApplications(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	params := services.ApplicationSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
	}

	// Submitters only ever see their own applications.
	role, _ := utils.GetUserRoleFromContext(c)
	if role == string(models.UserRoleSubmitter) {
		params.SubmitterID = &userID
	} else {
		if reviewerIDStr := c.Query("reviewer_id"); reviewerIDStr != "" {
			if reviewerID, err := uuid.Parse(reviewerIDStr); err == nil {
				params.ReviewerID = &reviewerID
			}
		}
		if c.Query("unassigned") == "true" {
			params.Unassigned = true
		}
		params.Requirement = c.Query("requirement")
	}

	if registrationType := c.Query("registration_type"); registrationType != "" {
		rt := models.RegistrationType(registrationType)
		params.RegistrationType = &rt
	}
	for _, status := range c.QueryArray("status") {
		params.Statuses = append(params.Statuses, models.ApplicationStatus(status))
	}

	applications, total, err := h.applicationService.SearchApplications(params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(applications, total, params.PaginationParams)
	utils.PaginatedResponse(c, result)
}

// GET /applications/:id
func (h *ApplicationHandler) GetApplication(c *gin.Context) {
	application, ok := h.loadApplication(c)
	if !ok {
		return
	}

	if !h.requireSubmitterAccess(c, application) {
		return
	}

	utils.SuccessResponse(c, gin.H{
		"application": application,
	})
}

// GET /applications/:id/events
func (h *ApplicationHandler) GetApplicationEvents(c *gin.Context) {
	application, ok := h.loadApplication(c)
	if !ok {
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	role, _ := utils.GetUserRoleFromContext(c)
	staffView := role != string(models.UserRoleSubmitter)
	if !staffView && application.SubmitterID != userID {
		utils.ForbiddenResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	events, total, err := h.eventService.ListApplicationEvents(application.ID, staffView, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(events, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /applications/:id/invoice
func (h *ApplicationHandler) CreateInvoice(c *gin.Context) {
	application, ok := h.loadApplication(c)
	if !ok {
		return
	}

	if !h.requireSubmitterAccess(c, application) {
		return
	}

	var req struct {
		AccountID string `json:"account_id" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	updated, err := h.applicationService.CreateInvoice(application.ID, req.AccountID)
	if err != nil {
		if errors.Is(err, services.ErrInvalidApplicationStatus) {
			utils.BadRequestWithCode(c, utils.ErrCodeInvalidApplicationStatus, "Application is not awaiting an invoice")
			return
		}
		utils.BadGatewayResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"application": updated,
	})
}

// PUT /applications/:id/payment
func (h *ApplicationHandler) UpdatePaymentStatus(c *gin.Context) {
	application, ok := h.loadApplication(c)
	if !ok {
		return
	}

	if !h.requireSubmitterAccess(c, application) {
		return
	}

	updated, err := h.applicationService.UpdatePaymentStatus(application.ID)
	if err != nil {
		utils.BadGatewayResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"application": updated,
	})
}

// PUT /applications/:id/status (examiner)
func (h *ApplicationHandler) UpdateApplicationStatus(c *gin.Context) {
	application, ok := h.loadApplication(c)
	if !ok {
		return
	}

	examiner, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req services.StaffDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	updated, err := h.applicationService.UpdateApplicationStatus(application.ID, examiner, &req)
	if err != nil {
		h.writeStaffActionError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"application": updated,
	})
}

// POST /applications/:id/notice-of-consideration (examiner)
func (h *ApplicationHandler) SendNoticeOfConsideration(c *gin.Context) {
	application, ok := h.loadApplication(c)
	if !ok {
		return
	}

	examiner, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req services.SendNocRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	updated, err := h.applicationService.SendNoticeOfConsideration(application.ID, examiner, &req)
	if err != nil {
		h.writeStaffActionError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"application": updated,
	})
}

// POST /applications/:id/set-aside (examiner)
func (h *ApplicationHandler) SetAside(c *gin.Context) {
	application, ok := h.loadApplication(c)
	if !ok {
		return
	}

	staffID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	updated, err := h.applicationService.SetAside(application.ID, staffID, req.Reason)
	if err != nil {
		if errors.Is(err, services.ErrInvalidApplicationStatus) {
			utils.BadRequestWithCode(c, utils.ErrCodeInvalidApplicationStatus, "Only decided applications can be set aside")
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"application": updated,
	})
}

// PUT /applications/:id/assign (examiner)
func (h *ApplicationHandler) AssignReviewer(c *gin.Context) {
	application, ok := h.loadApplication(c)
	if !ok {
		return
	}

	var req struct {
		ReviewerID *uuid.UUID `json:"reviewer_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	// No reviewer_id means assign-to-self.
	reviewerID := req.ReviewerID
	if reviewerID == nil {
		selfID, ok := h.currentUserID(c)
		if !ok {
			return
		}
		reviewerID = &selfID
	}

	updated, err := h.applicationService.AssignReviewer(application.ID, *reviewerID)
	if err != nil {
		h.writeStaffActionError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"application": updated,
	})
}

// PUT /applications/:id/unassign (examiner)
func (h *ApplicationHandler) UnassignReviewer(c *gin.Context) {
	application, ok := h.loadApplication(c)
	if !ok {
		return
	}

	updated, err := h.applicationService.UnassignReviewer(application.ID)
	if err != nil {
		h.writeStaffActionError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"application": updated,
	})
}

func (h *ApplicationHandler) writeStaffActionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrApplicationNotFound):
		utils.NotFoundResponse(c, "Application")
	case errors.Is(err, services.ErrInvalidApplicationStatus):
		utils.BadRequestWithCode(c, utils.ErrCodeInvalidApplicationStatus, "Target status is not a valid staff action")
	case errors.Is(err, services.ErrApplicationTerminalState):
		utils.BadRequestWithCode(c, utils.ErrCodeApplicationTerminalState, "Application has already been decided")
	case errors.Is(err, services.ErrAssignmentStatus):
		utils.BadRequestWithCode(c, utils.ErrCodeApplicationAssignStatus, "Application status does not allow assignment")
	case errors.Is(err, services.ErrNotAssignee):
		utils.ForbiddenResponse(c, "Only the assigned reviewer may act on this application")
	default:
		utils.BadRequestResponse(c, err.Error(), nil)
	}
}

// requireSubmitterAccess blocks submitters from acting on applications they
// did not file. Staff roles pass through.
func (h *ApplicationHandler) requireSubmitterAccess(c *gin.Context, application *models.Application) bool {
	userID, ok := h.currentUserID(c)
	if !ok {
		return false
	}
	role, _ := utils.GetUserRoleFromContext(c)
	if role == string(models.UserRoleSubmitter) && application.SubmitterID != userID {
		utils.ForbiddenResponse(c, "")
		return false
	}
	return true
}

func (h *ApplicationHandler) loadApplication(c *gin.Context) (*models.Application, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid application ID", nil)
		return nil, false
	}

	application, err := h.applicationService.GetApplication(id)
	if err != nil {
		if errors.Is(err, services.ErrApplicationNotFound) {
			utils.NotFoundResponse(c, "Application")
			return nil, false
		}
		utils.InternalErrorResponse(c, err.Error())
		return nil, false
	}
	return application, true
}

func (h *ApplicationHandler) currentUserID(c *gin.Context) (uuid.UUID, bool) {
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

func (h *ApplicationHandler) currentUser(c *gin.Context) (*models.User, bool) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return nil, false
	}

	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return nil, false
	}
	return user, true
}

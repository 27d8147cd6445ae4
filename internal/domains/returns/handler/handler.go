package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"returns-backend/internal/domains/returns/model"
	"returns-backend/internal/domains/returns/service"
	"returns-backend/internal/shared/response"
)

// =====================================================
// RETURN HANDLER
// =====================================================
type ReturnHandler struct {
	returnService service.ReturnService
}

// NewReturnHandler creates a new return handler
func NewReturnHandler(returnService service.ReturnService) *ReturnHandler {
	return &ReturnHandler{
		returnService: returnService,
	}
}

// =====================================================
// ROUTES REGISTRATION
// =====================================================

// RegisterCustomerRoutes registers the customer-facing routes.
// The caller wraps the group with the auth middleware.
func (h *ReturnHandler) RegisterCustomerRoutes(router *gin.RouterGroup) {
	userRoutes := router.Group("/returns")
	{
		userRoutes.POST("", h.CreateReturn)          // POST /v1/returns
		userRoutes.GET("/:id", h.GetReturn)          // GET /v1/returns/:id
		userRoutes.GET("/:id/history", h.GetHistory) // GET /v1/returns/:id/history
	}
}

// RegisterAdminRoutes registers the operator console routes.
// The caller wraps the group with the admin middleware.
func (h *ReturnHandler) RegisterAdminRoutes(router *gin.RouterGroup) {
	adminRoutes := router.Group("/admin/returns")
	{
		adminRoutes.GET("", h.ListReturns)                  // GET /v1/admin/returns?status=&search=&page=
		adminRoutes.GET("/stats", h.GetStats)               // GET /v1/admin/returns/stats
		adminRoutes.GET("/pickup-slots", h.GetPickupSlots)  // GET /v1/admin/returns/pickup-slots?pincode=&date=
		adminRoutes.GET("/:id", h.GetReturn)                // GET /v1/admin/returns/:id
		adminRoutes.GET("/:id/history", h.GetHistory)       // GET /v1/admin/returns/:id/history
		adminRoutes.PATCH("/:id/approve", h.ApproveReturn)  // PATCH /v1/admin/returns/:id/approve
		adminRoutes.PATCH("/:id/reject", h.RejectReturn)    // PATCH /v1/admin/returns/:id/reject
		adminRoutes.PATCH("/:id/process", h.StartProcessing) // PATCH /v1/admin/returns/:id/process
		adminRoutes.PATCH("/:id/complete", h.CompleteReturn) // PATCH /v1/admin/returns/:id/complete
		adminRoutes.POST("/:id/pickup", h.SchedulePickup)   // POST /v1/admin/returns/:id/pickup
		adminRoutes.DELETE("/:id", h.ArchiveReturn)         // DELETE /v1/admin/returns/:id (soft archive)
	}
}

// =====================================================
// CREATE RETURN
// =====================================================

// CreateReturn handles POST /returns
func (h *ReturnHandler) CreateReturn(c *gin.Context) {
	var req model.CreateReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	ret, err := h.returnService.Create(c.Request.Context(), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, ret.ToResponse())
}

// =====================================================
// READ
// =====================================================

// GetReturn handles GET /returns/:id
func (h *ReturnHandler) GetReturn(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	ret, err := h.returnService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, ret.ToResponse())
}

// GetHistory handles GET /returns/:id/history
func (h *ReturnHandler) GetHistory(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	history, err := h.returnService.GetStatusHistory(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	out := make([]*model.HistoryResponse, 0, len(history))
	for i := range history {
		out = append(out, history[i].ToHistoryResponse())
	}
	response.Success(c, http.StatusOK, out)
}

// ListReturns handles GET /admin/returns with combinable filters
func (h *ReturnHandler) ListReturns(c *gin.Context) {
	var filter model.ReturnFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "invalid query parameters")
		return
	}

	returns, total, err := h.returnService.List(c.Request.Context(), filter)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	norm := filter.Normalized()
	out := make([]*model.ReturnResponse, 0, len(returns))
	for i := range returns {
		out = append(out, returns[i].ToResponse())
	}
	response.SuccessWithMeta(c, http.StatusOK, out, &response.Meta{
		Page:  norm.Page,
		Limit: norm.Limit,
		Total: total,
	})
}

// GetStats handles GET /admin/returns/stats
func (h *ReturnHandler) GetStats(c *gin.Context) {
	stats, err := h.returnService.GetStats(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// GetPickupSlots handles GET /admin/returns/pickup-slots?pincode=&date=
func (h *ReturnHandler) GetPickupSlots(c *gin.Context) {
	pincode := c.Query("pincode")
	dateStr := c.Query("date")

	date, err := time.ParseInLocation(model.PickupDateLayout, dateStr, time.UTC)
	if err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST",
			"date must be formatted as "+model.PickupDateLayout)
		return
	}

	slots, err := h.returnService.ListAvailableSlots(c.Request.Context(), pincode, date)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"pincode": pincode, "date": dateStr, "slots": slots})
}

// =====================================================
// TRANSITIONS
// =====================================================

// ApproveReturn handles PATCH /admin/returns/:id/approve
func (h *ReturnHandler) ApproveReturn(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req model.ReviewReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	ret, err := h.returnService.Approve(c.Request.Context(), id, h.actorFromContext(c), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, ret.ToResponse())
}

// RejectReturn handles PATCH /admin/returns/:id/reject
func (h *ReturnHandler) RejectReturn(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req model.ReviewReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	ret, err := h.returnService.Reject(c.Request.Context(), id, h.actorFromContext(c), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, ret.ToResponse())
}

// StartProcessing handles PATCH /admin/returns/:id/process
func (h *ReturnHandler) StartProcessing(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req model.StartProcessingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	ret, err := h.returnService.StartProcessing(c.Request.Context(), id, h.actorFromContext(c), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, ret.ToResponse())
}

// CompleteReturn handles PATCH /admin/returns/:id/complete
func (h *ReturnHandler) CompleteReturn(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req model.CompleteReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	ret, err := h.returnService.Complete(c.Request.Context(), id, h.actorFromContext(c), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, ret.ToResponse())
}

// SchedulePickup handles POST /admin/returns/:id/pickup
func (h *ReturnHandler) SchedulePickup(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req model.SchedulePickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	ret, err := h.returnService.SchedulePickup(c.Request.Context(), id, h.actorFromContext(c), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, ret.ToResponse())
}

// ArchiveReturn handles DELETE /admin/returns/:id. The record is soft
// archived: it disappears from listings but the audit trail stays intact.
func (h *ReturnHandler) ArchiveReturn(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	if err := h.returnService.Archive(c.Request.Context(), id, h.actorFromContext(c)); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// =====================================================
// HELPERS
// =====================================================

func (h *ReturnHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// actorFromContext reads the identity set by the auth middleware
func (h *ReturnHandler) actorFromContext(c *gin.Context) string {
	if email, exists := c.Get("email"); exists {
		if s, ok := email.(string); ok && s != "" {
			return s
		}
	}
	return "system"
}

// handleServiceError maps domain error codes to HTTP statuses
func (h *ReturnHandler) handleServiceError(c *gin.Context, err error) {
	var retErr *model.ReturnError
	if errors.As(err, &retErr) {
		response.ErrorResponse(c, statusForCode(retErr.Code), retErr.Code, retErr.Message)
		return
	}

	if errors.Is(err, model.ErrReturnNotFound) {
		response.ErrorResponse(c, http.StatusNotFound, model.ErrCodeNotFound, "return request not found")
		return
	}
	if errors.Is(err, model.ErrVersionMismatch) {
		response.ErrorResponse(c, http.StatusConflict, model.ErrCodeConflict,
			"concurrent modification detected, please refresh and try again")
		return
	}

	response.InternalServerError(c, "internal server error")
}

func statusForCode(code string) int {
	switch code {
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidTransition, model.ErrCodeTerminalState,
		model.ErrCodeConflict, model.ErrCodeSlotUnavailable:
		return http.StatusConflict
	case model.ErrCodeMissingRefundAmount, model.ErrCodeValidation:
		return http.StatusUnprocessableEntity
	case model.ErrCodeProviderUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

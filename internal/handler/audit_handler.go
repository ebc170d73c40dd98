package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/audit-logs", middleware.RequireRole(model.RoleAdmin), h.GetAuditLogs)
}

// GetAuditLogs returns paginated audit entries
// @Summary      Get audit logs
// @Description  Retrieves paginated audit log entries, optionally filtered by action (admin only)
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Param        action  query     string  false  "Filter by action"
// @Success      200     {object}  response.Response{data=object}
// @Failure      500     {object}  response.Response
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	params := pagination.Parse(c)
	action := c.Query("action")

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), action, params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, params.Envelope("logs", logs, total)))
}

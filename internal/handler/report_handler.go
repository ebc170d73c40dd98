package handler

import (
	"net/http"
	"time"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reportService service.ReportService
}

func NewReportHandler(reportService service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/reports", middleware.RequireRole(model.RoleVendor))
	{
		reports.POST("", h.SubmitReport)
		reports.GET("", h.ListReports)
	}
}

// SubmitReport upserts a vendor's daily sales report
// @Summary      Submit daily report
// @Description  Creates or replaces the caller's report for a date with counts and revenue
// @Tags         reports
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.SubmitReportRequest  true  "Daily Report Payload"
// @Success      200      {object}  response.Response{data=service.ReportResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/reports [post]
func (h *ReportHandler) SubmitReport(c *gin.Context) {
	var req service.SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	vendorID, _ := middleware.ActorFromContext(c)

	report, err := h.reportService.SubmitReport(c.Request.Context(), vendorID, req)
	if err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

// ListReports returns the caller's reports over a date range
// @Summary      List daily reports
// @Description  Retrieves the caller's reports between start and end (default last 30 days)
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Param        start  query     string  false  "Range start (YYYY-MM-DD)"
// @Param        end    query     string  false  "Range end (YYYY-MM-DD)"
// @Success      200    {object}  response.Response{data=[]service.ReportResponse}
// @Failure      400    {object}  response.Response
// @Router       /api/reports [get]
func (h *ReportHandler) ListReports(c *gin.Context) {
	vendorID, _ := middleware.ActorFromContext(c)

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -30)

	if s := c.Query("start"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid start date, expected YYYY-MM-DD"))
			return
		}
		start = parsed
	}
	if e := c.Query("end"); e != "" {
		parsed, err := time.Parse("2006-01-02", e)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid end date, expected YYYY-MM-DD"))
			return
		}
		end = parsed.AddDate(0, 0, 1)
	}

	reports, err := h.reportService.ListReports(c.Request.Context(), vendorID, start, end)
	if err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, reports))
}

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

type StatisticsHandler struct {
	statsService service.StatisticsService
}

func NewStatisticsHandler(statsService service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statsService: statsService}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	stats := router.Group("/statistics", middleware.RequireRole(allRoles...))
	{
		stats.GET("", h.GetStats)
		stats.GET("/today", h.GetTodayThroughput)
		stats.GET("/daily", h.GetDailySeries)
		stats.GET("/unsold-summary", h.GetUnsoldSummary)
	}
}

// GetStats returns lifetime aggregates for the caller's tier
// @Summary      Get statistics
// @Description  Computes lifetime received/produced/sold/unsold totals and the distribution rate for the caller
// @Tags         statistics
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=model.StatsResponse}
// @Failure      500  {object}  response.Response
// @Router       /api/statistics [get]
func (h *StatisticsHandler) GetStats(c *gin.Context) {
	actorID, role := middleware.ActorFromContext(c)

	stats, err := h.statsService.ComputeStats(c.Request.Context(), actorID, role)
	if err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// GetTodayThroughput returns today's received and produced counts
// @Summary      Today's throughput
// @Description  Sums quantities on records created since midnight UTC for the caller
// @Tags         statistics
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=object}
// @Failure      500  {object}  response.Response
// @Router       /api/statistics/today [get]
func (h *StatisticsHandler) GetTodayThroughput(c *gin.Context) {
	actorID, role := middleware.ActorFromContext(c)

	received, produced, err := h.statsService.TodayThroughput(c.Request.Context(), actorID, role)
	if err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"received": received,
		"produced": produced,
	}))
}

// GetDailySeries returns per-day buckets over a date range
// @Summary      Daily series
// @Description  Returns per-day received/sold/unsold buckets between start and end (default last 30 days)
// @Tags         statistics
// @Produce      json
// @Security     BearerAuth
// @Param        start  query     string  false  "Range start (YYYY-MM-DD)"
// @Param        end    query     string  false  "Range end (YYYY-MM-DD)"
// @Success      200    {object}  response.Response{data=[]model.DailyDataPoint}
// @Failure      400    {object}  response.Response
// @Failure      500    {object}  response.Response
// @Router       /api/statistics/daily [get]
func (h *StatisticsHandler) GetDailySeries(c *gin.Context) {
	actorID, role := middleware.ActorFromContext(c)

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
		// Include the whole end day
		end = parsed.AddDate(0, 0, 1)
	}

	series, err := h.statsService.DailySeries(c.Request.Context(), actorID, role, start, end)
	if err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	points := make([]model.DailyDataPoint, 0)
	for p := range series {
		points = append(points, p)
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, points))
}

// GetUnsoldSummary returns unsold totals grouped by subordinate
// @Summary      Unsold summary
// @Description  Groups unsold counts by the caller's subordinate tier (vendors see their own)
// @Tags         statistics
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]model.UnsoldSummaryRow}
// @Failure      500  {object}  response.Response
// @Router       /api/statistics/unsold-summary [get]
func (h *StatisticsHandler) GetUnsoldSummary(c *gin.Context) {
	actorID, role := middleware.ActorFromContext(c)

	rows, err := h.statsService.UnsoldSummary(c.Request.Context(), actorID, role)
	if err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rows))
}

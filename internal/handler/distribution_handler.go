package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// senderRoles are the tiers allowed to open distribution records.
var senderRoles = []string{
	model.RoleManufacturer,
	model.RoleDistrictDistributor,
	model.RoleAreaDistributor,
}

type DistributionHandler struct {
	distService service.DistributionService
}

func NewDistributionHandler(distService service.DistributionService) *DistributionHandler {
	return &DistributionHandler{distService: distService}
}

func (h *DistributionHandler) RegisterRoutes(router *gin.RouterGroup) {
	newspapers := router.Group("/newspapers")
	{
		newspapers.POST("", middleware.RequireRole(senderRoles...), h.CreateDistribution)
		newspapers.POST("/shipments", middleware.RequireRole(senderRoles...), h.RecordShipment)
		newspapers.GET("", middleware.RequireRole(allRoles...), h.ListDistributions)
		newspapers.GET("/available", middleware.RequireRole(allRoles...), h.AvailableNewspapers)
		newspapers.PATCH("/:id/unsold", middleware.RequireRole(model.RoleVendor), h.UpdateUnsold)
		newspapers.PATCH("/:id/status",
			middleware.RequireRole(model.RoleDistrictDistributor, model.RoleAreaDistributor, model.RoleVendor),
			h.UpdateStatus)
	}
}

// CreateDistribution opens a new distribution record for a direct subordinate
// @Summary      Create distribution
// @Description  Creates a distribution record addressed to a direct subordinate, snapshotting the sender's ancestor chain
// @Tags         newspapers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateDistributionRequest  true  "Create Distribution Payload"
// @Success      201      {object}  response.Response{data=model.DistributionRecord}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/newspapers [post]
func (h *DistributionHandler) CreateDistribution(c *gin.Context) {
	var req service.CreateDistributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	senderID, _ := middleware.ActorFromContext(c)

	rec, err := h.distService.CreateDistribution(c.Request.Context(), senderID, req)
	if err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rec))
}

// RecordShipment records an already-sent shipment as a pending record
// @Summary      Record shipment
// @Description  Records a shipment to a subordinate as a pending record awaiting acknowledgement
// @Tags         newspapers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.RecordShipmentRequest  true  "Record Shipment Payload"
// @Success      201      {object}  response.Response{data=model.DistributionRecord}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/newspapers/shipments [post]
func (h *DistributionHandler) RecordShipment(c *gin.Context) {
	var req service.RecordShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	senderID, _ := middleware.ActorFromContext(c)

	rec, err := h.distService.RecordShipment(c.Request.Context(), senderID, req)
	if err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rec))
}

// ListDistributions returns records visible to the caller's tier
// @Summary      List distributions
// @Description  Retrieves paginated distribution records scoped to the caller's tier column (admin sees all)
// @Tags         newspapers
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      500    {object}  response.Response
// @Router       /api/newspapers [get]
func (h *DistributionHandler) ListDistributions(c *gin.Context) {
	actorID, role := middleware.ActorFromContext(c)
	params := pagination.Parse(c)

	records, total, err := h.distService.ListDistributions(c.Request.Context(), actorID, role, params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, params.Envelope("records", records, total)))
}

// AvailableNewspapers lists distinct newspaper names visible to the caller
// @Summary      Available newspapers
// @Description  Retrieves the distinct newspaper names on records within the caller's scope
// @Tags         newspapers
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]string}
// @Failure      500  {object}  response.Response
// @Router       /api/newspapers/available [get]
func (h *DistributionHandler) AvailableNewspapers(c *gin.Context) {
	actorID, role := middleware.ActorFromContext(c)

	names, err := h.distService.AvailableNewspapers(c.Request.Context(), actorID, role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, names))
}

// UpdateUnsold closes out a vendor's record with its final unsold count
// @Summary      Update unsold
// @Description  Sets the final unsold count on a vendor's record and marks it delivered
// @Tags         newspapers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                       true  "Record ID"
// @Param        payload  body      service.UpdateUnsoldRequest  true  "Update Unsold Payload"
// @Success      200      {object}  response.Response{data=model.DistributionRecord}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/newspapers/{id}/unsold [patch]
func (h *DistributionHandler) UpdateUnsold(c *gin.Context) {
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid record ID"))
		return
	}

	var req service.UpdateUnsoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	vendorID, _ := middleware.ActorFromContext(c)

	rec, err := h.distService.UpdateUnsold(c.Request.Context(), vendorID, recordID, req)
	if err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rec))
}

// UpdateStatus acknowledges receipt and propagates up the snapshot chain
// @Summary      Update status
// @Description  Updates a record's status as its receiver and pushes the change onto matching ancestor records. Partial ancestor failures are reported as a warning without rolling back the primary write.
// @Tags         newspapers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                       true  "Record ID"
// @Param        payload  body      service.UpdateStatusRequest  true  "Update Status Payload"
// @Success      200      {object}  response.Response{data=model.DistributionRecord}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/newspapers/{id}/status [patch]
func (h *DistributionHandler) UpdateStatus(c *gin.Context) {
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid record ID"))
		return
	}

	var req service.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	receiverID, _ := middleware.ActorFromContext(c)

	rec, propErr, err := h.distService.UpdateStatus(c.Request.Context(), receiverID, recordID, req)
	if err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	if propErr != nil {
		c.JSON(http.StatusOK, response.SuccessWithWarning(http.StatusOK, rec, propErr.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rec))
}

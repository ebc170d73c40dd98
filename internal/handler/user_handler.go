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

var allRoles = []string{
	model.RoleAdmin,
	model.RoleManufacturer,
	model.RoleDistrictDistributor,
	model.RoleAreaDistributor,
	model.RoleVendor,
}

type UserHandler struct {
	userService service.UserService
}

// NewUserHandler sets up the routing dependencies for actor endpoints
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.RefreshToken)
		auth.POST("/logout", h.Logout)
	}

	router.GET("/me", middleware.RequireRole(allRoles...), h.GetMe)

	users := router.Group("/users")
	{
		users.GET("", middleware.RequireRole(model.RoleAdmin), h.ListUsers)
		users.GET("/by-role/:role", middleware.RequireRole(allRoles...), h.ListByRole)
		users.GET("/subordinates", middleware.RequireRole(allRoles...), h.ListSubordinates)
		users.GET("/:id", middleware.RequireRole(allRoles...), h.GetUserByID)
		users.PUT("/:id", middleware.RequireRole(allRoles...), h.UpdateUser)
		users.DELETE("/:id", middleware.RequireRole(model.RoleAdmin), h.DeleteUser)
	}
}

// Signup registers a new actor and logs them in
// @Summary      Sign up
// @Description  Registers a new actor with a role and optional superior, returning tokens
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SignupRequest  true  "Signup Payload"
// @Success      201      {object}  response.Response{data=service.TokenResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/auth/signup [post]
func (h *UserHandler) Signup(c *gin.Context) {
	var req service.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	tokenRes, err := h.userService.Signup(c.Request.Context(), req)
	if err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	middleware.SetTokenCookies(c, tokenRes.Token, tokenRes.RefreshToken)
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, tokenRes))
}

// Login authenticates an actor by email and password
// @Summary      Login
// @Description  Authenticates an actor by email and password, returning a JWT token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest   true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /api/auth/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	tokenRes, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return
	}

	middleware.SetTokenCookies(c, tokenRes.Token, tokenRes.RefreshToken)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tokenRes))
}

// RefreshToken rotates a refresh token into a new token pair
// @Summary      Refresh token
// @Description  Issues a new access token and refresh token using a valid refresh token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RefreshTokenRequest   true  "Refresh Token"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /api/auth/refresh [post]
func (h *UserHandler) RefreshToken(c *gin.Context) {
	// Try reading refresh_token from cookie first, fallback to body
	refreshToken, cookieErr := c.Cookie("refresh_token")
	var req service.RefreshTokenRequest

	if cookieErr != nil || refreshToken == "" {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
			return
		}
	} else {
		req = service.RefreshTokenRequest{RefreshToken: refreshToken}
	}

	tokenRes, err := h.userService.RefreshToken(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return
	}

	middleware.SetTokenCookies(c, tokenRes.Token, tokenRes.RefreshToken)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tokenRes))
}

// Logout revokes the refresh token and clears auth cookies
// @Summary      Logout
// @Description  Revokes the refresh token and clears auth cookies
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/auth/logout [post]
func (h *UserHandler) Logout(c *gin.Context) {
	refreshToken, _ := c.Cookie("refresh_token")
	if refreshToken == "" {
		var req service.RefreshTokenRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			refreshToken = req.RefreshToken
		}
	}

	if refreshToken != "" {
		_ = h.userService.Logout(c.Request.Context(), refreshToken)
	}

	middleware.ClearTokenCookies(c)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Logged out"}))
}

// GetMe returns the currently authenticated actor
// @Summary      Get current user
// @Description  Get the currently authenticated actor from the JWT
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Failure      401  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	actorID, _ := middleware.ActorFromContext(c)

	user, err := h.userService.GetUserByID(c.Request.Context(), actorID)
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "User not found"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// ListUsers returns a paginated list of all actors
// @Summary      List users
// @Description  Retrieves a paginated list of all actors (admin only)
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      500    {object}  response.Response
// @Router       /api/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	params := pagination.Parse(c)

	users, total, err := h.userService.ListUsers(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, params.Envelope("users", users, total)))
}

// ListByRole returns all actors holding the given role
// @Summary      List users by role
// @Description  Retrieves all actors holding the given role, used to pick receivers
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        role  path      string  true  "Role name"
// @Success      200   {object}  response.Response{data=[]service.UserResponse}
// @Failure      400   {object}  response.Response
// @Router       /api/users/by-role/{role} [get]
func (h *UserHandler) ListByRole(c *gin.Context) {
	role := c.Param("role")
	if !model.ValidRole(role) {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Unknown role: "+role))
		return
	}

	users, err := h.userService.ListByRole(c.Request.Context(), role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, users))
}

// ListSubordinates returns the actors whose superior is the caller
// @Summary      List subordinates
// @Description  Retrieves the actors directly below the caller in the hierarchy
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.UserResponse}
// @Failure      500  {object}  response.Response
// @Router       /api/users/subordinates [get]
func (h *UserHandler) ListSubordinates(c *gin.Context) {
	actorID, _ := middleware.ActorFromContext(c)

	users, err := h.userService.ListSubordinates(c.Request.Context(), actorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, users))
}

// GetUserByID returns one actor by ID
// @Summary      Get user
// @Description  Retrieves a single actor by ID
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/users/{id} [get]
func (h *UserHandler) GetUserByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid user ID"))
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), id)
	if err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// UpdateUser updates an actor's profile fields
// @Summary      Update user
// @Description  Updates an actor's name, email or superior link
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "User ID"
// @Param        payload  body      service.UpdateUserRequest  true  "Update Payload"
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/users/{id} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid user ID"))
		return
	}

	actorID, role := middleware.ActorFromContext(c)
	if role != model.RoleAdmin && actorID != id {
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Cannot update another user"))
		return
	}

	var req service.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	user, err := h.userService.UpdateUser(c.Request.Context(), id, req)
	if err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// DeleteUser removes an actor
// @Summary      Delete user
// @Description  Soft-deletes an actor by ID (admin only)
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid user ID"))
		return
	}

	adminID, _ := middleware.ActorFromContext(c)

	if err := h.userService.DeleteUser(c.Request.Context(), adminID, id); err != nil {
		status := httpStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "User deleted"}))
}

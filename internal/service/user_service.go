package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DTOs for Request validation
type SignupRequest struct {
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	Role       string `json:"role" binding:"required"`
	SuperiorID string `json:"superior_id"`
}

type UpdateUserRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email" binding:"omitempty,email"`
	SuperiorID string `json:"superior_id"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenResponse struct {
	Token        string        `json:"token"`
	RefreshToken string        `json:"refresh_token"`
	User         *UserResponse `json:"user"`
}

// DTO for returning actors without exposing credentials
type UserResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	SuperiorID string    `json:"superior_id,omitempty"`
	CreatedAt  string    `json:"created_at"`
}

// UserService is the actor directory: identities with a role and an optional
// single superior reference forming a strict tree. The ledger consults it as
// read-only reference data via ResolveSuperior/RoleOf.
type UserService interface {
	Signup(ctx context.Context, req SignupRequest) (*TokenResponse, error)
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*UserResponse, error)
	ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error)
	ListByRole(ctx context.Context, role string) ([]UserResponse, error)
	ListSubordinates(ctx context.Context, superiorID uuid.UUID) ([]UserResponse, error)
	UpdateUser(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, adminID, id uuid.UUID) error

	ResolveSuperior(ctx context.Context, actorID uuid.UUID) (*model.User, error)
	RoleOf(ctx context.Context, actorID uuid.UUID) (string, error)
}

type userService struct {
	repo      repository.UserRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
}

// NewUserService returns a new instance of UserService
func NewUserService(repo repository.UserRepository, auditRepo repository.AuditRepository, txManager repository.TransactionManager) UserService {
	return &userService{repo: repo, auditRepo: auditRepo, txManager: txManager}
}

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) *UserResponse {
	res := &UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
	if user.SuperiorID != nil {
		res.SuperiorID = user.SuperiorID.String()
	}
	return res
}

func (s *userService) Signup(ctx context.Context, req SignupRequest) (*TokenResponse, error) {
	if !model.ValidRole(req.Role) {
		return nil, apperr.InvalidInput("invalid role %q", req.Role)
	}

	var superiorID *uuid.UUID
	if model.RequiresSuperior(req.Role) {
		if req.SuperiorID == "" {
			return nil, apperr.InvalidInput("superior_id is required for role %q", req.Role)
		}
		parsed, err := uuid.Parse(req.SuperiorID)
		if err != nil {
			return nil, apperr.InvalidInput("invalid superior_id")
		}
		// The superior's own chain is not verified here; a broken chain
		// surfaces as a HierarchyViolation at distribution creation.
		superiorID = &parsed
	}

	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperr.InvalidInput("email already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	user := &model.User{
		Name:       req.Name,
		Email:      req.Email,
		Password:   string(hashedPassword),
		Role:       req.Role,
		SuperiorID: superiorID,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, user); err != nil {
			return err
		}
		details, _ := json.Marshal(map[string]string{"email": req.Email, "role": req.Role})
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     &user.ID,
			Action:     model.ActionSignup,
			EntityID:   user.ID.String(),
			EntityName: user.Name,
			Details:    string(details),
		})
	})
	if err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user)
}

func (s *userService) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, errors.New("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errors.New("invalid email or password")
	}

	return s.issueTokens(ctx, user)
}

func (s *userService) issueTokens(ctx context.Context, user *model.User) (*TokenResponse, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
	})

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "default_super_secret_key"
	}

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, errors.New("failed to generate refresh token")
	}
	refresh := hex.EncodeToString(raw)

	err = s.repo.StoreRefreshToken(ctx, &model.RefreshToken{
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	})
	if err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &TokenResponse{
		Token:        tokenString,
		RefreshToken: refresh,
		User:         mapToResponse(user),
	}, nil
}

func (s *userService) RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error) {
	stored, err := s.repo.GetRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, errors.New("invalid refresh token")
	}
	if time.Now().After(stored.ExpiresAt) {
		_ = s.repo.DeleteRefreshToken(ctx, req.RefreshToken)
		return nil, errors.New("refresh token expired")
	}

	user, err := s.repo.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, errors.New("user not found")
	}

	// Rotate: the old token is single-use.
	_ = s.repo.DeleteRefreshToken(ctx, req.RefreshToken)
	return s.issueTokens(ctx, user)
}

func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.repo.DeleteRefreshToken(ctx, refreshToken)
}

func (s *userService) GetUserByID(ctx context.Context, id uuid.UUID) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("user %s", id)
	}
	return mapToResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	users, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, *mapToResponse(&u))
	}
	return responses, total, nil
}

func (s *userService) ListByRole(ctx context.Context, role string) ([]UserResponse, error) {
	if !model.ValidRole(role) {
		return nil, apperr.InvalidInput("invalid role %q", role)
	}
	users, err := s.repo.ListByRole(ctx, role)
	if err != nil {
		return nil, err
	}
	responses := make([]UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, *mapToResponse(&u))
	}
	return responses, nil
}

func (s *userService) ListSubordinates(ctx context.Context, superiorID uuid.UUID) ([]UserResponse, error) {
	users, err := s.repo.ListSubordinates(ctx, superiorID)
	if err != nil {
		return nil, err
	}
	responses := make([]UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, *mapToResponse(&u))
	}
	return responses, nil
}

func (s *userService) UpdateUser(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("user %s", id)
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Email != "" && req.Email != user.Email {
		if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
			return nil, apperr.InvalidInput("email already exists")
		}
		user.Email = req.Email
	}
	if req.SuperiorID != "" {
		if !model.RequiresSuperior(user.Role) {
			return nil, apperr.InvalidInput("role %q takes no superior", user.Role)
		}
		parsed, err := uuid.Parse(req.SuperiorID)
		if err != nil {
			return nil, apperr.InvalidInput("invalid superior_id")
		}
		// Changing a superior does not re-snapshot existing ledger records;
		// their denormalized hierarchy keeps the chain as it was at
		// creation time.
		user.SuperiorID = &parsed
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Update(txCtx, user); err != nil {
			return err
		}
		details, _ := json.Marshal(req)
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     &user.ID,
			Action:     model.ActionUpdateUser,
			EntityID:   user.ID.String(),
			EntityName: user.Name,
			Details:    string(details),
		})
	})
	if err != nil {
		return nil, err
	}

	return mapToResponse(user), nil
}

func (s *userService) DeleteUser(ctx context.Context, adminID, id uuid.UUID) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return apperr.NotFound("user %s", id)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Delete(txCtx, id); err != nil {
			return err
		}
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     &adminID,
			Action:     model.ActionDeleteUser,
			EntityID:   id.String(),
			EntityName: user.Name,
		})
	})
}

// ResolveSuperior returns the actor referenced by superior_id, or NotFound.
func (s *userService) ResolveSuperior(ctx context.Context, actorID uuid.UUID) (*model.User, error) {
	actor, err := s.repo.GetByID(ctx, actorID)
	if err != nil {
		return nil, apperr.NotFound("actor %s", actorID)
	}
	if actor.SuperiorID == nil {
		return nil, apperr.NotFound("actor %s has no superior", actorID)
	}
	superior, err := s.repo.GetByID(ctx, *actor.SuperiorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("superior of actor %s", actorID)
		}
		return nil, err
	}
	return superior, nil
}

func (s *userService) RoleOf(ctx context.Context, actorID uuid.UUID) (string, error) {
	actor, err := s.repo.GetByID(ctx, actorID)
	if err != nil {
		return "", apperr.NotFound("actor %s", actorID)
	}
	return actor.Role, nil
}

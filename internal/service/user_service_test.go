package service

import (
	"context"
	"testing"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newUserService(db *gorm.DB) UserService {
	return NewUserService(
		repository.NewUserRepository(db),
		repository.NewAuditRepository(db),
		repository.NewTransactionManager(db),
	)
}

func TestSignupAndLogin(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newUserService(db)

	res, err := svc.Signup(context.Background(), SignupRequest{
		Name:     "Daily Press Co",
		Email:    "press@example.com",
		Password: "supersecret",
		Role:     model.RoleManufacturer,
	})
	require.NoError(t, err)
	require.NotNil(t, res.User)
	assert.NotEmpty(t, res.Token)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, model.RoleManufacturer, res.User.Role)

	login, err := svc.Login(context.Background(), LoginRequest{
		Email:    "press@example.com",
		Password: "supersecret",
	})
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, login.User.ID)

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "press@example.com",
		Password: "wrong",
	})
	require.Error(t, err)

	// Duplicate email is rejected.
	_, err = svc.Signup(context.Background(), SignupRequest{
		Name:     "Other",
		Email:    "press@example.com",
		Password: "supersecret",
		Role:     model.RoleManufacturer,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestSignupRequiresSuperiorForLowerTiers(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newUserService(db)

	_, err := svc.Signup(context.Background(), SignupRequest{
		Name:     "Corner Stand",
		Email:    "stand@example.com",
		Password: "supersecret",
		Role:     model.RoleVendor,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	area := createActor(t, db, model.RoleAreaDistributor, nil)
	res, err := svc.Signup(context.Background(), SignupRequest{
		Name:       "Corner Stand",
		Email:      "stand@example.com",
		Password:   "supersecret",
		Role:       model.RoleVendor,
		SuperiorID: area.ID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, area.ID.String(), res.User.SuperiorID)
}

func TestRefreshTokenRotation(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newUserService(db)

	res, err := svc.Signup(context.Background(), SignupRequest{
		Name:     "Daily Press Co",
		Email:    "press@example.com",
		Password: "supersecret",
		Role:     model.RoleManufacturer,
	})
	require.NoError(t, err)

	rotated, err := svc.RefreshToken(context.Background(), RefreshTokenRequest{RefreshToken: res.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, rotated.RefreshToken)

	// The old token is single-use.
	_, err = svc.RefreshToken(context.Background(), RefreshTokenRequest{RefreshToken: res.RefreshToken})
	require.Error(t, err)
}

func TestUpdateUserSuperiorChange(t *testing.T) {
	db := setupServiceTestDB(t)
	manufacturer := createActor(t, db, model.RoleManufacturer, nil)
	otherManufacturer := createActor(t, db, model.RoleManufacturer, nil)
	district := createActor(t, db, model.RoleDistrictDistributor, manufacturer)
	svc := newUserService(db)

	updated, err := svc.UpdateUser(context.Background(), district.ID, UpdateUserRequest{
		SuperiorID: otherManufacturer.ID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, otherManufacturer.ID.String(), updated.SuperiorID)

	// Roles without a superior reject the field.
	_, err = svc.UpdateUser(context.Background(), manufacturer.ID, UpdateUserRequest{
		SuperiorID: otherManufacturer.ID.String(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestDeleteUser(t *testing.T) {
	db := setupServiceTestDB(t)
	admin := createActor(t, db, model.RoleAdmin, nil)
	manufacturer := createActor(t, db, model.RoleManufacturer, nil)
	svc := newUserService(db)

	require.NoError(t, svc.DeleteUser(context.Background(), admin.ID, manufacturer.ID))

	_, err := svc.GetUserByID(context.Background(), manufacturer.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	var count int64
	require.NoError(t, db.Model(&model.AuditLog{}).
		Where("action = ? AND user_id = ?", model.ActionDeleteUser, admin.ID).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDeleteUserMissing(t *testing.T) {
	db := setupServiceTestDB(t)
	admin := createActor(t, db, model.RoleAdmin, nil)
	svc := newUserService(db)

	err := svc.DeleteUser(context.Background(), admin.ID, uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

package service

import (
	"fmt"
	"testing"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupServiceTestDB opens a fresh in-memory database with the ledger schema.
// Each call gets its own named shared-cache database so tests stay isolated.
func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{
		`CREATE TABLE users (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  password TEXT NOT NULL,
  role TEXT NOT NULL,
  superior_id TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);`,
		`CREATE TABLE refresh_tokens (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  token TEXT NOT NULL UNIQUE,
  expires_at DATETIME NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE distribution_records (
  id TEXT PRIMARY KEY,
  newspaper_name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  sender_id TEXT NOT NULL,
  receiver_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  total_unsold INTEGER NOT NULL DEFAULT 0,
  received_quantity INTEGER NOT NULL DEFAULT 0,
  manufacturer_id TEXT,
  district_distributor_id TEXT,
  area_distributor_id TEXT,
  vendor_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE status_updates (
  id TEXT PRIMARY KEY,
  record_id TEXT NOT NULL,
  actor_id TEXT NOT NULL,
  status TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 0,
  received_quantity INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`,
		`CREATE TABLE daily_reports (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  date DATE NOT NULL,
  newspapers_received INTEGER NOT NULL,
  newspapers_sold INTEGER NOT NULL,
  newspapers_unsold INTEGER NOT NULL,
  revenue_generated NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE(user_id, date)
);`,
		`CREATE TABLE audit_logs (
  id TEXT PRIMARY KEY,
  user_id TEXT,
  action TEXT NOT NULL,
  entity_id TEXT,
  entity_name TEXT,
  details TEXT,
  created_at DATETIME
);`,
	}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}

	return db
}

func createActor(t *testing.T, db *gorm.DB, role string, superior *model.User) *model.User {
	t.Helper()

	u := &model.User{
		ID:       uuid.New(),
		Name:     role + " " + uuid.NewString()[:8],
		Email:    uuid.NewString() + "@example.com",
		Password: "hashed",
		Role:     role,
	}
	if superior != nil {
		u.SuperiorID = &superior.ID
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// buildChain creates one actor per tier linked by superior references.
func buildChain(t *testing.T, db *gorm.DB) (manufacturer, district, area, vendor *model.User) {
	t.Helper()

	manufacturer = createActor(t, db, model.RoleManufacturer, nil)
	district = createActor(t, db, model.RoleDistrictDistributor, manufacturer)
	area = createActor(t, db, model.RoleAreaDistributor, district)
	vendor = createActor(t, db, model.RoleVendor, area)
	return
}

func newLedger(db *gorm.DB) DistributionService {
	return NewDistributionService(
		repository.NewDistributionRepository(db),
		repository.NewUserRepository(db),
		repository.NewAuditRepository(db),
		repository.NewTransactionManager(db),
		nil,
	)
}

func loadRecord(t *testing.T, db *gorm.DB, id uuid.UUID) *model.DistributionRecord {
	t.Helper()

	var rec model.DistributionRecord
	require.NoError(t, db.Preload("StatusUpdates").First(&rec, "id = ?", id).Error)
	return &rec
}

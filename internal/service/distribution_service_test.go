package service

import (
	"context"
	"testing"
	"time"

	"backend/internal/model"
	"backend/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDistributionManufacturerSnapshot(t *testing.T) {
	db := setupServiceTestDB(t)
	manufacturer, district, _, _ := buildChain(t, db)
	svc := newLedger(db)

	rec, err := svc.CreateDistribution(context.Background(), manufacturer.ID, CreateDistributionRequest{
		NewspaperName: "Morning Post",
		Quantity:      500,
		ReceiverID:    district.ID.String(),
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusDistributed, rec.Status)
	assert.Equal(t, 500, rec.Quantity)
	assert.Equal(t, 500, rec.ReceivedQuantity)

	// Manufacturer-created records carry only the manufacturer tier.
	require.NotNil(t, rec.Hierarchy.ManufacturerID)
	assert.Equal(t, manufacturer.ID, *rec.Hierarchy.ManufacturerID)
	assert.Nil(t, rec.Hierarchy.DistrictDistributorID)
	assert.Nil(t, rec.Hierarchy.AreaDistributorID)
	assert.Nil(t, rec.Hierarchy.VendorID)

	stored := loadRecord(t, db, rec.ID)
	require.Len(t, stored.StatusUpdates, 1)
	assert.Equal(t, manufacturer.ID, stored.StatusUpdates[0].ActorID)
	assert.Equal(t, model.StatusDistributed, stored.StatusUpdates[0].Status)

	var auditCount int64
	require.NoError(t, db.Model(&model.AuditLog{}).
		Where("action = ?", model.ActionCreateDistribution).
		Count(&auditCount).Error)
	assert.EqualValues(t, 1, auditCount)
}

func TestCreateDistributionAreaSnapshotIncludesVendor(t *testing.T) {
	db := setupServiceTestDB(t)
	manufacturer, district, area, vendor := buildChain(t, db)
	svc := newLedger(db)

	rec, err := svc.CreateDistribution(context.Background(), area.ID, CreateDistributionRequest{
		NewspaperName: "Morning Post",
		Quantity:      100,
		ReceiverID:    vendor.ID.String(),
	})
	require.NoError(t, err)

	require.NotNil(t, rec.Hierarchy.ManufacturerID)
	require.NotNil(t, rec.Hierarchy.DistrictDistributorID)
	require.NotNil(t, rec.Hierarchy.AreaDistributorID)
	require.NotNil(t, rec.Hierarchy.VendorID)
	assert.Equal(t, manufacturer.ID, *rec.Hierarchy.ManufacturerID)
	assert.Equal(t, district.ID, *rec.Hierarchy.DistrictDistributorID)
	assert.Equal(t, area.ID, *rec.Hierarchy.AreaDistributorID)
	assert.Equal(t, vendor.ID, *rec.Hierarchy.VendorID)
}

func TestCreateDistributionRejectsNonAdjacentReceiver(t *testing.T) {
	db := setupServiceTestDB(t)
	manufacturer, _, _, vendor := buildChain(t, db)
	svc := newLedger(db)

	_, err := svc.CreateDistribution(context.Background(), manufacturer.ID, CreateDistributionRequest{
		NewspaperName: "Morning Post",
		Quantity:      100,
		ReceiverID:    vendor.ID.String(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrHierarchyViolation)
}

func TestCreateDistributionRejectsVendorSender(t *testing.T) {
	db := setupServiceTestDB(t)
	_, _, _, vendor := buildChain(t, db)
	other := createActor(t, db, model.RoleVendor, nil)
	svc := newLedger(db)

	_, err := svc.CreateDistribution(context.Background(), vendor.ID, CreateDistributionRequest{
		NewspaperName: "Morning Post",
		Quantity:      10,
		ReceiverID:    other.ID.String(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrHierarchyViolation)
}

func TestCreateDistributionBrokenChain(t *testing.T) {
	db := setupServiceTestDB(t)
	// Area distributor with no superior at all.
	area := createActor(t, db, model.RoleAreaDistributor, nil)
	vendor := createActor(t, db, model.RoleVendor, area)
	svc := newLedger(db)

	_, err := svc.CreateDistribution(context.Background(), area.ID, CreateDistributionRequest{
		NewspaperName: "Morning Post",
		Quantity:      50,
		ReceiverID:    vendor.ID.String(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrHierarchyViolation)

	// Nothing may be persisted when the chain walk fails.
	var count int64
	require.NoError(t, db.Model(&model.DistributionRecord{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestCreateDistributionAppendsEntryToOlderSiblingRecord(t *testing.T) {
	db := setupServiceTestDB(t)
	_, district, area, _ := buildChain(t, db)
	svc := newLedger(db)

	first, err := svc.CreateDistribution(context.Background(), district.ID, CreateDistributionRequest{
		NewspaperName: "Morning Post",
		Quantity:      200,
		ReceiverID:    area.ID.String(),
	})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	second, err := svc.CreateDistribution(context.Background(), district.ID, CreateDistributionRequest{
		NewspaperName: "Morning Post",
		Quantity:      150,
		ReceiverID:    area.ID.String(),
	})
	require.NoError(t, err)

	// The oldest still-distributed record for the same newspaper sharing the
	// sender's tier key picks up a copy of the new entry.
	stored := loadRecord(t, db, first.ID)
	require.Len(t, stored.StatusUpdates, 2)
	quantities := []int{stored.StatusUpdates[0].Quantity, stored.StatusUpdates[1].Quantity}
	assert.Contains(t, quantities, 150)

	// The new record keeps just its own initial entry.
	assert.Len(t, loadRecord(t, db, second.ID).StatusUpdates, 1)
}

func TestRecordShipmentStartsPending(t *testing.T) {
	db := setupServiceTestDB(t)
	_, district, area, _ := buildChain(t, db)
	svc := newLedger(db)

	rec, err := svc.RecordShipment(context.Background(), district.ID, RecordShipmentRequest{
		NewspaperName: "Evening Star",
		ReceiverID:    area.ID.String(),
		TotalSent:     300,
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, rec.Status)
	assert.Equal(t, 300, rec.Quantity)

	// The legacy path records no snapshot and no audit trail entries.
	stored := loadRecord(t, db, rec.ID)
	assert.Nil(t, stored.Hierarchy.ManufacturerID)
	assert.Nil(t, stored.Hierarchy.DistrictDistributorID)
	assert.Empty(t, stored.StatusUpdates)
}

func TestRecordShipmentRequiresDirectSubordinate(t *testing.T) {
	db := setupServiceTestDB(t)
	_, district, _, _ := buildChain(t, db)
	otherArea := createActor(t, db, model.RoleAreaDistributor, nil)
	svc := newLedger(db)

	_, err := svc.RecordShipment(context.Background(), district.ID, RecordShipmentRequest{
		NewspaperName: "Evening Star",
		ReceiverID:    otherArea.ID.String(),
		TotalSent:     300,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrHierarchyViolation)
}

func TestUpdateUnsoldBoundary(t *testing.T) {
	db := setupServiceTestDB(t)
	_, _, area, vendor := buildChain(t, db)
	svc := newLedger(db)

	rec, err := svc.CreateDistribution(context.Background(), area.ID, CreateDistributionRequest{
		NewspaperName: "Morning Post",
		Quantity:      100,
		ReceiverID:    vendor.ID.String(),
	})
	require.NoError(t, err)

	// One over the quantity is rejected and leaves the record untouched.
	_, err = svc.UpdateUnsold(context.Background(), vendor.ID, rec.ID, UpdateUnsoldRequest{UnsoldQuantity: 101})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.Equal(t, model.StatusDistributed, loadRecord(t, db, rec.ID).Status)

	// Exactly the quantity is allowed.
	updated, err := svc.UpdateUnsold(context.Background(), vendor.ID, rec.ID, UpdateUnsoldRequest{UnsoldQuantity: 100})
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, updated.Status)
	assert.Equal(t, 100, updated.TotalUnsold)
}

func TestUpdateUnsoldOnlyOnce(t *testing.T) {
	db := setupServiceTestDB(t)
	_, _, area, vendor := buildChain(t, db)
	svc := newLedger(db)

	rec, err := svc.CreateDistribution(context.Background(), area.ID, CreateDistributionRequest{
		NewspaperName: "Morning Post",
		Quantity:      100,
		ReceiverID:    vendor.ID.String(),
	})
	require.NoError(t, err)

	_, err = svc.UpdateUnsold(context.Background(), vendor.ID, rec.ID, UpdateUnsoldRequest{UnsoldQuantity: 20})
	require.NoError(t, err)

	// Delivered records are no longer addressable by the unsold path.
	_, err = svc.UpdateUnsold(context.Background(), vendor.ID, rec.ID, UpdateUnsoldRequest{UnsoldQuantity: 30})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 20, loadRecord(t, db, rec.ID).TotalUnsold)
}

func TestUpdateUnsoldTouchesNoAncestorRecords(t *testing.T) {
	db := setupServiceTestDB(t)
	manufacturer, district, area, vendor := buildChain(t, db)
	svc := newLedger(db)

	upper, err := svc.CreateDistribution(context.Background(), manufacturer.ID, CreateDistributionRequest{
		NewspaperName: "Morning Post",
		Quantity:      1000,
		ReceiverID:    district.ID.String(),
	})
	require.NoError(t, err)

	rec, err := svc.CreateDistribution(context.Background(), area.ID, CreateDistributionRequest{
		NewspaperName: "Morning Post",
		Quantity:      100,
		ReceiverID:    vendor.ID.String(),
	})
	require.NoError(t, err)

	before := loadRecord(t, db, upper.ID)

	_, err = svc.UpdateUnsold(context.Background(), vendor.ID, rec.ID, UpdateUnsoldRequest{UnsoldQuantity: 15})
	require.NoError(t, err)

	after := loadRecord(t, db, upper.ID)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.TotalUnsold, after.TotalUnsold)
	assert.Len(t, after.StatusUpdates, len(before.StatusUpdates))
}

func TestUpdateStatusValidation(t *testing.T) {
	db := setupServiceTestDB(t)
	_, _, area, vendor := buildChain(t, db)
	svc := newLedger(db)

	rec, err := svc.CreateDistribution(context.Background(), area.ID, CreateDistributionRequest{
		NewspaperName: "Morning Post",
		Quantity:      100,
		ReceiverID:    vendor.ID.String(),
	})
	require.NoError(t, err)

	_, _, err = svc.UpdateStatus(context.Background(), vendor.ID, rec.ID, UpdateStatusRequest{
		Status:           "misplaced",
		ReceivedQuantity: 10,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, _, err = svc.UpdateStatus(context.Background(), vendor.ID, rec.ID, UpdateStatusRequest{
		Status:           model.StatusDelivered,
		ReceivedQuantity: 101,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	// Only the addressed receiver may update.
	_, _, err = svc.UpdateStatus(context.Background(), area.ID, rec.ID, UpdateStatusRequest{
		Status:           model.StatusDelivered,
		ReceivedQuantity: 90,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateStatusPropagatesUpward(t *testing.T) {
	db := setupServiceTestDB(t)
	manufacturer, district, area, vendor := buildChain(t, db)
	svc := newLedger(db)

	top, err := svc.CreateDistribution(context.Background(), manufacturer.ID, CreateDistributionRequest{
		NewspaperName: "Morning Post",
		Quantity:      1000,
		ReceiverID:    district.ID.String(),
	})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	mid, err := svc.CreateDistribution(context.Background(), district.ID, CreateDistributionRequest{
		NewspaperName: "Morning Post",
		Quantity:      400,
		ReceiverID:    area.ID.String(),
	})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	leaf, err := svc.CreateDistribution(context.Background(), area.ID, CreateDistributionRequest{
		NewspaperName: "Morning Post",
		Quantity:      100,
		ReceiverID:    vendor.ID.String(),
	})
	require.NoError(t, err)

	leafEntries := len(loadRecord(t, db, leaf.ID).StatusUpdates)
	midBefore := loadRecord(t, db, mid.ID)

	updated, propErr, err := svc.UpdateStatus(context.Background(), vendor.ID, leaf.ID, UpdateStatusRequest{
		Status:           model.StatusDelivered,
		ReceivedQuantity: 90,
	})
	require.NoError(t, err)
	assert.Nil(t, propErr)

	assert.Equal(t, model.StatusDelivered, updated.Status)
	assert.Equal(t, 90, updated.ReceivedQuantity)

	// The primary record gets the receiver's entry plus the broad-append copy.
	leafAfter := loadRecord(t, db, leaf.ID)
	assert.Len(t, leafAfter.StatusUpdates, leafEntries+2)

	// The oldest record matching manufacturer+district keys is overwritten,
	// without gaining an audit entry.
	midAfter := loadRecord(t, db, mid.ID)
	assert.Equal(t, model.StatusDelivered, midAfter.Status)
	assert.Equal(t, 90, midAfter.ReceivedQuantity)
	assert.Len(t, midAfter.StatusUpdates, len(midBefore.StatusUpdates))

	// The manufacturer's own record has no district key and stays untouched.
	topAfter := loadRecord(t, db, top.ID)
	assert.Equal(t, model.StatusDistributed, topAfter.Status)
	assert.Equal(t, 1000, topAfter.ReceivedQuantity)
}

func TestListDistributionsScoping(t *testing.T) {
	db := setupServiceTestDB(t)
	manufacturer, district, area, vendor := buildChain(t, db)
	admin := createActor(t, db, model.RoleAdmin, nil)
	svc := newLedger(db)

	_, err := svc.CreateDistribution(context.Background(), manufacturer.ID, CreateDistributionRequest{
		NewspaperName: "Morning Post",
		Quantity:      1000,
		ReceiverID:    district.ID.String(),
	})
	require.NoError(t, err)

	_, err = svc.CreateDistribution(context.Background(), area.ID, CreateDistributionRequest{
		NewspaperName: "Morning Post",
		Quantity:      100,
		ReceiverID:    vendor.ID.String(),
	})
	require.NoError(t, err)

	// Vendors see only records carrying their hierarchy key.
	recs, total, err := svc.ListDistributions(context.Background(), vendor.ID, model.RoleVendor, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, recs, 1)

	// The manufacturer key is present on both records.
	_, total, err = svc.ListDistributions(context.Background(), manufacturer.ID, model.RoleManufacturer, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	// Admin sees everything, unscoped.
	_, total, err = svc.ListDistributions(context.Background(), admin.ID, model.RoleAdmin, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestAvailableNewspapers(t *testing.T) {
	db := setupServiceTestDB(t)
	manufacturer, district, _, _ := buildChain(t, db)
	svc := newLedger(db)

	for _, name := range []string{"Morning Post", "Evening Star", "Morning Post"} {
		_, err := svc.CreateDistribution(context.Background(), manufacturer.ID, CreateDistributionRequest{
			NewspaperName: name,
			Quantity:      10,
			ReceiverID:    district.ID.String(),
		})
		require.NoError(t, err)
	}

	names, err := svc.AvailableNewspapers(context.Background(), manufacturer.ID, model.RoleManufacturer)
	require.NoError(t, err)
	assert.Equal(t, []string{"Evening Star", "Morning Post"}, names)
}

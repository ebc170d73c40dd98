package service

import (
	"context"
	"testing"
	"time"

	"backend/internal/model"
	"backend/pkg/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func insertRecord(t *testing.T, db *gorm.DB, rec *model.DistributionRecord) *model.DistributionRecord {
	t.Helper()

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	require.NoError(t, db.Create(rec).Error)
	return rec
}

func TestComputeStatsVendor(t *testing.T) {
	db := setupServiceTestDB(t)
	_, _, area, vendor := buildChain(t, db)
	svc := NewStatisticsService(db)

	insertRecord(t, db, &model.DistributionRecord{
		NewspaperName:    "Morning Post",
		Quantity:         100,
		ReceivedQuantity: 100,
		SenderID:         area.ID,
		ReceiverID:       vendor.ID,
		Status:           model.StatusDelivered,
		TotalUnsold:      20,
		Hierarchy:        model.Hierarchy{AreaDistributorID: &area.ID, VendorID: &vendor.ID},
	})

	stats, err := svc.ComputeStats(context.Background(), vendor.ID, model.RoleVendor)
	require.NoError(t, err)

	assert.Equal(t, 100, stats.TotalNewspapers)
	assert.Equal(t, 80, stats.TotalSold)
	assert.Equal(t, 20, stats.TotalUnsold)
	assert.InDelta(t, 80.0, stats.DistributionRate, 0.001)
	assert.Equal(t, 100, stats.NewspapersReceived) // created just now, so counted as today's
	assert.Equal(t, 0, stats.NewspapersProduced)

	// Pure aggregation over stored records: recomputing changes nothing.
	again, err := svc.ComputeStats(context.Background(), vendor.ID, model.RoleVendor)
	require.NoError(t, err)
	assert.Equal(t, stats, again)
}

func TestComputeStatsDistributorCountsDeliveredOnly(t *testing.T) {
	db := setupServiceTestDB(t)
	_, district, area, _ := buildChain(t, db)
	svc := NewStatisticsService(db)

	insertRecord(t, db, &model.DistributionRecord{
		NewspaperName:    "Morning Post",
		Quantity:         50,
		ReceivedQuantity: 50,
		SenderID:         district.ID,
		ReceiverID:       area.ID,
		Status:           model.StatusDelivered,
		TotalUnsold:      10,
		Hierarchy:        model.Hierarchy{DistrictDistributorID: &district.ID},
	})
	insertRecord(t, db, &model.DistributionRecord{
		NewspaperName:    "Morning Post",
		Quantity:         30,
		ReceivedQuantity: 30,
		SenderID:         district.ID,
		ReceiverID:       area.ID,
		Status:           model.StatusDistributed,
		TotalUnsold:      5,
		Hierarchy:        model.Hierarchy{DistrictDistributorID: &district.ID},
	})

	stats, err := svc.ComputeStats(context.Background(), district.ID, model.RoleDistrictDistributor)
	require.NoError(t, err)

	// Total spans all scoped records; sold/unsold only delivered ones.
	assert.Equal(t, 80, stats.TotalNewspapers)
	assert.Equal(t, 40, stats.TotalSold)
	assert.Equal(t, 10, stats.TotalUnsold)
	assert.InDelta(t, 87.5, stats.DistributionRate, 0.001)
}

func TestComputeStatsEmptyScope(t *testing.T) {
	db := setupServiceTestDB(t)
	_, _, _, vendor := buildChain(t, db)
	svc := NewStatisticsService(db)

	stats, err := svc.ComputeStats(context.Background(), vendor.ID, model.RoleVendor)
	require.NoError(t, err)
	assert.Equal(t, model.StatsResponse{}, stats)
}

func TestComputeStatsRejectsAdmin(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := NewStatisticsService(db)

	_, err := svc.ComputeStats(context.Background(), uuid.New(), model.RoleAdmin)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestTodayThroughput(t *testing.T) {
	db := setupServiceTestDB(t)
	manufacturer, district, _, _ := buildChain(t, db)
	svc := NewStatisticsService(db)

	now := time.Now().UTC()
	insertRecord(t, db, &model.DistributionRecord{
		NewspaperName:    "Morning Post",
		Quantity:         100,
		ReceivedQuantity: 90,
		SenderID:         manufacturer.ID,
		ReceiverID:       district.ID,
		Status:           model.StatusDistributed,
		Hierarchy:        model.Hierarchy{ManufacturerID: &manufacturer.ID},
		CreatedAt:        now,
	})
	insertRecord(t, db, &model.DistributionRecord{
		NewspaperName:    "Morning Post",
		Quantity:         500,
		ReceivedQuantity: 500,
		SenderID:         manufacturer.ID,
		ReceiverID:       district.ID,
		Status:           model.StatusDistributed,
		Hierarchy:        model.Hierarchy{ManufacturerID: &manufacturer.ID},
		CreatedAt:        now.AddDate(0, 0, -2),
	})

	received, produced, err := svc.TodayThroughput(context.Background(), manufacturer.ID, model.RoleManufacturer)
	require.NoError(t, err)
	assert.Equal(t, 90, received)
	assert.Equal(t, 100, produced)
}

func TestDailySeries(t *testing.T) {
	db := setupServiceTestDB(t)
	_, _, area, vendor := buildChain(t, db)
	svc := NewStatisticsService(db)

	base := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	days := []struct {
		at     time.Time
		qty    int
		unsold int
	}{
		{base, 100, 20},
		{base.Add(2 * time.Hour), 50, 0},
		{base.AddDate(0, 0, 2), 80, 10},
		{base.AddDate(0, 0, 5), 40, 40},
	}
	for _, d := range days {
		insertRecord(t, db, &model.DistributionRecord{
			NewspaperName:    "Morning Post",
			Quantity:         d.qty,
			ReceivedQuantity: d.qty,
			SenderID:         area.ID,
			ReceiverID:       vendor.ID,
			Status:           model.StatusDelivered,
			TotalUnsold:      d.unsold,
			Hierarchy:        model.Hierarchy{VendorID: &vendor.ID},
			CreatedAt:        d.at,
		})
	}

	series, err := svc.DailySeries(context.Background(), vendor.ID, model.RoleVendor,
		base.AddDate(0, 0, -1), base.AddDate(0, 0, 10))
	require.NoError(t, err)

	var points []model.DailyDataPoint
	for p := range series {
		points = append(points, p)
	}

	require.Len(t, points, 3)
	assert.Equal(t, "2026-08-10", points[0].Date)
	assert.Equal(t, 150, points[0].Received)
	assert.Equal(t, 130, points[0].Sold)
	assert.Equal(t, 20, points[0].Unsold)
	assert.Equal(t, "2026-08-12", points[1].Date)
	assert.Equal(t, "2026-08-15", points[2].Date)

	// The sequence restarts from the beginning on every range.
	var restarted []model.DailyDataPoint
	for p := range series {
		restarted = append(restarted, p)
		break
	}
	require.Len(t, restarted, 1)
	assert.Equal(t, points[0], restarted[0])
}

func TestUnsoldSummaryGroupsBySubordinate(t *testing.T) {
	db := setupServiceTestDB(t)
	_, _, area, vendor := buildChain(t, db)
	otherVendor := createActor(t, db, model.RoleVendor, area)
	svc := NewStatisticsService(db)

	for _, v := range []struct {
		vendor *model.User
		qty    int
		unsold int
	}{
		{vendor, 100, 20},
		{vendor, 60, 5},
		{otherVendor, 40, 40},
	} {
		insertRecord(t, db, &model.DistributionRecord{
			NewspaperName:    "Morning Post",
			Quantity:         v.qty,
			ReceivedQuantity: v.qty,
			SenderID:         area.ID,
			ReceiverID:       v.vendor.ID,
			Status:           model.StatusDelivered,
			TotalUnsold:      v.unsold,
			Hierarchy:        model.Hierarchy{AreaDistributorID: &area.ID, VendorID: &v.vendor.ID},
		})
	}

	rows, err := svc.UnsoldSummary(context.Background(), area.ID, model.RoleAreaDistributor)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byActor := make(map[string]model.UnsoldSummaryRow, len(rows))
	for _, r := range rows {
		byActor[r.ActorID] = r
	}

	first := byActor[vendor.ID.String()]
	assert.Equal(t, 160, first.TotalQuantity)
	assert.Equal(t, 25, first.TotalUnsold)
	assert.Equal(t, 135, first.TotalSold)
	assert.Equal(t, vendor.Name, first.ActorName)

	second := byActor[otherVendor.ID.String()]
	assert.Equal(t, 40, second.TotalQuantity)
	assert.Equal(t, 40, second.TotalUnsold)
	assert.Equal(t, 0, second.TotalSold)
}

package service

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"time"

	"backend/internal/model"
	"backend/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StatisticsService is the aggregation engine. All figures are derived from
// the denormalized hierarchy snapshots on the ledger records; the superior
// chain is never re-walked on a read path.
//
// Two deliberately unreconciled views coexist: the lifetime sell-through
// view sums quantity/total_unsold, while the today view sums
// received_quantity. They answer different questions (lifetime sell-through
// vs daily throughput) and must stay separate.
type StatisticsService interface {
	ComputeStats(ctx context.Context, actorID uuid.UUID, role string) (model.StatsResponse, error)
	TodayThroughput(ctx context.Context, actorID uuid.UUID, role string) (received int, produced int, err error)
	DailySeries(ctx context.Context, actorID uuid.UUID, role string, start, end time.Time) (iter.Seq[model.DailyDataPoint], error)
	UnsoldSummary(ctx context.Context, actorID uuid.UUID, role string) ([]model.UnsoldSummaryRow, error)
}

type statisticsService struct {
	db *gorm.DB
}

func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

type quantitySums struct {
	TotalQuantity int `gorm:"column:total_quantity"`
	TotalUnsold   int `gorm:"column:total_unsold"`
	Count         int `gorm:"column:cnt"`
}

func (s *statisticsService) scoped(ctx context.Context, role string, actorID uuid.UUID) (*gorm.DB, error) {
	column := model.HierarchyColumn(role)
	if column == "" {
		return nil, apperr.InvalidInput("role %q has no statistics scope", role)
	}
	return s.db.WithContext(ctx).
		Model(&model.DistributionRecord{}).
		Where(column+" = ?", actorID), nil
}

// ComputeStats produces the lifetime view for one actor's subtree.
//
// Distributor tiers count sold/unsold only over delivered records (those
// figures flow up from vendors), while manufacturer and vendor tiers count
// over every scoped record. The divergence is inherited behavior; the
// distribution rate divides by the all-record quantity total in both cases.
func (s *statisticsService) ComputeStats(ctx context.Context, actorID uuid.UUID, role string) (model.StatsResponse, error) {
	var stats model.StatsResponse

	scope, err := s.scoped(ctx, role, actorID)
	if err != nil {
		return stats, err
	}

	var all quantitySums
	err = scope.Session(&gorm.Session{}).
		Select("COALESCE(SUM(quantity), 0) AS total_quantity, COALESCE(SUM(total_unsold), 0) AS total_unsold, COUNT(*) AS cnt").
		Scan(&all).Error
	if err != nil {
		return stats, fmt.Errorf("aggregate scoped records: %w", err)
	}
	stats.TotalNewspapers = all.TotalQuantity

	switch role {
	case model.RoleManufacturer, model.RoleVendor:
		stats.TotalUnsold = all.TotalUnsold
		stats.TotalSold = all.TotalQuantity - all.TotalUnsold

	case model.RoleDistrictDistributor, model.RoleAreaDistributor:
		var delivered quantitySums
		err = scope.Session(&gorm.Session{}).
			Where("status = ?", model.StatusDelivered).
			Select("COALESCE(SUM(quantity), 0) AS total_quantity, COALESCE(SUM(total_unsold), 0) AS total_unsold, COUNT(*) AS cnt").
			Scan(&delivered).Error
		if err != nil {
			return stats, fmt.Errorf("aggregate delivered records: %w", err)
		}
		stats.TotalUnsold = delivered.TotalUnsold
		stats.TotalSold = delivered.TotalQuantity - delivered.TotalUnsold
	}

	if all.TotalQuantity > 0 {
		stats.DistributionRate = float64(all.TotalQuantity-stats.TotalUnsold) / float64(all.TotalQuantity) * 100
	}

	received, produced, err := s.TodayThroughput(ctx, actorID, role)
	if err != nil {
		return stats, err
	}
	stats.NewspapersReceived = received
	if role == model.RoleManufacturer {
		stats.NewspapersProduced = produced
	}

	return stats, nil
}

// TodayThroughput sums today's records (UTC midnight cutoff) using
// received_quantity; the manufacturer figure counts produced quantity
// instead.
func (s *statisticsService) TodayThroughput(ctx context.Context, actorID uuid.UUID, role string) (int, int, error) {
	scope, err := s.scoped(ctx, role, actorID)
	if err != nil {
		return 0, 0, err
	}

	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var today struct {
		Received int `gorm:"column:received"`
		Produced int `gorm:"column:produced"`
	}
	err = scope.
		Where("created_at >= ?", midnight).
		Select("COALESCE(SUM(received_quantity), 0) AS received, COALESCE(SUM(quantity), 0) AS produced").
		Scan(&today).Error
	if err != nil {
		return 0, 0, fmt.Errorf("aggregate today's records: %w", err)
	}

	return today.Received, today.Produced, nil
}

// DailySeries buckets scoped records by creation day (calendar day, UTC) and
// returns a restartable ascending sequence. Days with no records are
// omitted, not zero-filled.
func (s *statisticsService) DailySeries(ctx context.Context, actorID uuid.UUID, role string, start, end time.Time) (iter.Seq[model.DailyDataPoint], error) {
	scope, err := s.scoped(ctx, role, actorID)
	if err != nil {
		return nil, err
	}

	var recs []model.DistributionRecord
	err = scope.
		Where("created_at >= ? AND created_at <= ?", start, end).
		Order("created_at asc").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load records for series: %w", err)
	}

	buckets := make(map[string]*model.DailyDataPoint)
	for _, rec := range recs {
		date := rec.CreatedAt.UTC().Format("2006-01-02")
		point, ok := buckets[date]
		if !ok {
			point = &model.DailyDataPoint{Date: date}
			buckets[date] = point
		}
		point.Received += rec.Quantity
		point.Sold += rec.Quantity - rec.TotalUnsold
		point.Unsold += rec.TotalUnsold
	}

	dates := make([]string, 0, len(buckets))
	for date := range buckets {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	return func(yield func(model.DailyDataPoint) bool) {
		for _, date := range dates {
			if !yield(*buckets[date]) {
				return
			}
		}
	}, nil
}

// UnsoldSummary groups the caller's scoped records by the subordinate tier's
// hierarchy key (vendors group by their own key) with per-group totals.
func (s *statisticsService) UnsoldSummary(ctx context.Context, actorID uuid.UUID, role string) ([]model.UnsoldSummaryRow, error) {
	column := model.HierarchyColumn(role)
	if column == "" {
		return nil, apperr.InvalidInput("role %q has no unsold summary", role)
	}

	groupColumn := column
	if next, ok := model.NextRole[role]; ok {
		groupColumn = model.HierarchyColumn(next)
	}

	type row struct {
		ActorID       string `gorm:"column:actor_id"`
		TotalQuantity int    `gorm:"column:total_quantity"`
		TotalUnsold   int    `gorm:"column:total_unsold"`
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&model.DistributionRecord{}).
		Where(column+" = ?", actorID).
		Where(groupColumn + " IS NOT NULL").
		Select(groupColumn + " AS actor_id, COALESCE(SUM(quantity), 0) AS total_quantity, COALESCE(SUM(total_unsold), 0) AS total_unsold").
		Group(groupColumn).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate unsold summary: %w", err)
	}

	summary := make([]model.UnsoldSummaryRow, 0, len(rows))
	for _, r := range rows {
		entry := model.UnsoldSummaryRow{
			ActorID:       r.ActorID,
			TotalQuantity: r.TotalQuantity,
			TotalUnsold:   r.TotalUnsold,
			TotalSold:     r.TotalQuantity - r.TotalUnsold,
		}
		var actor model.User
		if err := s.db.WithContext(ctx).Select("name").First(&actor, "id = ?", r.ActorID).Error; err == nil {
			entry.ActorName = actor.Name
		}
		summary = append(summary, entry)
	}

	return summary, nil
}

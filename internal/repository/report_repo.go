package repository

import (
	"context"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportRepository defines data access for vendor daily reports.
type ReportRepository interface {
	Upsert(ctx context.Context, report *model.DailyReport) error
	ListByUser(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]model.DailyReport, error)
}

type reportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

// Upsert inserts the day's report or replaces the figures of an existing one
// for the same (user, date).
func (r *reportRepository) Upsert(ctx context.Context, report *model.DailyReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"newspapers_received", "newspapers_sold", "newspapers_unsold", "revenue_generated", "updated_at",
		}),
	}).Create(report).Error
}

func (r *reportRepository) ListByUser(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]model.DailyReport, error) {
	var reports []model.DailyReport
	err := GetDB(ctx, r.db).
		Where("user_id = ? AND date >= ? AND date <= ?", userID, start, end).
		Order("date desc").
		Find(&reports).Error
	if err != nil {
		return nil, err
	}
	return reports, nil
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs
type SubmitReportRequest struct {
	Date               string          `json:"date" binding:"required"` // YYYY-MM-DD
	NewspapersReceived int             `json:"newspapers_received" binding:"min=0"`
	NewspapersSold     int             `json:"newspapers_sold" binding:"min=0"`
	NewspapersUnsold   int             `json:"newspapers_unsold" binding:"min=0"`
	RevenueGenerated   decimal.Decimal `json:"revenue_generated"`
}

type ReportResponse struct {
	ID                 string          `json:"id"`
	Date               string          `json:"date"`
	NewspapersReceived int             `json:"newspapers_received"`
	NewspapersSold     int             `json:"newspapers_sold"`
	NewspapersUnsold   int             `json:"newspapers_unsold"`
	RevenueGenerated   decimal.Decimal `json:"revenue_generated"`
	ProfitLoss         decimal.Decimal `json:"profit_loss"`
}

// ReportService handles vendor end-of-day sales reports. One report per
// vendor per day; resubmitting a day replaces its figures.
type ReportService interface {
	SubmitReport(ctx context.Context, userID uuid.UUID, req SubmitReportRequest) (*ReportResponse, error)
	ListReports(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]ReportResponse, error)
}

type reportService struct {
	repo      repository.ReportRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
}

func NewReportService(repo repository.ReportRepository, auditRepo repository.AuditRepository, txManager repository.TransactionManager) ReportService {
	return &reportService{repo: repo, auditRepo: auditRepo, txManager: txManager}
}

func (s *reportService) SubmitReport(ctx context.Context, userID uuid.UUID, req SubmitReportRequest) (*ReportResponse, error) {
	date, err := time.ParseInLocation("2006-01-02", req.Date, time.UTC)
	if err != nil {
		return nil, apperr.InvalidInput("invalid date %q, expected YYYY-MM-DD", req.Date)
	}
	if req.NewspapersSold+req.NewspapersUnsold > req.NewspapersReceived {
		return nil, apperr.InvalidInput("sold plus unsold cannot exceed received")
	}
	if req.RevenueGenerated.IsNegative() {
		return nil, apperr.InvalidInput("revenue cannot be negative")
	}

	report := &model.DailyReport{
		UserID:             userID,
		Date:               date,
		NewspapersReceived: req.NewspapersReceived,
		NewspapersSold:     req.NewspapersSold,
		NewspapersUnsold:   req.NewspapersUnsold,
		RevenueGenerated:   req.RevenueGenerated,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Upsert(txCtx, report); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		details, _ := json.Marshal(req)
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:   &userID,
			Action:   model.ActionSubmitReport,
			EntityID: report.ID.String(),
			Details:  string(details),
		})
	})
	if err != nil {
		return nil, err
	}

	return mapReport(report), nil
}

func (s *reportService) ListReports(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]ReportResponse, error) {
	reports, err := s.repo.ListByUser(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	res := make([]ReportResponse, 0, len(reports))
	for i := range reports {
		res = append(res, *mapReport(&reports[i]))
	}
	return res, nil
}

func mapReport(r *model.DailyReport) *ReportResponse {
	return &ReportResponse{
		ID:                 r.ID.String(),
		Date:               r.Date.Format("2006-01-02"),
		NewspapersReceived: r.NewspapersReceived,
		NewspapersSold:     r.NewspapersSold,
		NewspapersUnsold:   r.NewspapersUnsold,
		RevenueGenerated:   r.RevenueGenerated,
		ProfitLoss:         r.ProfitLoss(),
	}
}

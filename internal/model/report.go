package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnitCost is the assumed cost price per newspaper copy, used when deriving
// profit/loss from a daily report.
var UnitCost = decimal.NewFromInt(5)

// DailyReport is a vendor-submitted end-of-day sales report. One report per
// user per calendar day; resubmitting replaces the day's figures.
type DailyReport struct {
	ID                 uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID             uuid.UUID       `gorm:"type:uuid;not null;index:idx_report_user_date,unique" json:"user_id"`
	User               *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Date               time.Time       `gorm:"type:date;not null;index:idx_report_user_date,unique" json:"date"`
	NewspapersReceived int             `gorm:"type:int;not null" json:"newspapers_received"`
	NewspapersSold     int             `gorm:"type:int;not null" json:"newspapers_sold"`
	NewspapersUnsold   int             `gorm:"type:int;not null" json:"newspapers_unsold"`
	RevenueGenerated   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"revenue_generated"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProfitLoss returns revenue minus the cost of the copies received.
func (r DailyReport) ProfitLoss() decimal.Decimal {
	cost := UnitCost.Mul(decimal.NewFromInt(int64(r.NewspapersReceived)))
	return r.RevenueGenerated.Sub(cost)
}

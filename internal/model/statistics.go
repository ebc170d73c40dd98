package model

import (
	"time"
)

// StatsResponse is the lifetime sell-through view for one actor's subtree.
// Sold/unsold figures count only delivered records for distributor roles;
// manufacturer and vendor views count all scoped records.
type StatsResponse struct {
	NewspapersReceived int     `json:"newspapers_received"` // Today's throughput (received_quantity based)
	NewspapersProduced int     `json:"newspapers_produced,omitempty"`
	TotalNewspapers    int     `json:"total_newspapers"`
	TotalSold          int     `json:"total_sold"`
	TotalUnsold        int     `json:"total_unsold"`
	DistributionRate   float64 `json:"distribution_rate"` // Percent of shipped quantity accounted for as sold
}

// DailyDataPoint is one calendar-day bucket of the analytics series.
// Received counts shipped quantity, not received_quantity; the two views are
// intentionally not reconciled.
type DailyDataPoint struct {
	Date     string `json:"date"` // YYYY-MM-DD, UTC
	Received int    `json:"received"`
	Sold     int    `json:"sold"`
	Unsold   int    `json:"unsold"`
}

// UnsoldSummaryRow aggregates quantities per subordinate-tier actor.
type UnsoldSummaryRow struct {
	ActorID       string `json:"actor_id"`
	ActorName     string `json:"actor_name"`
	TotalQuantity int    `json:"total_quantity"`
	TotalUnsold   int    `json:"total_unsold"`
	TotalSold     int    `json:"total_sold"`
}

// StatsRange bounds a statistics query.
type StatsRange struct {
	Start time.Time
	End   time.Time
}

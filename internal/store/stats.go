package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
)

// OrderStats aggregates orders for the admin dashboard.
type OrderStats struct {
	TotalOrders    int64            `json:"total_orders"`
	OrdersByStatus map[string]int64 `json:"orders_by_status"`
	TotalRevenue   float64          `json:"total_revenue"`
	RevenueSince   float64          `json:"revenue_since"`
}

// CustomerSummary is one shopper email with its order history totals.
// TotalSpent counts the same paid, non-cancelled orders as revenue.
type CustomerSummary struct {
	Email      string    `json:"email"`
	OrderCount int64     `json:"order_count"`
	TotalSpent float64   `json:"total_spent"`
	LastOrder  time.Time `json:"last_order_at"`
}

// Stats counts orders by status and sums paid revenue, overall and for
// orders created at or after since. Cancelled orders are not revenue.
func (s *OrderStore) Stats(ctx context.Context, since time.Time) (*OrderStats, error) {
	db := s.db.WithContext(ctx)
	stats := &OrderStats{OrdersByStatus: map[string]int64{}}

	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	if err := db.Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	for _, sc := range counts {
		stats.OrdersByStatus[sc.Status] = sc.Count
		stats.TotalOrders += sc.Count
	}

	revenue := func() *gorm.DB {
		return db.Model(&models.Order{}).
			Where("payment_status = ? AND status <> ?", models.PaymentPaid, models.StatusCancelled).
			Select("COALESCE(SUM(total), 0)")
	}
	if err := revenue().Scan(&stats.TotalRevenue).Error; err != nil {
		return nil, err
	}
	if err := revenue().Where("created_at >= ?", since).Scan(&stats.RevenueSince).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// Customers groups orders by email, biggest spenders first.
func (s *OrderStore) Customers(ctx context.Context, limit, offset int) ([]CustomerSummary, int64, error) {
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Order{}).Distinct("email").Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []struct {
		Email      string
		OrderCount int64
		TotalSpent float64
		LastOrder  string
	}
	query := db.Model(&models.Order{}).
		Select("email, count(*) as order_count, "+
			"COALESCE(SUM(CASE WHEN payment_status = ? AND status <> ? THEN total ELSE 0 END), 0) as total_spent, "+
			"MAX(created_at) as last_order", models.PaymentPaid, models.StatusCancelled).
		Group("email").
		Order("total_spent desc")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]CustomerSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, CustomerSummary{
			Email:      r.Email,
			OrderCount: r.OrderCount,
			TotalSpent: r.TotalSpent,
			LastOrder:  parseAggregateTime(r.LastOrder),
		})
	}
	return out, total, nil
}

var aggregateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

// parseAggregateTime reads MAX(timestamp) results, which some drivers
// hand back as text.
func parseAggregateTime(s string) time.Time {
	for _, layout := range aggregateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

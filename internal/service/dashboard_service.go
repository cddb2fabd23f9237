package service

import (
	"context"
	"time"

	"go-pos-admin/internal/repository"
	"go-pos-admin/pkg/apperror"
)

const maxSalesSeriesDays = 366

type DashboardService interface {
	GetDashboardStats(ctx context.Context) (*repository.DashboardStats, error)
	GetDailySales(ctx context.Context, days int) ([]DailySales, error)
}

// DailySales is one point of the sales chart.
type DailySales struct {
	Date         string `json:"date"`
	RevenueCents int64  `json:"revenue_cents"`
	ItemsSold    int64  `json:"items_sold"`
	Transactions int64  `json:"transactions"`
}

type dashboardService struct {
	txRepo            repository.TransactionRepository
	lowStockThreshold int
	timeout           time.Duration
	now               func() time.Time
}

func NewDashboardService(txRepo repository.TransactionRepository, lowStockThreshold int, timeout time.Duration) DashboardService {
	return &dashboardService{
		txRepo:            txRepo,
		lowStockThreshold: lowStockThreshold,
		timeout:           timeout,
		now:               time.Now,
	}
}

func (s *dashboardService) GetDashboardStats(ctx context.Context) (*repository.DashboardStats, error) {
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()
	stats, err := s.txRepo.GetDashboardStats(ctx, s.lowStockThreshold)
	if err != nil {
		return nil, apperror.FromStore(err, "failed to load dashboard stats")
	}
	return stats, nil
}

// GetDailySales buckets sales by local calendar day, oldest first, with a
// zero entry for days without sales. Today is the last bucket.
func (s *dashboardService) GetDailySales(ctx context.Context, days int) ([]DailySales, error) {
	if days <= 0 {
		days = 7
	}
	if days > maxSalesSeriesDays {
		days = maxSalesSeriesDays
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := today.AddDate(0, 0, -(days - 1))

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()
	rows, err := s.txRepo.SalesSince(ctx, start)
	if err != nil {
		return nil, apperror.FromStore(err, "failed to load sales")
	}

	series := make([]DailySales, days)
	index := make(map[string]int, days)
	for i := range series {
		d := start.AddDate(0, 0, i).Format("2006-01-02")
		series[i].Date = d
		index[d] = i
	}
	for _, r := range rows {
		i, ok := index[r.CreatedAt.In(now.Location()).Format("2006-01-02")]
		if !ok {
			continue
		}
		series[i].RevenueCents += r.TotalCents
		series[i].ItemsSold += r.ItemsSold
		series[i].Transactions++
	}
	return series, nil
}

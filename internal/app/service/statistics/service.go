package statistics

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/carelink/clinicpay/pkg/types"
)

type StatisticType string

const (
	// Daily counts and revenue
	StatisticTypeDailyPaymentCount StatisticType = "daily_payment_count"
	StatisticTypeDailyRevenue      StatisticType = "daily_revenue"
	StatisticTypeTotalRevenue      StatisticType = "total_revenue"
	// Reconciliation health
	StatisticTypeDailyFailedCount StatisticType = "daily_failed_count"
)

type PaymentStatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type PaymentStatisticRequest struct {
	Filters   []*types.CommonFilter       `json:"filters"`
	DataItems []*PaymentStatisticDataItem `json:"data_items"`
}

// Build composes a WHERE clause from the provided filters.
func (f *PaymentStatisticRequest) Build(builder clause.Builder) {
	if f == nil || len(f.Filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	for i, filter := range f.Filters {
		if i > 0 {
			builder.WriteString(" AND ")
		}
		filter.Build(builder)
	}
}

type PaymentStatisticResponseDataItem struct {
	Date  string `json:"date"`
	Label string `json:"label,omitempty"`
	Value int64  `json:"value"`
}

type PaymentStatisticResponse struct {
	DataItems map[StatisticType][]PaymentStatisticResponseDataItem `json:"data_items"`
}

// Service provides read-only reporting over payments and the ledger.
type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service { return &Service{db: db} }

func (s *Service) getDailyPaymentCount(ctx context.Context, request *PaymentStatisticRequest) ([]PaymentStatisticResponseDataItem, error) {
	var results []PaymentStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table("payment").
		Select("TO_CHAR(created_at, 'YYYY-MM-DD') as date, status AS label, count(*) as value").
		Where("provider != ?", types.PaymentProviderInner).
		Where(clause.Where{Exprs: []clause.Expression{request}}).
		Group("TO_CHAR(created_at, 'YYYY-MM-DD')").
		Group("status").
		Order("date")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyFailedCount(ctx context.Context, request *PaymentStatisticRequest) ([]PaymentStatisticResponseDataItem, error) {
	var results []PaymentStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table("payment").
		Select("TO_CHAR(updated_at, 'YYYY-MM-DD') as date, count(*) as value").
		Where("status = ?", types.PaymentStatusFailed).
		Where(clause.Where{Exprs: []clause.Expression{request}}).
		Group("TO_CHAR(updated_at, 'YYYY-MM-DD')").
		Order("date")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyRevenue(ctx context.Context, request *PaymentStatisticRequest) ([]PaymentStatisticResponseDataItem, error) {
	var results []PaymentStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table("payment_ledger_entry l").
		Select("TO_CHAR(l.created_at, 'YYYY-MM-DD') as date, p.currency AS label, sum(l.amount) as value").
		Joins("JOIN payment p ON p.id = l.payment_id").
		Where("l.transaction_type = ?", types.LedgerTransactionTypePaymentCompleted).
		Where(clause.Where{Exprs: []clause.Expression{request}}).
		Group("TO_CHAR(l.created_at, 'YYYY-MM-DD')").
		Group("p.currency").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getTotalRevenue(ctx context.Context, _ *PaymentStatisticRequest) ([]PaymentStatisticResponseDataItem, error) {
	var results []PaymentStatisticResponseDataItem
	err := s.db.WithContext(ctx).Raw(`
WITH daily AS (
    SELECT TO_CHAR(l.created_at, 'YYYY-MM-DD') as date, p.currency as label, SUM(l.amount) as value
    FROM payment_ledger_entry l
    JOIN payment p ON p.id = l.payment_id
    WHERE l.transaction_type = ?
    GROUP BY TO_CHAR(l.created_at, 'YYYY-MM-DD'), p.currency
)
SELECT d.date as date, d.label as label, SUM(s.value) as value
FROM daily d
LEFT JOIN daily s ON s.date <= d.date AND s.label = d.label
GROUP BY d.date, d.label
ORDER BY d.date DESC, d.label ASC
`, types.LedgerTransactionTypePaymentCompleted).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getPaymentStatistic(ctx context.Context, request *PaymentStatisticRequest, dataItem *PaymentStatisticDataItem) ([]PaymentStatisticResponseDataItem, error) {
	switch dataItem.ID {
	case StatisticTypeDailyPaymentCount:
		return s.getDailyPaymentCount(ctx, request)
	case StatisticTypeDailyFailedCount:
		return s.getDailyFailedCount(ctx, request)
	case StatisticTypeDailyRevenue:
		return s.getDailyRevenue(ctx, request)
	case StatisticTypeTotalRevenue:
		return s.getTotalRevenue(ctx, request)
	default:
		return nil, fmt.Errorf("invalid data item id: %s", dataItem.ID)
	}
}

func (s *Service) GetPaymentStatistic(ctx context.Context, request *PaymentStatisticRequest) (*PaymentStatisticResponse, error) {
	var wg sync.WaitGroup
	errChan := make(chan error, len(request.DataItems))
	resChan := make(chan *lo.Entry[StatisticType, []PaymentStatisticResponseDataItem], len(request.DataItems))

	for _, item := range request.DataItems {
		wg.Add(1)
		go func(di *PaymentStatisticDataItem) {
			defer wg.Done()
			res, err := s.getPaymentStatistic(ctx, request, di)
			if err != nil {
				errChan <- err
				return
			}
			resChan <- &lo.Entry[StatisticType, []PaymentStatisticResponseDataItem]{Key: di.ID, Value: res}
		}(item)
	}

	go func() { wg.Wait(); close(errChan); close(resChan) }()

	results := make(map[StatisticType][]PaymentStatisticResponseDataItem)
	for i := 0; i < len(request.DataItems); i++ {
		select {
		case err := <-errChan:
			if err != nil {
				return nil, err
			}
		case entry := <-resChan:
			results[entry.Key] = entry.Value
		}
	}
	return &PaymentStatisticResponse{DataItems: results}, nil
}

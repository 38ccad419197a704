package reconciliation

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/carelink/clinicpay/internal/models"
	"github.com/carelink/clinicpay/pkg/types"
)

// PaymentStore is the persistence collaborator for the reconciliation hot
// path. UpdateStatusAndMetadata must be conditional on the version the
// payment was loaded with, so the dedupe-check-then-persist sequence behaves
// as one atomic unit.
type PaymentStore interface {
	GetByProviderRef(ctx context.Context, provider types.PaymentProvider, ref string) (*models.Payment, error)
	UpdateStatusAndMetadata(ctx context.Context, payment *models.Payment, status types.PaymentStatus, metadata datatypes.JSONMap) error
	Scan(ctx context.Context, req *ScanPaymentsRequest) ([]*models.Payment, int64, error)
}

type ScanPaymentsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type GormPaymentStore struct {
	db *gorm.DB
}

func NewGormPaymentStore(db *gorm.DB) PaymentStore {
	return &GormPaymentStore{db: db}
}

func (s *GormPaymentStore) GetByProviderRef(ctx context.Context, provider types.PaymentProvider, ref string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_transaction_id = ?", provider, ref).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientPersistence, err)
	}
	return &p, nil
}

// UpdateStatusAndMetadata writes (status, metadata) together, guarded by the
// version the row was read at. Zero rows affected means a concurrent writer
// won and the caller must re-check the processed set.
func (s *GormPaymentStore) UpdateStatusAndMetadata(ctx context.Context, payment *models.Payment, status types.PaymentStatus, metadata datatypes.JSONMap) error {
	res := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND version = ?", payment.ID, payment.Version).
		Updates(map[string]any{
			"status":   status,
			"metadata": metadata,
			"version":  payment.Version + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrTransientPersistence, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	payment.Status = status
	payment.Metadata = metadata
	payment.Version++
	return nil
}

// filtersAnd combines multiple CommonFilter into a single clause.Expression.
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

// Scan implements paginated admin listing with filters.
func (s *GormPaymentStore) Scan(ctx context.Context, req *ScanPaymentsRequest) ([]*models.Payment, int64, error) {
	if req == nil {
		return nil, 0, fmt.Errorf("nil request")
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.Payment{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	var rows []*models.Payment
	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	if req.SortBy != "" {
		q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"}}})
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	return rows, total, nil
}

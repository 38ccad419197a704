package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/carelink/clinicpay/internal/models"
	"github.com/carelink/clinicpay/pkg/tool"
	"github.com/carelink/clinicpay/pkg/types"
)

// Service writes the append-only financial audit trail. Entries are never
// updated or deleted; reporting reads them directly.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// AppendForStatus records one entry for a committed status transition. The
// running balance is read and extended inside one transaction so concurrent
// appends for different payments can't interleave a payment's balance chain.
func (s *Service) AppendForStatus(ctx context.Context, payment *models.Payment, status types.PaymentStatus) (*models.PaymentLedgerEntry, error) {
	txType, delta := transitionEntry(payment, status)

	var entry *models.PaymentLedgerEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last models.PaymentLedgerEntry
		balance := int64(0)
		err := tx.Where("payment_id = ?", payment.ID).
			Order("created_at DESC, id DESC").
			First(&last).Error
		if err == nil {
			balance = last.BalanceAfter
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		entry = &models.PaymentLedgerEntry{
			ID:              tool.GenerateUUIDV7(),
			PaymentID:       payment.ID,
			TransactionType: txType,
			Amount:          delta,
			BalanceAfter:    balance + delta,
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append ledger entry for payment %s: %w", payment.ID, err)
	}
	return entry, nil
}

// ListByPayment returns a payment's entries oldest first.
func (s *Service) ListByPayment(ctx context.Context, paymentID string) ([]*models.PaymentLedgerEntry, error) {
	var rows []*models.PaymentLedgerEntry
	if err := s.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return rows, nil
}

// transitionEntry maps a status transition to its ledger row. Only a
// completion moves money; failed and pending transitions record a zero-delta
// audit mark.
func transitionEntry(payment *models.Payment, status types.PaymentStatus) (types.LedgerTransactionType, int64) {
	switch status {
	case types.PaymentStatusCompleted:
		return types.LedgerTransactionTypePaymentCompleted, payment.Amount
	case types.PaymentStatusFailed:
		return types.LedgerTransactionTypePaymentFailed, 0
	default:
		return types.LedgerTransactionTypePaymentPending, 0
	}
}

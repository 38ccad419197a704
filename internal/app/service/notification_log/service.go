package notification_log

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/carelink/clinicpay/internal/models"
	"github.com/carelink/clinicpay/pkg/logctx"
	"github.com/carelink/clinicpay/pkg/tool"
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Save asynchronously persists a webhook notification log. Nil input is
// ignored; the audit trail is off the reconciliation critical path.
func (s *Service) Save(ctx context.Context, log *models.WebhookNotificationLog) {
	go func() {
		if log == nil {
			return
		}
		if log.ID == "" {
			log.ID = tool.GenerateUUIDV7()
		}
		if err := s.db.Save(log).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save notification log: %v", err)
		}
	}()
}

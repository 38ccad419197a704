package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/carelink/clinicpay/internal/app/api/server"
	"github.com/carelink/clinicpay/internal/app/service/booking"
	"github.com/carelink/clinicpay/internal/app/service/ledger"
	notificationlog "github.com/carelink/clinicpay/internal/app/service/notification_log"
	"github.com/carelink/clinicpay/internal/app/service/reconciliation"
	"github.com/carelink/clinicpay/internal/app/service/statistics"
	"github.com/carelink/clinicpay/internal/platform/db"
	"github.com/carelink/clinicpay/pkg/config"
	"github.com/carelink/clinicpay/pkg/logger"
	"github.com/carelink/clinicpay/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	server.Module,
	booking.Module,
	ledger.Module,
	statistics.Module,
	notificationlog.Module,
	reconciliation.Module,
	fx.Provide(metrics.NewWebhookMetrics),
)

package reconciliation

import (
	"go.uber.org/fx"

	"github.com/carelink/clinicpay/internal/app/service/booking"
	"github.com/carelink/clinicpay/internal/app/service/ledger"
	"github.com/carelink/clinicpay/internal/platform/signature"
	"github.com/carelink/clinicpay/pkg/config"
)

// Module exposes the reconciliation service via Fx. The verifier is built
// here so a missing signing secret fails app startup instead of silently
// accepting traffic.
var Module = fx.Options(
	fx.Provide(
		func(cfg *config.Config) (*signature.Verifier, error) {
			return signature.New(cfg.Webhook.SigningSecret)
		},
		NewGormPaymentStore,
		func(s *booking.Saga) AppointmentSaga { return s },
		func(s *ledger.Service) LedgerWriter { return s },
		NewService,
	),
)

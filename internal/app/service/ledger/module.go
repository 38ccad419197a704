package ledger

import "go.uber.org/fx"

// Module exposes the ledger writer via Fx.
var Module = fx.Options(
	fx.Provide(New),
)

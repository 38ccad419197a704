package booking

import "go.uber.org/fx"

// Module exposes the appointment saga via Fx.
var Module = fx.Options(
	fx.Provide(NewGormStore),
	fx.Provide(New),
)

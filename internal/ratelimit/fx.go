package ratelimit

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewPaymentWriteLimiter),
	fx.Provide(newLimiter),
)

func newLimiter(lc fx.Lifecycle, limiter *PaymentWriteLimiter) Allower {
	if !limiter.Enabled() {
		return nil
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return limiter.Close()
		},
	})
	return limiter
}

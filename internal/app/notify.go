package app

import (
	"context"

	"parcel-dispatch/internal/config"
	"parcel-dispatch/internal/logx"
	"parcel-dispatch/internal/metrics"
	"parcel-dispatch/internal/notify"
)

// newNotifier builds push first, email second. Missing channels are skipped;
// with neither configured notifications are dropped.
func newNotifier(ctx context.Context, cfg *config.Config, set *metrics.Set, logger logx.Logger) (notify.Sender, error) {
	logger = logger.With(logx.String("component", "notify"))
	retry := notify.RetryConfig{
		MaxAttempts: cfg.Notify.MaxAttempts,
		BaseDelay:   cfg.Notify.BaseDelay,
		MaxDelay:    cfg.Notify.MaxDelay,
	}

	var primary, secondary notify.Sender
	if push := notify.NewHTTPPush(cfg.Notify.PushEndpoint, cfg.Notify.Timeout); push != nil {
		primary = notify.NewRetryingSender(push, logger, set.GatewayRetries, retry)
	}
	if cfg.Notify.SESRegion != "" && cfg.Notify.SESFrom != "" {
		ses, err := notify.NewSESSender(ctx, cfg.Notify.SESRegion, cfg.Notify.SESFrom)
		if err != nil {
			return nil, err
		}
		secondary = notify.NewRetryingSender(ses, logger, set.GatewayRetries, retry)
	}

	switch {
	case primary != nil:
		return notify.NewFallback(primary, secondary, logger), nil
	case secondary != nil:
		return secondary, nil
	default:
		logger.Warn("no notification channel configured, notifications are dropped")
		return notify.Nop{}, nil
	}
}

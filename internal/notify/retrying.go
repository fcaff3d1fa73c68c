package notify

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"parcel-dispatch/internal/logx"
)

type counter interface {
	Inc()
}

// RetryConfig configures RetryingSender.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryingSender retries transient failures of next with exponential backoff.
type RetryingSender struct {
	next    Sender
	logger  logx.Logger
	retries counter
	cfg     RetryConfig
}

// NewRetryingSender returns nil when next is nil.
func NewRetryingSender(next Sender, logger logx.Logger, retries counter, cfg RetryConfig) *RetryingSender {
	if next == nil {
		return nil
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &RetryingSender{next: next, logger: logger, retries: retries, cfg: cfg}
}

// Send implements Sender.
func (s *RetryingSender) Send(ctx context.Context, n Notification) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		err := s.next.Send(ctx, n)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == s.cfg.MaxAttempts || !isRetryable(err) {
			break
		}

		delay := backoff(s.cfg.BaseDelay, s.cfg.MaxDelay, attempt)
		if s.retries != nil {
			s.retries.Inc()
		}
		s.logger.Warn("notification retry",
			logx.String("recipient", n.Recipient),
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Any("err", err),
		)
		if !sleepWithContext(ctx, delay) {
			break
		}
	}
	return lastErr
}

// isRetryable accepts throttling, provider 5xx and network timeouts.
func isRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > max {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

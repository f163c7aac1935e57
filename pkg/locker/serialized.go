package locker

import (
	"context"

	"infraops/pkg/logx"
)

// Invoker is the underlying tool channel being serialized, normally the MCP
// process client.
type Invoker interface {
	CallTool(ctx context.Context, tool string, args map[string]any) (string, error)
}

// RetryObserver is notified on each retry attempt, for metrics.
type RetryObserver func(domain Domain)

// Serialized wraps an Invoker with per-domain FIFO locking and retry.
// It is the only path through which infrastructure tools may reach the
// engine subprocess.
type Serialized struct {
	invoker Invoker
	locker  *DomainLocker
	policy  RetryPolicy
	onRetry RetryObserver
	logger  *logx.Logger
}

// NewSerialized builds the lock/retry wrapper around invoker.
func NewSerialized(invoker Invoker, policy RetryPolicy) *Serialized {
	return &Serialized{
		invoker: invoker,
		locker:  NewDomainLocker(),
		policy:  policy,
		logger:  logx.NewLogger("locker"),
	}
}

// SetRetryObserver installs a callback fired before each retry attempt.
func (s *Serialized) SetRetryObserver(fn RetryObserver) {
	s.onRetry = fn
}

// Invoke runs the named engine tool under the domain lock, retrying failures
// per the policy. The final error, if any, is the last underlying error.
func (s *Serialized) Invoke(ctx context.Context, domain Domain, tool string, args map[string]any) (string, error) {
	var result string
	err := s.locker.WithLock(ctx, domain, func() error {
		attempt := 0
		return s.policy.Do(ctx, func() error {
			attempt++
			if attempt > 1 {
				s.logger.Warn("retrying %s (domain=%s, attempt %d/%d)", tool, domain, attempt, s.policy.MaxAttempts)
				if s.onRetry != nil {
					s.onRetry(domain)
				}
			}
			out, callErr := s.invoker.CallTool(ctx, tool, args)
			if callErr != nil {
				return callErr
			}
			result = out
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

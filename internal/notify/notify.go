// Package notify delivers alert notifications. Delivery is best-effort and
// at-most-once: a transient failure is logged and the alert is considered
// attempted, never retried or requeued by the pipeline.
package notify

import "context"

// Notifier sends a short alert summary, optionally with a snapshot image.
// Implementations must not treat transient network failure as fatal; the
// returned bool reports whether delivery appeared to succeed.
type Notifier interface {
	Notify(ctx context.Context, text, imagePath string) (delivered bool)
}

// Nop is a notifier that silently discards every alert. Used when no
// transport is configured.
type Nop struct{}

// Notify discards the alert and reports it as delivered.
func (Nop) Notify(ctx context.Context, text, imagePath string) bool { return true }

// Package retry provides a bounded retry policy for transient media fetch
// failures.
//
// The default policy makes a single attempt: a failed download is logged and
// skipped. Raising retry.max_attempts enables exponential backoff with jitter
// between attempts. Only typed network, rate-limit and server errors are
// retried; 404s, filesystem errors and context cancellation are returned
// immediately.
//
//	p := retry.FromConfig(cfg.Retry, log)
//	body, err := retry.DoWithResult(ctx, p, func(ctx context.Context) ([]byte, error) {
//		return client.Fetch(ctx, url)
//	})
package retry

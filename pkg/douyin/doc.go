// Package douyin provides the HTTP client used to download favorited media.
//
// Requests carry a desktop browser User-Agent and the platform Referer; the
// CDN rejects bare requests. Every request has its own timeout (30s by
// default) and non-200 responses are returned as typed errors:
//
//	client := douyin.NewClient(cfg.Download, retry.FromConfig(cfg.Retry, log), log)
//	data, err := client.Fetch(ctx, url)
//	if errs.Is(err, errs.ErrorTypeNotFound) { ... }
package douyin

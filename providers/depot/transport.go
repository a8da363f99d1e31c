package depot

import (
	"log/slog"
	nethttp "net/http"
	"strconv"
	"time"
)

// retryTransport retries rate-limited requests after the server-advised
// delay.
type retryTransport struct {
	base    nethttp.RoundTripper
	retries int
	logger  *slog.Logger
}

func (t *retryTransport) log() *slog.Logger {
	if t.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return t.logger
}

// RoundTrip implements http.RoundTripper. Only bodyless requests are
// retried; anything else passes through untouched.
func (t *retryTransport) RoundTrip(req *nethttp.Request) (*nethttp.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || req.Body != nil {
		return resp, err
	}
	for attempt := 0; attempt < t.retries; attempt++ {
		if resp.StatusCode != nethttp.StatusTooManyRequests {
			break
		}
		delay, ok := retryAfter(resp.Header.Get("Retry-After"))
		if !ok {
			break
		}
		resp.Body.Close()
		t.log().Debug("rate limited", "url", req.URL.Redacted(), "delay", delay)
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(delay):
		}
		resp, err = t.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// retryAfter parses a Retry-After header as either a second count or an
// HTTP date.
func retryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if when, err := nethttp.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

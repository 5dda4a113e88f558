package resilience

import (
	"net/http"
)

// Transport is an http.RoundTripper that fails fast while its breaker is
// open. Transport errors and 5xx responses count as failures. Retries are
// left to the caller.
type Transport struct {
	Base    http.RoundTripper
	Breaker *Breaker
}

// RoundTrip implements http.RoundTripper.
func (t Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Breaker == nil {
		return base.RoundTrip(req)
	}
	ctx := req.Context()
	if err := t.Breaker.Allow(ctx); err != nil {
		return nil, err
	}
	resp, err := base.RoundTrip(req)
	t.Breaker.Report(ctx, err == nil && resp.StatusCode < http.StatusInternalServerError)
	return resp, err
}

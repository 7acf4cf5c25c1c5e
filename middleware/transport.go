package middleware

import (
	"errors"
	"io"
	"net/http"

	flybeth "github.com/ibraheemosule/flybeth-sub002"
)

// Transport is an [http.RoundTripper] that keeps outgoing requests
// authenticated: it attaches the current access token, refreshing it
// first when it is inside the expiry buffer, and retries exactly once
// after a 401.
type Transport struct {
	Coordinator *flybeth.Coordinator
	// Base performs the actual request. nil selects
	// [http.DefaultTransport].
	Base http.RoundTripper
}

// NewTransport wraps base with credential handling. base may be nil.
func NewTransport(c *flybeth.Coordinator, base http.RoundTripper) *Transport {
	return &Transport{Coordinator: c, Base: base}
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Coordinator == nil {
		return t.base().RoundTrip(req)
	}

	pair, err := t.Coordinator.RefreshIfNeeded(req.Context())
	if err != nil {
		if errors.Is(err, flybeth.ErrNoRefreshToken) {
			// Unauthenticated requests pass through untouched.
			return t.base().RoundTrip(req)
		}
		return nil, err
	}

	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", "Bearer "+pair.AccessToken)

	resp, err := t.base().RoundTrip(authed)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || !t.retryable(req) {
		return resp, nil
	}

	// The server disagreed with our expiry estimate. Refresh once and
	// replay; a second 401 surfaces to the caller.
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	pair, err = t.Coordinator.Refresh(req.Context())
	if err != nil {
		return nil, err
	}

	retry := req.Clone(req.Context())
	retry.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}

	return t.base().RoundTrip(retry)
}

// retryable reports whether the request body can be replayed.
func (t *Transport) retryable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

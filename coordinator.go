package flybeth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ibraheemosule/flybeth-sub002/backing"
	"github.com/ibraheemosule/flybeth-sub002/credential"
	"github.com/ibraheemosule/flybeth-sub002/internal/events"
	"github.com/ibraheemosule/flybeth-sub002/internal/flows"
	"github.com/ibraheemosule/flybeth-sub002/token"
)

const maxEndpointResponse = 1 << 20

// Coordinator owns the credential lifecycle: it tracks expiry, coalesces
// refreshes, installs rotated pairs, and optionally monitors activity in
// the background. All methods are safe for concurrent use.
type Coordinator struct {
	config     Config
	store      *credential.Store
	httpClient *http.Client
	backing    *backing.Store
	sessions   *backing.Sessions
	lock       *backing.Lock
	dispatcher *events.Dispatcher
	metrics    *Metrics
	monitor    *Monitor
	warn       func(string, ...any)

	refreshGroup singleflight.Group
	closed       atomic.Bool
}

// Refresh obtains a fresh credential pair. Concurrent callers coalesce
// onto one endpoint call and all receive its result. ctx governs only
// this caller's wait: abandoning it does not cancel the shared refresh,
// which still completes and updates the store.
func (c *Coordinator) Refresh(ctx context.Context) (credential.Pair, error) {
	if c.closed.Load() {
		return credential.Pair{}, ErrClosed
	}

	ch := c.refreshGroup.DoChan("refresh", func() (interface{}, error) {
		return c.doRefresh()
	})

	select {
	case <-ctx.Done():
		return credential.Pair{}, ctx.Err()
	case result := <-ch:
		if result.Shared {
			c.metrics.Inc(MetricRefreshCoalesced)
		}
		if result.Err != nil {
			return credential.Pair{}, result.Err
		}
		return result.Val.(credential.Pair), nil
	}
}

// RefreshIfNeeded returns the current pair when its access token is not
// yet inside the expiry buffer, and refreshes otherwise.
func (c *Coordinator) RefreshIfNeeded(ctx context.Context) (credential.Pair, error) {
	if c.closed.Load() {
		return credential.Pair{}, ErrClosed
	}

	pair, ok := c.store.Get()
	if ok && !token.ExpiringSoon(pair.AccessToken, c.config.Refresh.ExpiryBuffer) {
		return pair, nil
	}
	return c.Refresh(ctx)
}

// doRefresh is the single-flight body. It runs on its own deadlines so a
// caller that gave up waiting cannot abort the shared attempt mid-flight.
// Lock acquisition and the endpoint call are budgeted separately: a
// contended lock must never eat into the endpoint's timeout.
func (c *Coordinator) doRefresh() (credential.Pair, error) {
	if c.lock != nil {
		release := c.acquireRefreshLock()
		if release != nil {
			defer release()
		}
		// Another holder may have refreshed while we waited.
		if pair, ok := c.store.Get(); ok && !token.ExpiringSoon(pair.AccessToken, c.config.Refresh.ExpiryBuffer) {
			return pair, nil
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.config.Refresh.RequestTimeout)
	defer cancel()

	start := time.Now()
	result := flows.RunRefresh(ctx, flows.RefreshDeps{
		CurrentRefreshToken: func() (string, bool) {
			pair, ok := c.store.Get()
			if !ok || pair.RefreshToken == "" {
				return "", false
			}
			return pair.RefreshToken, true
		},
		CallEndpoint: c.callRefreshEndpoint,
		InstallPair:  c.store.Set,
		ClearStore:   c.store.Clear,
		Warn:         c.warnf,
	})

	switch result.Failure {
	case flows.RefreshFailureNone:
		c.metrics.Inc(MetricRefreshSuccess)
		c.metrics.Inc(MetricPairInstalled)
		c.metrics.Observe(MetricRefreshLatency, time.Since(start))
		c.emit(events.TypeRefreshSucceeded, "", true, nil)
		c.emit(events.TypePairInstalled, "", true, nil)
		c.credentialsChanged()
		return result.Pair, nil
	case flows.RefreshFailureNoToken:
		c.metrics.Inc(MetricRefreshNoToken)
		return credential.Pair{}, ErrNoRefreshToken
	case flows.RefreshFailureInstall:
		c.metrics.Inc(MetricRefreshFailure)
		c.emit(events.TypeRefreshFailed, "", false, result.Err)
		return credential.Pair{}, fmt.Errorf("%w: installing pair: %v", ErrRefreshFailed, result.Err)
	default:
		c.metrics.Inc(MetricRefreshFailure)
		c.emit(events.TypeRefreshFailed, "", false, result.Err)
		c.credentialsChanged()
		return credential.Pair{}, fmt.Errorf("%w: %v", ErrRefreshFailed, result.Err)
	}
}

// acquireRefreshLock takes the cross-process lock, retrying within its
// own acquire budget. The lock is best-effort: an unreachable backing
// store or a timed-out acquisition degrades to last-write-wins.
func (c *Coordinator) acquireRefreshLock() func() {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Lock.AcquireTimeout)
	defer cancel()

	for {
		holder, acquired, err := c.lock.TryAcquire(ctx)
		if err != nil {
			c.warnf("flybeth: refresh lock unavailable, proceeding without it: %v", err)
			return nil
		}
		if acquired {
			return func() {
				if err := c.lock.Release(context.Background(), holder); err != nil {
					c.warnf("flybeth: refresh lock release failed: %v", err)
				}
			}
		}

		select {
		case <-ctx.Done():
			c.warnf("flybeth: refresh lock contended past deadline, proceeding without it")
			return nil
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (c *Coordinator) callRefreshEndpoint(ctx context.Context, refreshToken string) (string, string, error) {
	body, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Refresh.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxEndpointResponse))
	if err != nil {
		return "", "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", fmt.Errorf("refresh endpoint returned status %d", resp.StatusCode)
	}

	var decoded refreshResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", "", fmt.Errorf("refresh endpoint returned malformed body: %v", err)
	}
	if !decoded.Success {
		if decoded.Message != "" {
			return "", "", errors.New("refresh rejected: " + decoded.Message)
		}
		return "", "", errors.New("refresh rejected")
	}
	if decoded.AccessToken == "" {
		return "", "", errors.New("refresh endpoint returned no access token")
	}

	return decoded.AccessToken, decoded.RefreshToken, nil
}

func (c *Coordinator) callLogoutEndpoint(ctx context.Context, refreshToken string) error {
	body, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Refresh.LogoutURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxEndpointResponse))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("logout endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Install stores a credential pair obtained out-of-band, typically from a
// login response parsed with [ParseLoginResponse].
func (c *Coordinator) Install(pair credential.Pair) error {
	if c.closed.Load() {
		return ErrClosed
	}

	if err := c.store.Set(pair); err != nil {
		return err
	}

	c.metrics.Inc(MetricPairInstalled)
	c.emit(events.TypePairInstalled, "", true, nil)
	c.credentialsChanged()
	return nil
}

// Logout clears stored credentials. When a logout URL is configured the
// revocation endpoint is notified best-effort first; its failure never
// blocks the local logout.
func (c *Coordinator) Logout(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}

	deps := flows.LogoutDeps{
		CurrentRefreshToken: func() (string, bool) {
			pair, ok := c.store.Get()
			if !ok || pair.RefreshToken == "" {
				return "", false
			}
			return pair.RefreshToken, true
		},
		ClearStore: c.store.Clear,
		Warn:       c.warnf,
	}
	if c.config.Refresh.LogoutURL != "" {
		deps.CallEndpoint = c.callLogoutEndpoint
	}

	result := flows.RunLogout(ctx, deps)
	c.metrics.Inc(MetricLogout)
	c.emit(events.TypeLoggedOut, "", result.Err == nil, result.Err)
	c.credentialsChanged()
	return result.Err
}

// forceLogout is the monitor's logout path for lapsed sessions.
func (c *Coordinator) forceLogout(reason string) {
	if err := c.store.Clear(); err != nil {
		c.warnf("flybeth: forced logout could not wipe storage: %v", err)
	}
	c.metrics.Inc(MetricForcedLogout)
	c.emit(events.TypeForcedLogout, reason, true, nil)
}

/*
====================================
ACCESSORS
====================================
*/

// Credentials returns the current pair, if any.
func (c *Coordinator) Credentials() (credential.Pair, bool) {
	return c.store.Get()
}

// Authenticated reports whether a credential pair is held.
func (c *Coordinator) Authenticated() bool {
	return c.store.Authenticated()
}

// ReportActivity marks the user as active, keeping the monitor's
// proactive refresh armed. A no-op without the monitor.
func (c *Coordinator) ReportActivity() {
	if c.monitor != nil {
		c.monitor.ReportActivity()
	}
}

// Sessions exposes the server-side session manager, or nil when no
// backing store is attached.
func (c *Coordinator) Sessions() *backing.Sessions {
	return c.sessions
}

// Metrics returns the live metrics registry for exporters.
func (c *Coordinator) Metrics() *Metrics {
	return c.metrics
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (c *Coordinator) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// EventsDropped reports lifecycle events discarded under backpressure.
func (c *Coordinator) EventsDropped() uint64 {
	return c.dispatcher.Dropped()
}

func (c *Coordinator) credentialsChanged() {
	if c.monitor != nil {
		c.monitor.CredentialsChanged()
	}
}

func (c *Coordinator) emit(eventType, reason string, success bool, err error) {
	if c.dispatcher == nil {
		return
	}
	event := events.Event{
		Timestamp: time.Now(),
		EventType: eventType,
		Reason:    reason,
		Success:   success,
	}
	if err != nil {
		event.Error = err.Error()
	}
	c.dispatcher.Emit(context.Background(), event)
}

func (c *Coordinator) warnf(format string, args ...any) {
	if c.warn != nil {
		c.warn(format, args...)
	}
}

// Close stops the monitor and drains the event dispatcher. Stored
// credentials and the backing store connection are left untouched; the
// backing store belongs to whoever constructed it.
func (c *Coordinator) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	if c.monitor != nil {
		c.monitor.Stop()
		c.emit(events.TypeMonitorStopped, "", true, nil)
	}
	c.dispatcher.Close()
	return nil
}

//go:build integration
// +build integration

package test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"

	flybeth "github.com/ibraheemosule/flybeth-sub002"
	"github.com/ibraheemosule/flybeth-sub002/backing"
	"github.com/ibraheemosule/flybeth-sub002/credential"
)

func issueAccess(t *testing.T, ttl time.Duration) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   "user-42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("integration-secret"))
	if err != nil {
		t.Fatalf("signing failed: %v", err)
	}
	return signed
}

type lifecycleHarness struct {
	coordinator *flybeth.Coordinator
	backing     *backing.Store
	mr          *miniredis.Miniredis
	refreshHits atomic.Int64
	logoutHits  atomic.Int64
}

func newLifecycleHarness(t *testing.T) *lifecycleHarness {
	t.Helper()

	h := &lifecycleHarness{}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		h.refreshHits.Add(1)
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":      true,
			"accessToken":  issueAccess(t, time.Hour),
			"refreshToken": "rotated-" + req.RefreshToken,
		})
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		h.logoutHits.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	h.mr = mr

	h.backing = backing.New(backing.Config{Addr: mr.Addr()})
	t.Cleanup(func() { _ = h.backing.Close() })

	store, err := credential.NewStore(credential.NewFileStorage(t.TempDir() + "/credentials.bin"))
	if err != nil {
		t.Fatalf("credential store failed: %v", err)
	}

	cfg := flybeth.Config{}
	cfg.Refresh.EndpointURL = server.URL + "/auth/refresh"
	cfg.Refresh.LogoutURL = server.URL + "/auth/logout"
	cfg.Monitor.Enabled = false
	cfg.Lock.Enabled = true
	cfg.Metrics.Enabled = true

	coordinator, err := flybeth.New().
		WithConfig(cfg).
		WithCredentialStore(store).
		WithBacking(h.backing).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = coordinator.Close() })
	h.coordinator = coordinator

	return h
}

func TestFullLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newLifecycleHarness(t)

	// Login happens out-of-band; the coordinator receives the pair.
	pair := credential.Pair{
		AccessToken:  issueAccess(t, -time.Minute),
		RefreshToken: "refresh-1",
	}
	if err := h.coordinator.Install(pair); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	// Server-side session alongside the tokens.
	sessions := h.coordinator.Sessions()
	key, err := sessions.Create(ctx, "user-42", nil)
	if err != nil {
		t.Fatalf("session Create failed: %v", err)
	}

	refreshed, err := h.coordinator.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if refreshed.RefreshToken != "rotated-refresh-1" {
		t.Fatalf("expected rotated refresh token, got %q", refreshed.RefreshToken)
	}
	if h.refreshHits.Load() != 1 {
		t.Fatalf("expected one refresh endpoint hit, got %d", h.refreshHits.Load())
	}

	if _, err := sessions.Get(ctx, key); err != nil {
		t.Fatalf("session lookup failed: %v", err)
	}

	if err := h.coordinator.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if h.logoutHits.Load() != 1 {
		t.Fatalf("expected one logout endpoint hit, got %d", h.logoutHits.Load())
	}
	if h.coordinator.Authenticated() {
		t.Fatal("expected credentials cleared after logout")
	}

	if _, err := sessions.DeleteAllForSubject(ctx, "user-42"); err != nil {
		t.Fatalf("session cleanup failed: %v", err)
	}
	if _, err := sessions.Get(ctx, key); err == nil {
		t.Fatal("expected session gone after cleanup")
	}
}

func TestLifecycleRefreshRaceSingleWinner(t *testing.T) {
	ctx := context.Background()
	h := newLifecycleHarness(t)

	if err := h.coordinator.Install(credential.Pair{
		AccessToken:  issueAccess(t, -time.Minute),
		RefreshToken: "refresh-race",
	}); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	const workers = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	pairs := make(chan credential.Pair, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			pair, err := h.coordinator.Refresh(ctx)
			if err != nil {
				t.Errorf("Refresh failed: %v", err)
				return
			}
			pairs <- pair
		}()
	}

	close(start)
	wg.Wait()
	close(pairs)

	if hits := h.refreshHits.Load(); hits != 1 {
		t.Fatalf("expected one endpoint hit for %d concurrent callers, got %d", workers, hits)
	}

	var first credential.Pair
	count := 0
	for pair := range pairs {
		if count == 0 {
			first = pair
		} else if pair != first {
			t.Fatalf("callers disagree on the refreshed pair")
		}
		count++
	}
	if count != workers {
		t.Fatalf("expected %d successful callers, got %d", workers, count)
	}

	snapshot := h.coordinator.MetricsSnapshot()
	if snapshot.Counters[flybeth.MetricRefreshSuccess] != 1 {
		t.Fatalf("expected one refresh success, got %d", snapshot.Counters[flybeth.MetricRefreshSuccess])
	}
	if snapshot.Counters[flybeth.MetricRefreshCoalesced] == 0 {
		t.Fatal("expected coalesced waiters to be counted")
	}
}

func TestLifecycleSessionSlidingTTL(t *testing.T) {
	ctx := context.Background()
	h := newLifecycleHarness(t)
	sessions := h.coordinator.Sessions()

	key, err := sessions.Create(ctx, "user-42", nil)
	if err != nil {
		t.Fatalf("session Create failed: %v", err)
	}

	// Touching the session inside the window keeps it alive past the
	// original deadline.
	h.mr.FastForward(45 * time.Minute)
	if _, err := sessions.Get(ctx, key); err != nil {
		t.Fatalf("session lookup inside window failed: %v", err)
	}

	h.mr.FastForward(45 * time.Minute)
	if _, err := sessions.Get(ctx, key); err != nil {
		t.Fatalf("expected slid session alive, got %v", err)
	}

	h.mr.FastForward(2 * time.Hour)
	if _, err := sessions.Get(ctx, key); err == nil {
		t.Fatal("expected idle session expired")
	}
}

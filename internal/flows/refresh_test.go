package flows

import (
	"context"
	"errors"
	"testing"

	"github.com/ibraheemosule/flybeth-sub002/credential"
)

type refreshHarness struct {
	deps      RefreshDeps
	installed []credential.Pair
	cleared   int
	endpoint  int
}

func newRefreshHarness(current string) *refreshHarness {
	h := &refreshHarness{}
	h.deps = RefreshDeps{
		CurrentRefreshToken: func() (string, bool) { return current, current != "" },
		CallEndpoint: func(ctx context.Context, refreshToken string) (string, string, error) {
			h.endpoint++
			return "access-next", "refresh-next", nil
		},
		InstallPair: func(p credential.Pair) error {
			h.installed = append(h.installed, p)
			return nil
		},
		ClearStore: func() error {
			h.cleared++
			return nil
		},
	}
	return h
}

func TestRunRefreshSuccess(t *testing.T) {
	h := newRefreshHarness("refresh-old")

	result := RunRefresh(context.Background(), h.deps)
	if result.Failure != RefreshFailureNone {
		t.Fatalf("expected success, got failure %d: %v", result.Failure, result.Err)
	}
	if !result.Rotated {
		t.Fatal("expected rotation when endpoint returns a new refresh token")
	}
	if result.Pair.AccessToken != "access-next" || result.Pair.RefreshToken != "refresh-next" {
		t.Fatalf("unexpected pair: %+v", result.Pair)
	}
	if len(h.installed) != 1 || h.installed[0] != result.Pair {
		t.Fatalf("expected pair to be installed, got %+v", h.installed)
	}
	if h.cleared != 0 {
		t.Fatal("store must not be cleared on success")
	}
}

func TestRunRefreshKeepsOldTokenWithoutRotation(t *testing.T) {
	h := newRefreshHarness("refresh-old")
	h.deps.CallEndpoint = func(ctx context.Context, refreshToken string) (string, string, error) {
		return "access-next", "", nil
	}

	result := RunRefresh(context.Background(), h.deps)
	if result.Failure != RefreshFailureNone {
		t.Fatalf("expected success, got failure %d: %v", result.Failure, result.Err)
	}
	if result.Rotated {
		t.Fatal("expected no rotation when endpoint omits the refresh token")
	}
	if result.Pair.RefreshToken != "refresh-old" {
		t.Fatalf("expected previous refresh token carried forward, got %q", result.Pair.RefreshToken)
	}
}

func TestRunRefreshWithoutToken(t *testing.T) {
	h := newRefreshHarness("")

	result := RunRefresh(context.Background(), h.deps)
	if result.Failure != RefreshFailureNoToken {
		t.Fatalf("expected no-token failure, got %d", result.Failure)
	}
	if h.endpoint != 0 {
		t.Fatal("endpoint must not be called without a refresh token")
	}
	if h.cleared != 0 {
		t.Fatal("store must not be cleared for a no-token failure")
	}
}

func TestRunRefreshEndpointFailureClearsStore(t *testing.T) {
	endpointErr := errors.New("401 unauthorized")
	h := newRefreshHarness("refresh-old")
	h.deps.CallEndpoint = func(ctx context.Context, refreshToken string) (string, string, error) {
		return "", "", endpointErr
	}

	result := RunRefresh(context.Background(), h.deps)
	if result.Failure != RefreshFailureEndpoint {
		t.Fatalf("expected endpoint failure, got %d", result.Failure)
	}
	if !errors.Is(result.Err, endpointErr) {
		t.Fatalf("expected endpoint error to surface, got %v", result.Err)
	}
	if h.cleared != 1 {
		t.Fatalf("expected store cleared exactly once, got %d", h.cleared)
	}
	if len(h.installed) != 0 {
		t.Fatal("no pair must be installed after an endpoint failure")
	}
}

func TestRunRefreshClearFailureWarns(t *testing.T) {
	h := newRefreshHarness("refresh-old")
	h.deps.CallEndpoint = func(ctx context.Context, refreshToken string) (string, string, error) {
		return "", "", errors.New("boom")
	}
	h.deps.ClearStore = func() error { return errors.New("disk full") }

	var warned bool
	h.deps.Warn = func(string, ...any) { warned = true }

	result := RunRefresh(context.Background(), h.deps)
	if result.Failure != RefreshFailureEndpoint {
		t.Fatalf("expected endpoint failure, got %d", result.Failure)
	}
	if !warned {
		t.Fatal("expected warn hook for failed store clear")
	}
}

func TestRunRefreshInstallFailure(t *testing.T) {
	installErr := errors.New("write failed")
	h := newRefreshHarness("refresh-old")
	h.deps.InstallPair = func(credential.Pair) error { return installErr }

	result := RunRefresh(context.Background(), h.deps)
	if result.Failure != RefreshFailureInstall {
		t.Fatalf("expected install failure, got %d", result.Failure)
	}
	if !errors.Is(result.Err, installErr) {
		t.Fatalf("expected install error to surface, got %v", result.Err)
	}
}

package flows

import (
	"context"

	"github.com/ibraheemosule/flybeth-sub002/credential"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureNoToken
	RefreshFailureEndpoint
	RefreshFailureInstall
)

// RefreshResult carries either the installed token pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	Pair    credential.Pair
	// Rotated reports whether the endpoint issued a new refresh token.
	// When false the previous refresh token was carried forward.
	Rotated bool
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	CurrentRefreshToken func() (string, bool)
	CallEndpoint        func(ctx context.Context, refreshToken string) (accessToken, newRefreshToken string, err error)
	InstallPair         func(credential.Pair) error
	ClearStore          func() error
	Warn                func(string, ...any)
}

// RunRefresh executes one credential refresh against the endpoint. An
// endpoint failure is terminal for the authenticated state: the store is
// cleared so the caller observes a logout rather than stale credentials.
func RunRefresh(ctx context.Context, deps RefreshDeps) RefreshResult {
	current, ok := deps.CurrentRefreshToken()
	if !ok {
		return RefreshResult{Failure: RefreshFailureNoToken}
	}

	access, next, err := deps.CallEndpoint(ctx, current)
	if err != nil {
		if clearErr := deps.ClearStore(); clearErr != nil && deps.Warn != nil {
			deps.Warn("flybeth: clearing credentials after failed refresh: %v", clearErr)
		}
		return RefreshResult{Failure: RefreshFailureEndpoint, Err: err}
	}

	rotated := next != ""
	if !rotated {
		next = current
	}

	pair := credential.Pair{AccessToken: access, RefreshToken: next}
	if err := deps.InstallPair(pair); err != nil {
		return RefreshResult{Failure: RefreshFailureInstall, Err: err, Pair: pair, Rotated: rotated}
	}

	return RefreshResult{Failure: RefreshFailureNone, Pair: pair, Rotated: rotated}
}

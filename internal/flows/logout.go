package flows

import "context"

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	CurrentRefreshToken func() (string, bool)
	CallEndpoint        func(ctx context.Context, refreshToken string) error
	ClearStore          func() error
	Warn                func(string, ...any)
}

// LogoutResult reports the outcome of a logout. EndpointNotified is false
// when no endpoint is configured, no credentials were held, or the
// revocation call failed.
type LogoutResult struct {
	EndpointNotified bool
	Err              error
}

// RunLogout clears local credentials unconditionally and notifies the
// revocation endpoint on a best-effort basis. A failed endpoint call never
// keeps the caller logged in.
func RunLogout(ctx context.Context, deps LogoutDeps) LogoutResult {
	notified := false
	if deps.CallEndpoint != nil {
		if current, ok := deps.CurrentRefreshToken(); ok {
			if err := deps.CallEndpoint(ctx, current); err != nil {
				if deps.Warn != nil {
					deps.Warn("flybeth: revocation endpoint call failed: %v", err)
				}
			} else {
				notified = true
			}
		}
	}

	return LogoutResult{
		EndpointNotified: notified,
		Err:              deps.ClearStore(),
	}
}

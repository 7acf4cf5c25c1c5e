package flybeth

import "errors"

var (
	// ErrNoRefreshToken is returned when a refresh is requested without a
	// stored refresh token. The caller must re-authenticate.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrRefreshFailed is returned when the refresh endpoint rejects or
	// fails the request. Stored credentials are cleared before it is
	// returned.
	ErrRefreshFailed = errors.New("refresh failed")
	// ErrNotReady is returned by Build when required dependencies are
	// missing.
	ErrNotReady = errors.New("coordinator not ready")
	// ErrClosed is returned by operations on a closed coordinator.
	ErrClosed = errors.New("coordinator closed")
)

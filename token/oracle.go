package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrDecode is returned when a token cannot be decoded: not three
// dot-separated segments, payload not valid base64 JSON, or no exp claim.
var ErrDecode = errors.New("malformed token")

// DefaultExpiryBuffer is the lead time applied by [ExpiringSoon] when the
// caller passes a non-positive buffer.
const DefaultExpiryBuffer = 5 * time.Minute

// DecodeExpiry extracts the expiry claim from the token's payload segment
// without verifying the signature. It fails with [ErrDecode] when the token
// is malformed or carries no exp claim.
func DecodeExpiry(tokenStr string) (time.Time, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("%w: missing exp claim", ErrDecode)
	}

	return exp.Time, nil
}

// TimeUntilExpiry returns how long the token remains valid, never negative.
// An undecodable token yields 0 rather than an error: callers treat 0 as
// "must refresh now".
func TimeUntilExpiry(tokenStr string) time.Duration {
	exp, err := DecodeExpiry(tokenStr)
	if err != nil {
		return 0
	}

	remaining := time.Until(exp)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ExpiringSoon reports whether the token expires within buffer. The boundary
// is inclusive: a token with exactly buffer remaining is expiring soon.
// A non-positive buffer selects [DefaultExpiryBuffer].
func ExpiringSoon(tokenStr string, buffer time.Duration) bool {
	if buffer <= 0 {
		buffer = DefaultExpiryBuffer
	}
	return TimeUntilExpiry(tokenStr) <= buffer
}

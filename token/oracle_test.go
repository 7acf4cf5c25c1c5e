package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.Claims) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte("oracle-test-secret"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	return signed
}

func tokenExpiringIn(t *testing.T, d time.Duration) string {
	t.Helper()

	return signedToken(t, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(d).Unix(),
	})
}

func TestDecodeExpiryMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":           "",
		"no dots":         "not-a-token",
		"two segments":    "aaaa.bbbb",
		"bad base64":      "aaaa.!!!!.cccc",
		"payload not json": "aaaa.bm90LWpzb24.cccc",
	}

	for name, raw := range cases {
		if _, err := DecodeExpiry(raw); !errors.Is(err, ErrDecode) {
			t.Fatalf("%s: expected ErrDecode, got %v", name, err)
		}
	}
}

func TestDecodeExpiryMissingExp(t *testing.T) {
	raw := signedToken(t, jwt.MapClaims{"sub": "u1"})

	if _, err := DecodeExpiry(raw); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode for missing exp, got %v", err)
	}
}

func TestDecodeExpiryValid(t *testing.T) {
	want := time.Now().Add(2 * time.Minute).Truncate(time.Second)
	raw := signedToken(t, jwt.MapClaims{"sub": "u1", "exp": want.Unix()})

	got, err := DecodeExpiry(raw)
	if err != nil {
		t.Fatalf("DecodeExpiry failed: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, got)
	}
}

func TestTimeUntilExpiryMonotonic(t *testing.T) {
	raw := tokenExpiringIn(t, 120*time.Second)

	first := TimeUntilExpiry(raw)
	if first <= 0 || first > 120*time.Second {
		t.Fatalf("expected remaining in (0, 120s], got %v", first)
	}

	time.Sleep(15 * time.Millisecond)

	second := TimeUntilExpiry(raw)
	if second >= first {
		t.Fatalf("expected strictly decreasing remaining, got %v then %v", first, second)
	}
}

func TestTimeUntilExpiryUndecodableIsZero(t *testing.T) {
	if d := TimeUntilExpiry("garbage"); d != 0 {
		t.Fatalf("expected 0 for undecodable token, got %v", d)
	}
}

func TestTimeUntilExpiryExpiredIsZero(t *testing.T) {
	raw := tokenExpiringIn(t, -time.Minute)

	if d := TimeUntilExpiry(raw); d != 0 {
		t.Fatalf("expected 0 for expired token, got %v", d)
	}
}

func TestExpiringSoonBoundary(t *testing.T) {
	buffer := 300 * time.Second

	// Remaining can only be <= 300s by the time of the check.
	atBoundary := tokenExpiringIn(t, 300*time.Second)
	if !ExpiringSoon(atBoundary, buffer) {
		t.Fatal("expected token at exactly the buffer boundary to be expiring soon")
	}

	far := tokenExpiringIn(t, 900*time.Second)
	if ExpiringSoon(far, buffer) {
		t.Fatal("expected token well outside the buffer to not be expiring soon")
	}
}

func TestExpiringSoonDefaultBuffer(t *testing.T) {
	within := tokenExpiringIn(t, time.Minute)
	if !ExpiringSoon(within, 0) {
		t.Fatal("expected token inside the default buffer to be expiring soon")
	}

	outside := tokenExpiringIn(t, time.Hour)
	if ExpiringSoon(outside, 0) {
		t.Fatal("expected token outside the default buffer to not be expiring soon")
	}
}

func TestExpiringSoonUndecodable(t *testing.T) {
	if !ExpiringSoon("garbage", time.Minute) {
		t.Fatal("expected undecodable token to force the refresh path")
	}
}

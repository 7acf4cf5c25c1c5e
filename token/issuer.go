package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Actor classifies the authenticated principal. It determines token claim
// shape and expiry durations; it is an input to issuance, never a behavior
// of the coordinator.
type Actor uint8

const (
	// ActorUser is an individual consumer account.
	ActorUser Actor = iota
	// ActorBusiness is a corporate account.
	ActorBusiness
	// ActorAdmin is an internal operator account.
	ActorAdmin
)

// String returns the claim value carried in issued tokens.
func (a Actor) String() string {
	switch a {
	case ActorBusiness:
		return "BUSINESS"
	case ActorAdmin:
		return "ADMIN"
	default:
		return "USER"
	}
}

// ParseActor maps a claim value back to an [Actor].
func ParseActor(s string) (Actor, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "USER":
		return ActorUser, nil
	case "BUSINESS":
		return ActorBusiness, nil
	case "ADMIN":
		return ActorAdmin, nil
	default:
		return ActorUser, fmt.Errorf("unknown actor type %q", s)
	}
}

// AccessTTL returns the access token lifetime for the actor type.
func (a Actor) AccessTTL() time.Duration {
	if a == ActorAdmin {
		return 60 * time.Minute
	}
	return 15 * time.Minute
}

// RefreshTTL returns the refresh token lifetime for the actor type.
// It always exceeds [Actor.AccessTTL], so a pair issued together satisfies
// the containment invariant without further checks.
func (a Actor) RefreshTTL() time.Duration {
	if a == ActorAdmin {
		return 30 * 24 * time.Hour
	}
	return 7 * 24 * time.Hour
}

// SigningMethod selects the signature algorithm used by [Issuer].
type SigningMethod string

const (
	// MethodEd25519 signs with Ed25519 (default).
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256.
	MethodHS256 SigningMethod = "hs256"
)

// IssuerConfig configures an [Issuer]. Instances are treated as immutable
// after [NewIssuer].
type IssuerConfig struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// Claims is the payload of both access and refresh tokens. Refresh tokens
// carry only subject and actor; access tokens additionally carry issuance
// metadata through the registered claims.
type Claims struct {
	Actor string `json:"act,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies credential pairs with per-actor lifetimes.
type Issuer struct {
	config IssuerConfig
}

// NewIssuer validates cfg and returns an [Issuer].
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
			return nil, err
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Issuer{config: cfg}, nil
}

// IssueAccess signs an access token for subject with the actor's access TTL.
func (i *Issuer) IssueAccess(subject string, actor Actor) (string, error) {
	return i.issue(subject, actor, actor.AccessTTL())
}

// IssueRefresh signs a refresh token for subject with the actor's refresh TTL.
func (i *Issuer) IssueRefresh(subject string, actor Actor) (string, error) {
	return i.issue(subject, actor, actor.RefreshTTL())
}

// IssuePair signs an access and refresh token together. The refresh token's
// validity interval contains the access token's.
func (i *Issuer) IssuePair(subject string, actor Actor) (access, refresh string, err error) {
	access, err = i.IssueAccess(subject, actor)
	if err != nil {
		return "", "", err
	}
	refresh, err = i.IssueRefresh(subject, actor)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (i *Issuer) issue(subject string, actor Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Actor: actor.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    i.config.Issuer,
		},
	}

	tok := jwt.NewWithClaims(i.getMethod(), claims)

	signKey, err := i.getSignKey()
	if err != nil {
		return "", err
	}
	return tok.SignedString(signKey)
}

// Parse verifies the token signature and claims and returns the decoded
// [Claims]. Unlike the oracle functions, Parse rejects invalid signatures.
func (i *Issuer) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{i.getMethod().Alg()}),
	}
	if i.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(i.config.Leeway))
	}
	if i.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(i.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != i.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return i.getVerifyKey()
	})
	if err != nil {
		return nil, err
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}

func (i *Issuer) getMethod() jwt.SigningMethod {
	switch i.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (i *Issuer) getSignKey() (interface{}, error) {
	switch i.config.SigningMethod {
	case MethodHS256:
		return i.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(i.config.PrivateKey)
	}
}

func (i *Issuer) getVerifyKey() (interface{}, error) {
	switch i.config.SigningMethod {
	case MethodHS256:
		return i.config.PrivateKey, nil
	default:
		if len(i.config.PublicKey) > 0 {
			return parseEdPublicKey(i.config.PublicKey)
		}
		priv, err := parseEdPrivateKey(i.config.PrivateKey)
		if err != nil {
			return nil, err
		}
		return priv.Public(), nil
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}

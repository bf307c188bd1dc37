package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrTokenInvalid   = errors.New("security: token invalid")
	ErrSecretRequired = errors.New("security: signing secret required")
)

// Principal is the authenticated caller behind a bearer token.
type Principal struct {
	Subject string
	Roles   []string
}

func (p Principal) HasRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	for _, r := range p.Roles {
		if strings.ToLower(r) == role {
			return true
		}
	}
	return false
}

type claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// HMACTokens verifies and issues HS256 bearer tokens. Session issuance
// lives elsewhere; Issue exists for local tooling and tests.
type HMACTokens struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

func (t HMACTokens) Verify(raw string) (Principal, error) {
	if len(t.Secret) == 0 {
		return Principal{}, ErrSecretRequired
	}
	parsed := &claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(raw, parsed, func(*jwt.Token) (any, error) {
		return t.Secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || parsed.Subject == "" {
		return Principal{}, ErrTokenInvalid
	}
	if t.Issuer != "" && !parsed.VerifyIssuer(t.Issuer, true) {
		return Principal{}, fmt.Errorf("%w: unexpected issuer", ErrTokenInvalid)
	}
	return Principal{Subject: parsed.Subject, Roles: parsed.Roles}, nil
}

func (t HMACTokens) Issue(subject string, roles ...string) (string, error) {
	if len(t.Secret) == 0 {
		return "", ErrSecretRequired
	}
	now := time.Now().UTC()
	if t.Now != nil {
		now = t.Now().UTC()
	}
	ttl := t.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    t.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.Secret)
}

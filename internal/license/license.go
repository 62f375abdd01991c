// Package license provides license key parsing and issuing.
package license

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
)

// KeyPrefix marks a usagemesh license key.
const KeyPrefix = "umlk_"

// Claims are the signed contents of a license key.
type Claims struct {
	jwt.RegisteredClaims
	Tier     Tier     `json:"tier"`
	Features []string `json:"features,omitempty"`
}

// State is a verified license. A nil *State denies every feature.
type State struct {
	claims Claims
	policy Policy
	now    func() time.Time
}

// Option configures parsing.
type Option func(*parseOptions)

type parseOptions struct {
	policy Policy
	now    func() time.Time
}

// WithPolicy sets the feature tier policy of the parsed State.
func WithPolicy(p Policy) Option {
	return func(o *parseOptions) { o.policy = p }
}

// WithClock overrides the time source used for validity checks.
func WithClock(now func() time.Time) Option {
	return func(o *parseOptions) { o.now = now }
}

// Parse verifies key with secret and returns the license state.
//
// Expired keys fail with domain.ErrLicenseExpired; any other verification
// failure yields domain.ErrLicenseInvalid.
func Parse(key, secret string, opts ...Option) (*State, error) {
	o := parseOptions{policy: DefaultPolicy(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	key = strings.TrimSpace(key)
	if !strings.HasPrefix(key, KeyPrefix) {
		return nil, domain.ErrLicenseInvalid.WithDetails("missing " + KeyPrefix + " prefix")
	}
	if secret == "" {
		return nil, domain.ErrLicenseInvalid.WithDetails("verification secret is empty")
	}

	claims := Claims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(key, KeyPrefix), &claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(o.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrLicenseExpired.WithCause(err)
		}
		return nil, domain.ErrLicenseInvalid.WithCause(err)
	}
	if !token.Valid {
		return nil, domain.ErrLicenseInvalid
	}
	if !claims.Tier.IsValid() {
		return nil, domain.ErrLicenseInvalid.WithDetailsf("unknown tier %q", claims.Tier)
	}

	return &State{claims: claims, policy: o.policy, now: o.now}, nil
}

// IsFeatureAllowed reports whether the license grants feature right now.
func (s *State) IsFeatureAllowed(feature string) bool {
	if s == nil || !s.Active() {
		return false
	}
	if slices.Contains(s.claims.Features, feature) {
		return true
	}
	return s.claims.Tier.AtLeast(s.policy.MinTierFor(feature))
}

// Active reports whether the license is inside its validity window.
func (s *State) Active() bool {
	if s == nil {
		return false
	}
	now := s.now()
	if s.claims.NotBefore != nil && now.Before(s.claims.NotBefore.Time) {
		return false
	}
	if s.claims.ExpiresAt != nil && !now.Before(s.claims.ExpiresAt.Time) {
		return false
	}
	return true
}

// Tier returns the licensed tier.
func (s *State) Tier() Tier {
	if s == nil {
		return ""
	}
	return s.claims.Tier
}

// Summary is the public view of a license.
type Summary struct {
	ID        string    `json:"id"`
	Issuer    string    `json:"issuer"`
	Subject   string    `json:"subject"`
	Tier      Tier      `json:"tier"`
	Features  []string  `json:"features"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Active    bool      `json:"active"`
}

// Summary returns the public view of the license.
func (s *State) Summary() Summary {
	if s == nil {
		return Summary{}
	}
	return summarize(s.claims, s.Active())
}

func summarize(c Claims, active bool) Summary {
	sum := Summary{
		ID:       c.ID,
		Issuer:   c.Issuer,
		Subject:  c.Subject,
		Tier:     c.Tier,
		Features: slices.Clone(c.Features),
		Active:   active,
	}
	if sum.Features == nil {
		sum.Features = []string{}
	}
	if c.IssuedAt != nil {
		sum.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		sum.ExpiresAt = c.ExpiresAt.Time
	}
	return sum
}

// Issue signs claims with secret and returns a license key.
func Issue(claims Claims, secret string) (string, error) {
	if secret == "" {
		return "", domain.ErrMissingArgument.WithDetails("signing secret is required")
	}
	if !claims.Tier.IsValid() {
		return "", domain.ErrInvalidArgument.WithDetailsf("unknown tier %q", claims.Tier)
	}
	if claims.ExpiresAt == nil {
		return "", domain.ErrMissingArgument.WithDetails("expiry is required")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign license: %w", err)
	}
	return KeyPrefix + signed, nil
}

// Inspect decodes key without verifying its signature. It is meant for
// display only; use Parse for any decision.
func Inspect(key string) (Summary, error) {
	key = strings.TrimSpace(key)
	if !strings.HasPrefix(key, KeyPrefix) {
		return Summary{}, domain.ErrLicenseInvalid.WithDetails("missing " + KeyPrefix + " prefix")
	}
	claims := Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimPrefix(key, KeyPrefix), &claims); err != nil {
		return Summary{}, domain.ErrLicenseInvalid.WithCause(err)
	}
	active := claims.ExpiresAt == nil || time.Now().Before(claims.ExpiresAt.Time)
	return summarize(claims, active), nil
}

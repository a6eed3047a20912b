package users

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenService issues and verifies signed session tokens. Verification is
// stateless: expiry is the only invalidation mechanism.
type TokenService interface {
	Issue(identity Identity) (string, error)
	IssueWithTTL(identity Identity, ttl time.Duration) (string, error)
	Validate(tokenString string) (*Claims, error)
}

// TokenServiceImpl implements TokenService over HS256.
type TokenServiceImpl struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

// TokenServiceOption customizes a TokenServiceImpl.
type TokenServiceOption func(*TokenServiceImpl)

// WithTokenLogger overrides the service logger.
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// WithTokenClock injects a custom clock (useful for tests).
func WithTokenClock(clock func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// NewTokenService creates a TokenService from the given configuration.
func NewTokenService(cfg Config, opts ...TokenServiceOption) *TokenServiceImpl {
	cfg = cfg.withDefaults()

	ts := &TokenServiceImpl{
		signingKey: []byte(cfg.SigningKey),
		ttl:        cfg.TokenTTL,
		issuer:     cfg.Issuer,
		audience:   jwt.ClaimStrings(cfg.Audience),
		logger:     defLogger{},
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts
}

// Issue signs a token for the identity using the configured TTL.
func (ts *TokenServiceImpl) Issue(identity Identity) (string, error) {
	return ts.IssueWithTTL(identity, ts.ttl)
}

// IssueWithTTL signs a token for the identity that expires after ttl.
func (ts *TokenServiceImpl) IssueWithTTL(identity Identity, ttl time.Duration) (string, error) {
	if identity == nil {
		return "", goerrors.New("identity must not be nil", goerrors.CategoryInternal)
	}
	if ttl <= 0 {
		ttl = ts.ttl
	}

	now := ts.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  ts.cloneAudience(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:      identity.ID(),
		Username: identity.Username(),
		Email:    identity.Email(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	return signed, nil
}

// Validate parses and verifies a token string, returning its claims. Expired
// tokens fail with ErrTokenExpired; anything else structurally or
// cryptographically wrong fails as malformed.
func (ts *TokenServiceImpl) Validate(tokenString string) (*Claims, error) {
	parserOptions := []jwt.ParserOption{jwt.WithTimeFunc(ts.now)}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode claims")
	return nil, ErrTokenMalformed
}

func (ts *TokenServiceImpl) cloneAudience() jwt.ClaimStrings {
	if len(ts.audience) == 0 {
		return nil
	}
	aud := make(jwt.ClaimStrings, len(ts.audience))
	copy(aud, ts.audience)
	return aud
}

// Package tokenguard protects routes with bearer token verification. It
// extracts the token from the Authorization header, validates it, and makes
// the verified claims available to downstream handlers.
package tokenguard

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	users "github.com/goliatone/go-users"
)

// TokenValidator verifies a raw token string and returns its claims. It
// mirrors TokenService.Validate so the guard never needs key material of
// its own.
type TokenValidator interface {
	Validate(tokenString string) (*users.Claims, error)
}

// Config drives the guard middleware. Validator is the only required field.
type Config struct {
	// Filter skips the guard for matching requests.
	Filter func(router.Context) bool
	// SuccessHandler runs after validation succeeds. Defaults to ctx.Next().
	SuccessHandler router.HandlerFunc
	// ErrorHandler translates guard failures into a response. Defaults to
	// 401 with the failure message.
	ErrorHandler router.ErrorHandler
	// Validator verifies extracted tokens.
	Validator TokenValidator
	// ContextKey is the locals key the claims are stored under.
	ContextKey string
	// HeaderName is the header carrying the token.
	HeaderName string
	// AuthScheme is the expected scheme prefix, e.g. "Bearer".
	AuthScheme string
	// ContextEnricher propagates claims into the standard Go context so
	// code below the router can read them without a router.Context.
	ContextEnricher func(ctx context.Context, claims *users.Claims) context.Context
}

// New builds the guard middleware. Requests fail with Unauthorized when the
// header is missing, the scheme does not match, or the token fails
// verification. The request itself is never mutated beyond attaching claims.
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := getDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			raw, err := TokenFromHeader(ctx, cfg.HeaderName, cfg.AuthScheme)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			claims, err := cfg.Validator.Validate(raw)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, claims)

			if cfg.ContextEnricher != nil {
				ctx.SetContext(cfg.ContextEnricher(ctx.Context(), claims))
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

// TokenFromHeader pulls the raw token out of the named header, enforcing the
// auth scheme prefix case-insensitively.
func TokenFromHeader(c router.Context, header, authScheme string) (string, error) {
	a := c.GetString(header, "")
	if a == "" {
		return "", users.ErrTokenMissing
	}

	scheme := strings.TrimSpace(authScheme)
	if scheme == "" {
		return strings.TrimSpace(a), nil
	}

	l := len(scheme)
	if len(a) > l+1 && strings.EqualFold(a[:l], scheme) {
		token := strings.TrimSpace(a[l:])
		if token != "" {
			return token, nil
		}
	}

	return "", users.ErrTokenMissing
}

// WithClaimsEnricher returns a ContextEnricher that stores claims where
// users.ClaimsFromContext can find them.
func WithClaimsEnricher() func(ctx context.Context, claims *users.Claims) context.Context {
	return func(ctx context.Context, claims *users.Claims) context.Context {
		return users.WithClaimsContext(ctx, claims)
	}
}

func getDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Validator == nil {
		panic("tokenguard: middleware configuration requires a Validator")
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return c.Status(router.StatusUnauthorized).SendString(richErr.Message)
			}
			return c.Status(router.StatusUnauthorized).SendString("invalid or expired token")
		}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = users.DefaultContextKey
	}

	if cfg.HeaderName == "" {
		cfg.HeaderName = router.HeaderAuthorization
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = users.DefaultAuthScheme
	}

	return cfg
}

package tokenguard_test

import (
	"context"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	users "github.com/goliatone/go-users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/goliatone/go-users/middleware/tokenguard"
)

type testIdentity struct {
	id       string
	username string
	email    string
}

func (i testIdentity) ID() string       { return i.id }
func (i testIdentity) Username() string { return i.username }
func (i testIdentity) Email() string    { return i.email }

func testValidator() *users.TokenServiceImpl {
	return users.NewTokenService(users.NewConfig("guard-test-key"))
}

func signToken(t *testing.T, service *users.TokenServiceImpl) string {
	t.Helper()

	token, err := service.Issue(testIdentity{
		id:       uuid.NewString(),
		username: "guard-user",
		email:    "guard@example.com",
	})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

func passthroughErrors(c router.Context, err error) error {
	return err
}

func nextHandler(c router.Context) error {
	return c.Next()
}

func TestGuardValidToken(t *testing.T) {
	validator := testValidator()
	token := signToken(t, validator)

	middleware := tokenguard.New(tokenguard.Config{
		Validator:    validator,
		ErrorHandler: passthroughErrors,
	})

	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer " + token
	ctx.On("GetString", "Authorization", "").Return("Bearer " + token)
	ctx.On("Locals", "claims", mock.AnythingOfType("*users.Claims")).Return(nil)

	if err := middleware(nextHandler)(ctx); err != nil {
		t.Fatalf("unexpected error for valid token: %v", err)
	}
	if !ctx.NextCalled {
		t.Errorf("expected NextCalled to be true, but got false")
	}
}

func TestGuardMissingToken(t *testing.T) {
	middleware := tokenguard.New(tokenguard.Config{
		Validator:    testValidator(),
		ErrorHandler: passthroughErrors,
	})

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "scheme without token", header: "Bearer "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := router.NewMockContext()
			ctx.On("GetString", "Authorization", "").Return(tc.header)

			err := middleware(nextHandler)(ctx)
			if err == nil {
				t.Fatal("expected error for missing token, got nil")
			}
			if !goerrors.Is(err, users.ErrTokenMissing) {
				t.Errorf("expected missing token error, got: %v", err)
			}
			if ctx.NextCalled {
				t.Errorf("expected request to stop at the guard")
			}
		})
	}
}

func TestGuardExpiredToken(t *testing.T) {
	issuedAt := time.Now().Add(-2 * users.DefaultTokenTTL)
	issuer := users.NewTokenService(users.NewConfig("guard-test-key"), users.WithTokenClock(func() time.Time {
		return issuedAt
	}))
	expired := signToken(t, issuer)

	middleware := tokenguard.New(tokenguard.Config{
		Validator:    testValidator(),
		ErrorHandler: passthroughErrors,
	})

	ctx := router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("Bearer " + expired)

	err := middleware(nextHandler)(ctx)
	if err == nil {
		t.Fatal("expected error for expired token, got nil")
	}
	if !goerrors.Is(err, users.ErrTokenExpired) {
		t.Errorf("expected token expired error, got: %v", err)
	}
}

func TestGuardMalformedToken(t *testing.T) {
	middleware := tokenguard.New(tokenguard.Config{
		Validator:    testValidator(),
		ErrorHandler: passthroughErrors,
	})

	ctx := router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("Bearer not.a.token")

	err := middleware(nextHandler)(ctx)
	if err == nil {
		t.Fatal("expected error for malformed token, got nil")
	}
	if !users.IsUnauthorized(err) {
		t.Errorf("expected unauthorized error, got: %v", err)
	}
}

func TestGuardTamperedToken(t *testing.T) {
	other := users.NewTokenService(users.NewConfig("a-different-key"))
	foreign := signToken(t, other)

	middleware := tokenguard.New(tokenguard.Config{
		Validator:    testValidator(),
		ErrorHandler: passthroughErrors,
	})

	ctx := router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("Bearer " + foreign)

	err := middleware(nextHandler)(ctx)
	if err == nil {
		t.Fatal("expected error for token signed with another key, got nil")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != users.TextCodeTokenMalformed {
		t.Errorf("expected malformed token error, got: %v", err)
	}
}

func TestGuardCustomContextKey(t *testing.T) {
	validator := testValidator()
	token := signToken(t, validator)

	middleware := tokenguard.New(tokenguard.Config{
		Validator:    validator,
		ErrorHandler: passthroughErrors,
		ContextKey:   "session",
	})

	ctx := router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("Bearer " + token)
	ctx.On("Locals", "session", mock.AnythingOfType("*users.Claims")).Return(nil)

	if err := middleware(nextHandler)(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// pathMock overrides Path() from the base MockContext.
type pathMock struct {
	*router.MockContext
	pathOverride string
}

func (m *pathMock) Path() string {
	return m.pathOverride
}

func TestGuardFilterSkipsPublicRoutes(t *testing.T) {
	middleware := tokenguard.New(tokenguard.Config{
		Validator:    testValidator(),
		ErrorHandler: passthroughErrors,
		Filter: func(ctx router.Context) bool {
			return strings.HasPrefix(ctx.Path(), "/public")
		},
	})

	ctx := &pathMock{
		MockContext:  router.NewMockContext(),
		pathOverride: "/public/health",
	}

	if err := middleware(nextHandler)(ctx); err != nil {
		t.Fatalf("expected the filter to skip the guard, got %v", err)
	}
	if !ctx.NextCalled {
		t.Errorf("expected Next() to be invoked due to filter skip")
	}
}

func TestGuardRequiresValidator(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when Validator is missing")
		}
	}()

	tokenguard.New()(nextHandler)
}

func TestTokenFromHeader(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		scheme  string
		token   string
		wantErr bool
	}{
		{name: "bearer token", header: "Bearer abc.def.ghi", scheme: "Bearer", token: "abc.def.ghi"},
		{name: "case insensitive scheme", header: "bearer abc.def.ghi", scheme: "Bearer", token: "abc.def.ghi"},
		{name: "missing header", header: "", scheme: "Bearer", wantErr: true},
		{name: "wrong scheme", header: "Token abc", scheme: "Bearer", wantErr: true},
		{name: "no scheme configured", header: "abc.def.ghi", scheme: "", token: "abc.def.ghi"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := router.NewMockContext()
			ctx.On("GetString", "Authorization", "").Return(tc.header)

			token, err := tokenguard.TokenFromHeader(ctx, "Authorization", tc.scheme)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if token != tc.token {
				t.Errorf("expected token %q, got %q", tc.token, token)
			}
		})
	}
}

func TestWithClaimsEnricher(t *testing.T) {
	enricher := tokenguard.WithClaimsEnricher()

	claims := &users.Claims{UID: uuid.NewString(), Email: "guard@example.com"}
	ctx := enricher(context.Background(), claims)

	got, ok := users.ClaimsFromContext(ctx)
	if !ok {
		t.Fatal("expected claims in context")
	}
	if got.UID != claims.UID {
		t.Errorf("expected UID %q, got %q", claims.UID, got.UID)
	}
}

package users

import "time"

const (
	// DefaultTokenTTL keeps sessions alive for a week.
	DefaultTokenTTL = 7 * 24 * time.Hour
	// DefaultOperationTimeout bounds slow store and hashing calls.
	DefaultOperationTimeout = 3 * time.Second
	// DefaultContextKey is where the guard stores verified claims.
	DefaultContextKey = "claims"
	// DefaultAuthScheme is the expected Authorization header scheme.
	DefaultAuthScheme = "Bearer"
)

// Config collects every tunable the package reads. Build it once at startup
// and hand it to the constructors; components never reach for the
// environment themselves.
type Config struct {
	// SigningKey is the symmetric secret used to sign session tokens.
	SigningKey string
	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration
	// Issuer and Audience are optional registered claims enforced during
	// validation when set.
	Issuer   string
	Audience []string
	// AuthScheme is the Authorization header scheme the guard accepts.
	AuthScheme string
	// ContextKey is the router locals key for verified claims.
	ContextKey string
	// HashParams tunes the argon2id credential hasher.
	HashParams HashParams
	// OperationTimeout bounds each lifecycle operation. Zero disables the
	// deadline.
	OperationTimeout time.Duration
}

// NewConfig returns a Config with production defaults for everything but the
// signing key.
func NewConfig(signingKey string) Config {
	return Config{
		SigningKey:       signingKey,
		TokenTTL:         DefaultTokenTTL,
		AuthScheme:       DefaultAuthScheme,
		ContextKey:       DefaultContextKey,
		HashParams:       DefaultHashParams(),
		OperationTimeout: DefaultOperationTimeout,
	}
}

// withDefaults fills zero values so a partially built Config still behaves.
func (c Config) withDefaults() Config {
	if c.TokenTTL <= 0 {
		c.TokenTTL = DefaultTokenTTL
	}
	if c.AuthScheme == "" {
		c.AuthScheme = DefaultAuthScheme
	}
	if c.ContextKey == "" {
		c.ContextKey = DefaultContextKey
	}
	c.HashParams = c.HashParams.withDefaults()
	return c
}

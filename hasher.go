package users

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/argon2"
)

// HashParams tunes the argon2id hasher. Memory is expressed in KiB.
type HashParams struct {
	Memory     uint32
	Time       uint32
	Threads    uint8
	SaltLength uint32
	KeyLength  uint32
}

// DefaultHashParams returns production-grade argon2id parameters: 64MiB
// memory, 3 passes, 4 lanes, 32-byte output.
func DefaultHashParams() HashParams {
	return HashParams{
		Memory:     64 * 1024,
		Time:       3,
		Threads:    4,
		SaltLength: 16,
		KeyLength:  32,
	}
}

// maxVerifyMemory caps the memory parameter accepted from an encoded hash,
// in KiB (2GiB). Anything above it is treated as malformed.
const maxVerifyMemory = 2 * 1024 * 1024

func (p HashParams) withDefaults() HashParams {
	def := DefaultHashParams()
	if p.Memory == 0 {
		p.Memory = def.Memory
	}
	if p.Time == 0 {
		p.Time = def.Time
	}
	if p.Threads == 0 {
		p.Threads = def.Threads
	}
	if p.SaltLength == 0 {
		p.SaltLength = def.SaltLength
	}
	if p.KeyLength == 0 {
		p.KeyLength = def.KeyLength
	}
	return p
}

// Hasher derives and verifies argon2id password hashes in the standard PHC
// string format, e.g.
//
//	$argon2id$v=19$m=65536,t=3,p=4$<salt>$<key>
//
// The parameters travel inside the encoded hash, so records hashed under
// older settings keep verifying after the configuration changes.
type Hasher struct {
	params HashParams
}

// NewHasher returns a Hasher, filling any zero parameter with its default.
func NewHasher(params HashParams) *Hasher {
	return &Hasher{params: params.withDefaults()}
}

// Hash derives a PHC-encoded argon2id hash with a fresh random salt. Two
// calls with the same plaintext produce different strings that both verify.
func (h *Hasher) Hash(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate password salt")
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLength)

	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)

	return encoded, nil
}

// Verify reports whether plaintext reproduces the encoded hash. It never
// returns an error: malformed hashes, unsupported versions, and empty inputs
// all verify as false.
func (h *Hasher) Verify(encoded, password string) bool {
	if encoded == "" || password == "" {
		return false
	}

	params, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false
	}

	candidate := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, uint32(len(key)))

	return subtle.ConstantTimeCompare(key, candidate) == 1
}

func decodeHash(encoded string) (HashParams, []byte, []byte, error) {
	var params HashParams

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return params, nil, nil, fmt.Errorf("unexpected hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, err
	}
	if version != argon2.Version {
		return params, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Time, &params.Threads); err != nil {
		return params, nil, nil, err
	}

	// argon2.IDKey panics on zero rounds or lanes, and a crafted memory
	// parameter would force the allocation; a hash carrying them must fail
	// verification instead
	if params.Time < 1 || params.Threads < 1 {
		return params, nil, nil, fmt.Errorf("invalid argon2 parameters")
	}
	if params.Memory < 8*uint32(params.Threads) || params.Memory > maxVerifyMemory {
		return params, nil, nil, fmt.Errorf("argon2 memory parameter out of range")
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, err
	}
	if len(salt) == 0 {
		return params, nil, nil, fmt.Errorf("empty salt")
	}

	key, err := base64.RawStdEncoding.Strict().DecodeString(parts[5])
	if err != nil {
		return params, nil, nil, err
	}
	if len(key) == 0 {
		return params, nil, nil, fmt.Errorf("empty derived key")
	}

	return params, salt, key, nil
}

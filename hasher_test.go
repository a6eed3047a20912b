package users_test

import (
	"strings"
	"testing"

	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// small parameters keep the test fast without changing the code path
func testHasher() *users.Hasher {
	return users.NewHasher(users.HashParams{
		Memory:  1024,
		Time:    1,
		Threads: 1,
	})
}

func TestHasherHashAndVerify(t *testing.T) {
	hasher := testHasher()

	encoded, err := hasher.Hash("S3cure!pass")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))
	assert.NotContains(t, encoded, "S3cure!pass")

	assert.True(t, hasher.Verify(encoded, "S3cure!pass"))
	assert.False(t, hasher.Verify(encoded, "S3cure!pas"))
	assert.False(t, hasher.Verify(encoded, ""))
}

func TestHasherSaltedHashesDiffer(t *testing.T) {
	hasher := testHasher()

	first, err := hasher.Hash("S3cure!pass")
	require.NoError(t, err)

	second, err := hasher.Hash("S3cure!pass")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, hasher.Verify(first, "S3cure!pass"))
	assert.True(t, hasher.Verify(second, "S3cure!pass"))
}

func TestHasherRejectsEmptyPassword(t *testing.T) {
	hasher := testHasher()

	tests := []struct {
		name     string
		password string
	}{
		{name: "empty", password: ""},
		{name: "spaces only", password: "   "},
		{name: "tabs and newlines", password: "\t\n "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := hasher.Hash(tc.password)
			require.Error(t, err)
			assert.ErrorIs(t, err, users.ErrEmptyPassword)
			assert.True(t, users.IsValidation(err))
		})
	}
}

func TestHasherVerifyMalformedEncodings(t *testing.T) {
	hasher := testHasher()

	tests := []struct {
		name    string
		encoded string
	}{
		{name: "empty string", encoded: ""},
		{name: "not a hash", encoded: "plaintext"},
		{name: "wrong algorithm", encoded: "$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$a2V5"},
		{name: "wrong version", encoded: "$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$a2V5"},
		{name: "bad parameters", encoded: "$argon2id$v=19$m=abc,t=1,p=1$c2FsdA$a2V5"},
		{name: "bad base64 salt", encoded: "$argon2id$v=19$m=1024,t=1,p=1$!!!$a2V5"},
		{name: "missing key", encoded: "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$"},
		{name: "zero rounds", encoded: "$argon2id$v=19$m=1024,t=0,p=1$c2FsdA$a2V5"},
		{name: "zero lanes", encoded: "$argon2id$v=19$m=1024,t=1,p=0$c2FsdA$a2V5"},
		{name: "memory below lane minimum", encoded: "$argon2id$v=19$m=4,t=1,p=1$c2FsdA$a2V5"},
		{name: "absurd memory", encoded: "$argon2id$v=19$m=4294967295,t=1,p=1$c2FsdA$a2V5"},
		{name: "empty salt", encoded: "$argon2id$v=19$m=1024,t=1,p=1$$a2V5"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, hasher.Verify(tc.encoded, "S3cure!pass"))
		})
	}
}

func TestHasherVerifyAcrossParameterChanges(t *testing.T) {
	old := users.NewHasher(users.HashParams{Memory: 1024, Time: 1, Threads: 1})

	encoded, err := old.Hash("S3cure!pass")
	require.NoError(t, err)

	// parameters travel inside the encoded hash, so a hasher configured
	// with different settings still verifies older records
	current := users.NewHasher(users.HashParams{Memory: 2048, Time: 2, Threads: 2})
	assert.True(t, current.Verify(encoded, "S3cure!pass"))
}

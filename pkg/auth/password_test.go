package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	// Use min cost to keep the test fast
	hasher := NewPasswordHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, hasher.Verify(hash, "correct horse battery staple"))
	assert.False(t, hasher.Verify(hash, "wrong password"))
}

func TestPasswordHasher_MalformedHash(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)

	// A malformed hash verifies false, it does not panic or error
	assert.False(t, hasher.Verify("not-a-bcrypt-hash", "anything"))
	assert.False(t, hasher.Verify("", "anything"))
}

func TestNewPasswordHasher_CostFallback(t *testing.T) {
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(0).cost)
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(99).cost)
	assert.Equal(t, 10, NewPasswordHasher(10).cost)
}

package cryptox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_HashVerify(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("adminpass")
	require.NoError(t, err)
	assert.NotEqual(t, "adminpass", hash)

	assert.True(t, h.Verify("adminpass", hash))
	assert.False(t, h.Verify("adminpas", hash))
	assert.False(t, h.Verify("adminpass", "not-a-bcrypt-hash"))
	assert.False(t, h.Verify("adminpass", ""))
}

func TestNewBcryptHasher_CostBounds(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(bcrypt.MaxCost+1).cost)
	assert.Equal(t, bcrypt.MinCost, NewBcryptHasher(bcrypt.MinCost).cost)
}

package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := "0123456789abcdef0123456789abcdef"
	sig := "fedcba9876543210fedcba9876543210"

	encoded, err := Encrypt([]byte("something secret"), key, sig)
	require.Nil(t, err)
	assert.NotContains(t, encoded, "something secret")

	plain, err := Decrypt(encoded, key, sig)
	require.Nil(t, err)
	assert.Equal(t, []byte("something secret"), plain)
}

func TestDecryptWrongKey(t *testing.T) {
	key := "0123456789abcdef0123456789abcdef"
	sig := "fedcba9876543210fedcba9876543210"

	encoded, err := Encrypt([]byte("something secret"), key, sig)
	require.Nil(t, err)

	_, err = Decrypt(encoded, "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx", sig)
	assert.NotNil(t, err)

	_, err = Decrypt(encoded, key, "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx")
	assert.NotNil(t, err)
}

func TestShortKeysRejected(t *testing.T) {
	_, err := Encrypt([]byte("x"), "short", "fedcba9876543210fedcba9876543210")
	assert.NotNil(t, err)

	_, err = Encrypt([]byte("x"), "0123456789abcdef0123456789abcdef", "short")
	assert.NotNil(t, err)
}

func TestNewRandomKey(t *testing.T) {
	a, err := NewRandomKey()
	require.Nil(t, err)
	b, err := NewRandomKey()
	require.Nil(t, err)

	assert.NotEqual(t, a, b)
	assert.GreaterOrEqual(t, len(a), 32)
}

package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaintextRoundTrip(t *testing.T) {
	c := Plaintext{}

	blob, err := c.Encrypt("sk-test")
	require.NoError(t, err)

	out, err := c.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", out)
}

func TestAESGCMRoundTrip(t *testing.T) {
	c, err := NewAESGCM("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	blob, err := c.Encrypt("sk-test")
	require.NoError(t, err)
	assert.NotEqual(t, []byte("sk-test"), blob)

	out, err := c.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", out)
}

func TestAESGCMRejectsBadKeyLength(t *testing.T) {
	_, err := NewAESGCM("short")
	assert.Error(t, err)
}

func TestAESGCMRejectsTamperedCiphertext(t *testing.T) {
	c, err := NewAESGCM("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	blob, err := c.Encrypt("sk-test")
	require.NoError(t, err)

	blob[len(blob)-1] ^= 0xff
	_, err = c.Decrypt(blob)
	assert.Error(t, err)
}

func TestAESGCMRejectsShortBlob(t *testing.T) {
	c, err := NewAESGCM("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	_, err = c.Decrypt([]byte{0x01})
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	c, err := FromConfig("", "")
	require.NoError(t, err)
	assert.IsType(t, Plaintext{}, c)

	c, err = FromConfig("plaintext", "")
	require.NoError(t, err)
	assert.IsType(t, Plaintext{}, c)

	c, err = FromConfig("aesgcm", "0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	assert.IsType(t, &AESGCM{}, c)

	_, err = FromConfig("rot13", "")
	assert.Error(t, err)
}

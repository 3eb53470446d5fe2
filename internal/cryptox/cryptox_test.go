package cryptox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	key1 := DeriveKey([]byte("passphrase"), []byte("salt"))
	key2 := DeriveKey([]byte("passphrase"), []byte("salt"))

	assert.Equal(t, key1, key2)
	assert.Len(t, key1, 32)
}

func TestDeriveKey_DifferentSalts(t *testing.T) {
	key1 := DeriveKey([]byte("passphrase"), []byte("salt-1"))
	key2 := DeriveKey([]byte("passphrase"), []byte("salt-2"))

	assert.NotEqual(t, key1, key2)
}

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := NewCodec(DeriveKey([]byte("passphrase"), []byte("salt")))
	require.NoError(t, err)

	in := map[string]any{
		"secret_code": "1234",
		"signature":   "aGVsbG8=",
		"order_data":  map[string]any{"contact_phone": "9991234567"},
	}

	blob, err := codec.Seal(in)
	require.NoError(t, err)
	assert.NotContains(t, blob, "1234")

	var out map[string]any
	require.NoError(t, codec.Open(blob, &out))
	assert.Equal(t, "1234", out["secret_code"])
	assert.Equal(t, "aGVsbG8=", out["signature"])
}

func TestCodec_NonceVariesPerSeal(t *testing.T) {
	codec, err := NewCodec(DeriveKey([]byte("passphrase"), []byte("salt")))
	require.NoError(t, err)

	blob1, err := codec.Seal("same payload")
	require.NoError(t, err)
	blob2, err := codec.Seal("same payload")
	require.NoError(t, err)

	assert.NotEqual(t, blob1, blob2)
}

func TestCodec_EmptyBlob(t *testing.T) {
	codec, err := NewCodec(DeriveKey([]byte("passphrase"), []byte("salt")))
	require.NoError(t, err)

	out := map[string]any{}
	require.NoError(t, codec.Open("", &out))
	assert.Empty(t, out)
}

func TestCodec_WrongKey(t *testing.T) {
	codec1, err := NewCodec(DeriveKey([]byte("passphrase"), []byte("salt")))
	require.NoError(t, err)
	codec2, err := NewCodec(DeriveKey([]byte("other"), []byte("salt")))
	require.NoError(t, err)

	blob, err := codec1.Seal("payload")
	require.NoError(t, err)

	var out string
	assert.Error(t, codec2.Open(blob, &out))
}

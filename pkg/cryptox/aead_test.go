package cryptox

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := testKey(t)
	plaintext := []byte(`{"client_id":"app","user_id":"01jq"}`)

	sealed, err := Seal(key, plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, sealed)

	opened, err := Open(key, sealed)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestSeal_NonDeterministic(t *testing.T) {
	key := testKey(t)
	plaintext := []byte("same input")

	a, err := Seal(key, plaintext)
	require.NoError(t, err)
	b, err := Seal(key, plaintext)
	require.NoError(t, err)
	require.NotEqual(t, a, b, "nonce should differ per encryption")
}

func TestOpen_Tampered(t *testing.T) {
	key := testKey(t)

	sealed, err := Seal(key, []byte("payload"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0x01
	_, err = Open(key, sealed)
	require.ErrorIs(t, err, ErrCiphertextInvalid)
}

func TestOpen_WrongKey(t *testing.T) {
	sealed, err := Seal(testKey(t), []byte("payload"))
	require.NoError(t, err)

	_, err = Open(testKey(t), sealed)
	require.ErrorIs(t, err, ErrCiphertextInvalid)
}

func TestOpen_Truncated(t *testing.T) {
	key := testKey(t)

	_, err := Open(key, []byte("short"))
	require.ErrorIs(t, err, ErrCiphertextInvalid)

	_, err = Open(key, nil)
	require.ErrorIs(t, err, ErrCiphertextInvalid)
}

func TestSeal_BadKeySize(t *testing.T) {
	_, err := Seal(make([]byte, 16), []byte("payload"))
	require.Error(t, err)
}

package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCipherboxRoundtrip(t *testing.T) {
	box := NewCipherbox("correct horse battery staple")
	plaintext := []byte("the content of a very private document")

	sealed, err := box.Seal(plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, sealed.Ciphertext)
	require.Len(t, sealed.Salt, saltLen)

	opened, err := box.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestCipherboxWrongPassphraseFails(t *testing.T) {
	box := NewCipherbox("right")
	sealed, err := box.Seal([]byte("data"))
	require.NoError(t, err)

	wrong := NewCipherbox("wrong")
	_, err = wrong.Open(sealed)
	require.Error(t, err)
}

func TestCipherboxIndependentSalts(t *testing.T) {
	box := NewCipherbox("pass")
	first, err := box.Seal([]byte("same input"))
	require.NoError(t, err)
	second, err := box.Seal([]byte("same input"))
	require.NoError(t, err)

	require.NotEqual(t, first.Salt, second.Salt)
	require.NotEqual(t, first.Nonce, second.Nonce)
	require.NotEqual(t, first.Ciphertext, second.Ciphertext)
}

func TestCipherboxTamperDetected(t *testing.T) {
	box := NewCipherbox("pass")
	sealed, err := box.Seal([]byte("data"))
	require.NoError(t, err)

	sealed.Ciphertext[0] ^= 0xff
	_, err = box.Open(sealed)
	require.Error(t, err)
}

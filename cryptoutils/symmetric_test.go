package cryptoutils

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPasswordRoundTrip tests EncryptWithPassword and DecryptWithPassword
func TestPasswordRoundTrip(t *testing.T) {
	testCases := []struct {
		name     string
		data     []byte
		password string
	}{
		{
			name:     "Simple string",
			data:     []byte("This is a secret contract"),
			password: "secret123",
		},
		{
			name:     "Binary data",
			data:     []byte{0x00, 0x01, 0x02, 0x03, 0xFF, 0xFE, 0xFD},
			password: "secret123",
		},
		{
			name:     "Empty password",
			data:     []byte("%PDF-1.7 unencrypted contract"),
			password: "",
		},
		{
			name:     "Empty data",
			data:     []byte{},
			password: "secret123",
		},
		{
			name:     "Long data",
			data:     make([]byte, 64*1024),
			password: "päss wörd",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cipherText, err := EncryptWithPassword(tc.data, tc.password)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(cipherText, passwordCipherPrefix))

			plaintext, err := DecryptWithPassword(cipherText, tc.password)
			require.NoError(t, err)
			assert.Equal(t, len(tc.data), len(plaintext))
			assert.Equal(t, string(tc.data), string(plaintext))
		})
	}
}

func TestPasswordEncryptionIsSalted(t *testing.T) {
	a, err := EncryptWithPassword([]byte("same"), "pw")
	require.NoError(t, err)
	b, err := EncryptWithPassword([]byte("same"), "pw")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptWithWrongPassword(t *testing.T) {
	cipherText, err := EncryptWithPassword([]byte(`{"fields":[]}`), "secret123")
	require.NoError(t, err)

	for _, password := range []string{"wrong", "", "secret1234"} {
		plaintext, err := DecryptWithPassword(cipherText, password)
		assert.ErrorIs(t, err, ErrDecryption, "password %q", password)
		assert.Nil(t, plaintext)
	}
}

func TestDecryptMalformedCipherText(t *testing.T) {
	valid, err := EncryptWithPassword([]byte("payload"), "pw")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(valid, passwordCipherPrefix))
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	tampered := passwordCipherPrefix + base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name       string
		cipherText string
	}{
		{name: "no prefix", cipherText: "U2FsdGVkX1+abc"},
		{name: "bad base64", cipherText: passwordCipherPrefix + "!!!"},
		{name: "too short", cipherText: passwordCipherPrefix + base64.StdEncoding.EncodeToString([]byte("short"))},
		{name: "tampered", cipherText: tampered},
		{name: "empty", cipherText: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecryptWithPassword(tt.cipherText, "pw")
			assert.ErrorIs(t, err, ErrDecryption)
		})
	}
}

func TestDecryptStringRejectsInvalidUTF8(t *testing.T) {
	cipherText, err := EncryptWithPassword([]byte{0xff, 0xfe, 0xfd}, "pw")
	require.NoError(t, err)

	_, err = DecryptStringWithPassword(cipherText, "pw")
	assert.ErrorIs(t, err, ErrDecryption)

	cipherText, err = EncryptStringWithPassword("<xfdf/>", "pw")
	require.NoError(t, err)
	plaintext, err := DecryptStringWithPassword(cipherText, "pw")
	require.NoError(t, err)
	assert.Equal(t, "<xfdf/>", plaintext)
}

func TestSealWithKey(t *testing.T) {
	key, err := GenerateSymmetricKey()
	require.NoError(t, err)
	require.Len(t, key, SymmetricKeySize)

	sealed, err := SealWithKey(key, []byte("document bytes"))
	require.NoError(t, err)

	plaintext, err := OpenWithKey(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("document bytes"), plaintext)

	otherKey, err := GenerateSymmetricKey()
	require.NoError(t, err)
	_, err = OpenWithKey(otherKey, sealed)
	assert.ErrorIs(t, err, ErrDecryption)

	_, err = OpenWithKey(key[:16], sealed)
	assert.ErrorIs(t, err, ErrDecryption)

	_, err = SealWithKey(key[:16], []byte("x"))
	assert.Error(t, err)
}

package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

// ErrDecryption is returned when a ciphertext cannot be opened, either because the
// key material is wrong or because the ciphertext is malformed. The two cases are
// deliberately not distinguished.
var ErrDecryption = errors.New("decryption failed")

const (
	// passwordCipherPrefix tags the self-contained password ciphertext format:
	// "v1." + base64(salt || nonce || AES-256-GCM ciphertext).
	passwordCipherPrefix = "v1."

	passwordSaltSize = 16
	gcmNonceSize     = 12

	// SymmetricKeySize is the size of raw AES-256 keys used for envelope encryption.
	SymmetricKeySize = 32
)

// Argon2id parameters for password key derivation.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// derivePasswordKey stretches a password into an AES-256 key using Argon2id.
func derivePasswordKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, SymmetricKeySize)
}

// EncryptWithPassword encrypts blob with a key derived from password.
//
// The result is a printable string that embeds the random salt and nonce, so
// DecryptWithPassword can invert it with only the password. An empty password is
// accepted; it is used for documents that are stored without a secret.
func EncryptWithPassword(blob []byte, password string) (string, error) {
	salt := make([]byte, passwordSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	sealed, err := SealWithKey(derivePasswordKey(password, salt), blob)
	if err != nil {
		return "", err
	}

	out := make([]byte, 0, len(salt)+len(sealed))
	out = append(out, salt...)
	out = append(out, sealed...)

	return passwordCipherPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// DecryptWithPassword inverts EncryptWithPassword.
// Any failure, including a wrong password, yields an error wrapping ErrDecryption.
func DecryptWithPassword(cipherText string, password string) ([]byte, error) {
	if !strings.HasPrefix(cipherText, passwordCipherPrefix) {
		return nil, fmt.Errorf("%w: unknown ciphertext format", ErrDecryption)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(cipherText, passwordCipherPrefix))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid encoding: %v", ErrDecryption, err)
	}

	if len(raw) < passwordSaltSize+gcmNonceSize {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryption)
	}

	salt := raw[:passwordSaltSize]
	return OpenWithKey(derivePasswordKey(password, salt), raw[passwordSaltSize:])
}

// EncryptStringWithPassword is EncryptWithPassword for text such as overlays.
func EncryptStringWithPassword(plaintext string, password string) (string, error) {
	return EncryptWithPassword([]byte(plaintext), password)
}

// DecryptStringWithPassword is DecryptWithPassword for text. Plaintext that is not
// valid UTF-8 is rejected as ErrDecryption.
func DecryptStringWithPassword(cipherText string, password string) (string, error) {
	plaintext, err := DecryptWithPassword(cipherText, password)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plaintext) {
		return "", fmt.Errorf("%w: plaintext is not valid UTF-8", ErrDecryption)
	}
	return string(plaintext), nil
}

// GenerateSymmetricKey returns a fresh random AES-256 key.
func GenerateSymmetricKey() ([]byte, error) {
	key := make([]byte, SymmetricKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate symmetric key: %w", err)
	}
	return key, nil
}

// SealWithKey encrypts plaintext with AES-GCM under a raw key.
// Format: [nonce (12 bytes)][ciphertext+tag]
func SealWithKey(key []byte, plaintext []byte) ([]byte, error) {
	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return aesGCM.Seal(nonce, nonce, plaintext, nil), nil
}

// OpenWithKey decrypts data produced by SealWithKey.
func OpenWithKey(key []byte, sealed []byte) ([]byte, error) {
	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	if len(sealed) < gcmNonceSize+aesGCM.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryption)
	}

	plaintext, err := aesGCM.Open(nil, sealed[:gcmNonceSize], sealed[gcmNonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != SymmetricKeySize {
		return nil, fmt.Errorf("invalid key length %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return aesGCM, nil
}

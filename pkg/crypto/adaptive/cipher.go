package adaptive

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// KeySize is the key length accepted by every cipher type.
const KeySize = 32

// CipherType identifies the cipher algorithm.
type CipherType string

const (
	CipherAESGCM   CipherType = "aes-gcm"
	CipherChaCha20 CipherType = "chacha20-poly1305"
)

// ErrDecrypt is returned when ciphertext fails authentication.
var ErrDecrypt = errors.New("adaptive: message authentication failed")

// Cipher provides authenticated encryption.
type Cipher interface {
	// Type returns the cipher type.
	Type() CipherType

	// Encrypt encrypts plaintext with additional data. The nonce is
	// prepended to the result.
	Encrypt(plaintext, additionalData []byte) ([]byte, error)

	// Decrypt reverses Encrypt. It fails with ErrDecrypt when the
	// ciphertext or additional data was altered.
	Decrypt(ciphertext, additionalData []byte) ([]byte, error)

	// NonceSize returns the nonce size in bytes.
	NonceSize() int

	// Overhead returns the authentication tag size in bytes.
	Overhead() int
}

// New creates a cipher for key, choosing the algorithm from the hardware.
func New(key []byte) (Cipher, error) {
	return NewWithType(key, Preferred())
}

// NewWithType creates a cipher of the specified type. An empty type means
// Preferred().
func NewWithType(key []byte, cipherType CipherType) (Cipher, error) {
	if cipherType == "" {
		cipherType = Preferred()
	}
	build, ok := constructors[cipherType]
	if !ok {
		return nil, fmt.Errorf("adaptive: unknown cipher type %q", cipherType)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("adaptive: %s key must be %d bytes, got %d", cipherType, KeySize, len(key))
	}
	aead, err := build(key)
	if err != nil {
		return nil, fmt.Errorf("adaptive: init %s: %w", cipherType, err)
	}
	return &aeadCipher{typ: cipherType, aead: aead}, nil
}

// Preferred returns the cipher type best suited to this machine. Go's AES
// implementation is hardware accelerated on amd64 and arm64.
func Preferred() CipherType {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return CipherAESGCM
	default:
		return CipherChaCha20
	}
}

// GenerateKey returns a random key of KeySize bytes.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// EncodeKey renders key as unpadded URL-safe base64.
func EncodeKey(key []byte) string {
	return base64.RawURLEncoding.EncodeToString(key)
}

// ParseKey decodes a key written by EncodeKey or as 64 hex digits.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	var (
		key []byte
		err error
	)
	if len(s) == hex.EncodedLen(KeySize) {
		key, err = hex.DecodeString(s)
	} else {
		key, err = base64.RawURLEncoding.DecodeString(s)
	}
	if err != nil {
		return nil, fmt.Errorf("adaptive: decode key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("adaptive: key is %d bytes, want %d", len(key), KeySize)
	}
	return key, nil
}

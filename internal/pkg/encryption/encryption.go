// Package encryption provides authenticated symmetric encryption for OAuth
// tokens at rest, plus helpers for CSRF state tokens in OAuth redirect flows.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/scrypt"
)

const (
	keySize   = 32 // AES-256
	ivSize    = 16
	tagSize   = 16
	delimiter = ":"

	// Static application salt for key derivation. The secret itself is the
	// only confidential input.
	keySalt = "creatorlink-token-encryption"
)

// ErrDecryptFailed is returned for any ciphertext that cannot be authenticated
// and decrypted: wrong key, corruption, tampering or a malformed blob.
var ErrDecryptFailed = errors.New("decryption failed")

// Service encrypts and decrypts credential strings with AES-256-GCM.
type Service struct {
	key []byte
}

// New derives the encryption key from the configured secret via scrypt. When
// no secret is configured it falls back to an ephemeral random key and warns:
// ciphertexts will not survive a restart and cannot be shared across
// instances.
func New(secret string, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if strings.TrimSpace(secret) == "" {
		key := make([]byte, keySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("encryption: generate ephemeral key: %w", err)
		}
		logger.Warn("no encryption secret configured; using an ephemeral key, " +
			"encrypted credentials will be unreadable after restart and across instances")
		return &Service{key: key}, nil
	}

	key, err := scrypt.Key([]byte(secret), []byte(keySalt), 1<<15, 8, 1, keySize)
	if err != nil {
		return nil, fmt.Errorf("encryption: derive key: %w", err)
	}
	return &Service{key: key}, nil
}

// Encrypt seals a plaintext into "iv:tag:ciphertext" (base64 segments). The IV
// is random per call, so equal plaintexts produce different blobs. Empty input
// passes through as an empty string.
func (s *Service) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return "", err
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return strings.Join([]string{
		base64.StdEncoding.EncodeToString(iv),
		base64.StdEncoding.EncodeToString(tag),
		base64.StdEncoding.EncodeToString(ciphertext),
	}, delimiter), nil
}

// Decrypt opens a blob produced by Encrypt. It fails closed: anything that is
// not exactly three base64 segments, or whose authentication tag does not
// verify, yields ErrDecryptFailed rather than garbage plaintext.
func (s *Service) Decrypt(blob string) (string, error) {
	if blob == "" {
		return "", nil
	}

	parts := strings.Split(blob, delimiter)
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: malformed blob", ErrDecryptFailed)
	}

	iv, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(iv) != ivSize {
		return "", fmt.Errorf("%w: bad iv", ErrDecryptFailed)
	}
	tag, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", fmt.Errorf("%w: bad tag", ErrDecryptFailed)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext", ErrDecryptFailed)
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	return string(plaintext), nil
}

// GenerateOAuthState returns a high-entropy random token for CSRF-protected
// OAuth redirects.
func GenerateOAuthState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashState digests a state token so it can be stored and compared without
// keeping the raw value around.
func HashState(state string) string {
	sum := sha256.Sum256([]byte(state))
	return hex.EncodeToString(sum[:])
}

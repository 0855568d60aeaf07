// Package security implements the crypto boundary of the credential vault.
// The gateway treats it as a black box: CryptoService is the only contract
// the rest of the code depends on.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// CryptoService encrypts and decrypts per-integration secrets. Ciphertexts
// are bound to the organization that owns them; decrypting with a different
// organization id fails.
type CryptoService interface {
	Encrypt(plaintext string, organizationID string) ([]byte, error)
	Decrypt(ciphertext []byte, organizationID string) (string, error)
}

// EncryptionService implements CryptoService using AES-256-GCM with a
// per-organization key derived from the master key.
type EncryptionService struct {
	masterKey []byte
	saltSize  int
	keyIter   int
}

// NewEncryptionService creates an EncryptionService from a master key
func NewEncryptionService(masterKey string) *EncryptionService {
	hash := sha256.Sum256([]byte(masterKey))
	return &EncryptionService{
		masterKey: hash[:],
		saltSize:  32,
		keyIter:   10000,
	}
}

// Encrypt seals plaintext for the given organization. Output layout is
// salt || nonce || ciphertext.
func (e *EncryptionService) Encrypt(plaintext string, organizationID string) ([]byte, error) {
	salt := make([]byte, e.saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := e.aead(organizationID, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	out := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt reverses Encrypt for the same organization
func (e *EncryptionService) Decrypt(ciphertext []byte, organizationID string) (string, error) {
	if len(ciphertext) < e.saltSize+12 { // 12 is the minimum GCM nonce size
		return "", fmt.Errorf("invalid ciphertext: too short")
	}

	salt := ciphertext[:e.saltSize]
	rest := ciphertext[e.saltSize:]

	gcm, err := e.aead(organizationID, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(rest) < nonceSize {
		return "", fmt.Errorf("invalid ciphertext: missing nonce")
	}

	plaintext, err := gcm.Open(nil, rest[:nonceSize], rest[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

func (e *EncryptionService) aead(organizationID string, salt []byte) (cipher.AEAD, error) {
	key := e.deriveKey(organizationID, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// deriveKey derives the organization-specific encryption key
func (e *EncryptionService) deriveKey(organizationID string, salt []byte) []byte {
	material := append([]byte(organizationID), e.masterKey...)
	return pbkdf2.Key(material, salt, e.keyIter, 32, sha256.New)
}

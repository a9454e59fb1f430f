package credentials

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/pbkdf2"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nvallejo/weft/internal/store"
	"github.com/nvallejo/weft/pkg/schema"
)

// VaultConfig configures the AES vault key derivation.
// Provide either MasterKey (raw 32 bytes) or Passphrase + Salt.
type VaultConfig struct {
	MasterKey  []byte // raw 32-byte key (takes priority)
	Passphrase string // derive key via PBKDF2
	Salt       []byte // salt for PBKDF2 (required with Passphrase)
	Iterations int    // PBKDF2 iterations (default 100_000)
}

// AESVault encrypts credential payloads with AES-256-GCM before persisting
// them through the store. Decrypted payloads exist only in memory.
type AESVault struct {
	store store.Store
	aead  cipher.AEAD
}

// NewAESVault creates a vault with AES-256-GCM encryption.
func NewAESVault(s store.Store, cfg VaultConfig) (*AESVault, error) {
	key, err := deriveKey(cfg)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &AESVault{store: s, aead: aead}, nil
}

func deriveKey(cfg VaultConfig) ([]byte, error) {
	if len(cfg.MasterKey) > 0 {
		if len(cfg.MasterKey) != 32 {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"master key must be 32 bytes, got %d", len(cfg.MasterKey))
		}
		return cfg.MasterKey, nil
	}
	if cfg.Passphrase == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "either master_key or passphrase is required")
	}
	if len(cfg.Salt) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "salt is required with passphrase")
	}
	iterations := cfg.Iterations
	if iterations <= 0 {
		iterations = 100_000
	}
	return pbkdf2.Key(sha256.New, cfg.Passphrase, cfg.Salt, iterations, 32)
}

func (v *AESVault) encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return v.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (v *AESVault) decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := v.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, schema.NewError(schema.ErrCodeStore, "ciphertext too short")
	}
	nonce := ciphertext[:nonceSize]
	ct := ciphertext[nonceSize:]
	plaintext, err := v.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "decrypt failed: %s", err.Error())
	}
	return plaintext, nil
}

// Store encrypts the payload and persists it, returning the credential ID.
func (v *AESVault) Store(ctx context.Context, name, ownerUser, credentialType string, payload map[string]any) (string, error) {
	if ownerUser == "" {
		return "", schema.NewError(schema.ErrCodeValidation, "credential owner is required")
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal credential payload: %w", err)
	}
	ciphertext, err := v.encrypt(plaintext)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	err = v.store.CreateCredential(ctx, &store.Credential{
		ID:         id,
		Name:       name,
		OwnerUser:  ownerUser,
		Type:       credentialType,
		Ciphertext: ciphertext,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetDecrypted loads and decrypts a credential. Only the owner may read it.
func (v *AESVault) GetDecrypted(ctx context.Context, credentialID, requestingUser string) (map[string]any, error) {
	cred, err := v.store.GetCredential(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if cred.OwnerUser != requestingUser {
		return nil, schema.NewErrorf(schema.ErrCodeCredentialDenied,
			"credential %q is not owned by the requesting user", credentialID)
	}

	plaintext, err := v.decrypt(cred.Ciphertext)
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal credential payload: %w", err)
	}
	return payload, nil
}

// Delete removes a credential. Same ownership rules as GetDecrypted.
func (v *AESVault) Delete(ctx context.Context, credentialID, requestingUser string) error {
	cred, err := v.store.GetCredential(ctx, credentialID)
	if err != nil {
		return err
	}
	if cred.OwnerUser != requestingUser {
		return schema.NewErrorf(schema.ErrCodeCredentialDenied,
			"credential %q is not owned by the requesting user", credentialID)
	}
	return v.store.DeleteCredential(ctx, credentialID)
}

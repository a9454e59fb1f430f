package credentials

import "context"

// Vault resolves stored credentials for nodes that need secrets at runtime.
// Credential payloads are encrypted at rest (AES-256-GCM) and decrypted
// in-memory only.
type Vault interface {
	// GetDecrypted returns the decrypted payload of a credential. The
	// requesting user must own the credential; a mismatch fails with
	// CREDENTIAL_DENIED, an unknown ID with NOT_FOUND.
	GetDecrypted(ctx context.Context, credentialID, requestingUser string) (map[string]any, error)

	// Store encrypts and persists a credential payload for a user,
	// returning the credential ID.
	Store(ctx context.Context, name, ownerUser, credentialType string, payload map[string]any) (string, error)

	// Delete removes a credential. Same ownership rules as GetDecrypted.
	Delete(ctx context.Context, credentialID, requestingUser string) error
}

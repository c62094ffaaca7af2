package domain

// TokenCipher turns plaintext credential bundles into self-contained,
// integrity-protected envelopes safe to store as opaque strings, and back.
type TokenCipher interface {
	// Encrypt seals the plaintext into an envelope. Two calls with the same
	// plaintext produce different envelopes.
	Encrypt(plaintext string) (string, error)
	// Decrypt opens an envelope. It returns ErrTokenFormat for malformed
	// input and ErrTokenIntegrity when authentication fails.
	Decrypt(envelope string) (string, error)
}

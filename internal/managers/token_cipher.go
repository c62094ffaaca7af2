package managers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"time"

	"github.com/taskline/taskline/internal/domain"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

const (
	envelopeVersion = 0x01

	// headerSize covers the version byte and the big-endian creation
	// timestamp. The header is authenticated as additional data.
	headerSize = 1 + 8

	kdfIterations = 100_000
)

// kdfSalt is fixed and public. Key strength rests entirely on the shared
// secret and the iteration count; the salt only separates this key space from
// other uses of the same secret.
var kdfSalt = []byte("taskline-credential-tokens")

// tokenCipher seals credential bundles with XChaCha20-Poly1305 under a key
// derived from the shared process secret. The key is recomputed from the
// secret at construction, never persisted; changing the secret makes every
// stored envelope permanently undecryptable.
type tokenCipher struct {
	key []byte
}

func NewTokenCipher(secret string) (domain.TokenCipher, error) {
	if secret == "" {
		return nil, domain.ErrMissingEncryptionSecret
	}

	return &tokenCipher{key: deriveKey([]byte(secret))}, nil
}

// deriveKey stretches the low-entropy shared secret into a 32-byte cipher key
// with PBKDF2-HMAC-SHA256. Deterministic, so the key survives process
// restarts without separate key storage.
func deriveKey(secret []byte) []byte {
	return pbkdf2.Key(secret, kdfSalt, kdfIterations, chacha20poly1305.KeySize, sha256.New)
}

func (c *tokenCipher) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", domain.ErrTokenFormat
	}

	header := make([]byte, headerSize)
	header[0] = envelopeVersion
	binary.BigEndian.PutUint64(header[1:], uint64(time.Now().Unix()))

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	envelope := make([]byte, 0, headerSize+len(nonce)+len(plaintext)+aead.Overhead())
	envelope = append(envelope, header...)
	envelope = append(envelope, nonce...)
	envelope = aead.Seal(envelope, nonce, []byte(plaintext), header)

	return base64.RawURLEncoding.EncodeToString(envelope), nil
}

func (c *tokenCipher) Decrypt(envelope string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(envelope)
	if err != nil {
		return "", domain.ErrTokenFormat
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", domain.ErrTokenFormat
	}

	if len(raw) < headerSize+aead.NonceSize()+aead.Overhead() {
		return "", domain.ErrTokenFormat
	}

	header := raw[:headerSize]
	if header[0] != envelopeVersion {
		return "", domain.ErrTokenFormat
	}

	nonce := raw[headerSize : headerSize+aead.NonceSize()]
	sealed := raw[headerSize+aead.NonceSize():]

	// Open's error is replaced with the sentinel so no cipher detail
	// reaches callers or logs.
	plaintext, err := aead.Open(nil, nonce, sealed, header)
	if err != nil {
		return "", domain.ErrTokenIntegrity
	}

	return string(plaintext), nil
}

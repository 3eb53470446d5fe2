package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Codec seals sensitive order/confirmation sub-documents at the
// persistence boundary: callers work with plain values, the store keeps
// only the sealed form. AES-256-GCM with a random 12-byte nonce per
// seal; the nonce is prepended to the ciphertext and the whole blob is
// base64-encoded for a text column.
type Codec struct {
	aead cipher.AEAD
}

// DeriveKey stretches a passphrase and salt into a 32-byte AES key.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)
}

func NewCodec(key []byte) (*Codec, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init payload cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to init payload cipher: %w", err)
	}

	return &Codec{aead: aead}, nil
}

// Seal serializes v to JSON and encrypts it.
func (c *Codec) Seal(v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a blob produced by Seal and unmarshals it into v.
// An empty blob decodes as an untouched v, so columns default to "".
func (c *Codec) Open(blob string, v any) error {
	if blob == "" {
		return nil
	}

	sealed, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}

	if len(sealed) < c.aead.NonceSize() {
		return errors.New("payload too short")
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("failed to decrypt payload: %w", err)
	}

	return json.Unmarshal(plaintext, v)
}

package crypto

import (
	"crypto/cipher"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// NonceSize is the XChaCha20-Poly1305 nonce size (192 bits).
	NonceSize = chacha20poly1305.NonceSizeX
	// TagSize is the Poly1305 authentication tag size.
	TagSize = chacha20poly1305.Overhead
)

var (
	ErrInvalidKeySize       = errors.New("crypto: invalid key size for XChaCha20-Poly1305")
	ErrInvalidNonceSize     = errors.New("crypto: invalid nonce size")
	ErrCiphertextTooShort   = errors.New("crypto: ciphertext too short")
	ErrAuthenticationFailed = errors.New("crypto: authentication failed")
)

// Engine wraps XChaCha20-Poly1305 with caller-supplied nonces.
// Nonce uniqueness is guaranteed by construction at the session layer
// (the nonce embeds the window id and message counter), so the engine
// keeps no nonce state of its own.
type Engine struct {
	aead cipher.AEAD
}

// NewEngine creates an AEAD engine from a 32-byte key.
func NewEngine(key []byte) (*Engine, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKeySize
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Engine{aead: aead}, nil
}

// Seal encrypts and authenticates plaintext.
// Returns: ciphertext || tag (16 bytes). The nonce is not included;
// the receiver reconstructs it from the message header.
func (e *Engine) Seal(nonce, additionalData, plaintext []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonceSize
	}
	return e.aead.Seal(nil, nonce, plaintext, additionalData), nil
}

// Open decrypts and verifies ciphertext || tag. It fails atomically:
// on any tampering of ciphertext, tag, or additional data no plaintext
// is released.
func (e *Engine) Open(nonce, additionalData, ciphertext []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonceSize
	}
	if len(ciphertext) < e.aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// Overhead returns the authentication tag overhead.
func (e *Engine) Overhead() int { return e.aead.Overhead() }

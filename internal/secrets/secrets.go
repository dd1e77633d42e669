// Package secrets encrypts values that must be stored at rest, such as the
// SMTP passwords of rooms with their own mail relay.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

var (
	// ErrInvalidSecret is returned when a stored value is not in the sealed format.
	ErrInvalidSecret = errors.New("secrets: invalid sealed value")
	// ErrIncompatibleVersion is returned for values sealed by an unknown format version.
	ErrIncompatibleVersion = errors.New("secrets: incompatible sealed value version")
	// ErrDecrypt is returned when a value was sealed with another key or was tampered with.
	ErrDecrypt = errors.New("secrets: decryption failed")
	// ErrEmptyKey is returned when the box is constructed without a passphrase.
	ErrEmptyKey = errors.New("secrets: key passphrase is required")
)

const (
	formatName    = "secretbox"
	formatVersion = 1
	nonceSize     = 24
	keySize       = 32
)

// KeyParams tunes the argon2id derivation of the box key from the passphrase.
type KeyParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	Salt        string
}

// DefaultKeyParams derives a key in well under a second on server hardware.
var DefaultKeyParams = KeyParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	Salt:        "room-scheduler/secrets/v1",
}

// Box seals and opens values with a NaCl secretbox key derived from a passphrase.
type Box struct {
	key   [keySize]byte
	nonce io.Reader
}

// NewBox derives the key with DefaultKeyParams.
func NewBox(passphrase string) (*Box, error) {
	return NewBoxWithParams(passphrase, DefaultKeyParams)
}

// NewBoxWithParams derives the key with the given parameters.
func NewBoxWithParams(passphrase string, params KeyParams) (*Box, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, ErrEmptyKey
	}
	derived := argon2.IDKey([]byte(passphrase), []byte(params.Salt), params.Iterations, params.Memory, params.Parallelism, keySize)
	box := &Box{nonce: rand.Reader}
	copy(box.key[:], derived)
	return box, nil
}

// Seal encrypts plaintext. The result has the form $secretbox$v=1$<base64>
// where the payload is the random nonce followed by the sealed box. Empty
// input yields an empty string.
func (b *Box) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(b.nonce, nonce[:]); err != nil {
		return "", fmt.Errorf("secrets: read nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &b.key)
	return fmt.Sprintf("$%s$v=%d$%s", formatName, formatVersion, base64.RawStdEncoding.EncodeToString(sealed)), nil
}

// Open decrypts a value produced by Seal. An empty value opens to an empty string.
func (b *Box) Open(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	parts := strings.Split(value, "$")
	if len(parts) != 4 || parts[0] != "" || parts[1] != formatName {
		return "", ErrInvalidSecret
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return "", ErrInvalidSecret
	}
	if version != formatVersion {
		return "", ErrIncompatibleVersion
	}

	raw, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrInvalidSecret
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plaintext, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

// IsSealed reports whether value looks like the output of Seal.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, "$"+formatName+"$")
}

package storage

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

var _ Storage = (*Sealed)(nil)

// Sealed encrypts values with XChaCha20-Poly1305 before handing them to the
// wrapped Storage. The key name is bound as additional data, so a value copied
// to another key fails to open.
type Sealed struct {
	inner Storage
	aead  cipher.AEAD
}

func NewSealed(inner Storage, key []byte) (*Sealed, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, apperrors.Wrapf(err, "create sealing cipher")
	}
	return &Sealed{inner: inner, aead: aead}, nil
}

func (s *Sealed) Get(key string) (string, error) {
	encoded, err := s.inner.Get(key)
	if err != nil {
		return "", err
	}

	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(data) < s.aead.NonceSize() {
		return "", apperrors.Wrapf(apperrors.ErrCorruptValue, "key %q", key)
	}
	nonce, ciphertext := data[:s.aead.NonceSize()], data[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return "", apperrors.Wrapf(apperrors.ErrCorruptValue, "open key %q", key)
	}
	return string(plain), nil
}

func (s *Sealed) Set(key, value string) error {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return apperrors.Wrapf(err, "generate nonce")
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return s.inner.Set(key, base64.RawURLEncoding.EncodeToString(sealed))
}

func (s *Sealed) Remove(key string) error {
	return s.inner.Remove(key)
}

// Subscribe passes through to the wrapped storage when it can report changes.
func (s *Sealed) Subscribe(fn func(Change)) (func(), error) {
	source, ok := s.inner.(ChangeSource)
	if !ok {
		return nil, apperrors.New("sealed storage: wrapped storage does not report changes")
	}
	return source.Subscribe(fn)
}

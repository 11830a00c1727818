package storage

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// Encryption errors.
var (
	ErrPassphraseTooWeak = errors.New("storage: encryption passphrase too weak (minimum 8 characters)")
	ErrDecryptionFailed  = errors.New("storage: decryption failed - wrong key or corrupted data")
)

const (
	// MinPassphraseLength is the minimum passphrase length.
	MinPassphraseLength = 8

	// SaltLength is the salt length used in key derivation.
	SaltLength = 16

	// SaltKey is where the key derivation salt is stored, unencrypted.
	SaltKey = "meta/encryption_salt"

	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32

	subkeyInfo = "canvasmesh/storage/v1"
)

// EncryptedStore wraps a Store with authenticated encryption at rest.
// Values are sealed with the storage key as additional data, so a blob
// copied under another key fails to open.
type EncryptedStore struct {
	inner  Store
	sealer *sealer
}

// NewEncryptedStore derives a data key from passphrase and wraps inner.
//
// The derivation salt is read from inner under SaltKey, and created on
// first use. Reusing the same passphrase against the same backend yields
// the same data key.
func NewEncryptedStore(ctx context.Context, inner Store, passphrase []byte) (*EncryptedStore, error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, ErrPassphraseTooWeak
	}

	salt, err := loadOrCreateSalt(ctx, inner)
	if err != nil {
		return nil, err
	}

	master := argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	defer zeroKey(master)

	key, err := deriveSubkey(master, subkeyInfo, 32)
	if err != nil {
		return nil, err
	}
	defer zeroKey(key)

	sl, err := newSealer(key)
	if err != nil {
		return nil, fmt.Errorf("storage: create cipher: %w", err)
	}

	return &EncryptedStore{inner: inner, sealer: sl}, nil
}

// Cipher returns the name of the cipher in use.
func (s *EncryptedStore) Cipher() string {
	return s.sealer.name
}

// Get returns the decrypted value stored under key.
func (s *EncryptedStore) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	plain, err := s.sealer.open(sealed, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecryptionFailed, key)
	}
	return plain, nil
}

// Put encrypts value and stores it under key.
func (s *EncryptedStore) Put(ctx context.Context, key string, value []byte) error {
	if isMetaKey(key) {
		return fmt.Errorf("storage: key %q is reserved", key)
	}
	sealed, err := s.sealer.seal(value, []byte(key))
	if err != nil {
		return fmt.Errorf("storage: encrypt: %w", err)
	}
	return s.inner.Put(ctx, key, sealed)
}

// Delete removes key.
func (s *EncryptedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// List returns keys with the given prefix, hiding reserved keys.
func (s *EncryptedStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.inner.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		if !isMetaKey(k) {
			out = append(out, k)
		}
	}
	return out, nil
}

// Ping pings the wrapped store.
func (s *EncryptedStore) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close closes the wrapped store.
func (s *EncryptedStore) Close() error {
	return s.inner.Close()
}

func loadOrCreateSalt(ctx context.Context, inner Store) ([]byte, error) {
	salt, err := inner.Get(ctx, SaltKey)
	switch {
	case err == nil:
		if len(salt) != SaltLength {
			return nil, fmt.Errorf("storage: stored salt has length %d, want %d", len(salt), SaltLength)
		}
		return salt, nil
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("storage: load salt: %w", err)
	}

	salt = make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("storage: generate salt: %w", err)
	}
	if err := inner.Put(ctx, SaltKey, salt); err != nil {
		return nil, fmt.Errorf("storage: persist salt: %w", err)
	}
	return salt, nil
}

// deriveSubkey derives a purpose-bound key from a master key using HKDF.
func deriveSubkey(master []byte, info string, length int) ([]byte, error) {
	reader := hkdf.New(sha256.New, master, nil, []byte(info))
	key := make([]byte, length)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("storage: derive subkey: %w", err)
	}
	return key, nil
}

func zeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}

func isMetaKey(key string) bool {
	return strings.HasPrefix(key, "meta/")
}

package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/sys/cpu"
)

// Cipher names reported by EncryptedStore.Cipher.
const (
	CipherAESGCM   = "aes-256-gcm"
	CipherChaCha20 = "chacha20-poly1305"
)

var errSealedTooShort = errors.New("storage: sealed value too short")

// sealer seals values as nonce || ciphertext || tag.
type sealer struct {
	aead cipher.AEAD
	name string
}

// newSealer picks AES-GCM when the CPU accelerates AES and
// ChaCha20-Poly1305 otherwise. key must be 32 bytes.
func newSealer(key []byte) (*sealer, error) {
	if cpu.X86.HasAES || cpu.ARM64.HasAES {
		return newSealerNamed(key, CipherAESGCM)
	}
	return newSealerNamed(key, CipherChaCha20)
}

func newSealerNamed(key []byte, name string) (*sealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("storage: key must be 32 bytes, got %d", len(key))
	}
	var (
		aead cipher.AEAD
		err  error
	)
	switch name {
	case CipherAESGCM:
		var block cipher.Block
		if block, err = aes.NewCipher(key); err == nil {
			aead, err = cipher.NewGCM(block)
		}
	case CipherChaCha20:
		aead, err = chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("storage: unknown cipher %q", name)
	}
	if err != nil {
		return nil, err
	}
	return &sealer{aead: aead, name: name}, nil
}

func (s *sealer) seal(plain, ad []byte) ([]byte, error) {
	ns := s.aead.NonceSize()
	out := make([]byte, ns, ns+len(plain)+s.aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, err
	}
	return s.aead.Seal(out, out, plain, ad), nil
}

func (s *sealer) open(sealed, ad []byte) ([]byte, error) {
	ns := s.aead.NonceSize()
	if len(sealed) < ns+s.aead.Overhead() {
		return nil, errSealedTooShort
	}
	return s.aead.Open(nil, sealed[:ns], sealed[ns:], ad)
}

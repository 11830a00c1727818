package storage_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/yndnr/canvasmesh-go/internal/storage"
	"github.com/yndnr/canvasmesh-go/internal/storage/memory"
	"github.com/yndnr/canvasmesh-go/internal/storage/storagetest"
)

var testPassphrase = []byte("correct horse battery staple")

func TestEncryptedStore_Conformance(t *testing.T) {
	s, err := storage.NewEncryptedStore(context.Background(), memory.New(), testPassphrase)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	storagetest.Run(t, s)
}

func TestEncryptedStore_CiphertextAtRest(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	s, err := storage.NewEncryptedStore(ctx, inner, testPassphrase)
	if err != nil {
		t.Fatal(err)
	}

	plain := []byte(`{"documents":[{"state":{"id":"shape:1"}}]}`)
	if err := s.Put(ctx, "rooms/secret", plain); err != nil {
		t.Fatal(err)
	}

	raw, err := inner.Get(ctx, "rooms/secret")
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(raw, []byte("shape:1")) {
		t.Error("plaintext visible in backing store")
	}
	if _, err := inner.Get(ctx, storage.SaltKey); err != nil {
		t.Errorf("salt should be persisted: %v", err)
	}
}

func TestEncryptedStore_ReopenWithSamePassphrase(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()

	s1, err := storage.NewEncryptedStore(ctx, inner, testPassphrase)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Put(ctx, "rooms/a", []byte("hello")); err != nil {
		t.Fatal(err)
	}

	s2, err := storage.NewEncryptedStore(ctx, inner, testPassphrase)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s2.Get(ctx, "rooms/a")
	if err != nil {
		t.Fatalf("Get with same passphrase: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("expected hello, got %q", got)
	}

	s3, err := storage.NewEncryptedStore(ctx, inner, []byte("a different passphrase"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s3.Get(ctx, "rooms/a"); !errors.Is(err, storage.ErrDecryptionFailed) {
		t.Errorf("wrong passphrase: expected ErrDecryptionFailed, got %v", err)
	}
}

func TestEncryptedStore_KeyBinding(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	s, err := storage.NewEncryptedStore(ctx, inner, testPassphrase)
	if err != nil {
		t.Fatal(err)
	}

	_ = s.Put(ctx, "rooms/a", []byte("room a"))
	raw, _ := inner.Get(ctx, "rooms/a")
	_ = inner.Put(ctx, "rooms/b", raw)

	if _, err := s.Get(ctx, "rooms/b"); !errors.Is(err, storage.ErrDecryptionFailed) {
		t.Errorf("blob moved to another key should not open, got %v", err)
	}
}

func TestEncryptedStore_Validation(t *testing.T) {
	ctx := context.Background()
	if _, err := storage.NewEncryptedStore(ctx, memory.New(), []byte("short")); !errors.Is(err, storage.ErrPassphraseTooWeak) {
		t.Errorf("expected ErrPassphraseTooWeak, got %v", err)
	}

	s, err := storage.NewEncryptedStore(ctx, memory.New(), testPassphrase)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, storage.SaltKey, []byte("x")); err == nil {
		t.Error("writing a reserved key should fail")
	}
	keys, err := s.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range keys {
		if k == storage.SaltKey {
			t.Error("List should hide reserved keys")
		}
	}
}

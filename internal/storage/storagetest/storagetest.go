// Package storagetest holds a conformance suite shared by storage backends.
package storagetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/yndnr/canvasmesh-go/internal/storage"
)

// Run exercises the storage.Store contract against s.
// The store must start empty and stays open when Run returns.
func Run(t *testing.T, s storage.Store) {
	t.Helper()

	t.Run("PutAndGet", func(t *testing.T) { testPutAndGet(t, s) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, s) })
	t.Run("Replace", func(t *testing.T) { testReplace(t, s) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, s) })
	t.Run("List", func(t *testing.T) { testList(t, s) })
	t.Run("EmptyValue", func(t *testing.T) { testEmptyValue(t, s) })
	t.Run("LongKeys", func(t *testing.T) { testLongKeys(t, s) })
	t.Run("ConcurrentKeys", func(t *testing.T) { testConcurrentKeys(t, s) })
	t.Run("Ping", func(t *testing.T) {
		if err := s.Ping(context.Background()); err != nil {
			t.Fatalf("Ping: %v", err)
		}
	})
}

func testPutAndGet(t *testing.T, s storage.Store) {
	ctx := context.Background()
	want := []byte(`{"clock":3}`)

	if err := s.Put(ctx, "rooms/put-get", want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "rooms/put-get")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Get = %q, want %q", got, want)
	}

	// Mutating the returned slice must not change the stored value.
	got[0] = 'X'
	again, _ := s.Get(ctx, "rooms/put-get")
	if !bytes.Equal(again, want) {
		t.Fatalf("stored value changed through returned slice: %q", again)
	}
}

func testGetMissing(t *testing.T, s storage.Store) {
	_, err := s.Get(context.Background(), "rooms/does-not-exist")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get missing: err = %v, want ErrNotFound", err)
	}
}

func testReplace(t *testing.T, s storage.Store) {
	ctx := context.Background()
	if err := s.Put(ctx, "rooms/replace", []byte("a long first value")); err != nil {
		t.Fatalf("Put first value: %v", err)
	}
	if err := s.Put(ctx, "rooms/replace", []byte("short")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "rooms/replace")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "short" {
		t.Fatalf("Get = %q, want full replace %q", got, "short")
	}
}

func testDelete(t *testing.T, s storage.Store) {
	ctx := context.Background()
	if err := s.Put(ctx, "rooms/delete", []byte("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, "rooms/delete"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "rooms/delete"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get after Delete: err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "rooms/delete"); err != nil {
		t.Fatalf("Delete missing key: %v", err)
	}
}

func testList(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for _, k := range []string{"list/b", "list/a", "list/c", "other/a"} {
		if err := s.Put(ctx, k, []byte(k)); err != nil {
			t.Fatalf("Put %s: %v", k, err)
		}
	}

	keys, err := s.List(ctx, "list/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"list/a", "list/b", "list/c"}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Fatalf("List = %v, want %v", keys, want)
	}

	keys, err = s.List(ctx, "nothing/")
	if err != nil {
		t.Fatalf("List empty: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("List empty = %v", keys)
	}
}

func testEmptyValue(t *testing.T, s storage.Store) {
	ctx := context.Background()
	if err := s.Put(ctx, "rooms/empty", []byte{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "rooms/empty")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Get = %q, want empty", got)
	}
}

// testLongKeys uses room ids at the maximum byte length, made of runes and
// bytes that expand when escaped.
func testLongKeys(t *testing.T, s storage.Store) {
	ctx := context.Background()
	keys := []string{
		"long/" + strings.Repeat("é", 64),
		"long/" + strings.Repeat("#", 128),
		"long/" + strings.Repeat("%?", 64),
	}
	for _, k := range keys {
		if err := s.Put(ctx, k, []byte(k)); err != nil {
			t.Fatalf("Put %d-byte key: %v", len(k), err)
		}
		got, err := s.Get(ctx, k)
		if err != nil {
			t.Fatalf("Get %d-byte key: %v", len(k), err)
		}
		if string(got) != k {
			t.Fatalf("Get %d-byte key read back a different value", len(k))
		}
	}

	listed, err := s.List(ctx, "long/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := append([]string(nil), keys...)
	sort.Strings(want)
	if fmt.Sprint(listed) != fmt.Sprint(want) {
		t.Fatalf("List = %q, want %q", listed, want)
	}

	if err := s.Delete(ctx, keys[0]); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, keys[0]); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get after Delete: err = %v, want ErrNotFound", err)
	}
}

func testConcurrentKeys(t *testing.T, s storage.Store) {
	ctx := context.Background()
	const n = 16

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("concurrent/%02d", i)
			if err := s.Put(ctx, key, []byte(key)); err != nil {
				errs <- err
				return
			}
			got, err := s.Get(ctx, key)
			if err != nil {
				errs <- err
				return
			}
			if string(got) != key {
				errs <- fmt.Errorf("key %s read back %q", key, got)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

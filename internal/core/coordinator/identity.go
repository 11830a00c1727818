package coordinator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/yndnr/canvasmesh-go/internal/core/domain"
	"github.com/yndnr/canvasmesh-go/internal/storage"
)

// Binder binds a coordinator to its room identity exactly once.
type Binder struct {
	store storage.Store
	key   string

	mu      sync.Mutex
	bound   atomic.Pointer[domain.RoomID]
	binding atomic.Bool
}

// NewBinder creates a binder that persists the identity under the
// instance state of roomKey.
func NewBinder(store storage.Store, roomKey string) *Binder {
	return &Binder{
		store: store,
		key:   storage.InstanceKey(roomKey, domain.InstanceRoomIDKey),
	}
}

// Bind binds candidate as the room identity and returns the bound value.
//
// The first successful bind wins: once bound, every later call returns
// the existing identity, even for a different candidate. An identity
// persisted by an earlier process is adopted before the candidate is
// considered. With nothing bound and an empty candidate, Bind fails with
// ErrMissingIdentity. A failed persist leaves the binder unbound.
func (b *Binder) Bind(ctx context.Context, candidate string) (domain.RoomID, error) {
	if id := b.bound.Load(); id != nil {
		return *id, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Re-check under the lock; a concurrent caller may have won.
	if id := b.bound.Load(); id != nil {
		return *id, nil
	}

	b.binding.Store(true)
	defer b.binding.Store(false)

	// 1. Adopt an identity persisted earlier.
	persisted, err := b.store.Get(ctx, b.key)
	switch {
	case err == nil:
		if id := strings.TrimSpace(string(persisted)); id != "" {
			return b.set(domain.RoomID(id)), nil
		}
	case !errors.Is(err, storage.ErrNotFound):
		return "", domain.ErrStorage.Wrap(err)
	}

	// 2. Validate the candidate.
	if candidate == "" {
		return "", domain.ErrMissingIdentity
	}
	if err := domain.ValidateRoomID(candidate); err != nil {
		return "", err
	}

	// 3. Persist, then publish.
	if err := b.store.Put(ctx, b.key, []byte(candidate)); err != nil {
		return "", domain.ErrStorage.Wrap(err)
	}
	return b.set(domain.RoomID(candidate)), nil
}

func (b *Binder) set(id domain.RoomID) domain.RoomID {
	b.bound.Store(&id)
	return id
}

// RoomID returns the bound identity without blocking.
func (b *Binder) RoomID() (domain.RoomID, bool) {
	if id := b.bound.Load(); id != nil {
		return *id, true
	}
	return "", false
}

// Binding reports whether a bind is in progress.
func (b *Binder) Binding() bool {
	return b.binding.Load()
}

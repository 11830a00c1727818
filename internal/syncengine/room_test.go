package syncengine_test

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/canvasmesh-go/internal/syncengine"
	"github.com/yndnr/canvasmesh-go/internal/syncengine/chantest"
)

const wait = 2 * time.Second

func push(clientClock int64, put map[string]string, remove ...string) map[string]any {
	p := make(map[string]json.RawMessage, len(put))
	for id, body := range put {
		p[id] = json.RawMessage(body)
	}
	return map[string]any{
		"type":        "push",
		"clientClock": clientClock,
		"diff":        syncengine.Diff{Put: p, Remove: remove},
	}
}

func newRoom(t *testing.T, snapshot []byte, onDirty func()) *syncengine.Room {
	t.Helper()
	r, err := syncengine.New(syncengine.Options{RoomID: "test", Snapshot: snapshot, OnDirty: onDirty})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRoom_ConnectSendsState(t *testing.T) {
	r := newRoom(t, []byte(`{"clock":7,"documents":[{"state":{"id":"a"},"lastChangedClock":7}],"tombstones":{},"schema":{"version":1}}`), nil)

	ch := chantest.New()
	r.HandleChannelConnect("s1", ch)

	m := ch.Next(wait)
	if m == nil || m["type"] != "connect" {
		t.Fatalf("first message = %v, want connect", m)
	}
	if m["sessionId"] != "s1" || m["clock"] != float64(7) {
		t.Fatalf("connect = %v", m)
	}
	if recs, _ := m["records"].([]any); len(recs) != 1 {
		t.Fatalf("records = %v", m["records"])
	}
	if r.SessionCount() != 1 {
		t.Fatalf("SessionCount = %d", r.SessionCount())
	}
}

func TestRoom_PushBroadcastsPatch(t *testing.T) {
	var dirty atomic.Int32
	r := newRoom(t, nil, func() { dirty.Add(1) })

	a, b := chantest.New(), chantest.New()
	r.HandleChannelConnect("a", a)
	r.HandleChannelConnect("b", b)
	a.NextOfType("connect", wait)
	b.NextOfType("connect", wait)

	a.Send(push(1, map[string]string{"shape:1": `{"id":"shape:1","x":10}`}))

	res := a.NextOfType("push_result", wait)
	if res == nil || res["action"] != "commit" || res["clientClock"] != float64(1) || res["clock"] != float64(1) {
		t.Fatalf("push_result = %v", res)
	}
	patch := b.NextOfType("patch", wait)
	if patch == nil || patch["clock"] != float64(1) {
		t.Fatalf("patch = %v", patch)
	}
	waitFor(t, func() bool { return dirty.Load() == 1 })
	if r.Clock() != 1 || r.RecordCount() != 1 {
		t.Fatalf("clock=%d records=%d", r.Clock(), r.RecordCount())
	}
}

func TestRoom_RejectedPushIsNotDirty(t *testing.T) {
	var dirty atomic.Int32
	r := newRoom(t, nil, func() { dirty.Add(1) })

	ch := chantest.New()
	r.HandleChannelConnect("s", ch)
	ch.Send(push(3, map[string]string{"x": `{"no":"id"}`}))

	res := ch.NextOfType("push_result", wait)
	if res == nil || res["action"] != "rejected" || res["reason"] == "" {
		t.Fatalf("push_result = %v", res)
	}
	if dirty.Load() != 0 {
		t.Fatal("rejected push must not mark dirty")
	}
}

func TestRoom_PingAndMalformed(t *testing.T) {
	r := newRoom(t, nil, nil)
	ch := chantest.New()
	r.HandleChannelConnect("s", ch)

	ch.Send(`{"type":"ping"}`)
	if m := ch.NextOfType("pong", wait); m == nil {
		t.Fatal("expected pong")
	}
	ch.Send(`not json`)
	if m := ch.NextOfType("error", wait); m == nil {
		t.Fatal("expected error message")
	}
	ch.Send(`{"type":"dance"}`)
	if m := ch.NextOfType("error", wait); m == nil {
		t.Fatal("expected error for unknown type")
	}
	if closed, _, _ := ch.Closed(); closed {
		t.Fatal("protocol errors must not close the session")
	}
}

func TestRoom_DuplicateSessionReplaces(t *testing.T) {
	r := newRoom(t, nil, nil)
	first, second := chantest.New(), chantest.New()

	r.HandleChannelConnect("same", first)
	r.HandleChannelConnect("same", second)

	if !first.WaitClosed(wait) {
		t.Fatal("first channel should be closed when replaced")
	}
	if _, code, _ := first.Closed(); code != syncengine.CloseNormal {
		t.Fatalf("close code = %d", code)
	}
	if m := second.NextOfType("connect", wait); m == nil {
		t.Fatal("second channel should receive connect")
	}

	// The replaced session detaching must not remove its successor.
	time.Sleep(50 * time.Millisecond)
	if n := r.SessionCount(); n != 1 {
		t.Fatalf("SessionCount = %d, want 1", n)
	}
}

func TestRoom_DetachOnClientClose(t *testing.T) {
	r := newRoom(t, nil, nil)
	ch := chantest.New()
	r.HandleChannelConnect("s", ch)
	ch.NextOfType("connect", wait)

	_ = ch.Close(syncengine.CloseNormal, "bye")

	waitFor(t, func() bool { return r.SessionCount() == 0 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(wait)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// stuckChannel never completes a write.
type stuckChannel struct {
	once    sync.Once
	done    chan struct{}
	release chan struct{}
	code    atomic.Int32
}

func newStuckChannel() *stuckChannel {
	return &stuckChannel{done: make(chan struct{}), release: make(chan struct{})}
}

func (c *stuckChannel) Read() ([]byte, error) {
	<-c.done
	return nil, errors.New("closed")
}

func (c *stuckChannel) Write([]byte) error {
	select {
	case <-c.release:
	case <-c.done:
	}
	return errors.New("closed")
}

func (c *stuckChannel) Close(code int, _ string) error {
	c.once.Do(func() {
		c.code.Store(int32(code))
		close(c.done)
	})
	return nil
}

func TestRoom_SlowConsumerIsClosed(t *testing.T) {
	r, err := syncengine.New(syncengine.Options{RoomID: "slow", SessionBuffer: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	slow := newStuckChannel()
	fast := chantest.New()
	r.HandleChannelConnect("slow", slow)
	r.HandleChannelConnect("fast", fast)
	fast.NextOfType("connect", wait)

	for i := 1; i <= 10; i++ {
		id := "r" + string(rune('a'+i))
		fast.Send(push(int64(i), map[string]string{id: `{"id":"` + id + `"}`}))
		if m := fast.NextOfType("push_result", wait); m == nil {
			t.Fatalf("push %d not answered", i)
		}
	}

	select {
	case <-slow.done:
	case <-time.After(wait):
		t.Fatal("slow session should be closed")
	}
	if code := slow.code.Load(); code != syncengine.CloseTryAgainLater {
		t.Fatalf("close code = %d, want %d", code, syncengine.CloseTryAgainLater)
	}
	if closed, _, _ := fast.Closed(); closed {
		t.Fatal("fast session must stay open")
	}
}

func TestRoom_Close(t *testing.T) {
	r, err := syncengine.New(syncengine.Options{RoomID: "closing"})
	if err != nil {
		t.Fatal(err)
	}
	ch := chantest.New()
	r.HandleChannelConnect("s", ch)

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if !ch.WaitClosed(wait) {
		t.Fatal("session should be closed with the room")
	}
	if _, code, _ := ch.Closed(); code != syncengine.CloseGoingAway {
		t.Fatalf("close code = %d", code)
	}

	late := chantest.New()
	r.HandleChannelConnect("late", late)
	if !late.WaitClosed(wait) {
		t.Fatal("connect after Close should be refused")
	}
}

func TestNew_BadSnapshot(t *testing.T) {
	if _, err := syncengine.New(syncengine.Options{Snapshot: []byte("garbage")}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRoom_InstanceIDsAreUnique(t *testing.T) {
	a := newRoom(t, nil, nil)
	b := newRoom(t, nil, nil)
	if a.InstanceID() == "" || a.InstanceID() == b.InstanceID() {
		t.Fatalf("instance ids %q %q", a.InstanceID(), b.InstanceID())
	}
}

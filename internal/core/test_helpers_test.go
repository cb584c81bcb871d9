package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/yemishi/chatteroo-server/internal/store"
)

func mustEvent(t *testing.T, sess *Session, name string) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				t.Fatalf("session %s closed before %q arrived", sess.ID, name)
			}
			if ev.Name == name {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event %q not received by %s", name, sess.ID)
	return nil
}

// drain returns every event currently queued for sess.
func drain(sess *Session) []*Event {
	var events []*Event
	for {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}

func countEvents(events []*Event, name string) int {
	n := 0
	for _, ev := range events {
		if ev.Name == name {
			n++
		}
	}
	return n
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

type fakeStore struct {
	mu        sync.Mutex
	nextID    int64
	appended  []store.Message
	touched   []string
	appendErr error
	touchErr  error
	members   map[string][]string
	membersFn func(chatID string) ([]string, error)
	users     map[string]*store.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		members: make(map[string][]string),
		users:   make(map[string]*store.User),
	}
}

func (f *fakeStore) AppendMessage(_ context.Context, msg *store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.appendErr != nil {
		return f.appendErr
	}
	f.nextID++
	msg.ID = f.nextID
	f.appended = append(f.appended, *msg)
	return nil
}

func (f *fakeStore) TouchChat(_ context.Context, chatID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.touched = append(f.touched, chatID)
	return f.touchErr
}

func (f *fakeStore) ListMembers(_ context.Context, chatID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.membersFn != nil {
		return f.membersFn(chatID)
	}
	return f.members[chatID], nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	return user, nil
}

func (f *fakeStore) appendedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appended)
}

func (f *fakeStore) touchedChats() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.touched...)
}

var errStoreDown = errors.New("store down")

func newTestHub(t *testing.T, st *fakeStore) *Hub {
	t.Helper()

	deps := Deps{StoreTimeout: time.Second}
	if st != nil {
		deps.Messages = st
		deps.Chats = st
		deps.Users = st
	}
	return NewHub(nil, nil, deps, nil)
}

// connect attaches a session and discards the online-users snapshot it gets.
func connect(t *testing.T, hub *Hub, connID, userID string) *Session {
	t.Helper()

	sess := NewSession(connID, userID, 32)
	if err := hub.Attach(sess); err != nil {
		t.Fatalf("attach %s: %v", connID, err)
	}
	drain(sess)
	return sess
}

func dispatch(t *testing.T, hub *Hub, sess *Session, name string, data json.RawMessage) {
	t.Helper()

	if err := hub.Dispatch(context.Background(), sess, name, data); err != nil {
		t.Fatalf("dispatch %s: %v", name, err)
	}
}

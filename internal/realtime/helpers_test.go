package realtime

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

type fakeConn struct {
	id string

	mu      sync.Mutex
	frames  []Envelope
	sendErr error
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return err
	}
	c.frames = append(c.frames, env)
	return nil
}

// events returns the names of received frames in arrival order.
func (c *fakeConn) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		out = append(out, f.Event)
	}
	return out
}

func (c *fakeConn) count(name string) int {
	n := 0
	for _, e := range c.events() {
		if e == name {
			n++
		}
	}
	return n
}

// fakeStore is an in-memory MembershipStore.
type fakeStore struct {
	mu      sync.Mutex
	members map[string]map[string]struct{} // conversation -> users
	reads   int                              // ListMemberIDs calls

	// beforeRooms runs once inside the next ListConversationIDsForUser call,
	// after the result has been computed.
	beforeRooms func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{members: make(map[string]map[string]struct{})}
}

func (s *fakeStore) add(conv string, users ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.members[conv]
	if set == nil {
		set = make(map[string]struct{})
		s.members[conv] = set
	}
	for _, u := range users {
		set[u] = struct{}{}
	}
}

func (s *fakeStore) remove(conv string, users ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		delete(s.members[conv], u)
	}
}

func (s *fakeStore) memberReads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *fakeStore) ListConversationIDsForUser(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	var out []string
	for conv, set := range s.members {
		if _, ok := set[userID]; ok {
			out = append(out, conv)
		}
	}
	hook := s.beforeRooms
	s.beforeRooms = nil
	s.mu.Unlock()

	sort.Strings(out)
	if hook != nil {
		hook()
	}
	return out, nil
}

func (s *fakeStore) ListMemberIDs(_ context.Context, conversationID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	out := make([]string, 0, len(s.members[conversationID]))
	for u := range s.members[conversationID] {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

// failingStore rejects every membership read.
type failingStore struct{ err error }

func (s failingStore) ListConversationIDsForUser(context.Context, string) ([]string, error) {
	return nil, s.err
}

func (s failingStore) ListMemberIDs(context.Context, string) ([]string, error) {
	return nil, s.err
}

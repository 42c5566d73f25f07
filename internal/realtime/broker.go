package realtime

import (
	"errors"
	"sort"
	"sync"
)

// ErrUnknownConnection is returned when addressing a connection that is not
// attached (typically it already disconnected).
var ErrUnknownConnection = errors.New("unknown connection")

// Broker is the in-memory transport: it tracks attached connections and
// their room joins, and writes frames to them. Rooms exist implicitly while
// they have at least one member.
type Broker struct {
	mu        sync.RWMutex
	conns     map[string]Conn              // connID -> connection
	rooms     map[Room]map[string]Conn     // room -> connID -> connection
	connRooms map[string]map[Room]struct{} // connID -> joined rooms
}

// NewBroker constructs an empty Broker.
func NewBroker() *Broker {
	return &Broker{
		conns:     make(map[string]Conn),
		rooms:     make(map[Room]map[string]Conn),
		connRooms: make(map[string]map[Room]struct{}),
	}
}

// Attach makes c addressable. Attaching an already attached id replaces the
// handle but keeps its room joins.
func (b *Broker) Attach(c Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := c.ID()
	b.conns[id] = c
	if _, ok := b.connRooms[id]; !ok {
		b.connRooms[id] = make(map[Room]struct{})
	}
	for r := range b.connRooms[id] {
		b.rooms[r][id] = c
	}
}

// Detach forgets the connection and drops all of its room joins.
// It reports whether the connection was attached.
func (b *Broker) Detach(connID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.conns[connID]; !ok {
		return false
	}
	for r := range b.connRooms[connID] {
		b.leaveLocked(r, connID)
	}
	delete(b.connRooms, connID)
	delete(b.conns, connID)
	return true
}

// Join adds the connection to room, creating the room on first join.
// It reports false when the connection is not attached.
func (b *Broker) Join(connID string, room Room) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.conns[connID]
	if !ok {
		return false
	}
	members := b.rooms[room]
	if members == nil {
		members = make(map[string]Conn)
		b.rooms[room] = members
	}
	members[connID] = c
	b.connRooms[connID][room] = struct{}{}
	return true
}

// Leave removes the connection from room. Unknown pairs are ignored.
func (b *Broker) Leave(connID string, room Room) {
	b.mu.Lock()
	b.leaveLocked(room, connID)
	b.mu.Unlock()
}

// Joined reports whether the connection is currently in room.
func (b *Broker) Joined(connID string, room Room) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.rooms[room][connID]
	return ok
}

// RoomsOf returns the rooms the connection has joined, sorted by name.
func (b *Broker) RoomsOf(connID string) []Room {
	b.mu.RLock()
	out := make([]Room, 0, len(b.connRooms[connID]))
	for r := range b.connRooms[connID] {
		out = append(out, r)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Members returns the ids of the connections joined to room, sorted.
func (b *Broker) Members(room Room) []string {
	b.mu.RLock()
	out := make([]string, 0, len(b.rooms[room]))
	for id := range b.rooms[room] {
		out = append(out, id)
	}
	b.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Len returns the number of attached connections.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}

// EmitToRoom writes payload to every member of room whose id is not already
// in sent, recording each id it writes to. It returns the room's member
// count at the time of the call and any send errors keyed by connection id.
// The lock is released before any write.
func (b *Broker) EmitToRoom(room Room, payload []byte, sent map[string]struct{}) (members int, failed map[string]error) {
	b.mu.RLock()
	members = len(b.rooms[room])
	targets := make([]Conn, 0, members)
	for id, c := range b.rooms[room] {
		if _, dup := sent[id]; dup {
			continue
		}
		targets = append(targets, c)
	}
	b.mu.RUnlock()

	for _, c := range targets {
		sent[c.ID()] = struct{}{}
		if err := c.Send(payload); err != nil {
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[c.ID()] = err
		}
	}
	return members, failed
}

// EmitToConnection writes payload to a single connection.
func (b *Broker) EmitToConnection(connID string, payload []byte) error {
	b.mu.RLock()
	c, ok := b.conns[connID]
	b.mu.RUnlock()
	if !ok {
		return ErrUnknownConnection
	}
	return c.Send(payload)
}

// Close detaches every connection and closes those that support it.
func (b *Broker) Close(code int, reason string) {
	b.mu.Lock()
	conns := make([]Conn, 0, len(b.conns))
	for _, c := range b.conns {
		conns = append(conns, c)
	}
	b.conns = make(map[string]Conn)
	b.rooms = make(map[Room]map[string]Conn)
	b.connRooms = make(map[string]map[Room]struct{})
	b.mu.Unlock()

	for _, c := range conns {
		if cl, ok := c.(closer); ok {
			cl.Close(code, reason)
		}
	}
}

func (b *Broker) leaveLocked(room Room, connID string) {
	members := b.rooms[room]
	if members == nil {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(b.rooms, room)
	}
	if joined, ok := b.connRooms[connID]; ok {
		delete(joined, room)
	}
}

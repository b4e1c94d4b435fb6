package rooms

import (
	"log"
	"slices"
	"sync"
	"time"
)

// Local keeps room membership in process memory.
type Local struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Conn
	joined map[string]map[string]struct{}
	log    *log.Logger
}

func NewLocal(logger *log.Logger) *Local {
	return &Local{
		rooms:  make(map[string]map[string]Conn),
		joined: make(map[string]map[string]struct{}),
		log:    logger,
	}
}

func (l *Local) Join(conn Conn, room string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	// checked under the lock so a join cannot land after LeaveAll
	if conn.Closed() {
		return false
	}

	members, ok := l.rooms[room]
	if !ok {
		members = make(map[string]Conn)
		l.rooms[room] = members
	}

	if _, ok := members[conn.Id()]; ok {
		return false
	}
	members[conn.Id()] = conn

	joined, ok := l.joined[conn.Id()]
	if !ok {
		joined = make(map[string]struct{})
		l.joined[conn.Id()] = joined
	}
	joined[room] = struct{}{}

	return true
}

func (l *Local) Leave(conn Conn, room string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.leave(conn.Id(), room)
}

func (l *Local) leave(connId, room string) bool {
	members, ok := l.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[connId]; !ok {
		return false
	}

	delete(members, connId)
	if len(members) == 0 {
		delete(l.rooms, room)
	}

	if joined, ok := l.joined[connId]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(l.joined, connId)
		}
	}

	return true
}

func (l *Local) LeaveAll(conn Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for room := range l.joined[conn.Id()] {
		l.leave(conn.Id(), room)
	}
}

func (l *Local) Broadcast(room, event string, payload any) {
	l.deliver(room, &Event{
		Event:     event,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	})
}

func (l *Local) deliver(room string, ev *Event) {
	l.mu.RLock()
	conns := make([]Conn, 0, len(l.rooms[room]))
	for _, c := range l.rooms[room] {
		conns = append(conns, c)
	}
	l.mu.RUnlock()

	for _, c := range conns {
		if !c.Deliver(ev) {
			l.log.Printf("dropped %q for connection %s in %q", ev.Event, c.Id(), room)
		}
	}
}

func (l *Local) MembersOf(room string) []int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]int, 0, len(l.rooms[room]))
	for _, c := range l.rooms[room] {
		if !slices.Contains(ids, c.UserId()) {
			ids = append(ids, c.UserId())
		}
	}
	slices.Sort(ids)

	return ids
}

func (l *Local) RoomsOf(conn Conn) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rooms := make([]string, 0, len(l.joined[conn.Id()]))
	for room := range l.joined[conn.Id()] {
		rooms = append(rooms, room)
	}
	slices.Sort(rooms)

	return rooms
}

package chat

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/docstore"
	"github.com/npezzotti/gosocial/internal/objstore"
	"github.com/npezzotti/gosocial/internal/rooms"
	"github.com/npezzotti/gosocial/internal/stats"
	"github.com/npezzotti/gosocial/internal/testutil"
	"github.com/stretchr/testify/mock"
)

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type testDeps struct {
	db      *database.MockGoSocialRepository
	docs    *docstore.MockMessageStore
	objects *objstore.MockObjectStore
	rooms   *rooms.Local
	stats   *stats.MockStatsUpdater
}

func newTestService(t *testing.T) (*Service, *testDeps) {
	deps := &testDeps{
		db:      &database.MockGoSocialRepository{},
		docs:    &docstore.MockMessageStore{},
		objects: &objstore.MockObjectStore{},
		rooms:   rooms.NewLocal(testutil.TestLogger(t)),
		stats:   &stats.MockStatsUpdater{},
	}
	deps.stats.On("Incr", mock.Anything).Maybe()

	svc := NewService(Options{
		DB:              deps.db,
		Docs:            deps.docs,
		Objects:         deps.objects,
		Rooms:           deps.rooms,
		Stats:           deps.stats,
		Logger:          testutil.TestLogger(t),
		MaxUploadSize:   1 << 20,
		UploadURLExpiry: 5 * time.Minute,
	})
	svc.now = func() time.Time { return testNow }

	t.Cleanup(func() {
		deps.db.AssertExpectations(t)
		deps.docs.AssertExpectations(t)
		deps.objects.AssertExpectations(t)
	})

	return svc, deps
}

type testConn struct {
	id     string
	userId int
	closed atomic.Bool

	mu     sync.Mutex
	events []*rooms.Event
}

func newTestConn(id string, userId int) *testConn {
	return &testConn{id: id, userId: userId}
}

func (c *testConn) Id() string  { return c.id }
func (c *testConn) UserId() int { return c.userId }
func (c *testConn) Closed() bool { return c.closed.Load() }

func (c *testConn) Deliver(ev *rooms.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return true
}

func (c *testConn) eventNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		names = append(names, ev.Event)
	}
	return names
}

func (c *testConn) lastEvent() *rooms.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return nil
	}
	return c.events[len(c.events)-1]
}

func sessionFor(conn *testConn) Session {
	return Session{UserId: conn.userId, Conn: conn}
}

func strPtr(s string) *string { return &s }

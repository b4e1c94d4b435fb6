package server

import (
	"context"
	"log"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/gosocial/internal/chat"
	"github.com/npezzotti/gosocial/internal/rooms"
	"github.com/npezzotti/gosocial/internal/stats"
	"golang.org/x/time/rate"
)

const (
	defaultWorkers   = 64
	defaultQueueSize = 1024
	defaultRateLimit = 20
	defaultRateBurst = 40
)

type Options struct {
	Workers   int
	QueueSize int
	// RateLimit is the number of requests per second accepted from a
	// single connection.
	RateLimit float64
	RateBurst int
}

// ChatServer owns the live websocket clients and executes their requests
// against the chat service.
type ChatServer struct {
	log         *log.Logger
	chat        *chat.Service
	rooms       rooms.Manager
	stats       stats.StatsProvider
	pool        *workerPool
	handlers    map[string]handlerFunc
	clients     map[*Client]struct{}
	clientsLock sync.Mutex
	rateLimit   rate.Limit
	rateBurst   int

	ctx    context.Context
	cancel context.CancelFunc
}

func NewChatServer(logger *log.Logger, svc *chat.Service, su stats.StatsProvider, opts Options) *ChatServer {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = defaultRateBurst
	}

	ctx, cancel := context.WithCancel(context.Background())
	cs := &ChatServer{
		log:       logger,
		chat:      svc,
		rooms:     svc.Rooms(),
		stats:     su,
		pool:      newWorkerPool(opts.Workers, opts.QueueSize, logger),
		clients:   make(map[*Client]struct{}),
		rateLimit: rate.Limit(opts.RateLimit),
		rateBurst: opts.RateBurst,
		ctx:       ctx,
		cancel:    cancel,
	}
	cs.handlers = cs.routes()

	return cs
}

// NewClient registers a client for an authenticated connection and places
// it in the user's personal room. The caller starts its pumps.
func (cs *ChatServer) NewClient(conn *websocket.Conn, userId int) *Client {
	c := newClient(userId, conn, cs)

	cs.clientsLock.Lock()
	cs.clients[c] = struct{}{}
	cs.clientsLock.Unlock()

	cs.rooms.Join(c, rooms.UserRoom(userId))
	cs.stats.Incr(stats.Connections)
	cs.log.Printf("client %s connected for user %d", c.id, userId)

	return c
}

// Serve registers the connection and runs its pumps until it disconnects.
func (cs *ChatServer) Serve(conn *websocket.Conn, userId int) {
	c := cs.NewClient(conn, userId)
	go c.Write()
	go c.Read()
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.clientsLock.Lock()
	_, ok := cs.clients[c]
	delete(cs.clients, c)
	cs.clientsLock.Unlock()

	if !ok {
		return
	}

	// c is already stopped, so joins racing this call are rejected
	cs.rooms.LeaveAll(c)
	cs.stats.Decr(stats.Connections)
	cs.log.Printf("client %s disconnected for user %d", c.id, c.userId)
}

func (cs *ChatServer) clientCount() int {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	return len(cs.clients)
}

// Shutdown closes every client and waits for in-flight requests until ctx
// expires.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")

	cs.clientsLock.Lock()
	for c := range cs.clients {
		c.stopClient()
	}
	cs.clientsLock.Unlock()

	done := make(chan struct{})
	go func() {
		cs.pool.Shutdown()
		close(done)
	}()

	defer cs.cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

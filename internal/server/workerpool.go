package server

import (
	"log"
	"sync"
)

type task func()

// workerPool runs submitted tasks on a fixed number of goroutines. Tasks that
// do not fit in the queue are rejected rather than blocking the caller.
type workerPool struct {
	tasks chan task
	log   *log.Logger
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func newWorkerPool(workers, queueSize int, logger *log.Logger) *workerPool {
	p := &workerPool{
		tasks: make(chan task, queueSize),
		log:   logger,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.log.Printf("worker pool started with %d workers, queue size %d", workers, queueSize)

	return p
}

func (p *workerPool) worker(id int) {
	defer p.wg.Done()

	for t := range p.tasks {
		p.run(id, t)
	}
}

func (p *workerPool) run(id int, t task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Printf("worker %d: recovered from panic: %v", id, r)
		}
	}()

	t()
}

// TrySubmit queues the task and reports whether it was accepted.
func (p *workerPool) TrySubmit(t task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}

	select {
	case p.tasks <- t:
		return true
	default:
		return false
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish.
func (p *workerPool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Println("worker pool stopped")
}

package worker

import "sync"

// Pool bounds concurrent dispatch handlers and tracks load for the
// readiness probe.
type Pool struct {
	sem chan struct{}

	mu     sync.Mutex
	active int
}

// NewPool creates a pool with the given handler capacity.
func NewPool(capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{sem: make(chan struct{}, capacity)}
}

// Acquire blocks until a handler slot is free.
func (p *Pool) Acquire() {
	p.sem <- struct{}{}
	p.mu.Lock()
	p.active++
	p.mu.Unlock()
}

// Release frees a handler slot.
func (p *Pool) Release() {
	p.mu.Lock()
	if p.active > 0 {
		p.active--
	}
	p.mu.Unlock()
	<-p.sem
}

// ActiveCount returns the number of in-flight handlers.
func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Capacity returns the pool's handler capacity.
func (p *Pool) Capacity() int {
	return cap(p.sem)
}

// LoadFraction returns active / capacity for load reporting.
func (p *Pool) LoadFraction() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return float64(p.active) / float64(cap(p.sem))
}

// Healthy reports whether the pool still has a free slot.
func (p *Pool) Healthy() bool {
	return len(p.sem) < cap(p.sem)
}

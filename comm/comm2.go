package comm

import (
	"io"
	"sync"
	"time"
)

// CreationFunc returns a new connection to a device.  Use a closure to
// capture the address and any transport configuration.
type CreationFunc func() (io.ReadWriteCloser, error)

// Pool holds one or more connections to a device.  Connections are created
// on demand, handed out exclusively, and closed after all of them have been
// idle for the timeout.  It is concurrent safe; a Pool of size one
// serializes access to a controller shared by several front ends.  Pools
// must be created with NewPool.
type Pool struct {
	maxSize int
	onLease int
	timeout time.Duration
	conns   chan io.ReadWriteCloser
	timer   *time.Timer
	maker   CreationFunc

	reclaiming bool
	mu         sync.Mutex
}

// NewPool creates a pool holding up to maxSize connections made by maker.
func NewPool(maxSize int, timeout time.Duration, maker CreationFunc) *Pool {
	p := &Pool{
		maxSize: maxSize,
		timeout: timeout,
		conns:   make(chan io.ReadWriteCloser, maxSize),
		timer:   time.NewTimer(timeout),
		maker:   maker,
	}
	p.timer.Stop() // nothing to reclaim yet
	return p
}

// Get retrieves a connection, blocking until one is available if all are in
// use.  The caller has exclusive use of it until it is returned with Put or
// discarded with Destroy.  A connection obtained alongside a non-nil error
// must not be returned to the pool.
func (p *Pool) Get() (io.ReadWriteCloser, error) {
	p.timer.Stop()

	p.mu.Lock()
	if len(p.conns) > 0 || p.onLease == p.maxSize {
		// either one is free now, or all are out and we must wait for a
		// return; both cases read from the channel
		p.mu.Unlock()
		c := <-p.conns
		p.mu.Lock()
		p.onLease++
		p.mu.Unlock()
		return c, nil
	}
	defer p.mu.Unlock()
	c, err := p.maker()
	if err == nil {
		p.onLease++
	}
	return c, err
}

// Put restores a connection to the pool for reuse.  Connections that have
// gone bad (every call errors) should be Destroy'd instead.
func (p *Pool) Put(c io.ReadWriteCloser) {
	p.conns <- c
	p.mu.Lock()
	p.onLease--
	idle := p.onLease == 0
	p.mu.Unlock()
	if idle {
		p.startReclaim()
	}
}

// Destroy closes a connection and frees its slot in the pool.
func (p *Pool) Destroy(c io.ReadWriteCloser) {
	c.Close()
	p.mu.Lock()
	p.onLease--
	p.mu.Unlock()
}

// Size returns the number of connections owned by the pool, leased or idle.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns) + p.onLease
}

// Active returns the number of connections currently leased out.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onLease
}

// startReclaim arms the idle timer; when it expires the pooled connections
// are closed so serial ports and bridge sockets are not held open forever.
func (p *Pool) startReclaim() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reclaiming {
		return
	}
	p.reclaiming = true
	p.timer.Reset(p.timeout)
	go func() {
		<-p.timer.C
		for {
			select {
			case c := <-p.conns:
				c.Close()
			default:
				p.mu.Lock()
				p.reclaiming = false
				p.mu.Unlock()
				return
			}
		}
	}()
}

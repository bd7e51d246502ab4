package validation

// ContextPool hands out reusable validation contexts. At most size idle
// contexts are retained; extra returns are dropped for the collector.
type ContextPool struct {
	idle chan *Context
}

// NewContextPool creates a pool retaining up to size idle contexts.
func NewContextPool(size int) *ContextPool {
	if size < 0 {
		size = 0
	}
	return &ContextPool{idle: make(chan *Context, size)}
}

// Get returns an idle context or allocates a new one. A context is never
// handed out twice before it is returned.
func (p *ContextPool) Get() *Context {
	select {
	case c := <-p.idle:
		return c
	default:
		return newContext()
	}
}

// Return resets c and keeps it for reuse when there is room.
func (p *ContextPool) Return(c *Context) {
	if c == nil {
		return
	}
	c.Reset()
	select {
	case p.idle <- c:
	default:
	}
}

// Idle reports how many contexts are waiting for reuse.
func (p *ContextPool) Idle() int { return len(p.idle) }

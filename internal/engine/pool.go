package engine

import "github.com/joeycumines/memcev/internal/conn"

// idlePool is the fixed-capacity FIFO of unbound connections. It is
// manipulated exclusively on the loop goroutine, so it needs no lock — the
// only component besides parser/socket state covered by that invariant.
type idlePool struct {
	handles []*conn.Connection
}

func (p *idlePool) push(c *conn.Connection) {
	p.handles = append(p.handles, c)
}

// pop removes the longest-idle connection (FIFO: warmest-socket behavior
// without LIFO churn, per the pool's prescribed tie-break).
func (p *idlePool) pop() (*conn.Connection, bool) {
	if len(p.handles) == 0 {
		return nil, false
	}
	c := p.handles[0]
	p.handles = p.handles[1:]
	return c, true
}

func (p *idlePool) len() int {
	return len(p.handles)
}

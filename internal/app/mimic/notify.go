package mimic

import (
	"sync"
	"time"
)

// notify is a broadcast for ledger waiters. Each Notify closes the current
// channel, releasing everyone blocked on it, and arms a fresh one.
type notify struct {
	mu      sync.Mutex
	arrived chan struct{}
}

func newNotify() *notify {
	return &notify{
		arrived: make(chan struct{}),
	}
}

// Wait blocks until the next request is recorded or timeout passes.
// Server.WaitFor uses it between ledger checks.
func (n *notify) Wait(timeout time.Duration) {
	n.mu.Lock()
	arrived := n.arrived
	n.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-arrived:
	case <-timer.C:
	}
}

// Notify is called by Server.Handle once a request is in the ledger, matched
// or not.
func (n *notify) Notify() {
	n.mu.Lock()
	close(n.arrived)
	n.arrived = make(chan struct{})
	n.mu.Unlock()
}

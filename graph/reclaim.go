package graph

import (
	"context"
	"time"
)

// retired holds resources unpublished at a given epoch.
type retired struct {
	epoch uint64
	plan  *plan
	nodes []*node
	conns []*connection
}

// safe reports whether the audio goroutine has left every block that could
// have observed resources retired at stamp. An even stamp means no block
// was in flight at retirement; an odd one names the block in flight.
func safe(stamp, now uint64) bool {
	return stamp%2 == 0 || now > stamp
}

// reclaim frees retired resources the audio goroutine can no longer see
// and logs pending module faults. Caller holds e.mu.
func (e *Engine) reclaim() {
	e.drainFaults()

	now := e.epoch.Load()
	kept := e.retired[:0]
	for _, r := range e.retired {
		if !safe(r.epoch, now) {
			kept = append(kept, r)
			continue
		}
		e.free(r)
	}
	for i := len(kept); i < len(e.retired); i++ {
		e.retired[i] = retired{}
	}
	e.retired = kept

	if len(e.retired) == 0 && e.State() == Draining {
		e.state.Store(int32(Live))
	}
}

// reclaimAll frees everything retired. The caller must have established
// that no block is in flight on a published plan.
func (e *Engine) reclaimAll() {
	e.drainFaults()
	for _, r := range e.retired {
		e.free(r)
	}
	e.retired = nil
}

func (e *Engine) free(r retired) {
	if r.plan != nil {
		e.pool.PutChannels(r.plan.scratch)
	}
	for _, nd := range r.nodes {
		e.release(nd)
	}
	for _, c := range r.conns {
		if c.history != nil {
			e.pool.Put(c.history)
			c.history = nil
		}
	}
}

// waitIdle returns once no block that started before the call is still
// running.
func (e *Engine) waitIdle(ctx context.Context) error {
	stamp := e.epoch.Load()
	if stamp%2 == 0 {
		return nil
	}
	ticker := time.NewTicker(200 * time.Microsecond)
	defer ticker.Stop()
	for e.epoch.Load() == stamp {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (e *Engine) drainFaults() {
	e.faults.Drain(func(f fault) {
		e.logger.Error("graph: module faulted and was silenced",
			"id", f.node.id, "type", f.node.typeName, "panic", f.cause)
	})
}

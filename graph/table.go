package graph

// connection is one patch cable. Connections are immutable once added.
type connection struct {
	src, dst     handle
	srcCh, dstCh int
	// feedback cables deliver the previous block of the source channel,
	// kept in history.
	feedback bool
	history  []float64
}

// table is the connection table in insertion order.
type table struct {
	conns []*connection
}

func (t *table) find(src handle, srcCh int, dst handle, dstCh int) int {
	for i, c := range t.conns {
		if c.src == src && c.srcCh == srcCh && c.dst == dst && c.dstCh == dstCh {
			return i
		}
	}
	return -1
}

// drives reports whether any cable feeds dst's channel.
func (t *table) drives(dst handle, dstCh int) bool {
	for _, c := range t.conns {
		if c.dst == dst && c.dstCh == dstCh {
			return true
		}
	}
	return false
}

func (t *table) add(c *connection) {
	t.conns = append(t.conns, c)
}

func (t *table) removeAt(i int) *connection {
	c := t.conns[i]
	t.conns = append(t.conns[:i], t.conns[i+1:]...)
	return c
}

// detach removes every cable touching h and returns them.
func (t *table) detach(h handle) []*connection {
	var removed []*connection
	kept := t.conns[:0]
	for _, c := range t.conns {
		if c.src == h || c.dst == h {
			removed = append(removed, c)
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(t.conns); i++ {
		t.conns[i] = nil
	}
	t.conns = kept
	return removed
}

// reaches reports whether to is reachable from from over non-feedback cables.
func (t *table) reaches(from, to handle) bool {
	if from == to {
		return true
	}
	seen := map[handle]bool{from: true}
	stack := []handle{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range t.conns {
			if c.feedback || c.src != cur || seen[c.dst] {
				continue
			}
			if c.dst == to {
				return true
			}
			seen[c.dst] = true
			stack = append(stack, c.dst)
		}
	}
	return false
}

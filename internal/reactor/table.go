package reactor

// connTable is a sparse, fd-indexed table of active connections. It grows
// by doubling; only the reactor goroutine ever indexes by fd.
type connTable struct {
	slots []*Connection
	count int
}

func newConnTable() *connTable {
	return &connTable{slots: make([]*Connection, 1024)}
}

func (t *connTable) grow(minSize int) {
	size := len(t.slots)
	if size == 0 {
		size = 16
	}
	for size <= minSize {
		size *= 2
	}
	next := make([]*Connection, size)
	copy(next, t.slots)
	t.slots = next
}

func (t *connTable) put(fd int, c *Connection) {
	if fd >= len(t.slots) {
		t.grow(fd)
	}
	if t.slots[fd] == nil {
		t.count++
	}
	t.slots[fd] = c
}

func (t *connTable) get(fd int) (*Connection, bool) {
	if fd < 0 || fd >= len(t.slots) {
		return nil, false
	}
	c := t.slots[fd]
	return c, c != nil
}

func (t *connTable) remove(fd int) {
	if fd < 0 || fd >= len(t.slots) {
		return
	}
	if t.slots[fd] != nil {
		t.slots[fd] = nil
		t.count--
	}
}

// Active returns the number of live connections, used by the /health
// handler's active_connections field.
func (t *connTable) Active() int {
	return t.count
}

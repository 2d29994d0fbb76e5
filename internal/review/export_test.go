package review

// HeldLocks reports how many reviews currently have a lock entry.
func HeldLocks(c *Conversation) int {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	return len(c.locks)
}

// Package function contains small generic function types shared by the listener and metrics packages.
package function

// FourConsumer is an operation that accepts four arguments and returns no result.
type FourConsumer[P1, P2, P3, P4 any] func(p1 P1, p2 P2, p3 P3, p4 P4)

// Accept performs the operation. A nil FourConsumer is a no-op.
func (c FourConsumer[P1, P2, P3, P4]) Accept(p1 P1, p2 P2, p3 P3, p4 P4) {
	if c == nil {
		return
	}
	c(p1, p2, p3, p4)
}

// AndThen returns a FourConsumer which calls c and then after, with the same arguments.
func (c FourConsumer[P1, P2, P3, P4]) AndThen(after FourConsumer[P1, P2, P3, P4]) FourConsumer[P1, P2, P3, P4] {
	return func(p1 P1, p2 P2, p3 P3, p4 P4) {
		c.Accept(p1, p2, p3, p4)
		after.Accept(p1, p2, p3, p4)
	}
}

// ChainFourConsumers composes consumers in order. Nil consumers are skipped.
func ChainFourConsumers[P1, P2, P3, P4 any](consumers ...FourConsumer[P1, P2, P3, P4]) FourConsumer[P1, P2, P3, P4] {
	return func(p1 P1, p2 P2, p3 P3, p4 P4) {
		for _, c := range consumers {
			c.Accept(p1, p2, p3, p4)
		}
	}
}

// NopFourConsumer returns a FourConsumer which does nothing.
func NopFourConsumer[P1, P2, P3, P4 any]() FourConsumer[P1, P2, P3, P4] {
	return func(P1, P2, P3, P4) {}
}

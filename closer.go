package seekio

// Closer closes a stream on scope exit if it is still open.
//
//	c := seekio.NewCloser(s)
//	defer c.Close()
type Closer struct {
	s    Stream
	done bool
}

// NewCloser returns a Closer guarding s.
func NewCloser(s Stream) *Closer {
	return &Closer{s: s}
}

// Close closes the guarded stream if it is open. Only the first call has
// any effect.
func (c *Closer) Close() error {
	if c == nil || c.done || c.s == nil {
		return nil
	}
	c.done = true
	if !c.s.IsOpen() {
		return nil
	}
	return c.s.Close()
}

// Stream returns the guarded stream.
func (c *Closer) Stream() Stream {
	return c.s
}

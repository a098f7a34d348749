package featdetect

import "sync"

// counter holds the number of frames a class has been detected in
type counter struct {
	n int64
	sync.Mutex
}

// increment adds one detection and returns the new count
func (c *counter) increment() int64 {
	c.Lock()
	defer c.Unlock()
	c.n++
	return c.n
}

// value returns the current count
func (c *counter) value() int64 {
	c.Lock()
	defer c.Unlock()
	return c.n
}

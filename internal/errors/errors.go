package errors

import (
	"sync"
)

// Collector gathers errors from independent steps that must not abort each
// other, such as the rule passes of one highlight run.
type Collector struct {
	errors []error
	mutex  sync.RWMutex
}

// NewCollector creates a new error collector
func NewCollector() *Collector {
	return &Collector{
		errors: make([]error, 0),
	}
}

// Add records err. Nil errors are ignored.
func (c *Collector) Add(err error) {
	if err == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.errors = append(c.errors, err)
}

// Errors returns a copy of the collected errors.
func (c *Collector) Errors() []error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	result := make([]error, len(c.errors))
	copy(result, c.errors)
	return result
}

// HasErrors returns true if there are any errors
func (c *Collector) HasErrors() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.errors) > 0
}

// ByRule returns the pattern errors recorded for one rule.
func (c *Collector) ByRule(rule string) []*Error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	var out []*Error
	for _, err := range c.errors {
		var e *Error
		if As(err, &e) && e.Rule == rule {
			out = append(out, e)
		}
	}
	return out
}

// Clear clears all errors
func (c *Collector) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.errors = c.errors[:0]
}

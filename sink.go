package tabschema

import (
	"errors"
	"sync"
)

// MultiLineFunc hands every line to each non-nil fn in turn, stopping at the
// first error.
func MultiLineFunc(fns ...LineFunc) LineFunc {
	return func(l Line) error {
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if err := fn(l); err != nil {
				return err
			}
		}
		return nil
	}
}

// MultiErrorFunc hands every failure to each non-nil fn in turn, stopping at
// the first error.
func MultiErrorFunc(fns ...ErrorFunc) ErrorFunc {
	return func(ve *ValidationError) error {
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if err := fn(ve); err != nil {
				return err
			}
		}
		return nil
	}
}

// ErrorCollector gathers validation failures. Its Collect method is an
// ErrorFunc and may be shared by concurrent parses.
type ErrorCollector struct {
	// Limit stops the parse once this many failures were collected. Zero
	// collects everything.
	Limit int

	mu   sync.Mutex
	errs []*ValidationError
}

// ErrTooManyFailures is returned through Collect once Limit is reached.
var ErrTooManyFailures = errors.New("tabschema: too many validation failures")

// Collect records ve.
func (c *ErrorCollector) Collect(ve *ValidationError) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, ve)
	if c.Limit > 0 && len(c.errs) >= c.Limit {
		return ErrTooManyFailures
	}
	return nil
}

// Errors returns a copy of the collected failures.
func (c *ErrorCollector) Errors() []*ValidationError {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ValidationError, len(c.errs))
	copy(out, c.errs)
	return out
}

// Err joins the collected failures, or returns nil when there are none.
func (c *ErrorCollector) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	errs := make([]error, len(c.errs))
	for i, ve := range c.errs {
		errs[i] = ve
	}
	return errors.Join(errs...)
}

package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chat-to-rich/pkg/storage"

	"golang.org/x/sync/singleflight"
)

// Chain mirrors a snapshot across several backends.
// Backends are ordered from primary (usually local) to secondary (usually remote).
// Reads fall back down the chain and repair the backends above a hit;
// writes go to every backend.
type Chain struct {
	backends []storage.Backend
	sf       *singleflight.Group
}

// New creates a chain over the given backends.
// Returns an error if no backends are provided.
func New(backends ...storage.Backend) (*Chain, error) {
	if len(backends) == 0 {
		return nil, errors.New("chain: at least one backend required")
	}

	bs := make([]storage.Backend, len(backends))
	copy(bs, backends)

	return &Chain{
		backends: bs,
		sf:       &singleflight.Group{},
	}, nil
}

// Get returns the payload from the first backend that has it.
// Concurrent Gets for the same key share one traversal.
func (c *Chain) Get(ctx context.Context, key string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		return c.getWithFallback(ctx, key)
	})
	if err != nil {
		return nil, err
	}

	// every caller gets its own copy of the shared result
	return storage.Clone(result.([]byte)), nil
}

func (c *Chain) getWithFallback(ctx context.Context, key string) ([]byte, error) {
	var firstErr error

	for i, b := range c.backends {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		value, err := b.Get(ctx, key)
		if err != nil {
			// not found or unavailable: try the next backend
			if firstErr == nil && !storage.IsNotFound(err) {
				firstErr = err
			}
			continue
		}

		if i > 0 {
			c.repairUpper(ctx, key, value, i)
		}

		return value, nil
	}

	// a failing member may hold the key, so its error wins over a miss elsewhere
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, storage.ErrKeyNotFound
}

// repairUpper copies a payload found at hitIndex into the backends above it.
// Failures are ignored; the next save overwrites every backend anyway.
func (c *Chain) repairUpper(ctx context.Context, key string, value []byte, hitIndex int) {
	for i := hitIndex - 1; i >= 0; i-- {
		_ = c.backends[i].Set(ctx, key, value)
	}
}

// Set writes value to every backend.
// Every backend is attempted; the returned error joins all failures.
func (c *Chain) Set(ctx context.Context, key string, value []byte) error {
	var errs []error

	for _, b := range c.backends {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := b.Set(ctx, key, value); err != nil {
			errs = append(errs, storage.WrapError(err, b.Name(), "set"))
		}
	}

	return errors.Join(errs...)
}

// Delete removes key from every backend.
func (c *Chain) Delete(ctx context.Context, key string) error {
	var errs []error

	for _, b := range c.backends {
		if err := b.Delete(ctx, key); err != nil {
			errs = append(errs, storage.WrapError(err, b.Name(), "delete"))
		}
	}

	return errors.Join(errs...)
}

// Name returns a name built from the member backends, e.g. "bolt+redis".
func (c *Chain) Name() string {
	names := make([]string, len(c.backends))
	for i, b := range c.backends {
		names[i] = b.Name()
	}
	return strings.Join(names, "+")
}

// Close closes every backend and joins the errors.
func (c *Chain) Close() error {
	var errs []error
	for _, b := range c.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Backends returns a copy of the backends slice for inspection.
func (c *Chain) Backends() []storage.Backend {
	out := make([]storage.Backend, len(c.backends))
	copy(out, c.backends)
	return out
}

// Len returns the number of backends in the chain.
func (c *Chain) Len() int {
	return len(c.backends)
}

// String returns a string representation of the chain.
func (c *Chain) String() string {
	return fmt.Sprintf("chain(%d backends): %s", len(c.backends), strings.ReplaceAll(c.Name(), "+", " -> "))
}

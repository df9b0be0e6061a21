package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/platinummonkey/regionscan/internal/model"
)

// PageSource supplies rendered page images, indexed from 0
type PageSource interface {
	Page(ctx context.Context, index int) ([]byte, error)
	PageCount() int
}

// pageCache fetches each page at most once per run. Concurrent callers for
// the same page wait for the first fetch and share its outcome.
type pageCache struct {
	source PageSource

	mu      sync.Mutex
	entries map[int]*pageEntry
}

type pageEntry struct {
	once sync.Once
	data []byte
	err  error
}

func newPageCache(source PageSource) *pageCache {
	return &pageCache{source: source, entries: make(map[int]*pageEntry)}
}

func (c *pageCache) get(ctx context.Context, index int) ([]byte, error) {
	c.mu.Lock()
	e, ok := c.entries[index]
	if !ok {
		e = &pageEntry{}
		c.entries[index] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.data, e.err = c.source.Page(ctx, index)
		if e.err == nil && len(e.data) == 0 {
			e.err = fmt.Errorf("%w: page %d is empty", model.ErrRender, index)
		}
		e.err = asRenderError(ctx, index, e.err)
	})
	return e.data, e.err
}

// asRenderError tags accessor failures as RenderError unless they already
// carry a more specific kind. Context errors stay untagged only when ctx itself
// ended; otherwise they are the accessor's own timeouts.
func asRenderError(ctx context.Context, index int, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrRender), errors.Is(err, model.ErrSystem):
		return err
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		return err
	default:
		return fmt.Errorf("%w: page %d: %w", model.ErrRender, index, err)
	}
}

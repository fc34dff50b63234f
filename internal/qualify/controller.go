package qualify

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Controller executes work in consecutive chunks. Items inside a chunk run
// concurrently, bounded by a semaphore that may be shared with other
// controllers.
type Controller struct {
	sem   *semaphore.Weighted
	pause time.Duration
}

// NewController creates a Controller that sleeps pause between chunks.
func NewController(sem *semaphore.Weighted, pause time.Duration) *Controller {
	return &Controller{sem: sem, pause: pause}
}

// ChunkSizes returns the widths of the chunks n items split into.
func ChunkSizes(n, size int) []int {
	if n <= 0 {
		return nil
	}
	if size <= 0 {
		size = n
	}
	sizes := make([]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		sizes = append(sizes, min(size, n-start))
	}
	return sizes
}

// Run applies work to every item and returns the results in input order.
// A chunk starts only after the previous one has finished. An item whose
// work returns an error or panics gets fail(item, err) as its result
// without affecting its siblings. Run stops between chunks once ctx is
// done and returns ctx's error with no results.
func Run[In, Out any](
	ctx context.Context,
	c *Controller,
	items []In,
	size int,
	work func(ctx context.Context, item In) (Out, error),
	fail func(item In, err error) Out,
) ([]Out, error) {
	sizes := ChunkSizes(len(items), size)
	results := make([]Out, 0, len(items))

	start := 0
	for idx, n := range sizes {
		chunk := items[start : start+n]
		start += n

		out := make([]Out, n)
		var g errgroup.Group
		for i, item := range chunk {
			g.Go(func() error {
				out[i] = runItem(ctx, c.sem, item, work, fail)
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return nil, eris.Wrapf(err, "qualify: stopped after chunk %d of %d", idx+1, len(sizes))
		}
		results = append(results, out...)

		zap.L().Debug("qualify: chunk complete",
			zap.Int("chunk", idx+1),
			zap.Int("chunks", len(sizes)),
			zap.Int("items", n),
		)

		if idx < len(sizes)-1 && c.pause > 0 {
			timer := time.NewTimer(c.pause)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, eris.Wrapf(ctx.Err(), "qualify: stopped after chunk %d of %d", idx+1, len(sizes))
			case <-timer.C:
			}
		}
	}
	return results, nil
}

// runItem holds one semaphore slot for the duration of work and converts
// errors and panics into fail results.
func runItem[In, Out any](
	ctx context.Context,
	sem *semaphore.Weighted,
	item In,
	work func(ctx context.Context, item In) (Out, error),
	fail func(item In, err error) Out,
) (out Out) {
	if err := sem.Acquire(ctx, 1); err != nil {
		return fail(item, eris.Wrap(err, "qualify: waiting for a worker slot"))
	}
	defer sem.Release(1)

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("qualify: item panicked", zap.Any("panic", r), zap.Stack("stack"))
			out = fail(item, eris.Errorf("panic: %v", r))
		}
	}()

	res, err := work(ctx, item)
	if err != nil {
		return fail(item, err)
	}
	return res
}

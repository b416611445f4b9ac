// Package tilestream implements the TileStream[T] abstraction: an ordered
// sequence of (TileCoord, T) pairs that can be transformed or consumed
// either sequentially on the calling goroutine or fanned out across a
// bounded worker pool. Go has no async/await, so the upstream sync/async
// split collapses here onto "runs inline" versus "dispatched to the pool";
// the serial/parallel and infallible/fallible axes remain distinct.
package tilestream

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/versatiles-org/go-versatiles/tiles"
)

// Item pairs a tile coordinate with its associated value.
type Item[T any] struct {
	Coord tiles.TileCoord
	Value T
}

// ConcurrencyLimits bounds how many goroutines a parallel stage may run at
// once. CPUBound defaults to runtime.NumCPU() and is meant for decode/
// encode/compress work; IOBound is meant for network or disk fetches and
// defaults higher since those goroutines spend most of their time blocked.
type ConcurrencyLimits struct {
	CPUBound int
	IOBound  int
}

// DefaultLimits returns the limits used when a caller doesn't override
// them: CPU-bound work capped at the core count, IO-bound work allowed
// more headroom since it's mostly waiting on a socket or disk.
func DefaultLimits() ConcurrencyLimits {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return ConcurrencyLimits{CPUBound: n, IOBound: n * 4}
}

// Stream is a sequence of Item[T] values produced by a generator function.
// Each call to Next returns the next item, or ok=false once exhausted.
type Stream[T any] struct {
	next func() (Item[T], bool, error)
}

// New builds a Stream from a raw generator function, for producers that
// don't fit FromSlice or FromBBox (e.g. a codec reader pulling tiles off
// disk one block at a time).
func New[T any](next func() (Item[T], bool, error)) *Stream[T] {
	return &Stream[T]{next: next}
}

// FromSlice builds a Stream that yields the given items in order.
func FromSlice[T any](items []Item[T]) *Stream[T] {
	i := 0
	return &Stream[T]{next: func() (Item[T], bool, error) {
		if i >= len(items) {
			return Item[T]{}, false, nil
		}
		it := items[i]
		i++
		return it, true, nil
	}}
}

// FromBBox builds a Stream over every coordinate in bbox, pairing each
// with the value fn returns for it.
func FromBBox[T any](bbox tiles.TileBBox, fn func(tiles.TileCoord) T) *Stream[T] {
	coords := bbox.Coords()
	i := 0
	return &Stream[T]{next: func() (Item[T], bool, error) {
		if i >= len(coords) {
			return Item[T]{}, false, nil
		}
		c := coords[i]
		i++
		return Item[T]{Coord: c, Value: fn(c)}, true, nil
	}}
}

// Next pulls the next item from the stream.
func (s *Stream[T]) Next() (Item[T], bool, error) {
	return s.next()
}

// ToSlice drains the stream into a slice. Stops early and returns the
// first error encountered, if any.
func (s *Stream[T]) ToSlice() ([]Item[T], error) {
	var out []Item[T]
	for {
		item, ok, err := s.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, item)
	}
}

// Map transforms every item sequentially on the calling goroutine.
func Map[T, O any](s *Stream[T], fn func(tiles.TileCoord, T) O) *Stream[O] {
	return &Stream[O]{next: func() (Item[O], bool, error) {
		item, ok, err := s.Next()
		if err != nil || !ok {
			return Item[O]{}, ok, err
		}
		return Item[O]{Coord: item.Coord, Value: fn(item.Coord, item.Value)}, true, nil
	}}
}

// MapTry transforms every item sequentially, stopping at the first error.
func MapTry[T, O any](s *Stream[T], fn func(tiles.TileCoord, T) (O, error)) *Stream[O] {
	return &Stream[O]{next: func() (Item[O], bool, error) {
		item, ok, err := s.Next()
		if err != nil || !ok {
			return Item[O]{}, ok, err
		}
		out, err := fn(item.Coord, item.Value)
		if err != nil {
			return Item[O]{}, false, err
		}
		return Item[O]{Coord: item.Coord, Value: out}, true, nil
	}}
}

// pullParallel drains s on the calling goroutine, handing each item to a
// bounded worker pool: g.Go blocks once limit workers are in flight, so at
// most limit items are read off s and held in memory at once, rather than
// the whole stream being materialized before any work starts. submit is
// handed a mutex shared by all items, for producers that need to record
// each item's arrival order (its output slot) before dispatching its
// worker.
func pullParallel[T any](ctx context.Context, s *Stream[T], limit int, submit func(g *errgroup.Group, ctx context.Context, mu *sync.Mutex, item Item[T])) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	var mu sync.Mutex
	for ctx.Err() == nil {
		item, ok, err := s.Next()
		if err != nil {
			_ = g.Wait()
			return err
		}
		if !ok {
			break
		}
		submit(g, ctx, &mu, item)
	}
	return g.Wait()
}

// MapParallel drains s and transforms every item across a bounded worker
// pool, using limit goroutines. Output order matches input order.
func MapParallel[T, O any](ctx context.Context, s *Stream[T], limit int, fn func(tiles.TileCoord, T) O) ([]Item[O], error) {
	var out []Item[O]
	err := pullParallel(ctx, s, limit, func(g *errgroup.Group, ctx context.Context, mu *sync.Mutex, item Item[T]) {
		mu.Lock()
		idx := len(out)
		out = append(out, Item[O]{})
		mu.Unlock()
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			v := fn(item.Coord, item.Value)
			mu.Lock()
			out[idx] = Item[O]{Coord: item.Coord, Value: v}
			mu.Unlock()
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MapParallelTry is MapParallel for callbacks that can fail; the first
// error cancels the remaining workers.
func MapParallelTry[T, O any](ctx context.Context, s *Stream[T], limit int, fn func(tiles.TileCoord, T) (O, error)) ([]Item[O], error) {
	var out []Item[O]
	err := pullParallel(ctx, s, limit, func(g *errgroup.Group, ctx context.Context, mu *sync.Mutex, item Item[T]) {
		mu.Lock()
		idx := len(out)
		out = append(out, Item[O]{})
		mu.Unlock()
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			v, err := fn(item.Coord, item.Value)
			if err != nil {
				return err
			}
			mu.Lock()
			out[idx] = Item[O]{Coord: item.Coord, Value: v}
			mu.Unlock()
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FilterMap transforms every item sequentially, dropping any for which fn
// returns ok=false.
func FilterMap[T, O any](s *Stream[T], fn func(tiles.TileCoord, T) (O, bool)) *Stream[O] {
	return &Stream[O]{next: func() (Item[O], bool, error) {
		for {
			item, ok, err := s.Next()
			if err != nil || !ok {
				return Item[O]{}, ok, err
			}
			v, keep := fn(item.Coord, item.Value)
			if keep {
				return Item[O]{Coord: item.Coord, Value: v}, true, nil
			}
		}
	}}
}

// FilterMapParallel is FilterMap dispatched across a bounded worker pool.
// Results preserve the order items arrived in; dropped items leave no gap.
func FilterMapParallel[T, O any](ctx context.Context, s *Stream[T], limit int, fn func(tiles.TileCoord, T) (O, bool)) ([]Item[O], error) {
	var results []*Item[O]
	err := pullParallel(ctx, s, limit, func(g *errgroup.Group, ctx context.Context, mu *sync.Mutex, item Item[T]) {
		mu.Lock()
		idx := len(results)
		results = append(results, nil)
		mu.Unlock()
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			v, keep := fn(item.Coord, item.Value)
			if keep {
				mu.Lock()
				results[idx] = &Item[O]{Coord: item.Coord, Value: v}
				mu.Unlock()
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	out := make([]Item[O], 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

// ForEach calls fn for every item sequentially, in order.
func ForEach[T any](s *Stream[T], fn func(tiles.TileCoord, T)) {
	for {
		item, ok, err := s.Next()
		if err != nil || !ok {
			return
		}
		fn(item.Coord, item.Value)
	}
}

// ForEachTry calls fn for every item sequentially, stopping at the first
// error it returns.
func ForEachTry[T any](s *Stream[T], fn func(tiles.TileCoord, T) error) error {
	for {
		item, ok, err := s.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(item.Coord, item.Value); err != nil {
			return err
		}
	}
}

// ForEachParallel drains s and calls fn for every item across a bounded
// worker pool, waiting for all calls to finish.
func ForEachParallel[T any](ctx context.Context, s *Stream[T], limit int, fn func(tiles.TileCoord, T)) error {
	return pullParallel(ctx, s, limit, func(g *errgroup.Group, ctx context.Context, mu *sync.Mutex, item Item[T]) {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			fn(item.Coord, item.Value)
			return nil
		})
	})
}

// ForEachParallelTry is ForEachParallel for callbacks that can fail; the
// first error cancels the remaining workers and is returned.
func ForEachParallelTry[T any](ctx context.Context, s *Stream[T], limit int, fn func(tiles.TileCoord, T) error) error {
	return pullParallel(ctx, s, limit, func(g *errgroup.Group, ctx context.Context, mu *sync.Mutex, item Item[T]) {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return fn(item.Coord, item.Value)
		})
	})
}

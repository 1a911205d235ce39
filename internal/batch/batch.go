// Package batch runs an operation over a list in fixed-size chunks.
// Items inside a chunk run concurrently, chunks run one after another, and a
// failing item is replaced by a fallback value instead of aborting the batch.
package batch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Processor produces the result for a single item.
type Processor[T, R any] func(ctx context.Context, item T) (R, error)

// Fallback produces the result for an item whose processor failed.
type Fallback[T, R any] func(item T, err error) R

// Chunks splits items into consecutive slices of at most size elements.
// A size below 1 is treated as 1.
func Chunks[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// Process runs processor over items, size at a time, pausing for delay between
// chunks. The result has one entry per item, in input order.
//
// If ctx is cancelled during a pause, the remaining items are resolved with
// fallback and ctx.Err() without calling processor.
func Process[T, R any](ctx context.Context, items []T, size int, processor Processor[T, R], delay time.Duration, fallback Fallback[T, R]) []R {
	results := make([]R, len(items))
	chunks := Chunks(items, size)

	offset := 0
	for i, chunk := range chunks {
		runChunk(ctx, chunk, results[offset:offset+len(chunk)], processor, fallback)
		offset += len(chunk)

		if i == len(chunks)-1 {
			break
		}
		if err := Sleep(ctx, delay); err != nil {
			for j := offset; j < len(items); j++ {
				results[j] = fallback(items[j], err)
			}
			break
		}
	}
	return results
}

// runChunk fills out[i] for every chunk[i]. Errors are never returned to the
// group so one failing item cannot cancel its siblings.
func runChunk[T, R any](ctx context.Context, chunk []T, out []R, processor Processor[T, R], fallback Fallback[T, R]) {
	var g errgroup.Group
	for i, item := range chunk {
		g.Go(func() error {
			r, err := safeCall(ctx, item, processor)
			if err != nil {
				r = fallback(item, err)
			}
			out[i] = r
			return nil
		})
	}
	_ = g.Wait()
}

func safeCall[T, R any](ctx context.Context, item T, processor Processor[T, R]) (r R, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("processor panicked: %v", p)
		}
	}()
	return processor(ctx, item)
}

// Sleep waits for d or until ctx is done. A non-positive d returns immediately.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

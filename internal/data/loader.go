// Package data turns datasets into epoch batch streams for the trainer.
package data

import (
	"fmt"
	"iter"
	"math/rand/v2"
)

// SliceLoader batches an in-memory slice. It implements trainer.Loader[[]T].
type SliceLoader[T any] struct {
	items     []T
	batchSize int
	shuffle   bool
	seed      uint64
	dropLast  bool
}

// LoaderOption configures a SliceLoader.
type LoaderOption func(*loaderOptions)

type loaderOptions struct {
	shuffle  bool
	seed     uint64
	dropLast bool
}

// WithShuffle reorders items every epoch with a permutation derived from seed and the epoch index.
func WithShuffle(seed uint64) LoaderOption {
	return func(o *loaderOptions) {
		o.shuffle = true
		o.seed = seed
	}
}

// WithDropLast drops a final batch smaller than the batch size.
func WithDropLast() LoaderOption {
	return func(o *loaderOptions) { o.dropLast = true }
}

// NewSliceLoader creates a loader over items. batchSize must be positive.
func NewSliceLoader[T any](items []T, batchSize int, opts ...LoaderOption) (*SliceLoader[T], error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be > 0, got %d", batchSize)
	}
	var o loaderOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &SliceLoader[T]{
		items:     items,
		batchSize: batchSize,
		shuffle:   o.shuffle,
		seed:      o.seed,
		dropLast:  o.dropLast,
	}, nil
}

// NumBatches returns the number of batches per epoch.
func (l *SliceLoader[T]) NumBatches() int {
	n := len(l.items) / l.batchSize
	if !l.dropLast && len(l.items)%l.batchSize != 0 {
		n++
	}
	return n
}

// Epoch yields the batches of one epoch. Batches are fresh slices.
func (l *SliceLoader[T]) Epoch(epoch int) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		order := l.order(epoch)
		for start := 0; start < len(order); start += l.batchSize {
			end := min(start+l.batchSize, len(order))
			if l.dropLast && end-start < l.batchSize {
				return
			}
			batch := make([]T, 0, end-start)
			for _, idx := range order[start:end] {
				batch = append(batch, l.items[idx])
			}
			if !yield(batch, nil) {
				return
			}
		}
	}
}

func (l *SliceLoader[T]) order(epoch int) []int {
	idx := make([]int, len(l.items))
	for i := range idx {
		idx[i] = i
	}
	if l.shuffle {
		rng := rand.New(rand.NewPCG(l.seed, uint64(epoch))) //nolint:gosec // G404: shuffling, not security
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	}
	return idx
}

package contract

import (
	"context"
	"fmt"
)

const maxPrealloc = 64

// Enumerate reads at(0), at(1), ... up to an explicit bound. count, when
// given, narrows the bound further. The zero value of T is the "not found"
// sentinel and ends the walk; any other error is returned, never used as a
// loop terminator.
func Enumerate[T comparable](
	ctx context.Context,
	bound uint64,
	count func(ctx context.Context) (uint64, error),
	at func(ctx context.Context, i uint64) (T, error),
) ([]T, error) {
	limit := bound
	if count != nil {
		n, err := count(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading count: %w", err)
		}
		if n < limit {
			limit = n
		}
	}

	var zero T
	out := make([]T, 0, min(limit, maxPrealloc))
	for i := uint64(0); i < limit; i++ {
		v, err := at(ctx, i)
		if err != nil {
			return out, fmt.Errorf("reading index %d: %w", i, err)
		}
		if v == zero {
			break
		}
		out = append(out, v)
	}
	return out, nil
}

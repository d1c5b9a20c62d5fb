package memory

import (
	"apphasia/exercise-engine/internal/repository"
	"context"
	"sync"
)

type counterRepository struct {
	mu   sync.Mutex
	seqs map[string]int
}

// NewCounterRepository creates an in-memory sequence counter store.
func NewCounterRepository() repository.CounterRepository {
	return &counterRepository{seqs: map[string]int{}}
}

func (r *counterRepository) Advance(ctx context.Context, key string, floor int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.seqs[key]
	if floor > cur {
		cur = floor
	}
	cur++
	r.seqs[key] = cur
	return cur, nil
}

package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

type readRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.OrderView
}

// NewReadRepository возвращает in-memory проекцию orders_read.
func NewReadRepository() domain.OrderReadRepository {
	return &readRepositoryInMemory{items: make(map[string]domain.OrderView)}
}

func (r *readRepositoryInMemory) InsertIfAbsent(_ context.Context, view domain.OrderView) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[view.ID]; exists {
		return false, nil
	}
	r.items[view.ID] = view
	return true, nil
}

func (r *readRepositoryInMemory) Upsert(_ context.Context, view domain.OrderView) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[view.ID] = view
	return nil
}

func (r *readRepositoryInMemory) Get(_ context.Context, id string) (domain.OrderView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	view, ok := r.items[id]
	if !ok {
		return domain.OrderView{}, domain.ErrOrderNotFound
	}
	return view, nil
}

var _ domain.OrderReadRepository = (*readRepositoryInMemory)(nil)

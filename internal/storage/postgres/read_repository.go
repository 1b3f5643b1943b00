package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

type readRepository struct {
	db *sql.DB
}

// NewReadRepository создаёт репозиторий проекции orders_read.
func NewReadRepository(store *Store) domain.OrderReadRepository {
	return &readRepository{db: store.DB()}
}

func (r *readRepository) InsertIfAbsent(ctx context.Context, view domain.OrderView) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO orders_read (id, status, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, view.ID, string(view.Status), view.Amount)
	if err != nil {
		return false, fmt.Errorf("insert order view: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *readRepository) Upsert(ctx context.Context, view domain.OrderView) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders_read (id, status, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    amount = EXCLUDED.amount
	`, view.ID, string(view.Status), view.Amount)
	if err != nil {
		return fmt.Errorf("upsert order view: %w", err)
	}
	return nil
}

func (r *readRepository) Get(ctx context.Context, id string) (domain.OrderView, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		view   domain.OrderView
		status string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, status, amount
		FROM orders_read
		WHERE id = $1
	`, id).Scan(&view.ID, &status, &view.Amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.OrderView{}, domain.ErrOrderNotFound
		}
		return domain.OrderView{}, fmt.Errorf("select order view: %w", err)
	}
	view.Status = domain.OrderStatus(status)
	return view, nil
}

var _ domain.OrderReadRepository = (*readRepository)(nil)

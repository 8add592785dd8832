package postgres

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements shop.Store on a pgx pool.
type Store struct {
	*queries
	DB *pgxpool.Pool
}

var _ shop.Store = (*Store)(nil)

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{queries: &queries{db: db}, DB: db}
}

// InTx runs fn in a READ COMMITTED transaction. Serialization of a user's
// cart comes from LockCart's row lock, not from the isolation level.
func (s *Store) InTx(ctx context.Context, fn func(q shop.Queries) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres unit of work. Repositories handed to Do share one
// read-committed transaction.
type Store struct{ DB *pgxpool.Pool }

func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, r domain.Repos) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, bind(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func bind(tx pgx.Tx) domain.Repos {
	return domain.Repos{
		Carts:       cartRepo{tx},
		Stock:       stockRepo{tx},
		Orders:      orderRepo{tx},
		Checkouts:   checkoutRepo{tx},
		Wallets:     walletRepo{tx},
		Withdrawals: withdrawalRepo{tx},
		Commissions: commissionRepo{tx},
		Outbox:      outboxRepo{tx},
	}
}

// nullable maps "" to SQL NULL for optional uuid columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func noRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

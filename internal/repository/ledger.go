package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/missionctl/orbit/internal/domain"
)

// Debit subtracts amount from a user's funds and returns the new balance.
// The update is conditional on funds >= amount, so concurrent debits can
// never overdraw. Returns ErrInsufficientFunds with no mutation otherwise.
func (r *SQLRepository) Debit(ctx context.Context, userID int64, amount int64) (int64, error) {
	var funds int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		funds, err = r.debit(ctx, tx, userID, amount)
		return err
	})
	return funds, err
}

// Credit adds amount to a user's funds and returns the new balance.
func (r *SQLRepository) Credit(ctx context.Context, userID int64, amount int64) (int64, error) {
	var funds int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		funds, err = r.credit(ctx, tx, userID, amount)
		return err
	})
	return funds, err
}

func (r *SQLRepository) debit(ctx context.Context, q querier, userID, amount int64) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("%w: debit amount must be >= 0", domain.ErrInvalidInput)
	}

	query := `
		UPDATE users
		SET funds = funds - ?
		WHERE id = ? AND funds >= ?
		RETURNING funds
	`

	var funds int64
	err := q.QueryRowContext(ctx, r.rebind(query), amount, userID, amount).Scan(&funds)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := r.funds(ctx, q, userID); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("user %d: %w", userID, domain.ErrInsufficientFunds)
	}
	if err != nil {
		return 0, err
	}
	return funds, nil
}

func (r *SQLRepository) credit(ctx context.Context, q querier, userID, amount int64) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("%w: credit amount must be >= 0", domain.ErrInvalidInput)
	}

	query := `
		UPDATE users
		SET funds = funds + ?
		WHERE id = ?
		RETURNING funds
	`

	var funds int64
	err := q.QueryRowContext(ctx, r.rebind(query), amount, userID).Scan(&funds)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return funds, nil
}

func (r *SQLRepository) funds(ctx context.Context, q querier, userID int64) (int64, error) {
	var funds int64
	err := q.QueryRowContext(ctx, r.rebind(`SELECT funds FROM users WHERE id = ?`), userID).Scan(&funds)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return funds, nil
}

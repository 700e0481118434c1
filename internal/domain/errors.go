package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for unknown users, missions and user missions.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique name is already taken.
	ErrDuplicate = errors.New("record already exists")

	// ErrInsufficientFunds is returned when a debit exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidInput marks malformed client input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrModelUnavailable is returned by a model that failed to load.
	ErrModelUnavailable = errors.New("predictive model unavailable")

	// ErrAlreadyTerminal is returned when a completion lost the race to
	// another caller that already moved the row to a terminal status.
	ErrAlreadyTerminal = errors.New("user mission already terminal")
)

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

package storage

import "errors"

var (
	// ErrNotFound is returned when a requested record or result table does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned by market data writers when a bar or sample
	// with the same (symbol, timestamp) is already stored. Result tables are
	// replaced whole on save and never return it.
	ErrDuplicateKey = errors.New("duplicate key: market sample already stored")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

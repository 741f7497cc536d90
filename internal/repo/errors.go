package repo

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound — пост, платформа или target не существуют.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — повторное создание поста или target'а.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — пост уже опубликован, изменять его нельзя.
	ErrInvalidState = errors.New("invalid state")
)

// pgUniqueViolation — SQLSTATE нарушения уникальности.
const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// noRows переводит pgx.ErrNoRows в ErrNotFound, остальное не трогает.
func noRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	// foreignKeyViolation is the PostgreSQL SQLSTATE for a missing referenced row.
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"

	// effectKindIndex enforces one effect per kind on an actor.
	effectKindIndex = "uq_effects_actor_kind"
)

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

func isDuplicateKind(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == effectKindIndex
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/GerzaFM/Autosol2-sub000/internal/domain"
)

// Querier es lo común entre *pgxpool.Pool y pgx.Tx; los repositorios lo
// reciben para funcionar igual dentro o fuera de una transacción.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return strings.Contains(err.Error(), "23505")
}

// isIntegrityViolation clase 23 (integrity_constraint_violation) distinta de 23505.
func isIntegrityViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23")
}

// mapWriteError traduce errores de escritura a la taxonomía del dominio.
func mapWriteError(op string, err error) error {
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, domain.ErrDuplicateNaturalKey)
	case isIntegrityViolation(err):
		return fmt.Errorf("%s: %w: %v", op, domain.ErrPersistenceConflict, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// nullIfEmpty guarda NULL en lugar de cadena vacía (índices parciales únicos).
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

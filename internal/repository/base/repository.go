package base

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Коды ошибок PostgreSQL, которые имеют смысл для движка
const (
	codeExclusionViolation   = "23P01"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Имена ограничений-страховок от пересечения записей
const (
	ConstraintTutorNoOverlap   = "appointments_tutor_no_overlap"
	ConstraintStudentNoOverlap = "appointments_student_no_overlap"
)

// Querier общее подмножество пула и транзакции
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository базовый репозиторий с общими методами
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository создаёт новый базовый репозиторий
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Pool возвращает пул соединений
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// ExecAffected выполняет команду и возвращает количество затронутых строк
func ExecAffected(ctx context.Context, q Querier, query string, args ...any) (int64, error) {
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InTx выполняет fn в транзакции, предварительно взяв advisory-блокировки по ключам.
// Блокировки снимаются вместе с транзакцией, поэтому работают между инстансами сервиса.
func (r *Repository) InTx(ctx context.Context, lockKeys []string, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return Classify(fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	for _, key := range lockKeys {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return Classify(fmt.Errorf("acquire lock %s: %w", key, err))
		}
	}

	if err := fn(tx); err != nil {
		return Classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Classify(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// IsNotFound проверяет является ли ошибка "строка не найдена"
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Classify переводит ошибку PostgreSQL в таксономию apperr.
// Бизнес-ошибки возвращаются как есть; StoreUnavailable уточняется, если внутри лежит ошибка PostgreSQL.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind != apperr.KindStoreUnavailable {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeExclusionViolation:
			if pgErr.ConstraintName == ConstraintStudentNoOverlap {
				return apperr.Wrap(apperr.KindStudentDoubleBooked, err, "student already has an appointment in this interval")
			}
			return apperr.Wrap(apperr.KindSlotAlreadyBooked, err, "tutor already has an appointment in this interval")
		case codeSerializationFailure, codeDeadlockDetected:
			return apperr.Wrap(apperr.KindConflict, err, "concurrent transaction")
		}
	}
	if appErr != nil {
		return err
	}
	return apperr.Wrap(apperr.KindStoreUnavailable, err, "store unavailable")
}

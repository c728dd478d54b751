package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ruleColumns = `id, tutor_id, weekday, start_minute, end_minute, slot_minutes, is_active, valid_from, valid_until, created_at, updated_at`

const exceptionColumns = `id, tutor_id, date, available, note, created_at, updated_at`

// AvailabilityRepository правила и исключения доступности репетиторов
type AvailabilityRepository struct {
	pool *pgxpool.Pool
}

// NewAvailabilityRepository создаёт новый репозиторий
func NewAvailabilityRepository(pool *pgxpool.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

// CreateRule создаёт новое еженедельное правило
func (r *AvailabilityRepository) CreateRule(ctx context.Context, rule *model.AvailabilityRule) error {
	query := `
		INSERT INTO availability_rules (tutor_id, weekday, start_minute, end_minute, slot_minutes, is_active, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(
		ctx,
		query,
		rule.TutorID,
		rule.Weekday,
		int(rule.StartTime),
		int(rule.EndTime),
		nullableMinutes(rule.SlotMinutes),
		rule.IsActive,
		rule.ValidFrom,
		rule.ValidUntil,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create availability rule: %w", err)
	}

	return nil
}

// GetRule получает правило по ID
func (r *AvailabilityRepository) GetRule(ctx context.Context, id int64) (*model.AvailabilityRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM availability_rules WHERE id = $1`

	rule, err := scanRule(r.pool.QueryRow(ctx, query, id))
	if base.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get availability rule by id: %w", err)
	}

	return rule, nil
}

// ListRules получает правила репетитора
func (r *AvailabilityRepository) ListRules(ctx context.Context, tutorID int64, activeOnly bool) ([]model.AvailabilityRule, error) {
	rules, err := listRules(ctx, r.pool, tutorID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list availability rules: %w", err)
	}
	return rules, nil
}

// DeactivateRule выключает правило
func (r *AvailabilityRepository) DeactivateRule(ctx context.Context, id int64) error {
	query := `
		UPDATE availability_rules
		SET is_active = false, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("deactivate availability rule: %w", err)
	}

	return nil
}

// ListExceptions исключения в диапазоне дат включительно
func (r *AvailabilityRepository) ListExceptions(ctx context.Context, tutorID int64, from, to time.Time) ([]model.AvailabilityException, error) {
	query := `
		SELECT ` + exceptionColumns + `
		FROM availability_exceptions
		WHERE tutor_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date
	`

	rows, err := r.pool.Query(ctx, query, tutorID, model.Date(from), model.Date(to))
	if err != nil {
		return nil, fmt.Errorf("list availability exceptions: %w", err)
	}
	defer rows.Close()

	var exceptions []model.AvailabilityException
	for rows.Next() {
		ex, err := scanException(rows)
		if err != nil {
			return nil, fmt.Errorf("scan availability exception: %w", err)
		}
		exceptions = append(exceptions, *ex)
	}

	return exceptions, rows.Err()
}

// UpsertException последняя запись на пару (репетитор, дата) побеждает
func (r *AvailabilityRepository) UpsertException(ctx context.Context, ex *model.AvailabilityException) error {
	query := `
		INSERT INTO availability_exceptions (tutor_id, date, available, note)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tutor_id, date) DO UPDATE
		SET available = EXCLUDED.available, note = EXCLUDED.note, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query, ex.TutorID, model.Date(ex.Date), ex.Available, ex.Note).
		Scan(&ex.ID, &ex.CreatedAt, &ex.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert availability exception: %w", err)
	}

	return nil
}

// DeleteException удаляет исключение; false если его не было
func (r *AvailabilityRepository) DeleteException(ctx context.Context, tutorID int64, date time.Time) (bool, error) {
	query := `DELETE FROM availability_exceptions WHERE tutor_id = $1 AND date = $2`

	affected, err := base.ExecAffected(ctx, r.pool, query, tutorID, model.Date(date))
	if err != nil {
		return false, fmt.Errorf("delete availability exception: %w", err)
	}

	return affected > 0, nil
}

func listRules(ctx context.Context, q base.Querier, tutorID int64, activeOnly bool) ([]model.AvailabilityRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM availability_rules
		WHERE tutor_id = $1 AND (is_active OR NOT $2)
		ORDER BY weekday, start_minute, id
	`

	rows, err := q.Query(ctx, query, tutorID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []model.AvailabilityRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan availability rule: %w", err)
		}
		rules = append(rules, *rule)
	}

	return rules, rows.Err()
}

func exceptionOn(ctx context.Context, q base.Querier, tutorID int64, date time.Time) (*model.AvailabilityException, error) {
	query := `SELECT ` + exceptionColumns + ` FROM availability_exceptions WHERE tutor_id = $1 AND date = $2`

	ex, err := scanException(q.QueryRow(ctx, query, tutorID, model.Date(date)))
	if base.IsNotFound(err) {
		return nil, nil
	}
	return ex, err
}

func scanRule(row pgx.Row) (*model.AvailabilityRule, error) {
	var (
		rule        model.AvailabilityRule
		start, end  int
		slotMinutes *int
	)
	err := row.Scan(
		&rule.ID,
		&rule.TutorID,
		&rule.Weekday,
		&start,
		&end,
		&slotMinutes,
		&rule.IsActive,
		&rule.ValidFrom,
		&rule.ValidUntil,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.StartTime = model.TimeOfDay(start)
	rule.EndTime = model.TimeOfDay(end)
	if slotMinutes != nil {
		rule.SlotMinutes = *slotMinutes
	}
	return &rule, nil
}

func scanException(row pgx.Row) (*model.AvailabilityException, error) {
	var ex model.AvailabilityException
	err := row.Scan(
		&ex.ID,
		&ex.TutorID,
		&ex.Date,
		&ex.Available,
		&ex.Note,
		&ex.CreatedAt,
		&ex.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	ex.Date = model.Date(ex.Date)
	return &ex, nil
}

func nullableMinutes(m int) *int {
	if m <= 0 {
		return nil
	}
	return &m
}

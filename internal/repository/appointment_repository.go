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

const appointmentColumns = `id, tutor_id, student_id, subject, notes, start_at, end_at, status, version, created_at,
	confirmed_at, cancelled_at, completed_at, cancel_reason, cancelled_by, rescheduled_from`

// AppointmentRepository чтение записей вне транзакции
type AppointmentRepository struct {
	pool *pgxpool.Pool
}

// NewAppointmentRepository создаёт новый репозиторий
func NewAppointmentRepository(pool *pgxpool.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

// GetAppointment получает запись по ID; nil если записи нет
func (r *AppointmentRepository) GetAppointment(ctx context.Context, id int64) (*model.Appointment, error) {
	a, err := getAppointment(ctx, r.pool, id, false)
	if err != nil {
		return nil, fmt.Errorf("get appointment by id: %w", err)
	}
	return a, nil
}

// ListTutorAppointments неотменённые записи репетитора, пересекающие [from, to)
func (r *AppointmentRepository) ListTutorAppointments(ctx context.Context, tutorID int64, from, to time.Time) ([]model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE tutor_id = $1 AND status <> 'CANCELLED' AND start_at < $3 AND end_at > $2
		ORDER BY start_at, id
	`

	list, err := queryAppointments(ctx, r.pool, query, tutorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list tutor appointments: %w", err)
	}
	return list, nil
}

// ListParticipantAppointments все записи пользователя как репетитора или студента, пересекающие [from, to)
func (r *AppointmentRepository) ListParticipantAppointments(ctx context.Context, userID int64, from, to time.Time) ([]model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE (tutor_id = $1 OR student_id = $1) AND start_at < $3 AND end_at > $2
		ORDER BY start_at, id
	`

	list, err := queryAppointments(ctx, r.pool, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list participant appointments: %w", err)
	}
	return list, nil
}

func getAppointment(ctx context.Context, q base.Querier, id int64, forUpdate bool) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	a, err := scanAppointment(q.QueryRow(ctx, query, id))
	if base.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func queryAppointments(ctx context.Context, q base.Querier, query string, args ...any) ([]model.Appointment, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		list = append(list, *a)
	}

	return list, rows.Err()
}

func insertAppointment(ctx context.Context, q base.Querier, a *model.Appointment) error {
	query := `
		INSERT INTO appointments (tutor_id, student_id, subject, notes, start_at, end_at, status, version, created_at, rescheduled_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	err := q.QueryRow(
		ctx,
		query,
		a.TutorID,
		a.StudentID,
		a.Subject,
		a.Notes,
		a.StartAt,
		a.EndAt,
		string(a.Status),
		a.Version,
		a.CreatedAt,
		a.RescheduledFrom,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

// updateAppointment пишет изменяемые поля, только если версия в БД равна expectedVersion
func updateAppointment(ctx context.Context, q base.Querier, a *model.Appointment, expectedVersion int64) (bool, error) {
	query := `
		UPDATE appointments
		SET status = $3, version = $4, confirmed_at = $5, cancelled_at = $6, completed_at = $7,
			cancel_reason = $8, cancelled_by = $9
		WHERE id = $1 AND version = $2
	`

	affected, err := base.ExecAffected(
		ctx, q, query,
		a.ID,
		expectedVersion,
		string(a.Status),
		a.Version,
		a.ConfirmedAt,
		a.CancelledAt,
		a.CompletedAt,
		string(a.CancelReason),
		a.CancelledBy,
	)
	if err != nil {
		return false, fmt.Errorf("update appointment: %w", err)
	}
	return affected == 1, nil
}

func hasOverlap(ctx context.Context, q base.Querier, column string, id int64, start, end time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE ` + column + ` = $1 AND status <> 'CANCELLED' AND start_at < $3 AND end_at > $2
		)
	`

	var exists bool
	if err := q.QueryRow(ctx, query, id, start, end).Scan(&exists); err != nil {
		return false, fmt.Errorf("check %s overlap: %w", column, err)
	}
	return exists, nil
}

func scanAppointment(row pgx.Row) (*model.Appointment, error) {
	var (
		a              model.Appointment
		status, reason string
	)
	err := row.Scan(
		&a.ID,
		&a.TutorID,
		&a.StudentID,
		&a.Subject,
		&a.Notes,
		&a.StartAt,
		&a.EndAt,
		&status,
		&a.Version,
		&a.CreatedAt,
		&a.ConfirmedAt,
		&a.CancelledAt,
		&a.CompletedAt,
		&reason,
		&a.CancelledBy,
		&a.RescheduledFrom,
	)
	if err != nil {
		return nil, err
	}

	a.Status = model.AppointmentStatus(status)
	a.CancelReason = model.CancelReason(reason)
	return &a, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepository история переходов и исходящие уведомления (outbox)
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository создаёт новый репозиторий
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// PendingEvents недоставленные события не позже occurredBefore в порядке возникновения
func (r *EventRepository) PendingEvents(ctx context.Context, occurredBefore time.Time, limit int) ([]model.LifecycleEvent, error) {
	query := `
		SELECT id, appointment_id, type, old_status, new_status, tutor_id, student_id,
			actor_id, actor_role, reason, start_at, occurs_at, dispatched_at
		FROM appointment_events
		WHERE dispatched_at IS NULL AND occurs_at <= $1
		ORDER BY occurs_at, appointment_id
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, occurredBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending events: %w", err)
	}
	defer rows.Close()

	var events []model.LifecycleEvent
	for rows.Next() {
		var (
			ev                                         model.LifecycleEvent
			evType, oldStatus, newStatus, role, reason string
		)
		err := rows.Scan(
			&ev.ID,
			&ev.AppointmentID,
			&evType,
			&oldStatus,
			&newStatus,
			&ev.TutorID,
			&ev.StudentID,
			&ev.Actor.ID,
			&role,
			&reason,
			&ev.StartAt,
			&ev.OccursAt,
			&ev.DispatchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = model.EventType(evType)
		ev.OldStatus = model.AppointmentStatus(oldStatus)
		ev.NewStatus = model.AppointmentStatus(newStatus)
		ev.Actor.Role = model.Role(role)
		ev.Reason = model.CancelReason(reason)
		events = append(events, ev)
	}

	return events, rows.Err()
}

// MarkDispatched помечает событие доставленным
func (r *EventRepository) MarkDispatched(ctx context.Context, eventID uuid.UUID, at time.Time) error {
	query := `UPDATE appointment_events SET dispatched_at = $2 WHERE id = $1 AND dispatched_at IS NULL`

	if _, err := r.pool.Exec(ctx, query, eventID, at); err != nil {
		return fmt.Errorf("mark event dispatched: %w", err)
	}
	return nil
}

func insertEvent(ctx context.Context, q base.Querier, ev *model.LifecycleEvent) error {
	query := `
		INSERT INTO appointment_events (id, appointment_id, type, old_status, new_status, tutor_id, student_id,
			actor_id, actor_role, reason, start_at, occurs_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := q.Exec(
		ctx,
		query,
		ev.ID,
		ev.AppointmentID,
		string(ev.Type),
		string(ev.OldStatus),
		string(ev.NewStatus),
		ev.TutorID,
		ev.StudentID,
		ev.Actor.ID,
		string(ev.Actor.Role),
		string(ev.Reason),
		ev.StartAt,
		ev.OccursAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/repository/base"
	"github.com/Freeeeeet/tutor_scheduler/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ service.Store = (*Store)(nil)

// Store хранилище PostgreSQL для всего движка
type Store struct {
	*base.Repository
	*AvailabilityRepository
	*AppointmentRepository
	*EventRepository
}

// NewStore создаёт хранилище поверх пула
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Repository:             base.NewRepository(pool),
		AvailabilityRepository: NewAvailabilityRepository(pool),
		AppointmentRepository:  NewAppointmentRepository(pool),
		EventRepository:        NewEventRepository(pool),
	}
}

// InTx выполняет fn в транзакции с advisory-блокировками lockKeys
func (s *Store) InTx(ctx context.Context, lockKeys []string, fn func(tx service.Tx) error) error {
	return s.Repository.InTx(ctx, lockKeys, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

// pgTx операции движка внутри одной транзакции PostgreSQL; ошибки уже переведены в apperr
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) ActiveRules(ctx context.Context, tutorID int64) ([]model.AvailabilityRule, error) {
	rules, err := listRules(ctx, t.tx, tutorID, true)
	return rules, base.Classify(err)
}

func (t *pgTx) ExceptionOn(ctx context.Context, tutorID int64, date time.Time) (*model.AvailabilityException, error) {
	ex, err := exceptionOn(ctx, t.tx, tutorID, date)
	return ex, base.Classify(err)
}

func (t *pgTx) TutorHasOverlap(ctx context.Context, tutorID int64, start, end time.Time) (bool, error) {
	busy, err := hasOverlap(ctx, t.tx, "tutor_id", tutorID, start, end)
	return busy, base.Classify(err)
}

func (t *pgTx) StudentHasOverlap(ctx context.Context, studentID int64, start, end time.Time) (bool, error) {
	busy, err := hasOverlap(ctx, t.tx, "student_id", studentID, start, end)
	return busy, base.Classify(err)
}

func (t *pgTx) InsertAppointment(ctx context.Context, a *model.Appointment) error {
	return base.Classify(insertAppointment(ctx, t.tx, a))
}

// GetAppointment блокирует строку до конца транзакции
func (t *pgTx) GetAppointment(ctx context.Context, id int64) (*model.Appointment, error) {
	a, err := getAppointment(ctx, t.tx, id, true)
	return a, base.Classify(err)
}

func (t *pgTx) UpdateAppointment(ctx context.Context, a *model.Appointment, expectedVersion int64) (bool, error) {
	updated, err := updateAppointment(ctx, t.tx, a, expectedVersion)
	return updated, base.Classify(err)
}

func (t *pgTx) InsertEvent(ctx context.Context, ev *model.LifecycleEvent) error {
	return base.Classify(insertEvent(ctx, t.tx, ev))
}

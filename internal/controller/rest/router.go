// Package rest HTTP граница движка бронирования: разбор запросов, аутентификация
// инициатора и отображение ошибок на статусы. Бизнес-правил здесь нет.
package rest

import (
	"context"
	"iter"
	"net/http"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type SlotGenerator interface {
	GenerateSlots(ctx context.Context, tutorID int64, rangeStart, rangeEnd time.Time) (iter.Seq[model.Slot], error)
}

type Reserver interface {
	Reserve(ctx context.Context, req service.ReserveRequest) (*model.Appointment, error)
}

type AppointmentManager interface {
	Transition(ctx context.Context, id int64, event model.Event, actor model.Actor) (*model.Appointment, error)
	Cancel(ctx context.Context, id int64, actor model.Actor, reason model.CancelReason) (*model.Appointment, error)
	Reschedule(ctx context.Context, id int64, actor model.Actor, date time.Time, start, end model.TimeOfDay) (*model.Appointment, *model.Appointment, error)
	GetAppointment(ctx context.Context, id int64, actor model.Actor) (*model.Appointment, error)
	ListAppointments(ctx context.Context, actor model.Actor, from, to time.Time) ([]model.Appointment, error)
}

type AvailabilityManager interface {
	CreateRule(ctx context.Context, actor model.Actor, rule model.AvailabilityRule) (*model.AvailabilityRule, error)
	DeactivateRule(ctx context.Context, actor model.Actor, tutorID, ruleID int64) error
	ListRules(ctx context.Context, tutorID int64, activeOnly bool) ([]model.AvailabilityRule, error)
	PutException(ctx context.Context, actor model.Actor, ex model.AvailabilityException) (*model.AvailabilityException, error)
	DeleteException(ctx context.Context, actor model.Actor, tutorID int64, date time.Time) error
	ListExceptions(ctx context.Context, actor model.Actor, tutorID int64, from, to time.Time) ([]model.AvailabilityException, error)
}

// Services сервисы, к которым обращаются обработчики
type Services struct {
	Slots        SlotGenerator
	Reservations Reserver
	Appointments AppointmentManager
	Availability AvailabilityManager
}

// Options параметры HTTP слоя
type Options struct {
	JWTSecret string
	Timeout   time.Duration
	Location  *time.Location
	// CalendarDays насколько вперёд выгружается календарь
	CalendarDays int
	Clock        func() time.Time
	// Health проверка зависимостей для /healthz; nil значит всегда здоров
	Health func(ctx context.Context) error
}

type Handler struct {
	services     Services
	secret       []byte
	timeout      time.Duration
	location     *time.Location
	calendarDays int
	clock        func() time.Time
	health       func(ctx context.Context) error
	logger       *zap.Logger
}

func NewHandler(services Services, opts Options, logger *zap.Logger) *Handler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.CalendarDays <= 0 {
		opts.CalendarDays = 90
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Handler{
		services:     services,
		secret:       []byte(opts.JWTSecret),
		timeout:      opts.Timeout,
		location:     opts.Location,
		calendarDays: opts.CalendarDays,
		clock:        opts.Clock,
		health:       opts.Health,
		logger:       logger,
	}
}

// Routes собирает роутер со всеми маршрутами
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.timeout))

	r.Get("/healthz", h.healthz)

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)

		r.Route("/tutors/{tutorID}", func(r chi.Router) {
			r.Get("/slots", h.listSlots)

			r.Get("/rules", h.listRules)
			r.Post("/rules", h.createRule)
			r.Delete("/rules/{ruleID}", h.deactivateRule)

			r.Get("/exceptions", h.listExceptions)
			r.Put("/exceptions/{date}", h.putException)
			r.Delete("/exceptions/{date}", h.deleteException)
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", h.reserve)
			r.Get("/", h.listAppointments)
			r.Get("/{id}", h.getAppointment)
			r.Post("/{id}/confirm", h.transition(model.EventConfirm))
			r.Post("/{id}/complete", h.transition(model.EventComplete))
			r.Post("/{id}/cancel", h.cancel)
			r.Post("/{id}/reschedule", h.reschedule)
		})

		r.Get("/calendar.ics", h.exportCalendar)
	})

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Warn("Health check failed", zap.Error(err))
			respond(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respond(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

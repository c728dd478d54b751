package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/service"
)

type reserveRequest struct {
	TutorID   int64           `json:"tutor_id"`
	StudentID int64           `json:"student_id"`
	Date      string          `json:"date"`
	StartTime model.TimeOfDay `json:"start_time"`
	EndTime   model.TimeOfDay `json:"end_time"`
	Subject   string          `json:"subject"`
	Notes     string          `json:"notes"`
}

type cancelRequest struct {
	Reason model.CancelReason `json:"reason"`
}

type rescheduleRequest struct {
	Date      string          `json:"date"`
	StartTime model.TimeOfDay `json:"start_time"`
	EndTime   model.TimeOfDay `json:"end_time"`
}

type appointmentsResponse struct {
	Appointments []model.Appointment `json:"appointments"`
}

type rescheduleResponse struct {
	Cancelled   *model.Appointment `json:"cancelled"`
	Appointment *model.Appointment `json:"appointment"`
}

// studentFor определяет, за кого бронирует инициатор: студент только за себя,
// администратор за любого студента, репетитор не бронирует
func studentFor(actor model.Actor, requested int64) (int64, error) {
	switch {
	case actor.Role == model.RoleStudent:
		if requested != 0 && requested != actor.ID {
			return 0, apperr.New(apperr.KindUnauthorized, "students book only for themselves")
		}
		return actor.ID, nil
	case actor.IsPrivileged():
		if requested <= 0 {
			return 0, apperr.New(apperr.KindInvalidInterval, "student_id is required")
		}
		return requested, nil
	default:
		return 0, apperr.New(apperr.KindUnauthorized, "tutors cannot book appointments")
	}
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	const op = "rest.Handler.reserve"

	actor, _ := ActorFrom(r.Context())

	var req reserveRequest
	if err := decode(r, &req, false); err != nil {
		badRequest(w, r, "failed to decode request")
		return
	}
	if req.TutorID <= 0 {
		badRequest(w, r, "tutor_id is required")
		return
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		badRequest(w, r, "date must be YYYY-MM-DD")
		return
	}
	studentID, err := studentFor(actor, req.StudentID)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}

	appt, err := h.services.Reservations.Reserve(r.Context(), service.ReserveRequest{
		TutorID:   req.TutorID,
		StudentID: studentID,
		Date:      date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Subject:   req.Subject,
		Notes:     req.Notes,
	})
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	respond(w, r, http.StatusCreated, appt)
}

func (h *Handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	const op = "rest.Handler.listAppointments"

	actor, _ := ActorFrom(r.Context())
	from, to, err := queryRange(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	// даты включительно, в часовом поясе движка
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, h.location)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, h.location).AddDate(0, 0, 1)

	list, err := h.services.Appointments.ListAppointments(r.Context(), actor, start, end)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	if list == nil {
		list = []model.Appointment{}
	}
	respond(w, r, http.StatusOK, appointmentsResponse{Appointments: list})
}

func (h *Handler) getAppointment(w http.ResponseWriter, r *http.Request) {
	const op = "rest.Handler.getAppointment"

	actor, _ := ActorFrom(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	appt, err := h.services.Appointments.GetAppointment(r.Context(), id, actor)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	respond(w, r, http.StatusOK, appt)
}

// transition обработчик подтверждения и завершения
func (h *Handler) transition(event model.Event) http.HandlerFunc {
	op := "rest.Handler.transition." + string(event)

	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFrom(r.Context())
		id, err := pathID(r, "id")
		if err != nil {
			badRequest(w, r, err.Error())
			return
		}

		var appt *model.Appointment
		err = retryOnConflict(r.Context(), func(ctx context.Context) error {
			var err error
			appt, err = h.services.Appointments.Transition(ctx, id, event, actor)
			return err
		})
		if err != nil {
			h.fail(w, r, op, err)
			return
		}
		respond(w, r, http.StatusOK, appt)
	}
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	const op = "rest.Handler.cancel"

	actor, _ := ActorFrom(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	var req cancelRequest
	if err := decode(r, &req, true); err != nil {
		badRequest(w, r, "failed to decode request")
		return
	}

	var appt *model.Appointment
	err = retryOnConflict(r.Context(), func(ctx context.Context) error {
		var err error
		appt, err = h.services.Appointments.Cancel(ctx, id, actor, req.Reason)
		return err
	})
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	respond(w, r, http.StatusOK, appt)
}

func (h *Handler) reschedule(w http.ResponseWriter, r *http.Request) {
	const op = "rest.Handler.reschedule"

	actor, _ := ActorFrom(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	var req rescheduleRequest
	if err := decode(r, &req, false); err != nil {
		badRequest(w, r, "failed to decode request")
		return
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		badRequest(w, r, "date must be YYYY-MM-DD")
		return
	}

	var resp rescheduleResponse
	err = retryOnConflict(r.Context(), func(ctx context.Context) error {
		var err error
		resp.Cancelled, resp.Appointment, err = h.services.Appointments.Reschedule(ctx, id, actor, date, req.StartTime, req.EndTime)
		return err
	})
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	respond(w, r, http.StatusCreated, resp)
}

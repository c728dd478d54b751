package rest

import (
	"io"
	"net/http"

	"github.com/Freeeeeet/tutor_scheduler/internal/calendar"
)

// exportCalendar выгружает записи инициатора: неделя назад и calendarDays вперёд
func (h *Handler) exportCalendar(w http.ResponseWriter, r *http.Request) {
	const op = "rest.Handler.calendar"

	actor, _ := ActorFrom(r.Context())
	now := h.clock()

	list, err := h.services.Appointments.ListAppointments(r.Context(), actor, now.AddDate(0, 0, -7), now.AddDate(0, 0, h.calendarDays))
	if err != nil {
		h.fail(w, r, op, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="appointments.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, calendar.Export(list, now))
}

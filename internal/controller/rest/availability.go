package rest

import (
	"net/http"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
)

type ruleRequest struct {
	Weekday     int             `json:"weekday"`
	StartTime   model.TimeOfDay `json:"start_time"`
	EndTime     model.TimeOfDay `json:"end_time"`
	SlotMinutes int             `json:"slot_minutes"`
	ValidFrom   string          `json:"valid_from"`
	ValidUntil  string          `json:"valid_until"`
}

type exceptionRequest struct {
	Available bool   `json:"available"`
	Note      string `json:"note"`
}

type rulesResponse struct {
	Rules []model.AvailabilityRule `json:"rules"`
}

type exceptionsResponse struct {
	Exceptions []model.AvailabilityException `json:"exceptions"`
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	const op = "rest.Handler.listRules"

	tutorID, err := pathID(r, "tutorID")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	activeOnly := r.URL.Query().Get("all") != "true"

	rules, err := h.services.Availability.ListRules(r.Context(), tutorID, activeOnly)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	if rules == nil {
		rules = []model.AvailabilityRule{}
	}
	respond(w, r, http.StatusOK, rulesResponse{Rules: rules})
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	const op = "rest.Handler.createRule"

	actor, _ := ActorFrom(r.Context())
	tutorID, err := pathID(r, "tutorID")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	var req ruleRequest
	if err := decode(r, &req, false); err != nil {
		badRequest(w, r, "failed to decode request")
		return
	}
	validFrom, err := optionalDate(req.ValidFrom)
	if err != nil {
		badRequest(w, r, "valid_from must be YYYY-MM-DD")
		return
	}
	validUntil, err := optionalDate(req.ValidUntil)
	if err != nil {
		badRequest(w, r, "valid_until must be YYYY-MM-DD")
		return
	}

	rule, err := h.services.Availability.CreateRule(r.Context(), actor, model.AvailabilityRule{
		TutorID:     tutorID,
		Weekday:     req.Weekday,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		SlotMinutes: req.SlotMinutes,
		ValidFrom:   validFrom,
		ValidUntil:  validUntil,
	})
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	respond(w, r, http.StatusCreated, rule)
}

func (h *Handler) deactivateRule(w http.ResponseWriter, r *http.Request) {
	const op = "rest.Handler.deactivateRule"

	actor, _ := ActorFrom(r.Context())
	tutorID, err := pathID(r, "tutorID")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	ruleID, err := pathID(r, "ruleID")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	if err := h.services.Availability.DeactivateRule(r.Context(), actor, tutorID, ruleID); err != nil {
		h.fail(w, r, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listExceptions(w http.ResponseWriter, r *http.Request) {
	const op = "rest.Handler.listExceptions"

	actor, _ := ActorFrom(r.Context())
	tutorID, err := pathID(r, "tutorID")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	from, to, err := queryRange(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	list, err := h.services.Availability.ListExceptions(r.Context(), actor, tutorID, from, to)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	if list == nil {
		list = []model.AvailabilityException{}
	}
	respond(w, r, http.StatusOK, exceptionsResponse{Exceptions: list})
}

func (h *Handler) putException(w http.ResponseWriter, r *http.Request) {
	const op = "rest.Handler.putException"

	actor, _ := ActorFrom(r.Context())
	tutorID, err := pathID(r, "tutorID")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	date, err := pathDate(r, "date")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	var req exceptionRequest
	if err := decode(r, &req, true); err != nil {
		badRequest(w, r, "failed to decode request")
		return
	}

	ex, err := h.services.Availability.PutException(r.Context(), actor, model.AvailabilityException{
		TutorID:   tutorID,
		Date:      date,
		Available: req.Available,
		Note:      req.Note,
	})
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	respond(w, r, http.StatusOK, ex)
}

func (h *Handler) deleteException(w http.ResponseWriter, r *http.Request) {
	const op = "rest.Handler.deleteException"

	actor, _ := ActorFrom(r.Context())
	tutorID, err := pathID(r, "tutorID")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	date, err := pathDate(r, "date")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	if err := h.services.Availability.DeleteException(r.Context(), actor, tutorID, date); err != nil {
		h.fail(w, r, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

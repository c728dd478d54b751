package rest

import (
	"net/http"
	"slices"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
)

type slotsResponse struct {
	Slots []model.Slot `json:"slots"`
}

func (h *Handler) listSlots(w http.ResponseWriter, r *http.Request) {
	const op = "rest.Handler.listSlots"

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

	seq, err := h.services.Slots.GenerateSlots(r.Context(), tutorID, from, to)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}

	slots := slices.Collect(seq)
	if slots == nil {
		slots = []model.Slot{}
	}
	respond(w, r, http.StatusOK, slotsResponse{Slots: slots})
}

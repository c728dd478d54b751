package rest

import (
	"net/http"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

const codeBadRequest = "BAD_REQUEST"

// ErrorBody тело ответа с ошибкой
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error ErrorBody `json:"error"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	respond(w, r, http.StatusBadRequest, errorResponse{Error: ErrorBody{Code: codeBadRequest, Message: msg}})
}

// fail отображает ошибку сервиса на HTTP ответ.
// Детали причины остаются в логе, клиент видит только код и сообщение вида ошибки.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := apperr.KindOf(err)
	status := kind.HTTPStatus()

	fields := []zap.Field{
		zap.String("op", op),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("kind", string(kind)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", fields...)
	} else {
		h.logger.Info("Request rejected", fields...)
	}

	respond(w, r, status, errorResponse{Error: ErrorBody{Code: kind.PublicCode(), Message: kind.UserMessage()}})
}

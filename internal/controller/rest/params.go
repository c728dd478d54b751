package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}

func pathDate(r *http.Request, name string) (time.Time, error) {
	d, err := model.ParseDate(chi.URLParam(r, name))
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD", name)
	}
	return d, nil
}

// queryRange обязательные параметры from и to в формате YYYY-MM-DD
func queryRange(r *http.Request) (from, to time.Time, err error) {
	q := r.URL.Query()
	if q.Get("from") == "" || q.Get("to") == "" {
		return time.Time{}, time.Time{}, errors.New("from and to are required")
	}
	if from, err = model.ParseDate(q.Get("from")); err != nil {
		return time.Time{}, time.Time{}, errors.New("from must be YYYY-MM-DD")
	}
	if to, err = model.ParseDate(q.Get("to")); err != nil {
		return time.Time{}, time.Time{}, errors.New("to must be YYYY-MM-DD")
	}
	return from, to, nil
}

func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := model.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// decode разбирает JSON тело; пустое тело допустимо, если allowEmpty
func decode(r *http.Request, v any, allowEmpty bool) error {
	err := render.DecodeJSON(r.Body, v)
	if allowEmpty && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

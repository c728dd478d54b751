package base

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"tutor overlap", &pgconn.PgError{Code: "23P01", ConstraintName: ConstraintTutorNoOverlap}, apperr.KindSlotAlreadyBooked},
		{"student overlap", &pgconn.PgError{Code: "23P01", ConstraintName: ConstraintStudentNoOverlap}, apperr.KindStudentDoubleBooked},
		{"serialization", &pgconn.PgError{Code: "40001"}, apperr.KindConflict},
		{"deadlock", fmt.Errorf("update appointment: %w", &pgconn.PgError{Code: "40P01"}), apperr.KindConflict},
		{"unique violation", &pgconn.PgError{Code: "23505"}, apperr.KindStoreUnavailable},
		{"network", errors.New("dial tcp: i/o timeout"), apperr.KindStoreUnavailable},
		{"already classified", apperr.New(apperr.KindInvalidTransition, "nope"), apperr.KindInvalidTransition},
		{"store error hiding exclusion", apperr.Classify(fmt.Errorf("insert appointment: %w",
			&pgconn.PgError{Code: "23P01", ConstraintName: ConstraintStudentNoOverlap}), "insert appointment"), apperr.KindStudentDoubleBooked},
		{"store error hiding deadlock", apperr.Classify(&pgconn.PgError{Code: "40P01"}, "update appointment"), apperr.KindConflict},
		{"store error without pg cause", apperr.Classify(errors.New("conn closed"), "get appointment"), apperr.KindStoreUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			assert.Equal(t, tc.want, apperr.KindOf(got))
			assert.ErrorIs(t, got, tc.err)
		})
	}

	assert.NoError(t, Classify(nil))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(pgx.ErrNoRows))
	assert.True(t, IsNotFound(fmt.Errorf("get appointment: %w", pgx.ErrNoRows)))
	assert.False(t, IsNotFound(errors.New("other")))
}

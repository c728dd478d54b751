// Package calendar выгружает записи участника в формате iCalendar.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	ical "github.com/arran4/golang-ical"
)

const productID = "-//Freeeeeet//tutor_scheduler//RU"

// UID стабильный идентификатор события для записи; клиенты календаря обновляют событие по нему
func UID(appointmentID int64) string {
	return fmt.Sprintf("appointment-%d@tutor_scheduler", appointmentID)
}

// Export собирает календарь из неотменённых записей
func Export(appointments []model.Appointment, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for i := range appointments {
		a := &appointments[i]
		if !a.IsActive() {
			continue
		}

		ev := cal.AddEvent(UID(a.ID))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetCreatedTime(a.CreatedAt.UTC())
		ev.SetStartAt(a.StartAt.UTC())
		ev.SetEndAt(a.EndAt.UTC())
		ev.SetSummary(summary(a))
		if a.Notes != "" {
			ev.SetDescription(a.Notes)
		}
		ev.SetStatus(eventStatus(a.Status))
	}

	return cal.Serialize()
}

func summary(a *model.Appointment) string {
	subject := strings.TrimSpace(a.Subject)
	if subject == "" {
		subject = "Занятие"
	}
	return fmt.Sprintf("%s (репетитор %d / студент %d)", subject, a.TutorID, a.StudentID)
}

func eventStatus(s model.AppointmentStatus) ical.ObjectStatus {
	if s == model.StatusScheduled {
		return ical.ObjectStatusTentative
	}
	return ical.ObjectStatusConfirmed
}

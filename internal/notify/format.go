package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
)

// EventDisplay представляет отображение события записи
type EventDisplay struct {
	Emoji string
	Text  string
}

// GetEventDisplay возвращает emoji и текст для события
func GetEventDisplay(t model.EventType) EventDisplay {
	displays := map[model.EventType]EventDisplay{
		model.EventTypeBooked:    {"🆕", "Новая запись"},
		model.EventTypeConfirmed: {"✅", "Запись подтверждена"},
		model.EventTypeCancelled: {"❌", "Запись отменена"},
		model.EventTypeCompleted: {"✔️", "Занятие состоялось"},
	}

	if display, ok := displays[t]; ok {
		return display
	}

	return EventDisplay{"❓", "Неизвестное событие"}
}

// GetReasonText возвращает причину отмены на русском
func GetReasonText(r model.CancelReason) string {
	texts := map[model.CancelReason]string{
		model.ReasonStudentCancelled: "отменил студент",
		model.ReasonTutorCancelled:   "отменил репетитор",
		model.ReasonAdminCancelled:   "отменил администратор",
		model.ReasonRescheduled:      "перенос на другое время",
		model.ReasonNoShow:           "неявка",
		model.ReasonOther:            "другая причина",
	}
	return texts[r]
}

// GetWeekdayName возвращает название дня недели на русском
func GetWeekdayName(weekday time.Weekday) string {
	names := []string{
		"Воскресенье",
		"Понедельник",
		"Вторник",
		"Среда",
		"Четверг",
		"Пятница",
		"Суббота",
	}
	if weekday >= 0 && int(weekday) < len(names) {
		return names[weekday]
	}
	return "Неизвестно"
}

// FormatDateTime форматирует дату и время
func FormatDateTime(t time.Time) string {
	return t.Format("02.01.2006 15:04")
}

// FormatMessage текст уведомления о событии
func FormatMessage(ev model.LifecycleEvent, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	display := GetEventDisplay(ev.Type)
	start := ev.StartAt.In(loc)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s #%d\n", display.Emoji, display.Text, ev.AppointmentID)
	fmt.Fprintf(&b, "📅 %s, %s\n", GetWeekdayName(start.Weekday()), FormatDateTime(start))
	fmt.Fprintf(&b, "👨‍🏫 Репетитор: %d\n", ev.TutorID)
	fmt.Fprintf(&b, "🎓 Студент: %d", ev.StudentID)
	if reason := GetReasonText(ev.Reason); reason != "" && ev.Type == model.EventTypeCancelled {
		fmt.Fprintf(&b, "\n💬 Причина: %s", reason)
	}
	return b.String()
}

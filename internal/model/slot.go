package model

import "time"

// Slot кандидат на бронирование, вычисляется из правил и не хранится в БД
type Slot struct {
	TutorID   int64     `json:"tutor_id"`
	Date      time.Time `json:"date"`
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
	Minutes   int       `json:"duration_minutes"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
}

func (s Slot) Duration() time.Duration {
	return time.Duration(s.Minutes) * time.Minute
}

// Overlaps проверяет пересечение полуинтервалов [aStart, aEnd) и [bStart, bEnd)
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

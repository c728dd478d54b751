package model

import "time"

// AvailabilityRule представляет еженедельное окно доступности репетитора
type AvailabilityRule struct {
	ID          int64      `json:"id"`
	TutorID     int64      `json:"tutor_id"`
	Weekday     int        `json:"weekday"`      // 0 = Sunday, 6 = Saturday
	StartTime   TimeOfDay  `json:"start_time"`   // включительно
	EndTime     TimeOfDay  `json:"end_time"`     // не включительно
	SlotMinutes int        `json:"slot_minutes"` // 0 = длительность по умолчанию
	IsActive    bool       `json:"is_active"`
	ValidFrom   *time.Time `json:"valid_from,omitempty"`
	ValidUntil  *time.Time `json:"valid_until,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// HasValidRange проверяет инварианты окна: день недели и start < end
func (r *AvailabilityRule) HasValidRange() bool {
	return r.Weekday >= 0 && r.Weekday <= 6 &&
		r.StartTime.Valid() && r.EndTime.Valid() &&
		r.StartTime < r.EndTime
}

// AppliesOn проверяет что правило активно и действует в указанную дату
func (r *AvailabilityRule) AppliesOn(date time.Time) bool {
	if !r.IsActive || int(date.Weekday()) != r.Weekday {
		return false
	}
	d := Date(date)
	if r.ValidFrom != nil && d.Before(Date(*r.ValidFrom)) {
		return false
	}
	if r.ValidUntil != nil && d.After(Date(*r.ValidUntil)) {
		return false
	}
	return true
}

// Covers проверяет что интервал [start, end) целиком лежит внутри окна правила
func (r *AvailabilityRule) Covers(start, end TimeOfDay) bool {
	return r.HasValidRange() && r.StartTime <= start && end <= r.EndTime
}

// AvailabilityException переопределяет доступность на конкретную дату
type AvailabilityException struct {
	ID        int64     `json:"id"`
	TutorID   int64     `json:"tutor_id"`
	Date      time.Time `json:"date"`
	Available bool      `json:"available"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Blocks возвращает true если исключение закрывает день
func (e *AvailabilityException) Blocks() bool {
	return e != nil && !e.Available
}

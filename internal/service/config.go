package service

import "time"

// EngineConfig общие параметры движка бронирования
type EngineConfig struct {
	DefaultSlotMinutes int
	MaxRangeDays       int
	Location           *time.Location // в какой зоне трактуется настенное время правил
	Clock              func() time.Time
	DispatchTimeout    time.Duration
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.DefaultSlotMinutes <= 0 {
		c.DefaultSlotMinutes = 60
	}
	if c.MaxRangeDays <= 0 {
		c.MaxRangeDays = 90
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = 5 * time.Second
	}
	return c
}

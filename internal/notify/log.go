package notify

import (
	"context"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"go.uber.org/zap"
)

// LogNotifier пишет события в лог; используется когда других каналов нет
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Dispatch(_ context.Context, ev model.LifecycleEvent) error {
	n.logger.Info("Lifecycle event",
		zap.String("event_id", ev.ID.String()),
		zap.String("event", string(ev.Type)),
		zap.Int64("appointment_id", ev.AppointmentID),
		zap.String("old_status", string(ev.OldStatus)),
		zap.String("status", string(ev.NewStatus)),
		zap.Int64("tutor_id", ev.TutorID),
		zap.Int64("student_id", ev.StudentID),
		zap.Int64("actor_id", ev.Actor.ID),
		zap.String("actor_role", string(ev.Actor.Role)),
		zap.Time("occurs_at", ev.OccursAt),
	)
	return nil
}

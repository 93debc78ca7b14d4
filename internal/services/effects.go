package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event is an outbound fact published after an allocation transition.
// Delivery is fire-and-forget; consumers handle cache invalidation,
// payroll and notifications downstream.
type Event struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	AllocationID int64      `json:"allocation_id"`
	StudentID    int64      `json:"student_id"`
	TrainerID    *int64     `json:"trainer_id"`
	CourseID     *int64     `json:"course_id"`
	SessionIDs   []int64    `json:"session_ids,omitempty"`
	FirstDate    *time.Time `json:"first_date,omitempty"`
	LastDate     *time.Time `json:"last_date,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

const (
	EventTrainerAllocated  = "trainer_allocated"
	EventSessionsGenerated = "sessions_generated"
)

func newEvent(eventType string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
	}
}

type Notification struct {
	Kind         string `json:"kind"`
	Recipient    string `json:"recipient"` // "student" or "trainer"
	RecipientID  int64  `json:"recipient_id"`
	AllocationID int64  `json:"allocation_id"`
	Message      string `json:"message"`
}

type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

type NotificationDispatcher interface {
	Dispatch(ctx context.Context, note Notification) error
}

// PayrollLedger opens an accounting period when an allocation is approved
// and closes it on cancel/complete.
type PayrollLedger interface {
	StartPeriod(ctx context.Context, allocationID, trainerID int64) error
	EndPeriod(ctx context.Context, allocationID, trainerID int64) error
}

// LogEventPublisher is the default publisher: it records the fact in the
// structured log. Real transports plug in behind the same interface.
type LogEventPublisher struct {
	logger *zap.Logger
}

func NewLogEventPublisher(logger *zap.Logger) *LogEventPublisher {
	return &LogEventPublisher{logger: logger}
}

func (p *LogEventPublisher) Publish(_ context.Context, event Event) error {
	p.logger.Info("event published",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.Int64("allocation_id", event.AllocationID),
		zap.Int64("student_id", event.StudentID),
		zap.Int64p("trainer_id", event.TrainerID),
		zap.Int("session_count", len(event.SessionIDs)),
	)
	return nil
}

type LogNotificationDispatcher struct {
	logger *zap.Logger
}

func NewLogNotificationDispatcher(logger *zap.Logger) *LogNotificationDispatcher {
	return &LogNotificationDispatcher{logger: logger}
}

func (d *LogNotificationDispatcher) Dispatch(_ context.Context, note Notification) error {
	d.logger.Info("notification dispatched",
		zap.String("kind", note.Kind),
		zap.String("recipient", note.Recipient),
		zap.Int64("recipient_id", note.RecipientID),
		zap.Int64("allocation_id", note.AllocationID),
	)
	return nil
}

type LogPayrollLedger struct {
	logger *zap.Logger
}

func NewLogPayrollLedger(logger *zap.Logger) *LogPayrollLedger {
	return &LogPayrollLedger{logger: logger}
}

func (l *LogPayrollLedger) StartPeriod(_ context.Context, allocationID, trainerID int64) error {
	l.logger.Info("payroll period started",
		zap.Int64("allocation_id", allocationID),
		zap.Int64("trainer_id", trainerID),
	)
	return nil
}

func (l *LogPayrollLedger) EndPeriod(_ context.Context, allocationID, trainerID int64) error {
	l.logger.Info("payroll period ended",
		zap.Int64("allocation_id", allocationID),
		zap.Int64("trainer_id", trainerID),
	)
	return nil
}

// Effect is one post-commit side effect of an allocation transition.
type Effect struct {
	Name string
	Run  func(ctx context.Context) error
}

// EffectRunner executes effects after the owning transaction commits.
// Each effect is independently logged; a failure never propagates to the
// caller, so an approval stands even when session generation or a
// notification fails.
type EffectRunner struct {
	logger *zap.Logger
}

func NewEffectRunner(logger *zap.Logger) *EffectRunner {
	return &EffectRunner{logger: logger}
}

func (r *EffectRunner) Run(ctx context.Context, allocationID int64, effects ...Effect) {
	for _, effect := range effects {
		if err := effect.Run(ctx); err != nil {
			r.logger.Error("post-transition effect failed",
				zap.String("effect", effect.Name),
				zap.Int64("allocation_id", allocationID),
				zap.Error(err),
			)
			continue
		}
		r.logger.Debug("post-transition effect completed",
			zap.String("effect", effect.Name),
			zap.Int64("allocation_id", allocationID),
		)
	}
}

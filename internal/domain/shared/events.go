// Package shared contains common domain types, errors, and events
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Progress events
	EventSessionCompleted EventType = "progress.session_completed"
	EventSnapshotMerged   EventType = "progress.snapshot_merged"

	// Reward events
	EventRewardClaimed      EventType = "reward.claimed"
	EventRewardCreditFailed EventType = "reward.credit_failed"

	// Learner events
	EventXPCredited    EventType = "learner.xp_credited"
	EventStreakUpdated EventType = "learner.streak_updated"

	// Lesson events
	EventLessonSaved EventType = "lesson.saved"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// EventPublisher publishes domain events to interested subscribers.
type EventPublisher interface {
	Publish(event Event) error
}

// EventHandler handles a domain event.
type EventHandler interface {
	Handle(event Event) error
	EventTypes() []EventType
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// SessionCompletedEvent is emitted the first time a session's merged
// snapshot reaches the "completed" status for a learner.
type SessionCompletedEvent struct {
	BaseEvent
	LearnerID  string `json:"learner_id"`
	SessionID  string `json:"session_id"`
	XPEarned   int    `json:"xp_earned"`
	Percentage int    `json:"percentage"`
}

// Payload implements Event interface.
func (e SessionCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID,
		"session_id": e.SessionID,
		"xp_earned":  e.XPEarned,
		"percentage": e.Percentage,
	}
}

// NewSessionCompletedEvent creates a new SessionCompletedEvent.
func NewSessionCompletedEvent(learnerID, sessionID string, xpEarned, percentage int) SessionCompletedEvent {
	return SessionCompletedEvent{
		BaseEvent:  NewBaseEvent(EventSessionCompleted, learnerID),
		LearnerID:  learnerID,
		SessionID:  sessionID,
		XPEarned:   xpEarned,
		Percentage: percentage,
	}
}

// SnapshotMergedEvent is emitted when a recomputed rollup is merged into
// the persisted snapshot for a (learner, session) pair.
type SnapshotMergedEvent struct {
	BaseEvent
	LearnerID     string `json:"learner_id"`
	SessionID     string `json:"session_id"`
	OldPercentage int    `json:"old_percentage"`
	NewPercentage int    `json:"new_percentage"`
}

// Payload implements Event interface.
func (e SnapshotMergedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":     e.LearnerID,
		"session_id":     e.SessionID,
		"old_percentage": e.OldPercentage,
		"new_percentage": e.NewPercentage,
	}
}

// NewSnapshotMergedEvent creates a new SnapshotMergedEvent.
func NewSnapshotMergedEvent(learnerID, sessionID string, oldPct, newPct int) SnapshotMergedEvent {
	return SnapshotMergedEvent{
		BaseEvent:     NewBaseEvent(EventSnapshotMerged, learnerID),
		LearnerID:     learnerID,
		SessionID:     sessionID,
		OldPercentage: oldPct,
		NewPercentage: newPct,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Reward Events
// ═══════════════════════════════════════════════════════════════════════════

// RewardClaimedEvent is emitted when a reward claim has been persisted and
// the XP credit has succeeded.
type RewardClaimedEvent struct {
	BaseEvent
	LearnerID string `json:"learner_id"`
	SessionID string `json:"session_id"`
	XPAwarded int    `json:"xp_awarded"`
	NewTotal  int    `json:"new_total"`
}

// Payload implements Event interface.
func (e RewardClaimedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID,
		"session_id": e.SessionID,
		"xp_awarded": e.XPAwarded,
		"new_total":  e.NewTotal,
	}
}

// NewRewardClaimedEvent creates a new RewardClaimedEvent.
func NewRewardClaimedEvent(learnerID, sessionID string, xpAwarded, newTotal int) RewardClaimedEvent {
	return RewardClaimedEvent{
		BaseEvent: NewBaseEvent(EventRewardClaimed, learnerID),
		LearnerID: learnerID,
		SessionID: sessionID,
		XPAwarded: xpAwarded,
		NewTotal:  newTotal,
	}
}

// RewardCreditFailedEvent is emitted when the claim row was inserted but the
// XP credit failed. The pair is inconsistent until reconciled; the event is
// the reconciliation flag, nothing auto-heals it.
type RewardCreditFailedEvent struct {
	BaseEvent
	LearnerID string `json:"learner_id"`
	SessionID string `json:"session_id"`
	XPAwarded int    `json:"xp_awarded"`
	Reason    string `json:"reason"`
}

// Payload implements Event interface.
func (e RewardCreditFailedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID,
		"session_id": e.SessionID,
		"xp_awarded": e.XPAwarded,
		"reason":     e.Reason,
	}
}

// NewRewardCreditFailedEvent creates a new RewardCreditFailedEvent.
func NewRewardCreditFailedEvent(learnerID, sessionID string, xpAwarded int, reason string) RewardCreditFailedEvent {
	return RewardCreditFailedEvent{
		BaseEvent: NewBaseEvent(EventRewardCreditFailed, learnerID),
		LearnerID: learnerID,
		SessionID: sessionID,
		XPAwarded: xpAwarded,
		Reason:    reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Learner Events
// ═══════════════════════════════════════════════════════════════════════════

// XPCreditedEvent is emitted when a learner's XP counter is incremented.
type XPCreditedEvent struct {
	BaseEvent
	LearnerID string `json:"learner_id"`
	Delta     int    `json:"delta"`
	NewTotal  int    `json:"new_total"`
	Source    string `json:"source"` // "reward" or "lesson"
}

// Payload implements Event interface.
func (e XPCreditedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID,
		"delta":      e.Delta,
		"new_total":  e.NewTotal,
		"source":     e.Source,
	}
}

// NewXPCreditedEvent creates a new XPCreditedEvent.
func NewXPCreditedEvent(learnerID string, delta, newTotal int, source string) XPCreditedEvent {
	return XPCreditedEvent{
		BaseEvent: NewBaseEvent(EventXPCredited, learnerID),
		LearnerID: learnerID,
		Delta:     delta,
		NewTotal:  newTotal,
		Source:    source,
	}
}

// StreakUpdatedEvent is emitted when a learner's completion streak changes.
type StreakUpdatedEvent struct {
	BaseEvent
	LearnerID string `json:"learner_id"`
	Streak    int    `json:"streak"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID,
		"streak":     e.Streak,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(learnerID string, streak int) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent: NewBaseEvent(EventStreakUpdated, learnerID),
		LearnerID: learnerID,
		Streak:    streak,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Lesson Events
// ═══════════════════════════════════════════════════════════════════════════

// LessonSavedEvent is emitted after a lesson's records were upserted and the
// batch XP credit finished (possibly with per-row failures).
type LessonSavedEvent struct {
	BaseEvent
	LessonInfoID string `json:"lesson_info_id"`
	Records      int    `json:"records"`
	Credited     int    `json:"credited"`
	Failed       int    `json:"failed"`
}

// Payload implements Event interface.
func (e LessonSavedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"lesson_info_id": e.LessonInfoID,
		"records":        e.Records,
		"credited":       e.Credited,
		"failed":         e.Failed,
	}
}

// NewLessonSavedEvent creates a new LessonSavedEvent.
func NewLessonSavedEvent(lessonInfoID string, records, credited, failed int) LessonSavedEvent {
	return LessonSavedEvent{
		BaseEvent:    NewBaseEvent(EventLessonSaved, lessonInfoID),
		LessonInfoID: lessonInfoID,
		Records:      records,
		Credited:     credited,
		Failed:       failed,
	}
}

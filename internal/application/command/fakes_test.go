package command

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/questhall/questhall-progress-hub/internal/domain/learner"
	"github.com/questhall/questhall-progress-hub/internal/domain/lesson"
	"github.com/questhall/questhall-progress-hub/internal/domain/progress"
	"github.com/questhall/questhall-progress-hub/internal/domain/reward"
	"github.com/questhall/questhall-progress-hub/internal/domain/shared"
)

// In-memory фейки хранилищ для тестов обработчиков. Поведение повторяет
// контракт postgres-реализаций, включая разрешение гонок на вставке.

type fakeAssignments struct {
	bySession map[string][]progress.Assignment
	units     map[string][]string
	courses   map[string][]string
}

func (f *fakeAssignments) ListAssignments(_ context.Context, sessionID string) ([]progress.Assignment, error) {
	return f.bySession[sessionID], nil
}

func (f *fakeAssignments) ListSessionIDs(_ context.Context, unitID string) ([]string, error) {
	return f.units[unitID], nil
}

func (f *fakeAssignments) ListUnitIDs(_ context.Context, courseID string) ([]string, error) {
	return f.courses[courseID], nil
}

type fakeCompletions struct {
	byLearner map[string][]progress.Completion
}

func (f *fakeCompletions) ListCompletions(_ context.Context, learnerID string, exerciseIDs []string) ([]progress.Completion, error) {
	wanted := make(map[string]bool, len(exerciseIDs))
	for _, id := range exerciseIDs {
		wanted[id] = true
	}

	var out []progress.Completion
	for _, c := range f.byLearner[learnerID] {
		if wanted[c.ExerciseID] {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeSnapshots struct {
	mu   sync.Mutex
	data map[string]progress.Snapshot
}

func snapKey(learnerID, sessionID string) string { return learnerID + "/" + sessionID }

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{data: make(map[string]progress.Snapshot)}
}

func (f *fakeSnapshots) GetSnapshot(_ context.Context, learnerID, sessionID string) (*progress.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.data[snapKey(learnerID, sessionID)]; ok {
		return &s, nil
	}
	return nil, nil
}

func (f *fakeSnapshots) GetSnapshots(_ context.Context, learnerID string, sessionIDs []string) (map[string]progress.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]progress.Snapshot)
	for _, id := range sessionIDs {
		if s, ok := f.data[snapKey(learnerID, id)]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (f *fakeSnapshots) UpsertSnapshot(_ context.Context, s progress.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := snapKey(s.LearnerID, s.SessionID)
	// Слияние по максимуму на стороне "хранилища", как в postgres.
	if prev, ok := f.data[key]; ok {
		if prev.XPEarned > s.XPEarned {
			s.XPEarned = prev.XPEarned
		}
		if prev.Percentage > s.Percentage {
			s.Percentage = prev.Percentage
		}
		if prev.Status.Rank() > s.Status.Rank() {
			s.Status = prev.Status
		}
	}
	f.data[key] = s
	return nil
}

type fakeClaims struct {
	mu   sync.Mutex
	data map[string]reward.Claim
}

func newFakeClaims() *fakeClaims {
	return &fakeClaims{data: make(map[string]reward.Claim)}
}

func (f *fakeClaims) InsertIfAbsent(_ context.Context, c reward.Claim) (reward.InsertOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := snapKey(c.LearnerID, c.SessionID)
	if _, ok := f.data[key]; ok {
		return reward.InsertConflict, nil
	}
	f.data[key] = c
	return reward.InsertCreated, nil
}

func (f *fakeClaims) Get(_ context.Context, learnerID, sessionID string) (*reward.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.data[snapKey(learnerID, sessionID)]; ok {
		return &c, nil
	}
	return nil, nil
}

func (f *fakeClaims) ListByLearner(_ context.Context, learnerID string) ([]reward.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []reward.Claim
	for _, c := range f.data {
		if c.LearnerID == learnerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeClaims) MarkCredited(_ context.Context, learnerID, sessionID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := snapKey(learnerID, sessionID)
	c, ok := f.data[key]
	if !ok {
		return shared.ErrClaimNotFound
	}
	c.CreditedAt = &at
	f.data[key] = c
	return nil
}

func (f *fakeClaims) ListUncredited(_ context.Context, olderThan time.Time) ([]reward.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []reward.Claim
	for _, c := range f.data {
		if c.CreditedAt == nil && c.ClaimedAt.Before(olderThan) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeClaims) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data)
}

type fakeXPCounter struct {
	mu     sync.Mutex
	totals map[string]learner.XP
	// failFor заставляет инкремент падать для конкретного ученика.
	failFor map[string]error
	// increments считает фактические применения инкремента.
	increments int
}

func newFakeXPCounter() *fakeXPCounter {
	return &fakeXPCounter{
		totals:  make(map[string]learner.XP),
		failFor: make(map[string]error),
	}
}

func (f *fakeXPCounter) IncrementXP(_ context.Context, learnerID string, delta learner.XP) (learner.XP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[learnerID]; ok {
		return 0, err
	}
	if delta <= 0 {
		return 0, errors.New("delta must be positive")
	}
	f.totals[learnerID] += delta
	f.increments++
	return f.totals[learnerID], nil
}

func (f *fakeXPCounter) BatchIncrementXP(ctx context.Context, deltas []learner.XPDelta) []learner.XPResult {
	out := make([]learner.XPResult, 0, len(deltas))
	for _, d := range deltas {
		total, err := f.IncrementXP(ctx, d.LearnerID, d.Delta)
		out = append(out, learner.XPResult{LearnerID: d.LearnerID, NewTotal: total, Err: err})
	}
	return out
}

func (f *fakeXPCounter) total(learnerID string) learner.XP {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totals[learnerID]
}

type fakeLearners struct {
	mu   sync.Mutex
	data map[string]*learner.Learner
}

func newFakeLearners() *fakeLearners {
	return &fakeLearners{data: make(map[string]*learner.Learner)}
}

func (f *fakeLearners) Create(_ context.Context, l *learner.Learner) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[l.ID] = l.Clone()
	return nil
}

func (f *fakeLearners) GetByID(_ context.Context, id string) (*learner.Learner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.data[id]; ok {
		return l.Clone(), nil
	}
	return nil, shared.ErrLearnerNotFound
}

func (f *fakeLearners) GetByIDs(_ context.Context, ids []string) ([]*learner.Learner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*learner.Learner
	for _, id := range ids {
		if l, ok := f.data[id]; ok {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

func (f *fakeLearners) Update(_ context.Context, l *learner.Learner) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[l.ID] = l.Clone()
	return nil
}

type fakeLessons struct {
	mu      sync.Mutex
	infos   map[string]lesson.Info
	records map[string][]lesson.Record
	upserts int
}

func newFakeLessons() *fakeLessons {
	return &fakeLessons{
		infos:   make(map[string]lesson.Info),
		records: make(map[string][]lesson.Record),
	}
}

func (f *fakeLessons) CreateInfo(_ context.Context, info lesson.Info) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.infos[info.ID]; ok {
		return shared.ErrLessonAlreadyExists
	}
	f.infos[info.ID] = info
	return nil
}

func (f *fakeLessons) GetInfo(_ context.Context, id string) (*lesson.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if info, ok := f.infos[id]; ok {
		return &info, nil
	}
	return nil, nil
}

func (f *fakeLessons) ListInfosByCourse(_ context.Context, courseID string, _, _ time.Time) ([]lesson.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []lesson.Info
	for _, info := range f.infos {
		if info.CourseID == courseID {
			out = append(out, info)
		}
	}
	return out, nil
}

func (f *fakeLessons) GetRecords(_ context.Context, id string) ([]lesson.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[id], nil
}

func (f *fakeLessons) ListRecordsByCourse(_ context.Context, courseID string, _, _ time.Time) ([]lesson.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []lesson.Record
	for id, recs := range f.records {
		if info, ok := f.infos[id]; ok && info.CourseID == courseID {
			out = append(out, recs...)
		}
	}
	return out, nil
}

func (f *fakeLessons) UpsertRecords(_ context.Context, id string, records []lesson.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[id] = append([]lesson.Record(nil), records...)
	f.upserts++
	return nil
}

type capturedEvents struct {
	mu     sync.Mutex
	events []shared.Event
}

func (c *capturedEvents) Publish(e shared.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *capturedEvents) ofType(t shared.EventType) []shared.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []shared.Event
	for _, e := range c.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

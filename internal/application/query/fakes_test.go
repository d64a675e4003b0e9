package query

import (
	"context"
	"sync"
	"time"

	"github.com/questhall/questhall-progress-hub/internal/domain/lesson"
	"github.com/questhall/questhall-progress-hub/internal/domain/progress"
	"github.com/questhall/questhall-progress-hub/internal/domain/reward"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FAKES
// Простые потокобезопасные заглушки репозиториев для тестов запросов.
// ══════════════════════════════════════════════════════════════════════════════

type fakeAssignments struct {
	bySession map[string][]progress.Assignment
	byUnit    map[string][]string
	byCourse  map[string][]string
}

func newFakeAssignments() *fakeAssignments {
	return &fakeAssignments{
		bySession: make(map[string][]progress.Assignment),
		byUnit:    make(map[string][]string),
		byCourse:  make(map[string][]string),
	}
}

func (f *fakeAssignments) ListAssignments(_ context.Context, sessionID string) ([]progress.Assignment, error) {
	return f.bySession[sessionID], nil
}

func (f *fakeAssignments) ListSessionIDs(_ context.Context, unitID string) ([]string, error) {
	return f.byUnit[unitID], nil
}

func (f *fakeAssignments) ListUnitIDs(_ context.Context, courseID string) ([]string, error) {
	return f.byCourse[courseID], nil
}

type fakeCompletions struct {
	byLearner map[string]map[string]progress.Completion // learnerID -> exerciseID
}

func newFakeCompletions() *fakeCompletions {
	return &fakeCompletions{byLearner: make(map[string]map[string]progress.Completion)}
}

func (f *fakeCompletions) add(learnerID string, c progress.Completion) {
	if f.byLearner[learnerID] == nil {
		f.byLearner[learnerID] = make(map[string]progress.Completion)
	}
	f.byLearner[learnerID][c.ExerciseID] = c
}

func (f *fakeCompletions) ListCompletions(_ context.Context, learnerID string, exerciseIDs []string) ([]progress.Completion, error) {
	var out []progress.Completion
	for _, id := range exerciseIDs {
		if c, ok := f.byLearner[learnerID][id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeSnapshots struct {
	mu   sync.Mutex
	data map[string]progress.Snapshot // learnerID|sessionID
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{data: make(map[string]progress.Snapshot)}
}

func snapKey(learnerID, sessionID string) string { return learnerID + "|" + sessionID }

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
	f.data[snapKey(s.LearnerID, s.SessionID)] = s
	return nil
}

type fakeClaims struct {
	claims []reward.Claim
}

func (f *fakeClaims) InsertIfAbsent(_ context.Context, c reward.Claim) (reward.InsertOutcome, error) {
	f.claims = append(f.claims, c)
	return reward.InsertCreated, nil
}

func (f *fakeClaims) Get(_ context.Context, learnerID, sessionID string) (*reward.Claim, error) {
	for i := range f.claims {
		if f.claims[i].LearnerID == learnerID && f.claims[i].SessionID == sessionID {
			return &f.claims[i], nil
		}
	}
	return nil, nil
}

func (f *fakeClaims) ListByLearner(_ context.Context, learnerID string) ([]reward.Claim, error) {
	var out []reward.Claim
	for _, c := range f.claims {
		if c.LearnerID == learnerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeClaims) MarkCredited(_ context.Context, learnerID, sessionID string, at time.Time) error {
	for i := range f.claims {
		if f.claims[i].LearnerID == learnerID && f.claims[i].SessionID == sessionID {
			f.claims[i].CreditedAt = &at
		}
	}
	return nil
}

func (f *fakeClaims) ListUncredited(_ context.Context, olderThan time.Time) ([]reward.Claim, error) {
	var out []reward.Claim
	for _, c := range f.claims {
		if c.CreditedAt == nil && c.ClaimedAt.Before(olderThan) {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeLessons struct {
	infos   map[string]lesson.Info
	records map[string][]lesson.Record
}

func newFakeLessons() *fakeLessons {
	return &fakeLessons{
		infos:   make(map[string]lesson.Info),
		records: make(map[string][]lesson.Record),
	}
}

func (f *fakeLessons) CreateInfo(_ context.Context, info lesson.Info) error {
	f.infos[info.ID] = info
	return nil
}

func (f *fakeLessons) GetInfo(_ context.Context, id string) (*lesson.Info, error) {
	if info, ok := f.infos[id]; ok {
		return &info, nil
	}
	return nil, nil
}

func (f *fakeLessons) ListInfosByCourse(_ context.Context, courseID string, from, to time.Time) ([]lesson.Info, error) {
	var out []lesson.Info
	for _, info := range f.infos {
		if info.CourseID == courseID && !info.SessionDate.Before(from) && !info.SessionDate.After(to) {
			out = append(out, info)
		}
	}
	return out, nil
}

func (f *fakeLessons) GetRecords(_ context.Context, id string) ([]lesson.Record, error) {
	return f.records[id], nil
}

func (f *fakeLessons) ListRecordsByCourse(_ context.Context, courseID string, from, to time.Time) ([]lesson.Record, error) {
	var out []lesson.Record
	for id, recs := range f.records {
		info, ok := f.infos[id]
		if !ok || info.CourseID != courseID {
			continue
		}
		if info.SessionDate.Before(from) || info.SessionDate.After(to) {
			continue
		}
		out = append(out, recs...)
	}
	return out, nil
}

func (f *fakeLessons) UpsertRecords(_ context.Context, id string, records []lesson.Record) error {
	f.records[id] = append([]lesson.Record(nil), records...)
	return nil
}

// fakeCache - кеш, который всегда попадает после первого Set.
type fakeCache struct {
	mu   sync.Mutex
	data map[string]*SessionProgressDTO
	gets int
	sets int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]*SessionProgressDTO)}
}

func (f *fakeCache) GetSessionProgress(_ context.Context, learnerID, sessionID string) (*SessionProgressDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	return f.data[learnerID+"|"+sessionID], nil
}

func (f *fakeCache) SetSessionProgress(_ context.Context, learnerID string, dto *SessionProgressDTO) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.data[learnerID+"|"+dto.SessionID] = dto
	return nil
}

func (f *fakeCache) InvalidateLearner(_ context.Context, learnerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.data {
		if len(key) > len(learnerID) && key[:len(learnerID)+1] == learnerID+"|" {
			delete(f.data, key)
		}
	}
	return nil
}

// Package progress содержит чистую логику агрегации прогресса по иерархии
// курс → юнит → сессия → упражнение. Здесь нет внешних зависимостей и нет
// состояния: все функции детерминированы и безопасны для повторного вызова.
package progress

import (
	"math"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// CompletionStatus определяет статус прохождения упражнения учеником.
type CompletionStatus string

const (
	// CompletionNotStarted - упражнение не начато.
	CompletionNotStarted CompletionStatus = "not_started"
	// CompletionInProgress - упражнение в процессе.
	CompletionInProgress CompletionStatus = "in_progress"
	// CompletionCompleted - упражнение завершено.
	CompletionCompleted CompletionStatus = "completed"
	// CompletionAttempted - была попытка, но без завершения.
	CompletionAttempted CompletionStatus = "attempted"
)

// IsValid проверяет, что статус корректен.
func (s CompletionStatus) IsValid() bool {
	switch s {
	case CompletionNotStarted, CompletionInProgress, CompletionCompleted, CompletionAttempted:
		return true
	default:
		return false
	}
}

// SessionStatus определяет агрегированный статус сессии для ученика.
type SessionStatus string

const (
	// SessionNotStarted - ни одно упражнение не завершено.
	SessionNotStarted SessionStatus = "not_started"
	// SessionInProgress - завершена часть упражнений.
	SessionInProgress SessionStatus = "in_progress"
	// SessionCompleted - завершены все упражнения.
	SessionCompleted SessionStatus = "completed"
)

// Rank возвращает порядок статуса для сравнения при слиянии.
// "completed" никогда не понижается до меньшего статуса.
func (s SessionStatus) Rank() int {
	switch s {
	case SessionCompleted:
		return 2
	case SessionInProgress:
		return 1
	default:
		return 0
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// INPUT TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Assignment - связь переиспользуемого упражнения с сессией.
// Одно упражнение может быть назначено в сессию несколько раз:
// дубликаты не схлопываются и увеличивают знаменатель прогресса.
type Assignment struct {
	// ExerciseID - идентификатор упражнения.
	ExerciseID string

	// SessionID - идентификатор сессии.
	SessionID string

	// OrderIndex - позиция упражнения в сессии.
	OrderIndex int

	// XPReward - награда XP за завершение упражнения (>= 0).
	XPReward int
}

// Completion - запись о прохождении упражнения учеником.
// Логически одна строка на пару (ученик, упражнение); побеждает последняя запись.
type Completion struct {
	// ExerciseID - идентификатор упражнения.
	ExerciseID string

	// Status - статус прохождения.
	Status CompletionStatus

	// Score - оценка 0-100. nil, если оценки нет.
	Score *int

	// Attempts - количество попыток.
	Attempts int

	// TimeSpentSec - затраченное время в секундах.
	TimeSpentSec int
}

// HasScoreAtLeast проверяет, что оценка выставлена и не ниже порога.
func (c Completion) HasScoreAtLeast(threshold int) bool {
	return c.Score != nil && *c.Score >= threshold
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot - сохранённый срез прогресса ученика по сессии.
// Создаётся лениво при первой записи; изменяется только вверх (merge-by-max),
// поэтому с точки зрения ученика прогресс никогда не откатывается.
type Snapshot struct {
	// LearnerID - идентификатор ученика.
	LearnerID string

	// SessionID - идентификатор сессии.
	SessionID string

	// Status - агрегированный статус сессии.
	Status SessionStatus

	// XPEarned - заработано XP в сессии.
	XPEarned int

	// Percentage - процент завершения, 0-100.
	Percentage int

	// UpdatedAt - время последнего слияния.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION ROLLUP
// ══════════════════════════════════════════════════════════════════════════════

// Rollup - результат свежего пересчёта прогресса сессии из сырых данных,
// до слияния с сохранённым снапшотом.
type Rollup struct {
	// Total - количество назначений в сессии (с дубликатами).
	Total int

	// CompletedCount - количество назначений с завершённым упражнением.
	CompletedCount int

	// XPEarned - сумма XP за завершённые назначения.
	XPEarned int

	// Percentage - округлённый процент завершения, 0-100.
	Percentage int

	// Status - агрегированный статус.
	Status SessionStatus
}

// ComputeSessionRollup пересчитывает прогресс сессии из назначений и записей
// о прохождении. Завершённой считается запись со статусом "completed";
// оценка здесь не учитывается (порог качества важен только для награды).
//
// Известные краевые случаи (сознательно не "исправляются"):
//   - упражнение, удалённое из сессии после завершения, остаётся в записях
//     о прохождении, но перестаёт входить в Total;
//   - дубликат назначения одного упражнения увеличивает Total, и каждая
//     копия считается завершённой по одной и той же записи.
func ComputeSessionRollup(assignments []Assignment, completions []Completion) Rollup {
	completed := make(map[string]Completion, len(completions))
	for _, c := range completions {
		if c.Status == CompletionCompleted {
			completed[c.ExerciseID] = c
		}
	}

	r := Rollup{Total: len(assignments)}

	for _, a := range assignments {
		if _, ok := completed[a.ExerciseID]; ok {
			r.CompletedCount++
			r.XPEarned += a.XPReward
		}
	}

	if r.Total > 0 {
		r.Percentage = int(math.Round(float64(r.CompletedCount) / float64(r.Total) * 100))
	}

	switch {
	case r.Total > 0 && r.CompletedCount == r.Total:
		r.Status = SessionCompleted
	case r.CompletedCount > 0:
		r.Status = SessionInProgress
	default:
		r.Status = SessionNotStarted
	}

	return r
}

// MergeSnapshot сливает свежий пересчёт с сохранённым снапшотом (если он есть).
// Слияние монотонно: XP и процент берутся по максимуму, статус не понижается.
// Это защищает ученика от видимых откатов прогресса при устаревших чтениях,
// деактивации упражнений или перестановке назначений.
//
// prior == nil означает, что снапшота ещё не было (ленивое создание).
func MergeSnapshot(learnerID, sessionID string, prior *Snapshot, r Rollup, now time.Time) Snapshot {
	merged := Snapshot{
		LearnerID:  learnerID,
		SessionID:  sessionID,
		Status:     r.Status,
		XPEarned:   r.XPEarned,
		Percentage: r.Percentage,
		UpdatedAt:  now,
	}

	if prior == nil {
		return merged
	}

	if prior.XPEarned > merged.XPEarned {
		merged.XPEarned = prior.XPEarned
	}
	if prior.Percentage > merged.Percentage {
		merged.Percentage = prior.Percentage
	}
	if prior.Status.Rank() > merged.Status.Rank() {
		merged.Status = prior.Status
	}

	return merged
}

// ComputeSessionProgress - удобная композиция пересчёта и слияния:
// из назначений, записей о прохождении и прежнего снапшота получается
// новый снапшот, готовый к сохранению.
func ComputeSessionProgress(
	learnerID, sessionID string,
	assignments []Assignment,
	completions []Completion,
	prior *Snapshot,
	now time.Time,
) (Rollup, Snapshot) {
	r := ComputeSessionRollup(assignments, completions)
	return r, MergeSnapshot(learnerID, sessionID, prior, r, now)
}

// ══════════════════════════════════════════════════════════════════════════════
// UNIT / COURSE ROLLUP
// ══════════════════════════════════════════════════════════════════════════════

// AggregateProgress - агрегированный прогресс уровня иерархии (юнит или курс).
type AggregateProgress struct {
	// Percentage - среднее арифметическое процентов детей, 0-100.
	Percentage int

	// XPEarned - сумма XP детей.
	XPEarned int

	// Status - производный статус: completed, если все дети завершены,
	// in_progress, если есть хоть какой-то прогресс, иначе not_started.
	Status SessionStatus

	// Children - количество детей, вошедших в агрегат.
	Children int
}

// ComputeUnitProgress агрегирует снапшоты сессий юнита.
// Среднее считается по сессиям, а не по упражнениям: короткая сессия
// весит столько же, сколько длинная. Ноль детей даёт 0%.
func ComputeUnitProgress(children []Snapshot) AggregateProgress {
	agg := AggregateProgress{Children: len(children), Status: SessionNotStarted}
	if len(children) == 0 {
		return agg
	}

	sum := 0
	allCompleted := true
	anyProgress := false

	for _, c := range children {
		sum += c.Percentage
		agg.XPEarned += c.XPEarned
		if c.Status != SessionCompleted {
			allCompleted = false
		}
		if c.Status != SessionNotStarted || c.Percentage > 0 {
			anyProgress = true
		}
	}

	agg.Percentage = int(math.Round(float64(sum) / float64(len(children))))

	switch {
	case allCompleted:
		agg.Status = SessionCompleted
	case anyProgress:
		agg.Status = SessionInProgress
	}

	return agg
}

// ComputeCourseProgress агрегирует юниты курса тем же способом:
// среднее процентов юнитов, сумма их XP.
func ComputeCourseProgress(units []AggregateProgress) AggregateProgress {
	agg := AggregateProgress{Children: len(units), Status: SessionNotStarted}
	if len(units) == 0 {
		return agg
	}

	sum := 0
	allCompleted := true
	anyProgress := false

	for _, u := range units {
		sum += u.Percentage
		agg.XPEarned += u.XPEarned
		if u.Status != SessionCompleted {
			allCompleted = false
		}
		if u.Status != SessionNotStarted || u.Percentage > 0 {
			anyProgress = true
		}
	}

	agg.Percentage = int(math.Round(float64(sum) / float64(len(units))))

	switch {
	case allCompleted:
		agg.Status = SessionCompleted
	case anyProgress:
		agg.Status = SessionInProgress
	}

	return agg
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION PREDICATE (для награды)
// ══════════════════════════════════════════════════════════════════════════════

// QualityThreshold - минимальная оценка упражнения, при которой сессия
// считается завершённой для выдачи награды. Привязывает награду к качеству,
// а не к факту прохождения.
const QualityThreshold = 90

// IsSessionComplete проверяет, завершена ли сессия с требуемым качеством:
// каждое назначенное упражнение имеет запись со статусом "completed"
// и оценкой не ниже порога. Сессия без назначений не считается завершённой.
func IsSessionComplete(assignments []Assignment, completions []Completion) bool {
	return IsSessionCompleteWithThreshold(assignments, completions, QualityThreshold)
}

// IsSessionCompleteWithThreshold - та же проверка с настраиваемым порогом.
func IsSessionCompleteWithThreshold(assignments []Assignment, completions []Completion, threshold int) bool {
	if len(assignments) == 0 {
		return false
	}

	byExercise := make(map[string]Completion, len(completions))
	for _, c := range completions {
		byExercise[c.ExerciseID] = c
	}

	for _, a := range assignments {
		c, ok := byExercise[a.ExerciseID]
		if !ok || c.Status != CompletionCompleted || !c.HasScoreAtLeast(threshold) {
			return false
		}
	}

	return true
}

package lesson

import (
	"math"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP FORMULA
// Детерминированная конвертация оценок преподавателя в XP.
// ══════════════════════════════════════════════════════════════════════════════

// Веса оценок. Работа на уроке весит вдвое больше домашнего задания.
const (
	PerformanceOK   = 30
	PerformanceGood = 60
	PerformanceWow  = 90

	HomeworkOK   = 15
	HomeworkGood = 30
	HomeworkWow  = 45

	// LatePenalty вычитается за опоздание.
	LatePenalty = 15

	// MaxLessonXP - максимум за урок без множителя: wow + wow без опоздания.
	MaxLessonXP = PerformanceWow + HomeworkWow
)

// performancePoints возвращает вес оценки за работу на уроке.
func performancePoints(r Rating) int {
	switch r {
	case RatingOK:
		return PerformanceOK
	case RatingGood:
		return PerformanceGood
	case RatingWow:
		return PerformanceWow
	default:
		return 0
	}
}

// homeworkPoints возвращает вес оценки за домашнее задание.
func homeworkPoints(r Rating) int {
	switch r {
	case RatingOK:
		return HomeworkOK
	case RatingGood:
		return HomeworkGood
	case RatingWow:
		return HomeworkWow
	default:
		return 0
	}
}

// CalcXP конвертирует запись об уроке в XP.
//
// Правила:
//   - отсутствие (absent/excused) даёт твёрдый ноль независимо от оценок;
//   - если ученик был, но ни одна оценка не выставлена, урок считается
//     НЕоценённым: graded == false, и такой урок не входит в знаменатель
//     среднего по классу (это не то же самое, что ноль);
//   - иначе xp = max(perf + hw - штраф за опоздание, 0).
//
// Результат всегда в диапазоне [0, MaxLessonXP].
func CalcXP(r Record) (xp int, graded bool) {
	if !r.Attendance.Attended() {
		return 0, true
	}

	perf := performancePoints(r.Performance)
	hw := homeworkPoints(r.Homework)

	if perf == 0 && hw == 0 {
		return 0, false
	}

	xp = perf + hw
	if r.Attendance == AttendanceLate {
		xp -= LatePenalty
	}
	if xp < 0 {
		xp = 0
	}

	return xp, true
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASS RATE
// ══════════════════════════════════════════════════════════════════════════════

// CalcClassXPRate сворачивает записи нескольких уроков в одну сравнимую
// оценку класса по шкале 0-10 с одним знаком после запятой.
//
// Для каждого ученика берётся среднее CalcXP по его оценённым урокам
// как процент от MaxLessonXP; неоценённые уроки не попадают в знаменатель.
// Затем проценты усредняются по ученикам, у которых есть хотя бы один
// оценённый урок, и шкалируются в 0-10.
//
// Пустой вход или полное отсутствие оценённых уроков дают 0.
func CalcClassXPRate(records []Record) float64 {
	type acc struct {
		sum    int
		graded int
	}
	byLearner := make(map[string]*acc)

	for _, r := range records {
		xp, graded := CalcXP(r)
		if !graded {
			continue
		}
		a, ok := byLearner[r.LearnerID]
		if !ok {
			a = &acc{}
			byLearner[r.LearnerID] = a
		}
		a.sum += xp
		a.graded++
	}

	if len(byLearner) == 0 {
		return 0
	}

	totalPct := 0.0
	for _, a := range byLearner {
		avg := float64(a.sum) / float64(a.graded)
		totalPct += avg / float64(MaxLessonXP) * 100
	}

	rate := totalPct / float64(len(byLearner)) / 10
	return math.Round(rate*10) / 10
}

// ══════════════════════════════════════════════════════════════════════════════
// BATCH CREDIT
// ══════════════════════════════════════════════════════════════════════════════

// CreditEntry - одно начисление XP за урок.
type CreditEntry struct {
	// LearnerID - идентификатор ученика.
	LearnerID string

	// Delta - величина начисления (строго положительная).
	Delta int
}

// ComputeCredits превращает записи урока в список начислений:
// delta = множитель урока * CalcXP. Неоценённые записи и нулевые дельты
// отбрасываются. Каждое начисление независимо: применяются атомарными
// инкрементами по одному, без общей транзакции на весь класс.
//
// Повторное сохранение урока применит дельты заново - начисление
// сознательно НЕ идемпотентно между сохранениями.
func ComputeCredits(info Info, records []Record) []CreditEntry {
	credits := make([]CreditEntry, 0, len(records))

	for _, r := range records {
		xp, graded := CalcXP(r)
		if !graded {
			continue
		}

		delta := int(math.Round(info.XPBonusMultiplier * float64(xp)))
		if delta <= 0 {
			continue
		}

		credits = append(credits, CreditEntry{LearnerID: r.LearnerID, Delta: delta})
	}

	return credits
}

package progression

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// STREAK (Серия активных дней)
//
// Машина состояний над (LastActivityAt, CurrentStreak, LongestStreak).
// Два правила работают вместе и не эквивалентны друг другу:
//   - льготное окно 36 часов от момента последней активности;
//   - сравнение календарных дней для продолжения серии.
// Повторная активность в тот же день только обновляет отметку времени,
// а активность на следующий календарный день внутри окна наращивает серию.
// ══════════════════════════════════════════════════════════════════════════════

// StreakGraceHours - размер льготного окна в часах.
// Активность через 35 часов продолжает серию, через 37 - ломает.
const StreakGraceHours = 36

// StreakTransition описывает, что произошло с серией при записи активности.
type StreakTransition string

const (
	// StreakStarted - первая активность, серия началась с 1.
	StreakStarted StreakTransition = "started"
	// StreakRefreshed - повторная активность в тот же день, счётчики не изменились.
	StreakRefreshed StreakTransition = "refreshed"
	// StreakContinued - активность на новый календарный день внутри окна, серия выросла.
	StreakContinued StreakTransition = "continued"
	// StreakBroken - окно пропущено, серия сброшена до 1.
	StreakBroken StreakTransition = "broken"
)

// RecordActivity применяет переход серии к прогрессу на момент now.
// Возвращает тип перехода. LastActivityAt обновляется всегда.
func RecordActivity(p *UserProgress, now time.Time) StreakTransition {
	last := p.LastActivityAt

	if last.IsZero() {
		p.CurrentStreak = 1
		if p.LongestStreak < 1 {
			p.LongestStreak = 1
		}
		p.LastActivityAt = now
		return StreakStarted
	}

	elapsed := now.Sub(last)

	switch {
	case elapsed > StreakGraceHours*time.Hour:
		// Окно пропущено: новая активность начинает свежую серию.
		p.CurrentStreak = 1
		p.LastActivityAt = now
		return StreakBroken

	case !sameCalendarDay(last, now):
		p.CurrentStreak++
		if p.CurrentStreak > p.LongestStreak {
			p.LongestStreak = p.CurrentStreak
		}
		p.LastActivityAt = now
		return StreakContinued

	default:
		// Тот же день - только обновляем отметку времени.
		p.LastActivityAt = now
		return StreakRefreshed
	}
}

// HoursUntilStreakLost возвращает, сколько часов осталось до сброса серии.
// Производное значение для обратного отсчёта в UI, не хранится.
func HoursUntilStreakLost(p *UserProgress, now time.Time) float64 {
	if p.LastActivityAt.IsZero() || p.CurrentStreak == 0 {
		return 0
	}

	elapsed := now.Sub(p.LastActivityAt).Hours()
	remaining := StreakGraceHours - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsStreakBroken проверяет, истекло ли льготное окно на момент now.
func IsStreakBroken(p *UserProgress, now time.Time) bool {
	if p.LastActivityAt.IsZero() {
		return false
	}
	return now.Sub(p.LastActivityAt) > StreakGraceHours*time.Hour
}

// sameCalendarDay сравнивает календарные дни двух моментов.
// Граница дня определяется зоной now (зоной приложения): записи,
// прочитанные из хранилища, могут нести UTC или зону сессии.
func sameCalendarDay(last, now time.Time) bool {
	last = last.In(now.Location())
	return last.Year() == now.Year() && last.YearDay() == now.YearDay()
}

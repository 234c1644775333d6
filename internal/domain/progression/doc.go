// Package progression содержит доменную модель прогрессии QuizOwl.
//
// Это ядро бизнес-логики движка геймификации. Пакет определяет:
//
//   - Сущности (Entities): UserProgress, DailyChallenge
//   - Value Objects: XP, Level, Subject, QuizResult
//   - Чистые компоненты: LevelCurve, QuizScorer, StreakTracker,
//     BadgeCatalog, BadgeEvaluator, ChallengeGenerator
//   - Интерфейсы репозиториев: ProgressRepository, ChallengeRepository,
//     XPEventRepository
//
// # Архитектурные принципы
//
// Пакет следует принципам Clean Architecture и DDD:
//
//  1. Нулевые внешние зависимости - только стандартная библиотека Go
//  2. Dependency Inversion - определяет интерфейсы, которые реализуются в infrastructure
//  3. Rich Domain Model - бизнес-логика инкапсулирована в сущностях
//
// # Основные сущности
//
// UserProgress - центральная сущность, одна запись на пользователя:
//
//	progress := NewUserProgress("user-1", clock.Now())
//	applied := progress.AddXP(XP(45))
//	if applied.LeveledUp {
//	    // пользователь перешёл на новый уровень
//	}
//
// Streak - серия активных дней с 36-часовым льготным окном:
//
//	transition := RecordActivity(progress, clock.Now())
//	switch transition {
//	case StreakContinued, StreakStarted:
//	    // серия растёт
//	case StreakBroken:
//	    // серия сброшена до 1
//	}
//
// Badges - каталог наград с чистыми предикатами:
//
//	evaluator := NewBadgeEvaluator(DefaultBadgeCatalog())
//	unlocked := evaluator.Evaluate(progress, clock.Now())
//
// # Репозитории
//
// Пакет определяет интерфейсы репозиториев (реализации в infrastructure):
//
//   - ProgressRepository: загрузка и атомарное сохранение UserProgress
//   - ChallengeRepository: ежедневные задания
//   - XPEventRepository: журнал XP-событий (outbox для удалённой синхронизации)
package progression

package scheduler

import "errors"

// Ошибки планировщика.
var (
	// ErrInvalidSchedule — расписание не удалось разобрать.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrInvalidTimezone — неизвестная timezone.
	ErrInvalidTimezone = errors.New("invalid timezone")

	// ErrNoRunner — планировщик создан без Runner или спецификации.
	ErrNoRunner = errors.New("scheduler requires a runner and an orchestration spec")
)

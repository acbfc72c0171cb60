package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrInvalidSpec — спецификация не прошла валидацию.
	ErrInvalidSpec = errors.New("invalid orchestration spec")

	// ErrCyclicDependency — обнаружена циклическая зависимость между шагами.
	ErrCyclicDependency = errors.New("cyclic dependency in orchestration")

	// ErrNoExecutor — Runner создан без исполнителя шагов.
	ErrNoExecutor = errors.New("runner has no step executor")
)

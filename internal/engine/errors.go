package engine

import (
	"errors"
	"strings"
)

// Ошибки валидации OrchestrationSpec.
var (
	// ErrEmptySteps — оркестрация не содержит шагов.
	ErrEmptySteps = errors.New("orchestration spec has no steps")

	// ErrEmptyStepName — шаг не имеет имени.
	ErrEmptyStepName = errors.New("step has empty name")

	// ErrDuplicateStep — несколько шагов с одинаковым именем.
	ErrDuplicateStep = errors.New("duplicate step name")

	// ErrMissingField — не заполнено обязательное поле (owner, repo, workflow_id).
	ErrMissingField = errors.New("required field is empty")

	// ErrInvalidArg — аргумент workflow не в формате KEY=VALUE.
	ErrInvalidArg = errors.New("invalid workflow argument")

	// ErrUnknownDependency — шаг зависит от несуществующего шага.
	ErrUnknownDependency = errors.New("step depends on unknown step")

	// ErrSelfDependency — шаг зависит от самого себя.
	ErrSelfDependency = errors.New("step depends on itself")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")
)

// ValidationError — ошибка конфигурации с контекстом.
type ValidationError struct {
	Step    string // имя шага, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Step != "" {
		return "step " + e.Step + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(step, field, message string, err error) *ValidationError {
	return &ValidationError{
		Step:    step,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// CycleError — цикл в графе зависимостей.
//
// Step — шаг, участвующий в цикле; Path — сам цикл,
// первый и последний элементы совпадают: [a b a].
type CycleError struct {
	Step string
	Path []string
}

// Error реализует интерфейс error.
func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return ErrCyclicDependency.Error() + " at step " + e.Step
	}
	return ErrCyclicDependency.Error() + " at step " + e.Step + ": " + strings.Join(e.Path, " -> ")
}

// Unwrap возвращает ErrCyclicDependency.
func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}

package engine

import (
	"fmt"
	"strings"

	"github.com/shaiso/mrot/internal/domain"
)

// Validate выполняет полную валидацию OrchestrationSpec.
//
// Проверяет:
// - Наличие шагов
// - Уникальность имён шагов
// - Обязательные поля (owner, repo, workflow_id)
// - Формат аргументов (KEY=VALUE)
// - Валидность зависимостей (depends_on)
//
// Отсутствие циклов проверяет Graph.Sort.
func Validate(spec *domain.OrchestrationSpec) error {
	if spec == nil || len(spec.Steps) == 0 {
		return NewValidationError("", "steps", "orchestration spec has no steps", ErrEmptySteps)
	}

	names := make(map[string]bool, len(spec.Steps))

	for i := range spec.Steps {
		if err := ValidateStep(&spec.Steps[i], names); err != nil {
			return err
		}
	}

	return validateDependencies(spec.Steps, names)
}

// ValidateStep валидирует один шаг.
// names — уже встреченные имена шагов (для проверки уникальности).
func ValidateStep(step *domain.Step, names map[string]bool) error {
	if strings.TrimSpace(step.Name) == "" {
		return NewValidationError("", "name", "step has empty name", ErrEmptyStepName)
	}

	if names[step.Name] {
		return NewValidationError(step.Name, "name",
			fmt.Sprintf("duplicate step name: %s", step.Name), ErrDuplicateStep)
	}
	names[step.Name] = true

	required := []struct {
		field string
		value string
	}{
		{"owner", step.Owner},
		{"repo", step.Repo},
		{"workflow_id", step.WorkflowID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return NewValidationError(step.Name, r.field,
				fmt.Sprintf("%s is required", r.field), ErrMissingField)
		}
	}

	for _, arg := range step.Args {
		key, _, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return NewValidationError(step.Name, "args",
				fmt.Sprintf("argument %q must be KEY=VALUE", arg), ErrInvalidArg)
		}
	}

	for _, dep := range step.DependsOn {
		if dep == step.Name {
			return NewValidationError(step.Name, "depends_on",
				"step depends on itself", ErrSelfDependency)
		}
	}

	return nil
}

// validateDependencies проверяет, что все depends_on ссылаются на существующие шаги.
func validateDependencies(steps []domain.Step, names map[string]bool) error {
	for i := range steps {
		step := &steps[i]

		for _, dep := range step.DependsOn {
			if !names[dep] {
				return NewValidationError(step.Name, "depends_on",
					fmt.Sprintf("depends on unknown step: %s", dep), ErrUnknownDependency)
			}
		}
	}

	return nil
}

package domain

import "strings"

// OrchestrationSpec — описание оркестрации: набор шагов в разных репозиториях
// и зависимости между ними.
//
// Спецификация строится один раз на запуск (из orchestration.yml) и после
// этого только читается ядром: граф перестраивается из Steps при каждом run.
type OrchestrationSpec struct {
	// Name — имя оркестрации (например, "release-2024-10").
	Name string `json:"name" yaml:"name"`

	// Description — описание назначения оркестрации.
	Description string `json:"description,omitempty" yaml:"description"`

	// Steps — шаги в порядке объявления.
	// Порядок объявления используется как tie-break при сортировке.
	Steps []Step `json:"steps" yaml:"steps"`
}

// Step — один workflow одного репозитория.
type Step struct {
	// Name — уникальное имя шага в рамках оркестрации.
	// Используется в depends_on и в отчёте.
	Name string `json:"name" yaml:"name"`

	// Description — человекочитаемое описание шага.
	Description string `json:"description,omitempty" yaml:"description"`

	// Owner — владелец репозитория (user или organization).
	Owner string `json:"owner" yaml:"owner"`

	// Repo — имя репозитория.
	Repo string `json:"repo" yaml:"repo"`

	// WorkflowID — идентификатор workflow: числовой ID или имя файла
	// (например, "release.yml"). Не путать с Name шага.
	WorkflowID string `json:"workflow_id" yaml:"workflow_id"`

	// Ref — git ref, на котором запускается workflow.
	// Пустой — используется ref по умолчанию из конфигурации.
	Ref string `json:"ref,omitempty" yaml:"ref"`

	// Args — аргументы workflow в формате KEY=VALUE.
	// Передаются как inputs workflow_dispatch без изменений.
	Args []string `json:"args,omitempty" yaml:"args"`

	// DependsOn — имена шагов, которые должны успешно завершиться раньше.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on"`
}

// Target возвращает "owner/repo" для логов и отчёта.
func (s *Step) Target() string {
	return s.Owner + "/" + s.Repo
}

// Inputs возвращает Args в виде map для workflow_dispatch.
// Записи без "=" пропускаются: их отсекает валидация.
func (s *Step) Inputs() map[string]string {
	if len(s.Args) == 0 {
		return nil
	}

	inputs := make(map[string]string, len(s.Args))
	for _, arg := range s.Args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			continue
		}
		inputs[key] = value
	}
	return inputs
}

package orchestrator

import (
	"sync"

	"github.com/shaiso/mrot/internal/domain"
	"github.com/shaiso/mrot/internal/engine"
)

// Причины SKIPPED для шагов, которые не запускались.
const (
	skipStopped    = "not dispatched: orchestration stopped after failure of "
	skipDependency = "not dispatched: dependency did not succeed: "
	skipCancelled  = "not dispatched: orchestration cancelled"
)

// RunState — состояние выполнения одной оркестрации в памяти.
//
// Создаётся в начале Run и живёт до формирования отчёта.
// Все методы потокобезопасны: шаги завершаются в своих горутинах.
type RunState struct {
	// Graph — граф зависимостей шагов.
	Graph *engine.Graph

	// Order — топологический порядок (индексы шагов).
	Order []int

	// started — шаги, которые были запущены (index → true).
	started map[int]bool

	// succeeded — успешно завершённые шаги.
	succeeded map[int]bool

	// failed — упавшие шаги.
	failed map[int]bool

	// results — результаты завершённых шагов.
	results map[int]domain.StepResult

	// inFlight — количество запущенных и не завершённых шагов.
	inFlight int

	// busy — workflow (owner/repo/workflow_id), у которых сейчас выполняется шаг.
	// Запуск находят по времени создания, поэтому два шага одного workflow
	// одновременно не запускаются.
	busy map[string]bool

	// stoppedBy — имя шага, после падения которого запуск новых шагов остановлен.
	stoppedBy string

	mu sync.RWMutex
}

// NewRunState создаёт новый RunState для построенного графа и порядка.
func NewRunState(g *engine.Graph, order []int) *RunState {
	return &RunState{
		Graph:     g,
		Order:     order,
		started:   make(map[int]bool),
		succeeded: make(map[int]bool),
		failed:    make(map[int]bool),
		results:   make(map[int]domain.StepResult),
		busy:      make(map[string]bool),
	}
}

// workflowKey идентифицирует удалённый workflow шага.
func workflowKey(step *domain.Step) string {
	return step.Owner + "/" + step.Repo + "/" + step.WorkflowID
}

// ReadySteps возвращает шаги, которые можно запустить, не больше limit.
// После остановки возвращает пустой список.
//
// Шаг, чей workflow уже выполняется (или выбран раньше в этом же списке),
// откладывается до завершения того шага.
func (s *RunState) ReadySteps(limit int) []*engine.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stoppedBy != "" || limit <= 0 {
		return nil
	}

	var ready []*engine.Node
	taken := make(map[string]bool)
	for _, node := range s.Graph.GetReadyNodes(s.Order, s.succeeded, s.started) {
		key := workflowKey(node.Step)
		if s.busy[key] || taken[key] {
			continue
		}
		taken[key] = true

		ready = append(ready, node)
		if len(ready) == limit {
			break
		}
	}
	return ready
}

// MarkStarted помечает шаг как запущенный.
func (s *RunState) MarkStarted(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.started[idx] = true
	s.busy[workflowKey(s.Graph.Nodes[idx].Step)] = true
	s.inFlight++
}

// MarkFinished сохраняет результат шага.
// При stopOnFailure падение шага останавливает запуск новых шагов.
func (s *RunState) MarkFinished(idx int, result domain.StepResult, stopOnFailure bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight--
	delete(s.busy, workflowKey(s.Graph.Nodes[idx].Step))
	s.results[idx] = result

	if result.Status == domain.StepStatusSucceeded {
		s.succeeded[idx] = true
		return
	}

	s.failed[idx] = true
	if stopOnFailure && s.stoppedBy == "" {
		s.stoppedBy = result.Step
	}
}

// InFlight возвращает количество выполняющихся шагов.
func (s *RunState) InFlight() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.inFlight
}

// Stopped возвращает имя шага, остановившего оркестрацию, или "".
func (s *RunState) Stopped() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.stoppedBy
}

// Stats возвращает статистику выполнения.
func (s *RunState) Stats() RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.Graph.Size()
	return RunStats{
		TotalSteps:     total,
		SucceededSteps: len(s.succeeded),
		RunningSteps:   s.inFlight,
		FailedSteps:    len(s.failed),
		PendingSteps:   total - len(s.started),
	}
}

// RunStats — статистика выполнения оркестрации.
type RunStats struct {
	TotalSteps     int
	SucceededSteps int
	RunningSteps   int
	FailedSteps    int
	PendingSteps   int
}

// Results возвращает результаты всех шагов в топологическом порядке.
//
// Для шагов, которые не запускались, формируется SKIPPED с причиной:
// остановка после падения, неуспешная зависимость или отмена.
func (s *RunState) Results(cancelled bool) []domain.StepResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]domain.StepResult, 0, len(s.Order))
	for _, idx := range s.Order {
		if res, ok := s.results[idx]; ok {
			results = append(results, res)
			continue
		}

		node := s.Graph.Nodes[idx]
		results = append(results, domain.NewSkippedResult(node.Step, s.skipReason(node, cancelled)))
	}
	return results
}

// skipReason — причина, по которой шаг не был запущен. Вызывается под mu.
func (s *RunState) skipReason(node *engine.Node, cancelled bool) string {
	for _, dep := range node.DependsOn {
		if s.failed[dep.Index] {
			return skipDependency + dep.Name()
		}
	}

	switch {
	case s.stoppedBy != "":
		return skipStopped + s.stoppedBy
	case cancelled:
		return skipCancelled
	}

	for _, dep := range node.DependsOn {
		if !s.succeeded[dep.Index] {
			return skipDependency + dep.Name()
		}
	}
	return skipCancelled
}

package engine

import (
	"container/heap"
	"fmt"

	"github.com/shaiso/mrot/internal/domain"
)

// Node — узел графа: один шаг оркестрации.
type Node struct {
	// Index — позиция шага в OrchestrationSpec.Steps (порядок объявления).
	Index int

	// Step — определение шага.
	Step *domain.Step

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	// Упорядочены по Index.
	Dependents []*Node
}

// Name возвращает имя шага.
func (n *Node) Name() string {
	return n.Step.Name
}

// Graph — направленный граф шагов оркестрации.
// Ребро идёт от зависимости к зависимому шагу.
//
// После построения граф только читается.
type Graph struct {
	// Nodes — узлы в порядке объявления шагов (Nodes[i].Index == i).
	Nodes []*Node

	// index — имя шага → индекс узла.
	index map[string]int
}

// BuildGraph строит граф из OrchestrationSpec.
//
// Первый проход создаёт по узлу на шаг и заполняет map имя → индекс,
// второй связывает узлы по depends_on. Неизвестная зависимость — ошибка
// ErrUnknownDependency, граф при этом не возвращается.
func BuildGraph(spec *domain.OrchestrationSpec) (*Graph, error) {
	if spec == nil || len(spec.Steps) == 0 {
		return nil, NewValidationError("", "steps", "orchestration spec has no steps", ErrEmptySteps)
	}

	g := &Graph{
		Nodes: make([]*Node, 0, len(spec.Steps)),
		index: make(map[string]int, len(spec.Steps)),
	}

	// Первый проход: создаём все узлы
	for i := range spec.Steps {
		step := &spec.Steps[i]

		if _, exists := g.index[step.Name]; exists {
			return nil, NewValidationError(step.Name, "name",
				fmt.Sprintf("duplicate step name: %s", step.Name), ErrDuplicateStep)
		}

		g.index[step.Name] = i
		g.Nodes = append(g.Nodes, &Node{
			Index:      i,
			Step:       step,
			DependsOn:  make([]*Node, 0, len(step.DependsOn)),
			Dependents: make([]*Node, 0),
		})
	}

	// Второй проход: связываем узлы по зависимостям
	for _, node := range g.Nodes {
		for _, dep := range node.Step.DependsOn {
			depIdx, exists := g.index[dep]
			if !exists {
				return nil, NewValidationError(node.Name(), "depends_on",
					fmt.Sprintf("depends on unknown step: %s", dep), ErrUnknownDependency)
			}

			g.addEdge(g.Nodes[depIdx], node)
		}
	}

	return g, nil
}

// addEdge добавляет ребро между узлами.
// Дополнительно проверяет на дубликаты, чтобы избежать двойного учета InDegree.
func (g *Graph) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.Index == from.Index {
			return // уже связаны
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// indexHeap — min-heap индексов узлов.
type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Sort выполняет топологическую сортировку (алгоритм Кана).
//
// Очередь готовых узлов — min-heap по индексу объявления: среди узлов без
// взаимных ограничений первым идёт объявленный раньше. Повторная сортировка
// неизменного графа всегда даёт тот же порядок.
//
// Если после обработки всех узлов с нулевым inDegree остались узлы,
// возвращается *CycleError с одним из узлов цикла.
func (g *Graph) Sort() ([]int, error) {
	// Копируем inDegree, чтобы не модифицировать граф
	inDegree := make([]int, len(g.Nodes))
	ready := &indexHeap{}
	for i, node := range g.Nodes {
		inDegree[i] = node.InDegree
		if node.InDegree == 0 {
			*ready = append(*ready, i)
		}
	}
	heap.Init(ready)

	order := make([]int, 0, len(g.Nodes))

	for ready.Len() > 0 {
		idx := heap.Pop(ready).(int)
		order = append(order, idx)

		// Уменьшаем inDegree у зависимых узлов
		for _, dependent := range g.Nodes[idx].Dependents {
			inDegree[dependent.Index]--
			if inDegree[dependent.Index] == 0 {
				heap.Push(ready, dependent.Index)
			}
		}
	}

	// Если не все узлы обработаны — есть цикл
	if len(order) != len(g.Nodes) {
		remaining := make(map[int]bool, len(g.Nodes)-len(order))
		for i := range inDegree {
			if inDegree[i] > 0 {
				remaining[i] = true
			}
		}
		return nil, g.cycleError(remaining)
	}

	return order, nil
}

// cycleError находит один цикл среди неотсортированных узлов.
//
// DFS идёт по узлам в порядке объявления, поэтому для одного и того же
// графа всегда находится один и тот же цикл.
func (g *Graph) cycleError(remaining map[int]bool) *CycleError {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make([]int, len(g.Nodes))
	parent := make([]int, len(g.Nodes))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int

	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, next := range g.Nodes[u].Dependents {
			v := next.Index
			if !remaining[v] {
				continue
			}
			if color[v] == white {
				parent[v] = u
				if dfs(v) {
					return true
				}
				continue
			}
			if color[v] == gray {
				// Обратное ребро u → v: восстанавливаем v → ... → u → v
				cycle = append(cycle, v)
				for cur := u; cur != -1 && cur != v; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := range g.Nodes {
		if remaining[i] && color[i] == white && dfs(i) {
			break
		}
	}

	if len(cycle) == 0 {
		// Недостижимо для графа с циклом, но имя шага нужно всегда
		for i := range g.Nodes {
			if remaining[i] {
				return &CycleError{Step: g.Nodes[i].Name()}
			}
		}
		return &CycleError{}
	}

	// cycle собран по parent в обратном порядке: [v, u, ..., v]
	path := make([]string, 0, len(cycle))
	for i := len(cycle) - 1; i >= 0; i-- {
		path = append(path, g.Nodes[cycle[i]].Name())
	}

	return &CycleError{Step: path[0], Path: path}
}

// Plan валидирует спецификацию, строит граф и сортирует его.
// Это единственный путь к порядку выполнения: без валидации шаги не запускаются.
func Plan(spec *domain.OrchestrationSpec) (*Graph, []int, error) {
	if err := Validate(spec); err != nil {
		return nil, nil, err
	}

	g, err := BuildGraph(spec)
	if err != nil {
		return nil, nil, err
	}

	order, err := g.Sort()
	if err != nil {
		return nil, nil, err
	}

	return g, order, nil
}

// GetReadyNodes возвращает узлы, готовые к запуску, в порядке order.
//
// Узел готов, если:
// - Все его зависимости успешно завершены (в succeeded)
// - Сам узел ещё не запускался (не в started)
func (g *Graph) GetReadyNodes(order []int, succeeded, started map[int]bool) []*Node {
	ready := make([]*Node, 0)

	for _, idx := range order {
		if started[idx] {
			continue
		}

		node := g.Nodes[idx]
		allDepsSucceeded := true
		for _, dep := range node.DependsOn {
			if !succeeded[dep.Index] {
				allDepsSucceeded = false
				break
			}
		}

		if allDepsSucceeded {
			ready = append(ready, node)
		}
	}

	return ready
}

// Size возвращает количество узлов в графе.
func (g *Graph) Size() int {
	return len(g.Nodes)
}

// Names переводит последовательность индексов в имена шагов.
func (g *Graph) Names(order []int) []string {
	names := make([]string, len(order))
	for i, idx := range order {
		names[i] = g.Nodes[idx].Name()
	}
	return names
}

// Package engine отвечает за структуру оркестрации.
//
// Включает:
//   - validate.go — валидация OrchestrationSpec
//   - dag.go      — построение графа зависимостей и топологическая сортировка
//
// Engine определяет порядок запуска шагов на основе depends_on и
// обнаруживает циклы до того, как будет запущен хоть один workflow.
package engine

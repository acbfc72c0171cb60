package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/mrot/internal/domain"
	"github.com/shaiso/mrot/internal/engine"
)

// fakeExecutor завершает шаги со статусом из fail (по умолчанию SUCCEEDED).
type fakeExecutor struct {
	mu       sync.Mutex
	fail     map[string]bool
	delay    time.Duration
	executed []string

	running    int
	maxRunning int
}

func (f *fakeExecutor) Execute(ctx context.Context, step *domain.Step) domain.StepResult {
	f.mu.Lock()
	f.executed = append(f.executed, step.Name)
	f.running++
	if f.running > f.maxRunning {
		f.maxRunning = f.running
	}
	failed := f.fail[step.Name]
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.running--
	f.mu.Unlock()

	now := time.Now()
	res := domain.StepResult{
		Step:       step.Name,
		Target:     step.Target(),
		WorkflowID: step.WorkflowID,
		Status:     domain.StepStatusSucceeded,
		StartedAt:  &now,
		FinishedAt: &now,
	}
	if failed {
		res.Status = domain.StepStatusFailed
		res.Reason = "workflow concluded: failure"
	}
	return res
}

func (f *fakeExecutor) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.executed...)
}

type fakeStore struct {
	saved []*domain.Report
	err   error
}

func (s *fakeStore) Save(_ context.Context, report *domain.Report) error {
	s.saved = append(s.saved, report)
	return s.err
}

type fakeNotifier struct {
	mu       sync.Mutex
	steps    []string
	finished []uuid.UUID
}

func (n *fakeNotifier) StepFinished(_ context.Context, _ uuid.UUID, name string, _ domain.StepResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.steps = append(n.steps, name)
	return errors.New("broker unavailable")
}

func (n *fakeNotifier) OrchestrationFinished(_ context.Context, report *domain.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.finished = append(n.finished, report.ID)
	return nil
}

func step(name string, deps ...string) domain.Step {
	return domain.Step{
		Name:       name,
		Owner:      "acme",
		Repo:       "repo-" + name,
		WorkflowID: "release.yml",
		DependsOn:  deps,
	}
}

func spec(steps ...domain.Step) *domain.OrchestrationSpec {
	return &domain.OrchestrationSpec{Name: "release", Steps: steps}
}

func newRunner(t *testing.T, cfg Config) *Runner {
	t.Helper()
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func statuses(report *domain.Report) map[string]domain.StepStatus {
	out := make(map[string]domain.StepStatus, len(report.Steps))
	for _, res := range report.Steps {
		out[res.Step] = res.Status
	}
	return out
}

func equalNames(a, b []string) bool {
	return strings.Join(a, ",") == strings.Join(b, ",")
}

// --- Runner Tests ---

func TestNew_RequiresExecutor(t *testing.T) {
	_, err := New(Config{})
	if !errors.Is(err, ErrNoExecutor) {
		t.Errorf("expected ErrNoExecutor, got %v", err)
	}
}

func TestNew_DefaultStopsOnFailure(t *testing.T) {
	exec := &fakeExecutor{fail: map[string]bool{"A": true}}
	r := newRunner(t, Config{Executor: exec})

	if !r.stopOnFailure {
		t.Fatal("zero Config should stop on failure")
	}

	report, err := r.Run(context.Background(), spec(step("A"), step("B")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := exec.calls(); !equalNames(got, []string{"A"}) {
		t.Errorf("expected only A dispatched, got %v", got)
	}
	st := statuses(report)
	if st["A"] != domain.StepStatusFailed || st["B"] != domain.StepStatusSkipped {
		t.Errorf("expected A FAILED and B SKIPPED, got %v", st)
	}
}

func TestRun_LogsStoppingStep(t *testing.T) {
	var logs bytes.Buffer
	exec := &fakeExecutor{fail: map[string]bool{"A": true}}
	r := newRunner(t, Config{
		Executor: exec,
		Logger:   slog.New(slog.NewTextHandler(&logs, nil)),
	})

	if _, err := r.Run(context.Background(), spec(step("A"), step("B"))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := logs.String()
	if !strings.Contains(out, "orchestration stopped early") || !strings.Contains(out, "failed_step=A") {
		t.Errorf("expected stop log naming A, got:\n%s", out)
	}
}

func TestRun_Sequential(t *testing.T) {
	exec := &fakeExecutor{}
	r := newRunner(t, Config{Executor: exec})

	report, err := r.Run(context.Background(), spec(step("A"), step("B", "A"), step("C", "A")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := exec.calls(); !equalNames(got, []string{"A", "B", "C"}) {
		t.Errorf("expected execution A,B,C, got %v", got)
	}
	if report.Status != domain.OrchestrationStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", report.Status)
	}
	if len(report.Steps) != 3 {
		t.Fatalf("expected 3 step results, got %d", len(report.Steps))
	}
	if report.Steps[0].Step != "A" {
		t.Errorf("expected report in execution order, got %s first", report.Steps[0].Step)
	}
	if report.FinishedAt == nil {
		t.Error("FinishedAt should be set")
	}
}

func TestRun_CycleDispatchesNothing(t *testing.T) {
	exec := &fakeExecutor{}
	r := newRunner(t, Config{Executor: exec})

	report, err := r.Run(context.Background(), spec(step("A", "B"), step("B", "A")))

	if report != nil {
		t.Error("expected no report for cyclic spec")
	}
	if !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("expected ErrCyclicDependency, got %v", err)
	}
	if !errors.Is(err, engine.ErrCyclicDependency) {
		t.Errorf("expected engine.ErrCyclicDependency in chain, got %v", err)
	}

	var cycleErr *engine.CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *engine.CycleError, got %T", err)
	}
	if cycleErr.Step != "A" && cycleErr.Step != "B" {
		t.Errorf("cycle should name A or B, got %q", cycleErr.Step)
	}
	if len(exec.calls()) != 0 {
		t.Errorf("no step should be dispatched, got %v", exec.calls())
	}
}

func TestRun_UnknownDependencyDispatchesNothing(t *testing.T) {
	exec := &fakeExecutor{}
	r := newRunner(t, Config{Executor: exec})

	_, err := r.Run(context.Background(), spec(step("A"), step("B", "missing")))

	if !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("expected ErrInvalidSpec, got %v", err)
	}
	if !errors.Is(err, engine.ErrUnknownDependency) {
		t.Errorf("expected ErrUnknownDependency in chain, got %v", err)
	}
	if len(exec.calls()) != 0 {
		t.Errorf("no step should be dispatched, got %v", exec.calls())
	}
}

func TestRun_StopOnFailure(t *testing.T) {
	exec := &fakeExecutor{fail: map[string]bool{"B": true}}
	r := newRunner(t, Config{Executor: exec})

	report, err := r.Run(context.Background(), spec(step("A"), step("B"), step("C")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := exec.calls(); !equalNames(got, []string{"A", "B"}) {
		t.Errorf("expected A,B dispatched, got %v", got)
	}
	if report.Status != domain.OrchestrationStatusFailed {
		t.Errorf("expected FAILED, got %s", report.Status)
	}

	c, ok := report.Result("C")
	if !ok {
		t.Fatal("C should be in the report")
	}
	if c.Status != domain.StepStatusSkipped {
		t.Errorf("expected C SKIPPED, got %s", c.Status)
	}
	if !strings.Contains(c.Reason, "B") {
		t.Errorf("skip reason should name B, got %q", c.Reason)
	}
}

func TestRun_ContinueOnFailure(t *testing.T) {
	exec := &fakeExecutor{fail: map[string]bool{"A": true}}
	r := newRunner(t, Config{Executor: exec, ContinueOnFailure: true})

	report, err := r.Run(context.Background(), spec(
		step("A"),
		step("B", "A"),
		step("C"),
		step("D", "B"),
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := exec.calls(); !equalNames(got, []string{"A", "C"}) {
		t.Errorf("expected A,C dispatched, got %v", got)
	}

	st := statuses(report)
	if st["A"] != domain.StepStatusFailed {
		t.Errorf("A: expected FAILED, got %s", st["A"])
	}
	if st["B"] != domain.StepStatusSkipped || st["D"] != domain.StepStatusSkipped {
		t.Errorf("B and D should be SKIPPED, got %s and %s", st["B"], st["D"])
	}
	if st["C"] != domain.StepStatusSucceeded {
		t.Errorf("C: expected SUCCEEDED, got %s", st["C"])
	}

	b, _ := report.Result("B")
	if !strings.HasSuffix(b.Reason, "A") {
		t.Errorf("B skip reason should name A, got %q", b.Reason)
	}
	d, _ := report.Result("D")
	if !strings.HasSuffix(d.Reason, "B") {
		t.Errorf("D skip reason should name B, got %q", d.Reason)
	}
	if report.Status != domain.OrchestrationStatusFailed {
		t.Errorf("expected FAILED, got %s", report.Status)
	}
}

func TestRun_Parallel(t *testing.T) {
	exec := &fakeExecutor{delay: 50 * time.Millisecond}
	r := newRunner(t, Config{Executor: exec, MaxParallel: 2})

	report, err := r.Run(context.Background(), spec(step("A"), step("B"), step("C"), step("D")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Status != domain.OrchestrationStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", report.Status)
	}
	if exec.maxRunning > 2 {
		t.Errorf("expected at most 2 concurrent steps, got %d", exec.maxRunning)
	}
	if exec.maxRunning < 2 {
		t.Errorf("expected independent steps to overlap, got %d", exec.maxRunning)
	}
}

func TestRun_ParallelRespectsDependencies(t *testing.T) {
	exec := &fakeExecutor{delay: 10 * time.Millisecond}
	r := newRunner(t, Config{Executor: exec, MaxParallel: 4})

	_, err := r.Run(context.Background(), spec(step("A"), step("B"), step("C", "A", "B")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := exec.calls()
	if len(calls) != 3 || calls[2] != "C" {
		t.Errorf("C must start after A and B, got %v", calls)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	exec := &fakeExecutor{}
	r := newRunner(t, Config{Executor: exec})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := r.Run(ctx, spec(step("A"), step("B", "A")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(exec.calls()) != 0 {
		t.Errorf("no step should be dispatched, got %v", exec.calls())
	}
	if report.Status != domain.OrchestrationStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", report.Status)
	}
	a, _ := report.Result("A")
	if a.Reason != skipCancelled {
		t.Errorf("unexpected skip reason %q", a.Reason)
	}
}

func TestRun_StoreAndNotifier(t *testing.T) {
	exec := &fakeExecutor{}
	store := &fakeStore{err: errors.New("db down")}
	notifier := &fakeNotifier{}
	r := newRunner(t, Config{Executor: exec, Store: store, Notifier: notifier})

	report, err := r.Run(context.Background(), spec(step("A"), step("B", "A")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Ошибки хранилища и брокера не меняют итог.
	if report.Status != domain.OrchestrationStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", report.Status)
	}
	if len(store.saved) != 1 || store.saved[0] != report {
		t.Error("report should be saved once")
	}
	if !equalNames(notifier.steps, []string{"A", "B"}) {
		t.Errorf("expected step events A,B, got %v", notifier.steps)
	}
	if len(notifier.finished) != 1 || notifier.finished[0] != report.ID {
		t.Error("orchestration.finished should be published with report ID")
	}
}

// --- RunState Tests ---

func TestRun_ParallelSerializesSharedWorkflow(t *testing.T) {
	exec := &fakeExecutor{delay: 30 * time.Millisecond}
	r := newRunner(t, Config{Executor: exec, MaxParallel: 3})

	// A и B запускают один и тот же workflow acme/shared/release.yml.
	a, b, c := step("A"), step("B"), step("C")
	a.Repo, b.Repo = "shared", "shared"

	report, err := r.Run(context.Background(), spec(a, b, c))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Status != domain.OrchestrationStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", report.Status)
	}
	if exec.maxRunning != 2 {
		t.Errorf("expected A and B serialized (max 2 running), got %d", exec.maxRunning)
	}
	if got := exec.calls(); len(got) != 3 || got[2] != "B" {
		t.Errorf("B should start only after A finished, got %v", got)
	}
}

func TestRunState_ReadyStepsSkipsBusyWorkflow(t *testing.T) {
	a, b := step("A"), step("B")
	b.Repo = a.Repo

	g, order, err := engine.Plan(spec(a, b, step("C")))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	state := NewRunState(g, order)

	ready := state.ReadySteps(10)
	if names := nodeNames(ready); !equalNames(names, []string{"A", "C"}) {
		t.Fatalf("expected A,C ready, got %v", names)
	}

	state.MarkStarted(0)
	if names := nodeNames(state.ReadySteps(10)); !equalNames(names, []string{"C"}) {
		t.Errorf("B must wait while A runs, got %v", names)
	}

	state.MarkFinished(0, domain.StepResult{Step: "A", Status: domain.StepStatusSucceeded}, true)
	if names := nodeNames(state.ReadySteps(10)); !equalNames(names, []string{"B", "C"}) {
		t.Errorf("expected B,C ready after A, got %v", names)
	}
}

func nodeNames(nodes []*engine.Node) []string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name()
	}
	return names
}

func TestRunState_ReadySteps(t *testing.T) {
	g, order, err := engine.Plan(spec(step("A"), step("B", "A"), step("C")))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	state := NewRunState(g, order)

	ready := state.ReadySteps(10)
	if len(ready) != 2 || ready[0].Name() != "A" || ready[1].Name() != "C" {
		t.Fatalf("expected A and C ready, got %d nodes", len(ready))
	}

	if got := state.ReadySteps(1); len(got) != 1 || got[0].Name() != "A" {
		t.Error("limit should keep the first ready step in order")
	}

	state.MarkStarted(0)
	if state.InFlight() != 1 {
		t.Errorf("expected 1 in flight, got %d", state.InFlight())
	}

	state.MarkFinished(0, domain.StepResult{Step: "A", Status: domain.StepStatusSucceeded}, true)
	ready = state.ReadySteps(10)
	if len(ready) != 2 || ready[0].Name() != "B" {
		t.Errorf("B should become ready after A succeeded")
	}
}

func TestRunState_StopAfterFailure(t *testing.T) {
	g, order, err := engine.Plan(spec(step("A"), step("B")))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	state := NewRunState(g, order)

	state.MarkStarted(0)
	state.MarkFinished(0, domain.StepResult{Step: "A", Status: domain.StepStatusFailed}, true)

	if state.Stopped() != "A" {
		t.Errorf("expected stopped by A, got %q", state.Stopped())
	}
	if len(state.ReadySteps(10)) != 0 {
		t.Error("no steps should be ready after stop")
	}

	stats := state.Stats()
	if stats.FailedSteps != 1 || stats.PendingSteps != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	results := state.Results(false)
	if results[1].Status != domain.StepStatusSkipped || results[1].Reason != skipStopped+"A" {
		t.Errorf("unexpected result for B: %+v", results[1])
	}
}

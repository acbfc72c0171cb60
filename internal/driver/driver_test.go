package driver

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/mrot/internal/domain"
	"github.com/shaiso/mrot/internal/github"
)

// fakePipeline отдаёт заранее заданную последовательность снимков.
type fakePipeline struct {
	mu          sync.Mutex
	dispatchErr error
	snapshots   []*github.RunsSnapshot
	listErr     error

	dispatches []github.DispatchRequest
	queries    []github.RunsQuery
}

func (f *fakePipeline) Dispatch(_ context.Context, req github.DispatchRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatches = append(f.dispatches, req)
	return f.dispatchErr
}

func (f *fakePipeline) ListRuns(_ context.Context, q github.RunsQuery) (*github.RunsSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.snapshots) == 0 {
		return pending(), nil
	}
	s := f.snapshots[0]
	if len(f.snapshots) > 1 {
		f.snapshots = f.snapshots[1:]
	}
	return s, nil
}

func (f *fakePipeline) polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func pending() *github.RunsSnapshot {
	return &github.RunsSnapshot{Found: true, RunID: 42, Status: domain.RemoteStatusInProgress, RateLimitRemaining: 100}
}

func completed(conclusion domain.RemoteStatus) *github.RunsSnapshot {
	return &github.RunsSnapshot{
		Found:              true,
		RunID:              42,
		HTMLURL:            "https://github.com/acme/api/actions/runs/42",
		Status:             domain.RemoteStatusCompleted,
		Conclusion:         conclusion,
		RateLimitRemaining: 100,
	}
}

func rateLimited() *github.RunsSnapshot {
	return &github.RunsSnapshot{RateLimitRemaining: 0}
}

// recordSleep запоминает задержки вместо ожидания.
type recordSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func newTestDriver(t *testing.T, p Pipeline, maxAttempts int) (*Driver, *recordSleep) {
	t.Helper()
	rec := &recordSleep{}
	d, err := New(Config{
		Pipeline:    p,
		MaxAttempts: maxAttempts,
		Backoff:     ExponentialBackoff(time.Second, 2, 10*time.Second),
		Sleep:       rec.sleep,
	})
	require.NoError(t, err)
	return d, rec
}

func testStep() *domain.Step {
	return &domain.Step{
		Name:       "api",
		Owner:      "acme",
		Repo:       "api",
		WorkflowID: "release.yml",
		Args:       []string{"version=1.2.3"},
	}
}

func TestNew_RequiresPipeline(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNoPipeline)
}

func TestNew_Defaults(t *testing.T) {
	d, err := New(Config{Pipeline: &fakePipeline{}})
	require.NoError(t, err)
	assert.Equal(t, defaultMaxAttempts, d.MaxAttempts())
	assert.Equal(t, defaultRef, d.defaultRef)
	assert.Equal(t, defaultClockSkew, d.clockSkew)
}

func TestPollUntilComplete_SucceedsAfterPending(t *testing.T) {
	p := &fakePipeline{snapshots: []*github.RunsSnapshot{pending(), pending(), completed(domain.RemoteStatusSuccess)}}
	d, rec := newTestDriver(t, p, 5)

	run, err := d.Trigger(context.Background(), testStep())
	require.NoError(t, err)

	outcome := d.PollUntilComplete(context.Background(), run, 5, d.backoff)

	assert.True(t, outcome.IsSuccess())
	assert.Equal(t, 3, p.polls())
	assert.Equal(t, 3, run.Polls)
	assert.Equal(t, domain.RunStateSuccess, run.State)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
}

func TestPollUntilComplete_ExhaustsBudget(t *testing.T) {
	p := &fakePipeline{snapshots: []*github.RunsSnapshot{pending(), pending(), pending(), pending(), pending(), pending()}}
	d, rec := newTestDriver(t, p, 5)

	run, err := d.Trigger(context.Background(), testStep())
	require.NoError(t, err)

	outcome := d.PollUntilComplete(context.Background(), run, 5, d.backoff)

	assert.True(t, outcome.IsFailure())
	assert.Equal(t, ReasonRetryBudget, outcome.Reason)
	assert.Equal(t, 5, p.polls())
	assert.Len(t, rec.delays, 4, "no sleep after the last attempt")
	assert.Equal(t, domain.RunStateFailed, run.State)
}

func TestPollUntilComplete_ImmediateTerminal(t *testing.T) {
	tests := []struct {
		name    string
		snap    *github.RunsSnapshot
		success bool
	}{
		{"success", completed(domain.RemoteStatusSuccess), true},
		{"neutral", completed(domain.RemoteStatusNeutral), true},
		{"failure", completed(domain.RemoteStatusFailure), false},
		{"timed out", completed(domain.RemoteStatusTimedOut), false},
		{"cancelled", completed(domain.RemoteStatusCancelled), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePipeline{snapshots: []*github.RunsSnapshot{tt.snap}}
			d, rec := newTestDriver(t, p, 5)

			run, err := d.Trigger(context.Background(), testStep())
			require.NoError(t, err)

			outcome := d.PollUntilComplete(context.Background(), run, 5, d.backoff)

			assert.Equal(t, tt.success, outcome.IsSuccess())
			assert.Equal(t, 1, p.polls())
			assert.Empty(t, rec.delays)
		})
	}
}

func TestPollUntilComplete_RateLimitedFailsFast(t *testing.T) {
	p := &fakePipeline{snapshots: []*github.RunsSnapshot{pending(), rateLimited(), completed(domain.RemoteStatusSuccess)}}
	d, _ := newTestDriver(t, p, 5)

	run, err := d.Trigger(context.Background(), testStep())
	require.NoError(t, err)

	outcome := d.PollUntilComplete(context.Background(), run, 5, d.backoff)

	assert.True(t, outcome.IsFailure())
	assert.Equal(t, ReasonRateLimited, outcome.Reason)
	assert.Equal(t, 2, p.polls())
	assert.Equal(t, domain.RunStateFailed, run.State)
}

func TestPollUntilComplete_TransportErrorFails(t *testing.T) {
	p := &fakePipeline{listErr: errors.New("connection reset")}
	d, _ := newTestDriver(t, p, 5)

	run, err := d.Trigger(context.Background(), testStep())
	require.NoError(t, err)

	outcome := d.PollUntilComplete(context.Background(), run, 5, d.backoff)

	assert.True(t, outcome.IsFailure())
	assert.Contains(t, outcome.Reason, "connection reset")
	assert.Equal(t, 1, p.polls())
}

func TestPollUntilComplete_CancelledDuringBackoff(t *testing.T) {
	p := &fakePipeline{}
	d, _ := newTestDriver(t, p, 5)

	run, err := d.Trigger(context.Background(), testStep())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := d.PollUntilComplete(ctx, run, 5, d.backoff)

	assert.True(t, outcome.IsFailure())
	assert.Contains(t, outcome.Reason, "cancelled")
	assert.Equal(t, 1, p.polls())
}

func TestPollUntilComplete_MinimumOneAttempt(t *testing.T) {
	p := &fakePipeline{}
	d, _ := newTestDriver(t, p, 5)

	run, err := d.Trigger(context.Background(), testStep())
	require.NoError(t, err)

	outcome := d.PollUntilComplete(context.Background(), run, 0, d.backoff)

	assert.Equal(t, ReasonRetryBudget, outcome.Reason)
	assert.Equal(t, 1, p.polls())
}

func TestTrigger_Request(t *testing.T) {
	p := &fakePipeline{}
	d, _ := newTestDriver(t, p, 5)

	step := testStep()
	run, err := d.Trigger(context.Background(), step)
	require.NoError(t, err)

	require.Len(t, p.dispatches, 1)
	req := p.dispatches[0]
	assert.Equal(t, "acme", req.Owner)
	assert.Equal(t, "api", req.Repo)
	assert.Equal(t, "release.yml", req.WorkflowID)
	assert.Equal(t, "main", req.Ref)
	assert.Equal(t, map[string]string{"version": "1.2.3"}, req.Inputs)

	assert.Equal(t, domain.RunStatePolling, run.State)
	require.Len(t, run.History, 2)
	assert.Equal(t, domain.RunStateIdle, run.History[0].From)
	assert.Equal(t, domain.RunStateTriggering, run.History[0].To)
}

func TestTrigger_StepRefOverridesDefault(t *testing.T) {
	p := &fakePipeline{}
	d, _ := newTestDriver(t, p, 5)

	step := testStep()
	step.Ref = "release/1.x"
	_, err := d.Trigger(context.Background(), step)
	require.NoError(t, err)

	assert.Equal(t, "release/1.x", p.dispatches[0].Ref)
}

func TestExecute_TriggerRejectedNoPolls(t *testing.T) {
	p := &fakePipeline{dispatchErr: &github.APIError{StatusCode: 422, Message: "Workflow does not have 'workflow_dispatch' trigger"}}
	d, _ := newTestDriver(t, p, 5)

	result := d.Execute(context.Background(), testStep())

	assert.Equal(t, domain.StepStatusFailed, result.Status)
	assert.Contains(t, result.Reason, "workflow_dispatch")
	assert.Equal(t, 0, p.polls())
	assert.Len(t, p.dispatches, 1, "trigger is not retried")
	assert.NotNil(t, result.FinishedAt)
}

func TestTrigger_ErrorIsTriggerError(t *testing.T) {
	p := &fakePipeline{dispatchErr: &github.APIError{StatusCode: 404, Message: "Not Found"}}
	d, _ := newTestDriver(t, p, 5)

	run, err := d.Trigger(context.Background(), testStep())
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrTriggerFailed)
	assert.ErrorIs(t, err, github.ErrRejected)

	var te *TriggerError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "api", te.Step)
	assert.Equal(t, domain.RunStateFailed, run.State)
}

func TestExecute_Success(t *testing.T) {
	p := &fakePipeline{snapshots: []*github.RunsSnapshot{pending(), completed(domain.RemoteStatusSuccess)}}
	d, _ := newTestDriver(t, p, 5)

	result := d.Execute(context.Background(), testStep())

	assert.Equal(t, domain.StepStatusSucceeded, result.Status)
	assert.Empty(t, result.Reason)
	assert.Equal(t, "acme/api", result.Target)
	assert.Equal(t, int64(42), result.RemoteID)
	assert.Equal(t, 2, result.Polls)
	assert.Contains(t, result.HTMLURL, "/runs/42")
}

func TestPoll_QueryUsesDispatchTime(t *testing.T) {
	p := &fakePipeline{}
	d, _ := newTestDriver(t, p, 5)

	run, err := d.Trigger(context.Background(), testStep())
	require.NoError(t, err)

	d.Poll(context.Background(), run)

	require.Len(t, p.queries, 1)
	assert.Equal(t, run.DispatchedAt.Add(-defaultClockSkew), p.queries[0].Since)
}

func TestPoll_NotTriggered(t *testing.T) {
	p := &fakePipeline{}
	d, _ := newTestDriver(t, p, 5)

	outcome := d.Poll(context.Background(), domain.NewWorkflowRun(testStep()))

	assert.Equal(t, ReasonNotTriggered, outcome.Reason)
	assert.Equal(t, 0, p.polls())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		snap *github.RunsSnapshot
		want domain.PollOutcome
	}{
		{"not visible yet", &github.RunsSnapshot{RateLimitRemaining: -1}, domain.Pending(domain.PendingNotYetComplete)},
		{"queued", &github.RunsSnapshot{Found: true, Status: domain.RemoteStatusQueued, RateLimitRemaining: 10}, domain.Pending(domain.PendingNotYetComplete)},
		{"in progress", pending(), domain.Pending(domain.PendingNotYetComplete)},
		{"unknown status", &github.RunsSnapshot{Found: true, Status: "mystery", RateLimitRemaining: 10}, domain.Pending(domain.PendingNotYetComplete)},
		{"rate limited", rateLimited(), domain.Pending(domain.PendingRateLimited)},
		{"in progress with quota gone", &github.RunsSnapshot{Found: true, Status: domain.RemoteStatusQueued, RateLimitRemaining: 0}, domain.Pending(domain.PendingRateLimited)},
		{"completed with quota gone", &github.RunsSnapshot{Found: true, Status: domain.RemoteStatusCompleted, Conclusion: domain.RemoteStatusSuccess}, domain.Success()},
		{"completed without conclusion", &github.RunsSnapshot{Found: true, Status: domain.RemoteStatusCompleted, RateLimitRemaining: 10}, domain.Success()},
		{"skipped", completed(domain.RemoteStatusSkipped), domain.Success()},
		{"startup failure", completed(domain.RemoteStatusStartupFailure), domain.Failure("workflow concluded: startup_failure")},
		{"nil", nil, domain.Failure("empty response")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.snap))
		})
	}
}

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff(10*time.Second, 2, time.Minute)

	assert.Equal(t, 10*time.Second, b(1))
	assert.Equal(t, 20*time.Second, b(2))
	assert.Equal(t, 40*time.Second, b(3))
	assert.Equal(t, time.Minute, b(4))
	assert.Equal(t, time.Minute, b(50))
}

func TestExponentialBackoff_FixedWhenMultiplierBelowOne(t *testing.T) {
	b := ExponentialBackoff(time.Second, 0.5, 0)

	assert.Equal(t, time.Second, b(1))
	assert.Equal(t, time.Second, b(7))
}

func TestExponentialBackoff_UnboundedSaturates(t *testing.T) {
	b := ExponentialBackoff(time.Second, 10, 0)

	assert.Equal(t, 100*time.Second, b(3))

	for _, attempt := range []int{19, 20, 30, 1000} {
		d := b(attempt)
		assert.Positive(t, d, "attempt %d", attempt)
		assert.Equal(t, time.Duration(math.MaxInt64), d, "attempt %d", attempt)
	}
}

func TestSleepContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sleepContext(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/audss/oncall/sbc"
)

// fakeApplier returns canned outcomes and records every pushed number.
type fakeApplier struct {
	mu       sync.Mutex
	outcomes []sbc.Outcome
	numbers  []string
}

func (f *fakeApplier) ApplyNumber(ctx context.Context, number string) []sbc.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.numbers = append(f.numbers, number)
	return f.outcomes
}

func (f *fakeApplier) pushed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.numbers...)
}

func successOutcomes() []sbc.Outcome {
	return []sbc.Outcome{
		{Host: "pernetgw01", Status: sbc.OutcomeSuccess},
		{Host: "parnetgw01", Status: sbc.OutcomeSuccess},
	}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *recordingBroadcaster) record(event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBroadcaster) BroadcastJobClaimed(job *Job) { b.record("claimed") }
func (b *recordingBroadcaster) BroadcastJobApplied(job *Job, outcomes []sbc.Outcome) {
	b.record("applied")
}
func (b *recordingBroadcaster) BroadcastJobFailed(job *Job, reason string, outcomes []sbc.Outcome) {
	b.record("failed")
}
func (b *recordingBroadcaster) BroadcastJobCancelled(job *Job) { b.record("cancelled") }

func TestTickAppliesDueJob(t *testing.T) {
	applier := &fakeApplier{outcomes: successOutcomes()}
	jobs, people, _ := newTestStores(t)
	d := NewDispatcher(jobs, people, applier, nil,
		DispatcherConfig{Interval: time.Hour}, zap.NewNop().Sugar())
	ctx := context.Background()

	person := createTestPerson(t, people)
	job, err := jobs.Create(ctx, person.ID, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	require.NoError(t, d.tick(time.Now()))

	got, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, got.Status)
	require.NotNil(t, got.AppliedAt)
	assert.Equal(t, []string{person.Mobile}, applier.pushed())
}

func TestTickLeavesFutureJob(t *testing.T) {
	applier := &fakeApplier{outcomes: successOutcomes()}
	jobs, people, _ := newTestStores(t)
	d := NewDispatcher(jobs, people, applier, nil,
		DispatcherConfig{Interval: time.Hour}, zap.NewNop().Sugar())
	ctx := context.Background()

	person := createTestPerson(t, people)
	job, err := jobs.Create(ctx, person.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, d.tick(time.Now()))

	got, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Empty(t, applier.pushed())
}

func TestTickCancelsOrphanedJob(t *testing.T) {
	applier := &fakeApplier{outcomes: successOutcomes()}
	jobs, people, conn := newTestStores(t)
	d := NewDispatcher(jobs, people, applier, nil,
		DispatcherConfig{Interval: time.Hour}, zap.NewNop().Sugar())
	ctx := context.Background()

	person := createTestPerson(t, people)
	job, err := jobs.Create(ctx, person.ID, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	// Person vanishes between scheduling and dispatch
	_, err = conn.Exec(`DELETE FROM oncall_users WHERE id = ?`, person.ID)
	require.NoError(t, err)

	require.NoError(t, d.tick(time.Now()))

	got, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Empty(t, applier.pushed())
}

func TestTickMarksFailedOnPartialFailure(t *testing.T) {
	applier := &fakeApplier{outcomes: []sbc.Outcome{
		{Host: "pernetgw01", Status: sbc.OutcomeSuccess},
		{Host: "parnetgw01", Status: sbc.OutcomeError, Message: "login failed"},
	}}
	jobs, people, _ := newTestStores(t)
	broadcaster := &recordingBroadcaster{}
	d := NewDispatcher(jobs, people, applier, broadcaster,
		DispatcherConfig{Interval: time.Hour}, zap.NewNop().Sugar())
	ctx := context.Background()

	person := createTestPerson(t, people)
	job, err := jobs.Create(ctx, person.ID, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	require.NoError(t, d.tick(time.Now()))

	got, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.FailureReason, "parnetgw01")
	assert.Contains(t, got.FailureReason, "login failed")
	assert.Equal(t, []string{"claimed", "failed"}, broadcaster.events)
}

func TestTickProcessesJobsWithSameDueTime(t *testing.T) {
	applier := &fakeApplier{outcomes: successOutcomes()}
	jobs, people, _ := newTestStores(t)
	d := NewDispatcher(jobs, people, applier, nil,
		DispatcherConfig{Interval: time.Hour}, zap.NewNop().Sugar())
	ctx := context.Background()

	person := createTestPerson(t, people)
	dueAt := time.Now().Add(-time.Minute)
	first, err := jobs.Create(ctx, person.ID, dueAt)
	require.NoError(t, err)
	second, err := jobs.Create(ctx, person.ID, dueAt)
	require.NoError(t, err)

	require.NoError(t, d.tick(time.Now()))

	for _, id := range []string{first.ID, second.ID} {
		got, err := jobs.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusApplied, got.Status)
	}
	assert.Len(t, applier.pushed(), 2)
}

func TestConcurrentTicksDispatchOnce(t *testing.T) {
	applier := &fakeApplier{outcomes: successOutcomes()}
	jobs, people, _ := newTestStores(t)
	d := NewDispatcher(jobs, people, applier, nil,
		DispatcherConfig{Interval: time.Hour}, zap.NewNop().Sugar())
	ctx := context.Background()

	person := createTestPerson(t, people)
	_, err := jobs.Create(ctx, person.ID, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	now := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.tick(now)
		}()
	}
	wg.Wait()

	// Claim CAS guarantees the number went out exactly once
	assert.Len(t, applier.pushed(), 1)
}

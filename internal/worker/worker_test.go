package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Crosspost/internal/domain"
	"github.com/shaiso/Crosspost/internal/mq"
	"github.com/shaiso/Crosspost/internal/publisher"
	"github.com/shaiso/Crosspost/internal/repo"
)

// --- Test helpers ---

// scriptedAdapter возвращает заранее заданную последовательность результатов.
type scriptedAdapter struct {
	mu      sync.Mutex
	calls   int
	results []bool // по вызовам; после конца повторяется последний
	message string
	err     error
}

func (a *scriptedAdapter) Publish(_ context.Context, _ *domain.Post, _ *domain.Platform) (*publisher.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	ok := a.results[min(a.calls-1, len(a.results)-1)]
	if ok {
		return &publisher.Result{Success: true, Message: "ok", ExternalID: "ext-1"}, nil
	}
	return &publisher.Result{Success: false, Message: a.message}, nil
}

func (a *scriptedAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func alwaysFail(msg string) *scriptedAdapter {
	return &scriptedAdapter{results: []bool{false}, message: msg}
}

func alwaysSucceed() *scriptedAdapter {
	return &scriptedAdapter{results: []bool{true}}
}

// recordingRequeuer запоминает повторные попытки.
type recordingRequeuer struct {
	mu     sync.Mutex
	jobs   []domain.PublishJob
	delays []time.Duration
	err    error
}

func (r *recordingRequeuer) DispatchAfter(_ context.Context, job domain.PublishJob, delay time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.jobs = append(r.jobs, job)
	r.delays = append(r.delays, delay)
	return nil
}

// countingStore считает переходы поста в published.
type countingStore struct {
	*repo.MemoryStore
	transitions atomic.Int32
}

func (s *countingStore) InPostTx(ctx context.Context, postID uuid.UUID, fn func(repo.PostTx) error) error {
	return s.MemoryStore.InPostTx(ctx, postID, func(tx repo.PostTx) error {
		return fn(&countingTx{PostTx: tx, store: s})
	})
}

type countingTx struct {
	repo.PostTx
	store *countingStore
}

func (t *countingTx) SetPostPublished(ctx context.Context, at time.Time) (bool, error) {
	ok, err := t.PostTx.SetPostPublished(ctx, at)
	if ok {
		t.store.transitions.Add(1)
	}
	return ok, err
}

// gatedAdapter: первый вызов ждёт release и возвращает неудачу,
// остальные сразу успешны.
type gatedAdapter struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newGatedAdapter() *gatedAdapter {
	return &gatedAdapter{entered: make(chan struct{}), release: make(chan struct{})}
}

func (a *gatedAdapter) Publish(ctx context.Context, _ *domain.Post, _ *domain.Platform) (*publisher.Result, error) {
	if a.calls.Add(1) == 1 {
		close(a.entered)
		select {
		case <-a.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &publisher.Result{Success: false, Message: "Rate limit exceeded"}, nil
	}
	return &publisher.Result{Success: true, Message: "ok", ExternalID: "ext-1"}, nil
}

type fixture struct {
	store     *countingStore
	registry  *publisher.Registry
	post      *domain.Post
	platforms map[domain.PlatformType]domain.Platform
}

func newFixture(t *testing.T, types ...domain.PlatformType) *fixture {
	t.Helper()
	ctx := context.Background()
	store := &countingStore{MemoryStore: repo.NewMemoryStore()}

	f := &fixture{
		store:     store,
		registry:  publisher.NewRegistry(),
		platforms: make(map[domain.PlatformType]domain.Platform),
	}

	var ids []uuid.UUID
	for _, typ := range types {
		p := domain.Platform{Name: typ.Label(), Type: typ, CharacterLimit: typ.DefaultCharacterLimit(), IsActive: true}
		if err := store.Upsert(ctx, &p); err != nil {
			t.Fatalf("upsert platform: %v", err)
		}
		f.platforms[typ] = p
		ids = append(ids, p.ID)
	}

	f.post = f.addPost(t, ids)
	return f
}

func (f *fixture) addPost(t *testing.T, platformIDs []uuid.UUID) *domain.Post {
	t.Helper()
	at := time.Now().Add(-time.Minute)
	post := &domain.Post{
		ID:            uuid.New(),
		Title:         "Launch",
		Content:       "We are live",
		Status:        domain.PostStatusScheduled,
		ScheduledTime: &at,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
	if err := f.store.CreatePost(context.Background(), post, platformIDs); err != nil {
		t.Fatalf("create post: %v", err)
	}
	return post
}

func (f *fixture) job(typ domain.PlatformType, attempt int) domain.PublishJob {
	job := domain.NewPublishJob(uuid.New(), f.post.ID, f.platforms[typ].ID, time.Now())
	job.Attempt = attempt
	return job
}

func (f *fixture) target(t *testing.T, typ domain.PlatformType) *domain.PlatformTarget {
	t.Helper()
	target, err := f.store.GetTarget(context.Background(), f.post.ID, f.platforms[typ].ID)
	if err != nil {
		t.Fatalf("get target: %v", err)
	}
	return target
}

func (f *fixture) postStatus(t *testing.T) domain.PostStatus {
	t.Helper()
	post, err := f.store.GetPost(context.Background(), f.post.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	return post.Status
}

func (f *fixture) executor(requeuer Requeuer, policy RetryPolicy) *Executor {
	return NewExecutor(ExecutorConfig{
		Store:    f.store,
		Registry: f.registry,
		Requeuer: requeuer,
		Policy:   policy,
	})
}

// --- RetryPolicy Tests ---

func TestRetryPolicy_Delay(t *testing.T) {
	policy := DefaultRetryPolicy()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 30 * time.Second},
		{1, 30 * time.Second},
		{2, 60 * time.Second},
		{3, 120 * time.Second},
		{4, 120 * time.Second},
		{10, 120 * time.Second},
	}

	for _, tt := range tests {
		if got := policy.Delay(tt.attempt); got != tt.want {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.want, got)
		}
	}
}

func TestRetryPolicy_EmptyBackoff(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 2}
	if got := policy.Delay(1); got != 0 {
		t.Errorf("expected 0 delay, got %v", got)
	}
}

func TestRetryPolicy_CanRetry(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3}
	if !policy.CanRetry(1) || !policy.CanRetry(2) {
		t.Error("attempts 1 and 2 should be retriable")
	}
	if policy.CanRetry(3) {
		t.Error("attempt 3 is the last one")
	}
}

func TestFailureMessage(t *testing.T) {
	got := FailureMessage(3, "Rate limit exceeded. Please try again later.")
	want := "Publishing failed after 3 attempts: Rate limit exceeded. Please try again later."
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

// --- Executor Tests ---

func TestExecutor_Success(t *testing.T) {
	f := newFixture(t, domain.PlatformX, domain.PlatformLinkedIn)
	f.registry.Register(domain.PlatformX, alwaysSucceed())
	f.registry.Register(domain.PlatformLinkedIn, alwaysSucceed())
	exec := f.executor(&recordingRequeuer{}, DefaultRetryPolicy())

	outcome, err := exec.Execute(context.Background(), f.job(domain.PlatformX, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeSucceeded {
		t.Fatalf("expected succeeded, got %s", outcome)
	}

	target := f.target(t, domain.PlatformX)
	if target.Status != domain.TargetStatusPublished || target.PublishedAt == nil {
		t.Errorf("expected published target, got %+v", target)
	}
	if f.postStatus(t) != domain.PostStatusScheduled {
		t.Error("post must stay scheduled while another target is pending")
	}

	if _, err := exec.Execute(context.Background(), f.job(domain.PlatformLinkedIn, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.postStatus(t) != domain.PostStatusPublished {
		t.Error("post should be published after the last target")
	}
}

func TestExecutor_FailedAttemptSchedulesRetry(t *testing.T) {
	f := newFixture(t, domain.PlatformX)
	adapter := alwaysFail("Service temporarily unavailable.")
	f.registry.Register(domain.PlatformX, adapter)
	requeuer := &recordingRequeuer{}
	exec := f.executor(requeuer, DefaultRetryPolicy())

	first := f.job(domain.PlatformX, 1)
	outcome, err := exec.Execute(context.Background(), first)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeRetryScheduled {
		t.Fatalf("expected retry_scheduled, got %s", outcome)
	}

	if len(requeuer.jobs) != 1 {
		t.Fatalf("expected 1 requeued job, got %d", len(requeuer.jobs))
	}
	next := requeuer.jobs[0]
	if next.Attempt != 2 || next.DispatchID != first.DispatchID || next.ID == first.ID {
		t.Errorf("unexpected retry job: %+v", next)
	}
	if requeuer.delays[0] != 30*time.Second {
		t.Errorf("expected 30s backoff, got %v", requeuer.delays[0])
	}

	target := f.target(t, domain.PlatformX)
	if target.Status != domain.TargetStatusPending || target.ErrorMessage != "" {
		t.Errorf("target must stay pending between retries, got %+v", target)
	}
}

func TestExecutor_LastAttemptFails(t *testing.T) {
	f := newFixture(t, domain.PlatformX)
	f.registry.Register(domain.PlatformX, alwaysFail("Rate limit exceeded. Please try again later."))
	requeuer := &recordingRequeuer{}
	exec := f.executor(requeuer, DefaultRetryPolicy())

	outcome, err := exec.Execute(context.Background(), f.job(domain.PlatformX, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome)
	}
	if len(requeuer.jobs) != 0 {
		t.Error("last attempt must not be requeued")
	}

	target := f.target(t, domain.PlatformX)
	want := "Publishing failed after 3 attempts: Rate limit exceeded. Please try again later."
	if target.Status != domain.TargetStatusFailed || target.ErrorMessage != want {
		t.Errorf("unexpected target: %+v", target)
	}
	if target.PublishedAt != nil {
		t.Error("failed target should not have published_at")
	}

	// Все target'ы обработаны — пост published даже при неудаче.
	if f.postStatus(t) != domain.PostStatusPublished {
		t.Error("post should be published once every target is terminal")
	}
}

func TestExecutor_SkipsProcessedTarget(t *testing.T) {
	f := newFixture(t, domain.PlatformX)
	adapter := alwaysSucceed()
	f.registry.Register(domain.PlatformX, adapter)
	exec := f.executor(&recordingRequeuer{}, DefaultRetryPolicy())

	job := f.job(domain.PlatformX, 1)
	if _, err := exec.Execute(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := f.target(t, domain.PlatformX)

	outcome, err := exec.Execute(context.Background(), job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Errorf("expected skipped, got %s", outcome)
	}
	if adapter.Calls() != 1 {
		t.Errorf("adapter should be called once, got %d", adapter.Calls())
	}
	after := f.target(t, domain.PlatformX)
	if !after.PublishedAt.Equal(*before.PublishedAt) {
		t.Error("repeated job must not change the terminal target")
	}
	if f.store.transitions.Load() != 1 {
		t.Errorf("expected exactly one post transition, got %d", f.store.transitions.Load())
	}
}

func TestExecutor_UnknownPlatformType(t *testing.T) {
	f := newFixture(t, domain.PlatformFacebook)
	requeuer := &recordingRequeuer{}
	exec := f.executor(requeuer, DefaultRetryPolicy())

	outcome, err := exec.Execute(context.Background(), f.job(domain.PlatformFacebook, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeFailed {
		t.Errorf("expected failed, got %s", outcome)
	}
	if len(requeuer.jobs) != 0 {
		t.Error("missing adapter must not be retried")
	}

	target := f.target(t, domain.PlatformFacebook)
	if !strings.Contains(target.ErrorMessage, publisher.ErrUnknownPlatformType.Error()) {
		t.Errorf("unexpected error message %q", target.ErrorMessage)
	}
}

func TestExecutor_RequeueFailureFinalizes(t *testing.T) {
	f := newFixture(t, domain.PlatformX)
	f.registry.Register(domain.PlatformX, alwaysFail("Network timeout. Please try again."))
	exec := f.executor(&recordingRequeuer{err: errors.New("broker down")}, DefaultRetryPolicy())

	outcome, err := exec.Execute(context.Background(), f.job(domain.PlatformX, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome)
	}

	target := f.target(t, domain.PlatformX)
	if target.Status != domain.TargetStatusFailed {
		t.Fatalf("target must not be left pending, got %s", target.Status)
	}
	if !strings.HasPrefix(target.ErrorMessage, "Publishing failed after 1 attempts: Network timeout.") ||
		!strings.Contains(target.ErrorMessage, "broker down") {
		t.Errorf("unexpected error message %q", target.ErrorMessage)
	}
}

func TestExecutor_AdapterErrorCountsAsFailure(t *testing.T) {
	f := newFixture(t, domain.PlatformX)
	f.registry.Register(domain.PlatformX, &scriptedAdapter{results: []bool{true}, err: errors.New("dial tcp: refused")})
	exec := f.executor(&recordingRequeuer{}, RetryPolicy{MaxAttempts: 1})

	outcome, err := exec.Execute(context.Background(), f.job(domain.PlatformX, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome)
	}
	if got := f.target(t, domain.PlatformX).ErrorMessage; got != "Publishing failed after 1 attempts: dial tcp: refused" {
		t.Errorf("unexpected error message %q", got)
	}
}

func TestExecutor_TargetNotFound(t *testing.T) {
	f := newFixture(t, domain.PlatformX)
	exec := f.executor(&recordingRequeuer{}, DefaultRetryPolicy())

	job := f.job(domain.PlatformX, 1)
	job.PlatformID = uuid.New()

	_, err := exec.Execute(context.Background(), job)
	if !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("expected ErrTargetNotFound, got %v", err)
	}
}

func TestExecutor_ContextCanceledLeavesTargetPending(t *testing.T) {
	f := newFixture(t, domain.PlatformX)
	f.registry.Register(domain.PlatformX, publisher.NewMockAdapter(publisher.MockConfig{
		SuccessRate: 1,
		MinDelay:    time.Second,
		MaxDelay:    time.Second,
	}))
	exec := f.executor(&recordingRequeuer{}, DefaultRetryPolicy())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := exec.Execute(ctx, f.job(domain.PlatformX, 1))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if f.target(t, domain.PlatformX).Status != domain.TargetStatusPending {
		t.Error("interrupted attempt must not write a status")
	}
}

func TestExecutor_NoRequeuer(t *testing.T) {
	f := newFixture(t, domain.PlatformX)
	f.registry.Register(domain.PlatformX, alwaysFail("nope"))
	exec := f.executor(nil, DefaultRetryPolicy())

	outcome, _ := exec.Execute(context.Background(), f.job(domain.PlatformX, 1))
	if outcome != OutcomeFailed {
		t.Errorf("expected failed without requeuer, got %s", outcome)
	}
}

func TestExecutor_ConcurrentChainsKeepPublished(t *testing.T) {
	f := newFixture(t, domain.PlatformX)
	adapter := newGatedAdapter()
	f.registry.Register(domain.PlatformX, adapter)
	exec := f.executor(&recordingRequeuer{}, DefaultRetryPolicy())

	// Цепочка от повторной отправки: последняя попытка, адаптер зависает
	type result struct {
		outcome Outcome
		err     error
	}
	lagging := make(chan result, 1)
	go func() {
		outcome, err := exec.Execute(context.Background(), f.job(domain.PlatformX, 3))
		lagging <- result{outcome, err}
	}()
	<-adapter.entered

	// Параллельная цепочка успевает опубликовать
	outcome, err := exec.Execute(context.Background(), f.job(domain.PlatformX, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeSucceeded {
		t.Fatalf("expected succeeded, got %s", outcome)
	}

	close(adapter.release)
	late := <-lagging
	if late.err != nil {
		t.Fatalf("unexpected error: %v", late.err)
	}
	if late.outcome != OutcomeSkipped {
		t.Errorf("late failure should be skipped, got %s", late.outcome)
	}

	target := f.target(t, domain.PlatformX)
	if target.Status != domain.TargetStatusPublished || target.PublishedAt == nil {
		t.Errorf("published target must stay published, got %+v", target)
	}
	if target.ErrorMessage != "" {
		t.Errorf("unexpected error message %q", target.ErrorMessage)
	}
	if f.postStatus(t) != domain.PostStatusPublished {
		t.Error("post should be published")
	}
	if f.store.transitions.Load() != 1 {
		t.Errorf("expected one post transition, got %d", f.store.transitions.Load())
	}
}

func TestExecutor_LateSuccessAfterFailureSkipped(t *testing.T) {
	f := newFixture(t, domain.PlatformX)
	exec := f.executor(&recordingRequeuer{}, DefaultRetryPolicy())

	// Target уже failed другой цепочкой
	err := f.store.InPostTx(context.Background(), f.post.ID, func(tx repo.PostTx) error {
		_, err := tx.WriteTargetStatus(context.Background(), f.platforms[domain.PlatformX].ID, repo.TargetUpdate{
			Status:       domain.TargetStatusFailed,
			ErrorMessage: "Publishing failed after 3 attempts: Rate limit exceeded",
		})
		return err
	})
	if err != nil {
		t.Fatalf("finish target: %v", err)
	}

	written, err := exec.finalizePublished(context.Background(), f.job(domain.PlatformX, 1), "x", exec.logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written {
		t.Error("terminal target must not be rewritten")
	}
	if got := f.target(t, domain.PlatformX); got.Status != domain.TargetStatusFailed || got.PublishedAt != nil {
		t.Errorf("failed target must stay failed, got %+v", got)
	}
}

func TestExecutor_WaitsUntilNotBefore(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		notBefore time.Time
		want      time.Duration
	}{
		{"due", now.Add(-time.Second), 0},
		{"zero", time.Time{}, 0},
		{"early", now.Add(30 * time.Second), 30 * time.Second},
		{"capped", now.Add(time.Hour), 120 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, domain.PlatformX)
			f.registry.Register(domain.PlatformX, alwaysSucceed())
			exec := NewExecutor(ExecutorConfig{
				Store:    f.store,
				Registry: f.registry,
				Requeuer: &recordingRequeuer{},
				Now:      func() time.Time { return now },
			})

			var waited time.Duration
			exec.wait = func(_ context.Context, d time.Duration) error {
				waited += d
				return nil
			}

			job := f.job(domain.PlatformX, 2)
			job.NotBefore = tt.notBefore

			outcome, err := exec.Execute(context.Background(), job)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if outcome != OutcomeSucceeded {
				t.Errorf("expected succeeded, got %s", outcome)
			}
			if waited != tt.want {
				t.Errorf("expected wait %v, got %v", tt.want, waited)
			}
		})
	}
}

func TestExecutor_EarlyJobInterrupted(t *testing.T) {
	f := newFixture(t, domain.PlatformX)
	adapter := alwaysSucceed()
	f.registry.Register(domain.PlatformX, adapter)
	exec := f.executor(&recordingRequeuer{}, DefaultRetryPolicy())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	job := f.job(domain.PlatformX, 2)
	job.NotBefore = time.Now().Add(time.Minute)

	_, err := exec.Execute(ctx, job)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if adapter.Calls() != 0 {
		t.Error("adapter must not be called before not_before")
	}
	if f.target(t, domain.PlatformX).Status != domain.TargetStatusPending {
		t.Error("target must stay pending")
	}
}

// --- Pool Tests ---

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: []time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond}}
}

func startPool(t *testing.T, exec *Executor) *Pool {
	t.Helper()
	pool := NewPool(PoolConfig{Concurrency: 4})
	exec.SetRequeuer(pool)
	pool.Start(context.Background(), JobHandlerFor(exec))
	t.Cleanup(pool.Stop)
	return pool
}

func waitPool(t *testing.T, pool *Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Wait(ctx); err != nil {
		t.Fatalf("pool did not drain: %v", err)
	}
}

func TestPool_RetryBound(t *testing.T) {
	f := newFixture(t, domain.PlatformInstagram)
	adapter := alwaysFail("Content violates platform guidelines.")
	f.registry.Register(domain.PlatformInstagram, adapter)
	exec := f.executor(nil, fastPolicy())
	pool := startPool(t, exec)

	if err := pool.Dispatch(context.Background(), f.job(domain.PlatformInstagram, 1)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	waitPool(t, pool)

	if adapter.Calls() != 3 {
		t.Errorf("expected exactly 3 adapter calls, got %d", adapter.Calls())
	}
	target := f.target(t, domain.PlatformInstagram)
	if target.Status != domain.TargetStatusFailed {
		t.Errorf("expected failed, got %s", target.Status)
	}
	if target.ErrorMessage != "Publishing failed after 3 attempts: Content violates platform guidelines." {
		t.Errorf("unexpected error message %q", target.ErrorMessage)
	}
	if f.postStatus(t) != domain.PostStatusPublished {
		t.Error("post should be published after exhausting retries")
	}
}

func TestPool_MixedOutcomes(t *testing.T) {
	f := newFixture(t, domain.PlatformX, domain.PlatformInstagram)

	// X: первая попытка неудачна, вторая успешна. Instagram: успех сразу.
	xAdapter := &scriptedAdapter{results: []bool{false, true}, message: "Service temporarily unavailable."}
	igAdapter := alwaysSucceed()
	f.registry.Register(domain.PlatformX, xAdapter)
	f.registry.Register(domain.PlatformInstagram, igAdapter)

	exec := f.executor(nil, fastPolicy())
	pool := startPool(t, exec)

	_ = pool.Dispatch(context.Background(), f.job(domain.PlatformX, 1))
	_ = pool.Dispatch(context.Background(), f.job(domain.PlatformInstagram, 1))
	waitPool(t, pool)

	if xAdapter.Calls() != 2 || igAdapter.Calls() != 1 {
		t.Errorf("unexpected calls: x=%d instagram=%d", xAdapter.Calls(), igAdapter.Calls())
	}
	for _, typ := range []domain.PlatformType{domain.PlatformX, domain.PlatformInstagram} {
		target := f.target(t, typ)
		if target.Status != domain.TargetStatusPublished || target.ErrorMessage != "" {
			t.Errorf("%s: expected published without error, got %+v", typ, target)
		}
	}
	if f.postStatus(t) != domain.PostStatusPublished {
		t.Error("post should be published")
	}
	if f.store.transitions.Load() != 1 {
		t.Errorf("expected one post transition, got %d", f.store.transitions.Load())
	}
}

func TestPool_ConcurrentCompletionsPublishPostOnce(t *testing.T) {
	types := domain.PlatformTypes()
	f := newFixture(t, types...)
	for _, typ := range types {
		f.registry.Register(typ, alwaysSucceed())
	}

	var ids []uuid.UUID
	for _, typ := range types {
		ids = append(ids, f.platforms[typ].ID)
	}
	posts := []*domain.Post{f.post}
	for i := 0; i < 19; i++ {
		posts = append(posts, f.addPost(t, ids))
	}

	exec := f.executor(nil, fastPolicy())
	pool := NewPool(PoolConfig{Concurrency: 8})
	exec.SetRequeuer(pool)
	pool.Start(context.Background(), JobHandlerFor(exec))
	defer pool.Stop()

	for _, post := range posts {
		dispatchID := uuid.New()
		for _, typ := range types {
			job := domain.NewPublishJob(dispatchID, post.ID, f.platforms[typ].ID, time.Now())
			if err := pool.Dispatch(context.Background(), job); err != nil {
				t.Fatalf("dispatch: %v", err)
			}
		}
	}
	waitPool(t, pool)

	if got := f.store.transitions.Load(); got != int32(len(posts)) {
		t.Errorf("expected %d post transitions, got %d", len(posts), got)
	}
	for _, post := range posts {
		got, _ := f.store.GetPost(context.Background(), post.ID)
		if got.Status != domain.PostStatusPublished {
			t.Errorf("post %s not published", post.ID)
		}
	}
}

func TestPool_StopCancelsPendingRetries(t *testing.T) {
	pool := NewPool(PoolConfig{Concurrency: 1})
	var handled atomic.Int32
	pool.Start(context.Background(), func(context.Context, domain.PublishJob) error {
		handled.Add(1)
		return nil
	})

	if err := pool.DispatchAfter(context.Background(), domain.PublishJob{ID: uuid.New()}, time.Hour); err != nil {
		t.Fatalf("dispatch after: %v", err)
	}
	if pool.Pending() != 1 {
		t.Errorf("expected 1 pending, got %d", pool.Pending())
	}

	pool.Stop()

	if pool.Pending() != 0 {
		t.Errorf("expected 0 pending after stop, got %d", pool.Pending())
	}
	if handled.Load() != 0 {
		t.Error("cancelled retry must not run")
	}
	if err := pool.Dispatch(context.Background(), domain.PublishJob{}); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("expected ErrPoolStopped, got %v", err)
	}
}

func TestPool_StopWithFiringRetries(t *testing.T) {
	for i := 0; i < 50; i++ {
		pool := NewPool(PoolConfig{Concurrency: 1, QueueSize: 4})
		pool.Start(context.Background(), func(context.Context, domain.PublishJob) error {
			return nil
		})

		// Таймеры срабатывают примерно одновременно со Stop
		for j := 0; j < 16; j++ {
			if err := pool.DispatchAfter(context.Background(), domain.PublishJob{ID: uuid.New()}, time.Microsecond); err != nil {
				t.Fatalf("dispatch after: %v", err)
			}
		}
		pool.Stop()

		if got := pool.Pending(); got != 0 {
			t.Fatalf("iteration %d: expected 0 pending after stop, got %d", i, got)
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := pool.Wait(ctx)
		cancel()
		if err != nil {
			t.Fatalf("iteration %d: wait after stop: %v", i, err)
		}
	}
}

func TestPool_WaitIdle(t *testing.T) {
	pool := NewPool(PoolConfig{})
	if err := pool.Wait(context.Background()); err != nil {
		t.Errorf("idle pool should not block: %v", err)
	}
}

// --- Worker Tests ---

func TestNew_DefaultConfig(t *testing.T) {
	w := New(Config{Executor: NewExecutor(ExecutorConfig{})})

	if w.concurrency != defaultConcurrency {
		t.Errorf("expected concurrency %d, got %d", defaultConcurrency, w.concurrency)
	}
	if w.prefetch != defaultPrefetch {
		t.Errorf("expected prefetch %d, got %d", defaultPrefetch, w.prefetch)
	}
	if w.logger == nil {
		t.Error("logger should default to slog.Default()")
	}
	if w.executor.Policy().MaxAttempts != 3 {
		t.Errorf("expected default policy, got %+v", w.executor.Policy())
	}
}

func TestWorker_IsStopped(t *testing.T) {
	w := New(Config{Executor: NewExecutor(ExecutorConfig{})})

	if w.IsStopped() {
		t.Error("new worker should not be stopped")
	}
	w.Stop()
	if !w.IsStopped() {
		t.Error("worker should be stopped after Stop()")
	}
	if err := w.Start(context.Background()); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("expected ErrWorkerStopped, got %v", err)
	}
}

func TestWorker_StopIdempotent(t *testing.T) {
	w := New(Config{Executor: NewExecutor(ExecutorConfig{})})

	// Stop без Start и повторный Stop не блокируются
	w.Stop()
	w.Stop()

	if !w.IsStopped() {
		t.Error("worker should be stopped")
	}
}

func TestWorker_RejectsUnexpectedMessage(t *testing.T) {
	w := New(Config{Executor: NewExecutor(ExecutorConfig{})})

	err := w.handlePublishRequested(context.Background(), &mq.Delivery{
		Message: mq.Message{ID: "1", Type: "task.ready"},
	})
	if !errors.Is(err, mq.ErrReject) {
		t.Errorf("expected ErrReject, got %v", err)
	}
}

func TestWorker_HandleJob_DropsMissingTarget(t *testing.T) {
	f := newFixture(t, domain.PlatformX)
	w := New(Config{Executor: f.executor(&recordingRequeuer{}, DefaultRetryPolicy())})

	job := f.job(domain.PlatformX, 1)
	job.PostID = uuid.New()

	if err := w.HandleJob(context.Background(), job); err != nil {
		t.Errorf("missing target should be acked, got %v", err)
	}
}

package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trust_gateway/internal/dispatch"
	"trust_gateway/internal/ledger"
	"trust_gateway/internal/models"
	"trust_gateway/internal/routing"
	"trust_gateway/internal/trust"
)

// fakeDispatcher scripts per-call results so retry behavior is observable.
type fakeDispatcher struct {
	mu       sync.Mutex
	calls    []dispatch.Request
	results  []*dispatch.Result
	errs     []error
	fallback *dispatch.Result
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, req dispatch.Request) (*dispatch.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.calls)
	f.calls = append(f.calls, req)

	if n < len(f.errs) && f.errs[n] != nil {
		return nil, f.errs[n]
	}
	if n < len(f.results) {
		return f.results[n], nil
	}
	return f.fallback, nil
}

func (f *fakeDispatcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testCatalog() []models.ModelDescriptor {
	return []models.ModelDescriptor{
		{ID: "llama3.1:8b", Provider: "ollama", IsLocal: true, CostPerThousandTokensUSD: 0},
		{ID: "gpt-4o-mini", Provider: "openai", IsLocal: false, CostPerThousandTokensUSD: 0.00015},
		{ID: "gpt-4o", Provider: "openai", IsLocal: false, CostPerThousandTokensUSD: 0.005},
	}
}

func newTestEngine(t *testing.T, d dispatch.Dispatcher) (*Engine, *ledger.MemoryLedger) {
	t.Helper()
	l := ledger.NewMemoryLedger()
	e, err := New(Options{
		Catalog:    testCatalog(),
		Dispatcher: d,
		Ledger:     l,
	})
	require.NoError(t, err)
	return e, l
}

func TestRouteAndRecord_PIIGoesLocal(t *testing.T) {
	fake := &fakeDispatcher{fallback: &dispatch.Result{Text: "done", InputTokens: 50, OutputTokens: 20}}
	e, l := newTestEngine(t, fake)

	auditID := uuid.New()
	result, err := e.RouteAndRecord(context.Background(), ChatRequest{
		AuditID:   auditID,
		SessionID: "s1",
		MessageID: "m1",
		Prompt:    "My email is a@b.com and phone 555-1234",
	})
	require.NoError(t, err)

	assert.True(t, result.Decision.IsLocal)
	assert.Equal(t, "llama3.1:8b", result.Decision.ModelID)
	assert.Equal(t, models.ReasonSensitivityPolicy, result.Decision.Reason)
	assert.Equal(t, models.LevelConfidential, result.Assessment.Level)
	assert.Equal(t, trust.BadgeSecureLocal, result.Trust.Badge)
	assert.Equal(t, auditID, result.Trust.AuditID)

	// Local dispatch is free; savings come from the cheapest cloud baseline.
	assert.Equal(t, 0.0, result.Cost.ActualCostUSD)
	assert.InDelta(t, 70.0/1000*0.00015, result.Cost.CloudCostUSD, 1e-12)

	entry, err := l.Get(context.Background(), auditID)
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "phone"}, []string(entry.PIICategories))
	assert.Equal(t, 50, entry.InputTokens)
	assert.Empty(t, entry.DispatchError)
}

func TestRouteAndRecord_PublicPrefersCheapestCloud(t *testing.T) {
	fake := &fakeDispatcher{fallback: &dispatch.Result{Text: "hi", InputTokens: 10, OutputTokens: 10}}
	e, _ := newTestEngine(t, fake)

	result, err := e.RouteAndRecord(context.Background(), ChatRequest{
		AuditID:   uuid.New(),
		SessionID: "s1",
		MessageID: "m1",
		Prompt:    "What is the capital of France?",
	})
	require.NoError(t, err)

	// Fallback picks the cheapest model overall, which is the free local one.
	assert.Equal(t, "llama3.1:8b", result.Decision.ModelID)
	assert.Equal(t, models.ReasonFallback, result.Decision.Reason)
}

func TestRouteAndRecord_SafePreferredModelHonored(t *testing.T) {
	fake := &fakeDispatcher{fallback: &dispatch.Result{Text: "hi", InputTokens: 10, OutputTokens: 10}}
	e, _ := newTestEngine(t, fake)

	result, err := e.RouteAndRecord(context.Background(), ChatRequest{
		AuditID:    uuid.New(),
		SessionID:  "s1",
		MessageID:  "m1",
		Prompt:     "What is the capital of France?",
		Constraint: models.RoutingConstraint{PreferredModel: "gpt-4o"},
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", result.Decision.ModelID)
	assert.Equal(t, models.ReasonPreferredModel, result.Decision.Reason)
	assert.Equal(t, trust.BadgeCloud, result.Trust.Badge)
	assert.InDelta(t, 20.0/1000*0.005, result.Cost.ActualCostUSD, 1e-12)
}

func TestRouteAndRecord_ForceLocalOverridesPreference(t *testing.T) {
	fake := &fakeDispatcher{fallback: &dispatch.Result{Text: "hi", InputTokens: 5, OutputTokens: 5}}
	e, l := newTestEngine(t, fake)

	auditID := uuid.New()
	result, err := e.RouteAndRecord(context.Background(), ChatRequest{
		AuditID:   auditID,
		SessionID: "s1",
		MessageID: "m1",
		Prompt:    "hello",
		Constraint: models.RoutingConstraint{
			ForceLocal:     true,
			PreferredModel: "gpt-4o",
		},
	})
	require.NoError(t, err)

	assert.True(t, result.Decision.IsLocal)
	assert.Equal(t, models.ReasonForcedLocal, result.Decision.Reason)

	entry, err := l.Get(context.Background(), auditID)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonForcedLocal, entry.Reason)
}

func TestRouteAndRecord_TransientFailureRetriedOnce(t *testing.T) {
	fake := &fakeDispatcher{
		errs:     []error{dispatch.Transient(errors.New("connection reset"))},
		fallback: &dispatch.Result{Text: "recovered", InputTokens: 8, OutputTokens: 4},
	}
	e, l := newTestEngine(t, fake)

	auditID := uuid.New()
	result, err := e.RouteAndRecord(context.Background(), ChatRequest{
		AuditID:   auditID,
		SessionID: "s1",
		MessageID: "m1",
		Prompt:    "hello",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, fake.callCount())
	assert.Equal(t, "recovered", result.Text)

	// Both attempts targeted the same decision.
	assert.Equal(t, fake.calls[0].ModelID, fake.calls[1].ModelID)

	entry, err := l.Get(context.Background(), auditID)
	require.NoError(t, err)
	assert.Empty(t, entry.DispatchError)
}

func TestRouteAndRecord_PermanentFailureNotRetried(t *testing.T) {
	permanent := errors.New("model not found")
	fake := &fakeDispatcher{errs: []error{permanent, permanent}}
	e, l := newTestEngine(t, fake)

	auditID := uuid.New()
	_, err := e.RouteAndRecord(context.Background(), ChatRequest{
		AuditID:   auditID,
		SessionID: "s1",
		MessageID: "m1",
		Prompt:    "hello",
	})
	require.ErrorIs(t, err, ErrDispatchFailed)
	assert.Equal(t, 1, fake.callCount())

	// The failed attempt is still on the ledger, with zero tokens and the
	// failure reason.
	entry, lerr := l.Get(context.Background(), auditID)
	require.NoError(t, lerr)
	assert.Equal(t, 0, entry.InputTokens)
	assert.Contains(t, entry.DispatchError, "model not found")
}

func TestRouteAndRecord_RetryExhaustedRecordsFailure(t *testing.T) {
	transient := dispatch.Transient(errors.New("overloaded"))
	fake := &fakeDispatcher{errs: []error{transient, transient}}
	e, l := newTestEngine(t, fake)

	auditID := uuid.New()
	_, err := e.RouteAndRecord(context.Background(), ChatRequest{
		AuditID:   auditID,
		SessionID: "s1",
		MessageID: "m1",
		Prompt:    "hello",
	})
	require.ErrorIs(t, err, ErrDispatchFailed)
	assert.Equal(t, 2, fake.callCount())

	entry, lerr := l.Get(context.Background(), auditID)
	require.NoError(t, lerr)
	assert.Contains(t, entry.DispatchError, "overloaded")
}

func TestRouteAndRecord_IdempotentRetryReturnsResult(t *testing.T) {
	fake := &fakeDispatcher{fallback: &dispatch.Result{Text: "ok", InputTokens: 10, OutputTokens: 10}}
	e, l := newTestEngine(t, fake)

	auditID := uuid.New()
	req := ChatRequest{AuditID: auditID, SessionID: "s1", MessageID: "m1", Prompt: "hello"}

	_, err := e.RouteAndRecord(context.Background(), req)
	require.NoError(t, err)

	// A client retry with the same audit id succeeds; the ledger keeps one row.
	_, err = e.RouteAndRecord(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Len())
}

func TestRouteAndRecord_ConflictingAuditEntryIsNonFatal(t *testing.T) {
	fake := &fakeDispatcher{fallback: &dispatch.Result{Text: "ok", InputTokens: 10, OutputTokens: 10}}
	e, l := newTestEngine(t, fake)

	// Seed the ledger with a divergent entry under the same audit id.
	auditID := uuid.New()
	seeded := models.NewAuditEntry(auditID, nil, "other-session", "other-message",
		models.SensitivityAssessment{Level: models.LevelPublic},
		models.RoutingDecision{IsLocal: true, ModelID: "llama3.1:8b", ModelProvider: "ollama", Reason: models.ReasonFallback},
		models.CostRecord{InputTokens: 999})
	require.NoError(t, l.Record(context.Background(), seeded))

	result, err := e.RouteAndRecord(context.Background(), ChatRequest{
		AuditID:   auditID,
		SessionID: "s1",
		MessageID: "m1",
		Prompt:    "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Text)

	// The first write stays authoritative.
	entry, err := l.Get(context.Background(), auditID)
	require.NoError(t, err)
	assert.Equal(t, "other-session", entry.SessionID)
}

func TestRouteAndRecord_CancelledCallerStillRecords(t *testing.T) {
	fake := &fakeDispatcher{fallback: &dispatch.Result{Text: "ok", InputTokens: 10, OutputTokens: 10}}
	e, l := newTestEngine(t, fake)

	// Caller context already cancelled; the audit write uses a detached
	// context and must still land.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	auditID := uuid.New()
	_, _ = e.RouteAndRecord(ctx, ChatRequest{
		AuditID:   auditID,
		SessionID: "s1",
		MessageID: "m1",
		Prompt:    "hello",
	})

	_, err := l.Get(context.Background(), auditID)
	assert.NoError(t, err)
}

func TestNew_RejectsInvalidCatalog(t *testing.T) {
	_, err := New(Options{
		Catalog:    nil,
		Dispatcher: &fakeDispatcher{},
		Ledger:     ledger.NewMemoryLedger(),
	})
	assert.ErrorIs(t, err, routing.ErrNoModelAvailable)
}

func TestNew_RequiresDispatcherAndLedger(t *testing.T) {
	_, err := New(Options{Catalog: testCatalog(), Ledger: ledger.NewMemoryLedger()})
	assert.Error(t, err)

	_, err = New(Options{Catalog: testCatalog(), Dispatcher: &fakeDispatcher{}})
	assert.Error(t, err)
}

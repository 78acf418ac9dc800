package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trust_gateway/internal/classifier"
	"trust_gateway/internal/costs"
	"trust_gateway/internal/dispatch"
	"trust_gateway/internal/ledger"
	"trust_gateway/internal/models"
	"trust_gateway/internal/routing"
	"trust_gateway/internal/stats"
	"trust_gateway/internal/trust"
	"trust_gateway/internal/utils"
)

// ErrDispatchFailed wraps model invocation failures that survived the retry.
// The audit entry for the attempt is still recorded before this is returned.
var ErrDispatchFailed = errors.New("model dispatch failed")

const defaultRecordTimeout = 10 * time.Second

// ChatRequest is one message to route, dispatch and account for.
type ChatRequest struct {
	AuditID    uuid.UUID
	UserID     *uuid.UUID
	SessionID  string
	MessageID  string
	Prompt     string
	Document   string
	Constraint models.RoutingConstraint
}

// ChatResult carries the model output together with everything the caller
// needs to explain how the request was handled.
type ChatResult struct {
	Text       string
	Assessment models.SensitivityAssessment
	Decision   models.RoutingDecision
	Cost       models.CostRecord
	Trust      models.TrustReport
}

// Engine ties classification, routing, dispatch, cost accounting and audit
// recording into one pipeline.
type Engine struct {
	classifier    *classifier.Classifier
	catalog       []models.ModelDescriptor
	estimator     *costs.Estimator
	dispatcher    dispatch.Dispatcher
	ledger        ledger.Ledger
	stats         stats.Service
	logger        *utils.Logger
	recordTimeout time.Duration
}

// Options configures a new Engine. Stats may be nil; audit recording may not.
type Options struct {
	Catalog       []models.ModelDescriptor
	Estimator     *costs.Estimator
	Dispatcher    dispatch.Dispatcher
	Ledger        ledger.Ledger
	Stats         stats.Service
	Logger        *utils.Logger
	RecordTimeout time.Duration
}

// New validates the catalog and builds the engine.
func New(opts Options) (*Engine, error) {
	if err := routing.ValidateCatalog(opts.Catalog); err != nil {
		return nil, err
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if opts.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if opts.Estimator == nil {
		opts.Estimator = costs.NewEstimator(0)
	}
	if opts.Stats == nil {
		opts.Stats = stats.NewNoopService()
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewLogger("engine")
	}
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = defaultRecordTimeout
	}

	return &Engine{
		classifier:    classifier.New(),
		catalog:       opts.Catalog,
		estimator:     opts.Estimator,
		dispatcher:    opts.Dispatcher,
		ledger:        opts.Ledger,
		stats:         opts.Stats,
		logger:        opts.Logger,
		recordTimeout: opts.RecordTimeout,
	}, nil
}

// RouteAndRecord processes one message end to end: classify the content,
// pick a model, invoke it, price the call and write the audit entry. The
// audit write happens even when dispatch fails, with the partial token counts
// and the failure reason, so billing never loses an attempted call.
func (e *Engine) RouteAndRecord(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	routingStart := time.Now()

	assessment := e.classifier.Classify(req.Prompt, req.Document)

	decision, err := routing.Decide(assessment, req.Constraint, e.catalog)
	if err != nil {
		return nil, fmt.Errorf("routing failed: %w", err)
	}
	routingTime := time.Since(routingStart)

	dispatchStart := time.Now()
	result, dispatchErr := e.dispatchWithRetry(ctx, dispatch.Request{
		ModelID:  decision.ModelID,
		Provider: decision.ModelProvider,
		Prompt:   req.Prompt,
		Document: req.Document,
	})
	latency := time.Since(dispatchStart)

	var inputTokens, outputTokens int
	if result != nil {
		inputTokens = result.InputTokens
		outputTokens = result.OutputTokens
	}

	cost, err := e.estimator.Estimate(decision, inputTokens, outputTokens, e.catalog)
	if err != nil {
		return nil, fmt.Errorf("cost estimation failed: %w", err)
	}
	cost.LatencyMs = latency.Milliseconds()
	cost.RoutingTimeMs = routingTime.Milliseconds()

	entry := models.NewAuditEntry(req.AuditID, req.UserID, req.SessionID, req.MessageID, assessment, decision, cost)
	if dispatchErr != nil {
		entry.DispatchError = dispatchErr.Error()
	}

	if err := e.record(entry); err != nil {
		return nil, err
	}

	if dispatchErr != nil {
		return nil, fmt.Errorf("%w: %s on %s: %v", ErrDispatchFailed, decision.ModelID, decision.ModelProvider, dispatchErr)
	}

	if err := e.stats.AddOutcome(ctx, decision, assessment, cost); err != nil {
		e.logger.Warn("failed to update savings counters", "error", err)
	}

	report := trust.Build(decision, cost, assessment, req.AuditID)

	return &ChatResult{
		Text:       result.Text,
		Assessment: assessment,
		Decision:   decision,
		Cost:       cost,
		Trust:      report,
	}, nil
}

// dispatchWithRetry retries once on a transient failure, against the same
// decision. Permanent failures surface immediately.
func (e *Engine) dispatchWithRetry(ctx context.Context, req dispatch.Request) (*dispatch.Result, error) {
	result, err := e.dispatcher.Dispatch(ctx, req)
	if err == nil || !dispatch.IsTransient(err) || ctx.Err() != nil {
		return result, err
	}

	e.logger.Warn("transient dispatch failure, retrying",
		"model", req.ModelID, "provider", req.Provider, "error", err)
	return e.dispatcher.Dispatch(ctx, req)
}

// record writes the audit entry on a detached context so a caller that gave
// up waiting cannot cancel the billing record. A conflicting retry is logged
// and swallowed: the first write already holds the authoritative entry.
func (e *Engine) record(entry *models.AuditEntry) error {
	recordCtx, cancel := context.WithTimeout(context.Background(), e.recordTimeout)
	defer cancel()

	err := e.ledger.Record(recordCtx, entry)
	if err == nil {
		return nil
	}
	if errors.Is(err, ledger.ErrConflictingAuditEntry) {
		e.logger.Error("conflicting audit entry for id, keeping first write",
			"auditId", entry.AuditID, "messageId", entry.MessageID)
		return nil
	}
	return fmt.Errorf("failed to record audit entry: %w", err)
}

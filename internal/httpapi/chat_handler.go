package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"trust_gateway/internal/engine"
	"trust_gateway/internal/middleware"
	"trust_gateway/internal/models"
	"trust_gateway/internal/routing"
	"trust_gateway/internal/utils"
)

// chatRequest is the wire form of one chat message. AuditID is optional:
// clients that want idempotent retries supply their own, everyone else gets
// a fresh one.
type chatRequest struct {
	AuditID        string `json:"audit_id,omitempty"`
	SessionID      string `json:"session_id"`
	MessageID      string `json:"message_id,omitempty"`
	Prompt         string `json:"prompt"`
	Document       string `json:"document,omitempty"`
	ForceLocal     bool   `json:"force_local,omitempty"`
	PreferredModel string `json:"preferred_model,omitempty"`
}

type chatResponse struct {
	Text       string                       `json:"text"`
	AuditID    uuid.UUID                    `json:"audit_id"`
	Assessment models.SensitivityAssessment `json:"assessment"`
	Decision   models.RoutingDecision       `json:"decision"`
	Cost       models.CostRecord            `json:"cost"`
	Trust      models.TrustReport           `json:"trust"`
}

// handleChat routes one message, invokes the selected model and returns the
// response together with the trust report.
//
// Flow:
//  1. Decode and validate the JSON body
//  2. Resolve caller identity (optional JWT) and session
//  3. Rate limit per session
//  4. Run the engine pipeline
//  5. Hand the recorded entry to the export queue, best effort
func (d *Dependencies) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Prompt == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "missing 'prompt' field")
		return
	}

	var userID *uuid.UUID
	sessionID := req.SessionID
	if identity, ok := middleware.GetIdentity(ctx); ok {
		userID = &identity.UserID
		if sessionID == "" {
			sessionID = identity.SessionID
		}
	}
	if sessionID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "missing 'session_id' field")
		return
	}

	auditID := uuid.New()
	if req.AuditID != "" {
		parsed, err := uuid.Parse(req.AuditID)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid 'audit_id' field")
			return
		}
		auditID = parsed
	}

	if !d.RateLimit.Allow(ctx, sessionID) {
		utils.RespondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	result, err := d.Engine.RouteAndRecord(ctx, engine.ChatRequest{
		AuditID:   auditID,
		UserID:    userID,
		SessionID: sessionID,
		MessageID: req.MessageID,
		Prompt:    req.Prompt,
		Document:  req.Document,
		Constraint: models.RoutingConstraint{
			ForceLocal:     req.ForceLocal,
			PreferredModel: req.PreferredModel,
		},
	})
	if err != nil {
		d.Logger.Error("chat request failed", "auditId", auditID, "error", err)
		switch {
		case errors.Is(err, routing.ErrNoModelAvailable), errors.Is(err, routing.ErrNoLocalModel):
			utils.RespondWithError(w, http.StatusServiceUnavailable, "no model available for this request")
		case errors.Is(err, engine.ErrDispatchFailed):
			utils.RespondWithError(w, http.StatusBadGateway, "model invocation failed")
		default:
			utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	d.enqueueForExport(r, auditID)

	utils.RespondWithJSON(w, http.StatusOK, chatResponse{
		Text:       result.Text,
		AuditID:    auditID,
		Assessment: result.Assessment,
		Decision:   result.Decision,
		Cost:       result.Cost,
		Trust:      result.Trust,
	})
}

// enqueueForExport feeds the freshly recorded entry to the export pipeline.
// The ledger stays authoritative, so a failed enqueue only costs an export.
func (d *Dependencies) enqueueForExport(r *http.Request, auditID uuid.UUID) {
	if d.Exporter == nil {
		return
	}
	ctx := r.Context()
	entry, err := d.Ledger.Get(ctx, auditID)
	if err != nil {
		d.Logger.Warn("failed to load entry for export", "auditId", auditID, "error", err)
		return
	}
	if err := d.Exporter.Enqueue(ctx, entry); err != nil {
		d.Logger.Warn("failed to enqueue entry for export", "auditId", auditID, "error", err)
	}
}

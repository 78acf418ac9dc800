package httpapi

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"trust_gateway/internal/ledger"
	"trust_gateway/internal/utils"
)

// handleAuditLookup returns the stored audit entry for one request id.
func (d *Dependencies) handleAuditLookup(w http.ResponseWriter, r *http.Request) {
	auditID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid audit id")
		return
	}

	entry, err := d.Ledger.Get(r.Context(), auditID)
	if err != nil {
		if errors.Is(err, ledger.ErrAuditEntryNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "audit entry not found")
			return
		}
		d.Logger.Error("audit lookup failed", "auditId", auditID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, entry)
}

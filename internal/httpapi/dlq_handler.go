package httpapi

import (
	"net/http"
	"strconv"

	"trust_gateway/internal/utils"
)

// handleDeadLetterList returns entries that exhausted their export retries.
func (d *Dependencies) handleDeadLetterList(w http.ResponseWriter, r *http.Request) {
	if d.Exporter == nil {
		utils.RespondWithError(w, http.StatusNotFound, "export pipeline disabled")
		return
	}

	maxItems := 100
	if v := r.URL.Query().Get("max"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid 'max' parameter")
			return
		}
		maxItems = parsed
	}

	items, err := d.Exporter.DeadLetterItems(r.Context(), maxItems)
	if err != nil {
		d.Logger.Error("dead letter list failed", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

// handleDeadLetterRetry re-enqueues one dead letter item for export.
func (d *Dependencies) handleDeadLetterRetry(w http.ResponseWriter, r *http.Request) {
	if d.Exporter == nil {
		utils.RespondWithError(w, http.StatusNotFound, "export pipeline disabled")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "missing item id")
		return
	}

	if err := d.Exporter.RetryDeadLetterItem(r.Context(), id); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "item not found in dead letter queue")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "requeued"})
}

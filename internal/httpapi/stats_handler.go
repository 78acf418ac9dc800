package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"trust_gateway/internal/utils"
)

// handleSavings returns the savings counters for one month. Defaults to the
// current month when year/month query parameters are absent.
func (d *Dependencies) handleSavings(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	year, month := now.Year(), int(now.Month())

	if v := r.URL.Query().Get("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid 'year' parameter")
			return
		}
		year = parsed
	}
	if v := r.URL.Query().Get("month"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 12 {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid 'month' parameter")
			return
		}
		month = parsed
	}

	summary, err := d.Stats.Summary(r.Context(), year, month)
	if err != nil {
		d.Logger.Error("savings summary failed", "year", year, "month", month, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, summary)
}

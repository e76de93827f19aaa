package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hollyoak/chorebid/internal/auction"
	"github.com/hollyoak/chorebid/internal/auth"
)

// AuctionHandler is a thin JSON layer over the auction engine; all the
// business rules live there.
type AuctionHandler struct {
	engine *auction.Engine
}

func NewAuctionHandler(e *auction.Engine) *AuctionHandler {
	return &AuctionHandler{engine: e}
}

func (h *AuctionHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	weekStart, err := parseWeekParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "week must be YYYY-MM-DD"})
		return
	}

	views, err := h.engine.ListWeek(ac, weekStart)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *AuctionHandler) CreateWeek(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		WeekStart     string              `json:"week_start"`
		DurationHours int                 `json:"duration_hours"`
		ChoreIDs      []int64             `json:"chore_ids"`
		NewChores     []auction.ChoreSpec `json:"new_chores"`
		AllChores     bool                `json:"all_chores"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	weekStart, err := time.Parse("2006-01-02", req.WeekStart)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "week_start must be YYYY-MM-DD"})
		return
	}

	if req.AllChores {
		created, err := h.engine.CreateWeekAll(ac, weekStart, req.DurationHours)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
		return
	}

	created, err := h.engine.CreateWeek(ac, auction.CreateWeekInput{
		WeekStart:     weekStart,
		DurationHours: req.DurationHours,
		ChoreIDs:      req.ChoreIDs,
		NewChores:     req.NewChores,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *AuctionHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		Points int `json:"points"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	bid, err := h.engine.PlaceBid(ac, id, req.Points)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

func (h *AuctionHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	weekStart, err := parseWeekParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "week must be YYYY-MM-DD"})
		return
	}

	results, err := h.engine.FinalizeWeek(ac, weekStart)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *AuctionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	weekStart, err := parseWeekParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "week must be YYYY-MM-DD"})
		return
	}

	n, err := h.engine.StopWeek(ac, weekStart)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stopped": n})
}

func (h *AuctionHandler) DeleteWeek(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	weekStart, err := parseWeekParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "week must be YYYY-MM-DD"})
		return
	}

	n, err := h.engine.DeleteWeek(ac, weekStart)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

// parseWeekParam reads the week query parameter, defaulting to now; the
// engine normalizes to the family's week start either way.
func parseWeekParam(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("week")
	if v == "" {
		return time.Now(), nil
	}
	return time.Parse("2006-01-02", v)
}

package handler

import (
	"net/http"

	"github.com/hollyoak/chorebid/internal/auth"
	"github.com/hollyoak/chorebid/internal/model"
	"github.com/hollyoak/chorebid/internal/store"
)

type PointsHandler struct {
	points *store.PointsStore
}

func NewPointsHandler(ps *store.PointsStore) *PointsHandler {
	return &PointsHandler{points: ps}
}

// Leaderboard ranks the family's members by total points.
func (h *PointsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	entries, err := h.points.Leaderboard(ac.FamilyID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load leaderboard"})
		return
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// History lists the caller's own ledger entries, newest first.
func (h *PointsHandler) History(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	entries, err := h.points.ListByUser(ac.UserID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load points history"})
		return
	}
	if entries == nil {
		entries = []model.PointsEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/hollyoak/chorebid/internal/auth"
	"github.com/hollyoak/chorebid/internal/model"
	"github.com/hollyoak/chorebid/internal/store"
)

const defaultActivityLimit = 50

type ActivityHandler struct {
	activity *store.ActivityStore
}

func NewActivityHandler(as *store.ActivityStore) *ActivityHandler {
	return &ActivityHandler{activity: as}
}

func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	limit := defaultActivityLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	entries, err := h.activity.ListByFamily(ac.FamilyID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list activity"})
		return
	}
	if entries == nil {
		entries = []model.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

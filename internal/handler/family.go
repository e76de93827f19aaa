package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hollyoak/chorebid/internal/apperr"
	"github.com/hollyoak/chorebid/internal/auth"
	"github.com/hollyoak/chorebid/internal/model"
	"github.com/hollyoak/chorebid/internal/store"
)

type FamilyHandler struct {
	families *store.FamilyStore
}

func NewFamilyHandler(fs *store.FamilyStore) *FamilyHandler {
	return &FamilyHandler{families: fs}
}

// Get returns the caller's family. The invite code is only included for
// admins.
func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	family, err := h.families.GetByID(ac.FamilyID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load family"})
		return
	}
	if family == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "family not found"})
		return
	}
	if !ac.IsAdmin() {
		family.InviteCode = ""
	}
	writeJSON(w, http.StatusOK, family)
}

func (h *FamilyHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		Name         string `json:"name"`
		Timezone     string `json:"timezone"`
		WeekStartsOn *int   `json:"week_starts_on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	existing, err := h.families.GetByID(ac.FamilyID)
	if err != nil || existing == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load family"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		req.Name = existing.Name
	}
	if req.Timezone == "" {
		req.Timezone = existing.Timezone
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown timezone"})
		return
	}
	weekStartsOn := existing.WeekStartsOn
	if req.WeekStartsOn != nil {
		weekStartsOn = *req.WeekStartsOn
	}
	if weekStartsOn < 0 || weekStartsOn > 6 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "week_starts_on must be 0 (Sunday) through 6 (Saturday)"})
		return
	}

	family, err := h.families.Update(ac.FamilyID, req.Name, req.Timezone, weekStartsOn)
	if err != nil {
		log.Printf("update family: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update family"})
		return
	}
	writeJSON(w, http.StatusOK, family)
}

func (h *FamilyHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	members, err := h.families.ListMembers(ac.FamilyID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list members"})
		return
	}
	if members == nil {
		members = []model.FamilyMember{}
	}
	writeJSON(w, http.StatusOK, members)
}

// UpdateMember changes a member's role or birth date. Role changes take
// the owner; birth date changes take an admin. The owner role itself
// cannot be granted or revoked here.
func (h *FamilyHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	userID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		Role      string  `json:"role"`
		BirthDate *string `json:"birth_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	member, err := h.families.GetMember(ac.FamilyID, userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load member"})
		return
	}
	if member == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "member not found"})
		return
	}

	if req.Role != "" {
		if !ac.IsOwner() {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the owner can change roles"})
			return
		}
		if req.Role != model.RoleMember && req.Role != model.RoleAdmin {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "role must be member or admin"})
			return
		}
		if member.Role == model.RoleOwner {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "the owner's role cannot be changed"})
			return
		}
		if member, err = h.families.UpdateMemberRole(ac.FamilyID, userID, req.Role); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update role"})
			return
		}
	}

	if req.BirthDate != nil {
		var birthDate *time.Time
		if *req.BirthDate != "" {
			d, err := time.Parse("2006-01-02", *req.BirthDate)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "birth_date must be YYYY-MM-DD"})
				return
			}
			birthDate = &d
		}
		if member, err = h.families.UpdateMemberBirthDate(ac.FamilyID, userID, birthDate); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update birth date"})
			return
		}
	}

	writeJSON(w, http.StatusOK, member)
}

func (h *FamilyHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	userID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	member, err := h.families.GetMember(ac.FamilyID, userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load member"})
		return
	}
	if member == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "member not found"})
		return
	}
	if member.Role == model.RoleOwner {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "the owner cannot be removed"})
		return
	}

	if err := h.families.RemoveMember(ac.FamilyID, userID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to remove member"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an engine error's kind to an HTTP status. Internal
// errors get a generic message; everything else passes its message on.
func writeError(w http.ResponseWriter, err error) {
	var status int
	switch apperr.KindOf(err) {
	case apperr.Unauthorized:
		status = http.StatusUnauthorized
	case apperr.Forbidden:
		status = http.StatusForbidden
	case apperr.Invalid:
		status = http.StatusBadRequest
	case apperr.Conflict:
		status = http.StatusConflict
	case apperr.NotFound:
		status = http.StatusNotFound
	default:
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": apperr.Message(err)})
}

package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hollyoak/chorebid/internal/activity"
	"github.com/hollyoak/chorebid/internal/auth"
	"github.com/hollyoak/chorebid/internal/model"
	"github.com/hollyoak/chorebid/internal/notify"
	"github.com/hollyoak/chorebid/internal/store"
	"github.com/hollyoak/chorebid/internal/week"
)

type ChoreHandler struct {
	chores      *store.ChoreStore
	assignments *store.AssignmentStore
	families    *store.FamilyStore
	points      *store.PointsStore
	activity    activity.Recorder
	notify      notify.Notifier
}

func NewChoreHandler(
	cs *store.ChoreStore,
	as *store.AssignmentStore,
	fs *store.FamilyStore,
	ps *store.PointsStore,
	rec activity.Recorder,
	n notify.Notifier,
) *ChoreHandler {
	return &ChoreHandler{
		chores:      cs,
		assignments: as,
		families:    fs,
		points:      ps,
		activity:    rec,
		notify:      n,
	}
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	chores, err := h.chores.ListByFamily(ac.FamilyID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list chores"})
		return
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	writeJSON(w, http.StatusOK, chores)
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Points      int    `json:"points"`
		MinAge      int    `json:"min_age"`
		Difficulty  string `json:"difficulty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.Points <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "points must be positive"})
		return
	}
	if req.MinAge < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "min_age cannot be negative"})
		return
	}
	if req.Difficulty == "" {
		req.Difficulty = "medium"
	}

	chore, err := h.chores.Create(ac.FamilyID, req.Name, req.Description, req.Points, req.MinAge, req.Difficulty, &ac.UserID)
	if err != nil {
		log.Printf("create chore: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create chore"})
		return
	}

	h.activity.Record(ac.FamilyID, &ac.UserID, "chore_created", chore.Name)
	writeJSON(w, http.StatusCreated, chore)
}

func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.getFamilyChore(ac, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get chore"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "chore not found"})
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Points      int    `json:"points"`
		MinAge      *int   `json:"min_age"`
		Difficulty  string `json:"difficulty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		req.Name = existing.Name
	}
	if req.Points == 0 {
		req.Points = existing.Points
	}
	if req.Points < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "points must be positive"})
		return
	}
	// An omitted min_age keeps the existing age gate; only an explicit
	// value changes it.
	minAge := existing.MinAge
	if req.MinAge != nil {
		if *req.MinAge < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "min_age cannot be negative"})
			return
		}
		minAge = *req.MinAge
	}
	if req.Difficulty == "" {
		req.Difficulty = existing.Difficulty
	}

	chore, err := h.chores.Update(id, req.Name, req.Description, req.Points, minAge, req.Difficulty)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update chore"})
		return
	}
	writeJSON(w, http.StatusOK, chore)
}

// Delete removes a chore. Assignments, auctions, and bids cascade away
// with it; ledger entries survive since points were genuinely earned.
func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.getFamilyChore(ac, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get chore"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "chore not found"})
		return
	}

	if err := h.chores.Delete(id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete chore"})
		return
	}
	h.activity.Record(ac.FamilyID, &ac.UserID, "chore_deleted", existing.Name)
	w.WriteHeader(http.StatusNoContent)
}

// ListAssignments returns the family's assignments for a date range,
// defaulting to the current week.
func (h *ChoreHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	family, err := h.families.GetByID(ac.FamilyID)
	if err != nil || family == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load family"})
		return
	}

	start := week.Start(week.LocalDate(time.Now(), family.Timezone), family.WeekStartsOn)
	end := start.AddDate(0, 0, 6)
	if v := r.URL.Query().Get("start"); v != "" {
		if start, err = time.Parse("2006-01-02", v); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start must be YYYY-MM-DD"})
			return
		}
		end = start.AddDate(0, 0, 6)
	}
	if v := r.URL.Query().Get("end"); v != "" {
		if end, err = time.Parse("2006-01-02", v); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end must be YYYY-MM-DD"})
			return
		}
	}

	assignments, err := h.assignments.ListByFamilyDateRange(ac.FamilyID, start, end)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list assignments"})
		return
	}
	if assignments == nil {
		assignments = []model.ChoreAssignment{}
	}
	writeJSON(w, http.StatusOK, assignments)
}

func (h *ChoreHandler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		ChoreID int64  `json:"chore_id"`
		UserID  int64  `json:"user_id"`
		Date    string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	chore, err := h.getFamilyChore(ac, req.ChoreID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get chore"})
		return
	}
	if chore == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "chore not found"})
		return
	}
	member, err := h.families.GetMember(ac.FamilyID, req.UserID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get member"})
		return
	}
	if member == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "member not found"})
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}

	asg, err := h.assignments.Create(req.ChoreID, ac.FamilyID, req.UserID, date)
	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "that chore is already assigned to them for that date"})
		return
	}
	writeJSON(w, http.StatusCreated, asg)
}

// Complete marks an assignment done and grants the chore's points to the
// assignee. An assignment pays out at most once; completing an already
// completed assignment is rejected rather than granted again.
func (h *ChoreHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	asg, err := h.getFamilyAssignment(ac, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get assignment"})
		return
	}
	if asg == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "assignment not found"})
		return
	}
	if asg.UserID != ac.UserID && !ac.IsAdmin() {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the assignee can complete this chore"})
		return
	}
	if asg.Completed {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "chore is already completed"})
		return
	}

	chore, err := h.chores.GetByID(asg.ChoreID)
	if err != nil || chore == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get chore"})
		return
	}
	family, err := h.families.GetByID(ac.FamilyID)
	if err != nil || family == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load family"})
		return
	}

	now := time.Now()
	if err := h.assignments.MarkCompleted(id, now); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to complete chore"})
		return
	}

	weekStart := week.Start(asg.Date, family.WeekStartsOn)
	entry, err := h.points.Grant(asg.UserID, ac.FamilyID, &asg.ChoreID, chore.Points,
		"Completed: "+chore.Name, asg.Date, weekStart)
	if err != nil {
		// Roll the completion back so the retry can pay out.
		log.Printf("grant points: %v", err)
		if err := h.assignments.MarkIncomplete(id); err != nil {
			log.Printf("revert completion after failed grant: %v", err)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to grant points"})
		return
	}

	h.activity.Record(ac.FamilyID, &asg.UserID, "chore_completed", chore.Name)
	h.notify.Family(ac.FamilyID, ac.UserID, "assignment", "completed", id, map[string]any{
		"points": chore.Points,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"assignment_id": id,
		"points":        entry.Points,
	})
}

// Revert undoes a completion and reverses the granted points. Only an
// admin or owner other than the assignee may revert; self-service undo
// would let a member farm the grant/revert cycle.
func (h *ChoreHandler) Revert(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	asg, err := h.getFamilyAssignment(ac, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get assignment"})
		return
	}
	if asg == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "assignment not found"})
		return
	}
	if !asg.Completed {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "chore is not completed"})
		return
	}
	if !ac.IsAdmin() || ac.UserID == asg.UserID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only a different admin can revert a completion"})
		return
	}

	entry, err := h.points.FindByChoreDate(asg.UserID, asg.ChoreID, asg.Date)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to find points entry"})
		return
	}
	if entry != nil {
		if err := h.points.Reverse(entry.ID); err != nil {
			log.Printf("reverse points: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to reverse points"})
			return
		}
	}
	if err := h.assignments.MarkIncomplete(id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to revert chore"})
		return
	}

	h.activity.Record(ac.FamilyID, &ac.UserID, "chore_reverted",
		"assignment reverted for user")
	h.notify.Family(ac.FamilyID, ac.UserID, "assignment", "reverted", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChoreHandler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	asg, err := h.getFamilyAssignment(ac, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get assignment"})
		return
	}
	if asg == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "assignment not found"})
		return
	}
	if asg.Completed {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "completed assignments cannot be deleted, revert first"})
		return
	}

	if err := h.assignments.Delete(id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete assignment"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChoreHandler) getFamilyChore(ac auth.AuthContext, id int64) (*model.Chore, error) {
	chore, err := h.chores.GetByID(id)
	if err != nil {
		return nil, err
	}
	if chore == nil || chore.FamilyID != ac.FamilyID {
		return nil, nil
	}
	return chore, nil
}

func (h *ChoreHandler) getFamilyAssignment(ac auth.AuthContext, id int64) (*model.ChoreAssignment, error) {
	asg, err := h.assignments.GetByID(id)
	if err != nil {
		return nil, err
	}
	if asg == nil || asg.FamilyID != ac.FamilyID {
		return nil, nil
	}
	return asg, nil
}

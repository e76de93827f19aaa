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

type RewardHandler struct {
	rewards  *store.RewardStore
	families *store.FamilyStore
	points   *store.PointsStore
	activity activity.Recorder
	notify   notify.Notifier
}

func NewRewardHandler(rs *store.RewardStore, fs *store.FamilyStore, ps *store.PointsStore, rec activity.Recorder, n notify.Notifier) *RewardHandler {
	return &RewardHandler{rewards: rs, families: fs, points: ps, activity: rec, notify: n}
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	rewards, err := h.rewards.ListByFamily(ac.FamilyID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list rewards"})
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		PointCost   int    `json:"point_cost"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	if req.PointCost <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "point_cost must be positive"})
		return
	}

	reward, err := h.rewards.Create(ac.FamilyID, req.Title, req.Description, req.PointCost, true)
	if err != nil {
		log.Printf("create reward: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create reward"})
		return
	}
	writeJSON(w, http.StatusCreated, reward)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.getFamilyReward(ac, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get reward"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reward not found"})
		return
	}

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		PointCost   int    `json:"point_cost"`
		Active      *bool  `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		req.Title = existing.Title
	}
	if req.PointCost == 0 {
		req.PointCost = existing.PointCost
	}
	if req.PointCost < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "point_cost must be positive"})
		return
	}
	active := existing.Active
	if req.Active != nil {
		active = *req.Active
	}

	reward, err := h.rewards.Update(id, req.Title, req.Description, req.PointCost, active)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update reward"})
		return
	}
	writeJSON(w, http.StatusOK, reward)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.getFamilyReward(ac, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get reward"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reward not found"})
		return
	}

	if err := h.rewards.Delete(id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete reward"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Redeem spends the caller's points on a reward. The cost is posted to
// the ledger as a negative entry, keeping the total-equals-sum invariant.
func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	reward, err := h.getFamilyReward(ac, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get reward"})
		return
	}
	if reward == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reward not found"})
		return
	}
	if !reward.Active {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "reward is not available"})
		return
	}

	member, err := h.families.GetMember(ac.FamilyID, ac.UserID)
	if err != nil || member == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load member"})
		return
	}
	if member.TotalPoints < reward.PointCost {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "not enough points"})
		return
	}

	family, err := h.families.GetByID(ac.FamilyID)
	if err != nil || family == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load family"})
		return
	}
	today := week.LocalDate(time.Now(), family.Timezone)
	weekStart := week.Start(today, family.WeekStartsOn)

	if _, err := h.points.Grant(ac.UserID, ac.FamilyID, nil, -reward.PointCost,
		"Redeemed: "+reward.Title, today, weekStart); err != nil {
		log.Printf("spend points: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to spend points"})
		return
	}

	redemption, err := h.rewards.CreateRedemption(id, ac.UserID, reward.PointCost)
	if err != nil {
		log.Printf("record redemption: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to record redemption"})
		return
	}

	h.activity.Record(ac.FamilyID, &ac.UserID, "reward_redeemed", reward.Title)
	h.notify.Family(ac.FamilyID, ac.UserID, "reward", "redeemed", id, map[string]any{
		"points_spent": reward.PointCost,
	})
	writeJSON(w, http.StatusCreated, redemption)
}

func (h *RewardHandler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	redemptions, err := h.rewards.ListRedemptionsByUser(ac.UserID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list redemptions"})
		return
	}
	if redemptions == nil {
		redemptions = []model.RewardRedemption{}
	}
	writeJSON(w, http.StatusOK, redemptions)
}

func (h *RewardHandler) getFamilyReward(ac auth.AuthContext, id int64) (*model.Reward, error) {
	reward, err := h.rewards.GetByID(id)
	if err != nil {
		return nil, err
	}
	if reward == nil || reward.FamilyID != ac.FamilyID {
		return nil, nil
	}
	return reward, nil
}

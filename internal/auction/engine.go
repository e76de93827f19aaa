// Package auction runs weekly sealed low-bid chore auctions. Family
// members bid the points they would accept to own a chore for the week;
// the lowest bid wins and the winner is assigned the chore every day of
// that week. Chores nobody bids on get a point bump and an extended
// deadline so they become more attractive next round.
package auction

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/hollyoak/chorebid/internal/activity"
	"github.com/hollyoak/chorebid/internal/apperr"
	"github.com/hollyoak/chorebid/internal/auth"
	"github.com/hollyoak/chorebid/internal/model"
	"github.com/hollyoak/chorebid/internal/notify"
	"github.com/hollyoak/chorebid/internal/store"
	"github.com/hollyoak/chorebid/internal/week"
)

// unbidMultiplier is applied to a chore's points when its auction closes
// with no bids, rounded to the nearest whole point.
const unbidMultiplier = 1.10

// unbidExtension is how much longer an unbid auction stays open.
const unbidExtension = 24 * time.Hour

type Engine struct {
	auctions *store.AuctionStore
	chores   *store.ChoreStore
	families *store.FamilyStore
	activity activity.Recorder
	notify   notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewEngine(
	auctions *store.AuctionStore,
	chores *store.ChoreStore,
	families *store.FamilyStore,
	rec activity.Recorder,
	n notify.Notifier,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		auctions: auctions,
		chores:   chores,
		families: families,
		activity: rec,
		notify:   n,
		logger:   logger.With("component", "auction"),
		now:      time.Now,
	}
}

// ChoreSpec defines a chore created on the fly as part of a new auction
// week.
type ChoreSpec struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	MinAge      int    `json:"min_age"`
	Difficulty  string `json:"difficulty"`
}

// CreateWeekInput selects which chores go up for auction. ChoreIDs must
// already belong to the family; NewChores are created first and then
// auctioned alongside them.
type CreateWeekInput struct {
	WeekStart     time.Time   `json:"week_start"`
	DurationHours int         `json:"duration_hours"`
	ChoreIDs      []int64     `json:"chore_ids"`
	NewChores     []ChoreSpec `json:"new_chores"`
}

// CreateWeek opens an auction round for the given week. Only owners may
// hand-pick the chore list. The round is rejected wholesale if the week
// already has auctions.
func (e *Engine) CreateWeek(caller auth.AuthContext, in CreateWeekInput) ([]*model.Auction, error) {
	if !caller.IsOwner() {
		return nil, apperr.New(apperr.Forbidden, "only the family owner can start an auction week")
	}
	if in.DurationHours <= 0 {
		return nil, apperr.New(apperr.Invalid, "auction duration must be at least one hour")
	}
	if len(in.ChoreIDs) == 0 && len(in.NewChores) == 0 {
		return nil, apperr.New(apperr.Invalid, "an auction week needs at least one chore")
	}

	family, err := e.families.GetByID(caller.FamilyID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "load family")
	}
	if family == nil {
		return nil, apperr.New(apperr.NotFound, "family not found")
	}

	weekStart := week.Start(in.WeekStart, family.WeekStartsOn)

	count, err := e.auctions.CountByFamilyWeek(caller.FamilyID, weekStart)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "count auctions")
	}
	if count > 0 {
		return nil, apperr.New(apperr.Conflict, "auctions already exist for the week of %s", weekStart.Format("2006-01-02"))
	}

	choreIDs := make([]int64, 0, len(in.ChoreIDs)+len(in.NewChores))
	for _, id := range in.ChoreIDs {
		chore, err := e.chores.GetByID(id)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "load chore")
		}
		if chore == nil || chore.FamilyID != caller.FamilyID {
			return nil, apperr.New(apperr.NotFound, "chore %d not found", id)
		}
		choreIDs = append(choreIDs, id)
	}
	for _, spec := range in.NewChores {
		if spec.Title == "" {
			return nil, apperr.New(apperr.Invalid, "chore title is required")
		}
		if spec.Points <= 0 {
			return nil, apperr.New(apperr.Invalid, "chore points must be positive")
		}
		chore, err := e.chores.Create(caller.FamilyID, spec.Title, spec.Description,
			spec.Points, spec.MinAge, spec.Difficulty, &caller.UserID)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "create chore")
		}
		choreIDs = append(choreIDs, chore.ID)
	}

	endTime := e.now().Add(time.Duration(in.DurationHours) * time.Hour)

	created := make([]*model.Auction, 0, len(choreIDs))
	for _, choreID := range choreIDs {
		chore, err := e.chores.GetByID(choreID)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "load chore")
		}
		a, err := e.auctions.Create(choreID, caller.FamilyID, weekStart, chore.Points, endTime)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "create auction")
		}
		created = append(created, a)
	}

	e.activity.Record(caller.FamilyID, &caller.UserID, "auction_week_created",
		fmt.Sprintf("%d auctions for the week of %s", len(created), weekStart.Format("2006-01-02")))
	e.notify.Family(caller.FamilyID, 0, "auction", "week_created", 0, map[string]any{
		"week_start": weekStart.Format("2006-01-02"),
		"count":      len(created),
	})

	return created, nil
}

// CreateWeekAll opens an auction round covering every chore the family
// has defined. Admins and owners may use it.
func (e *Engine) CreateWeekAll(caller auth.AuthContext, weekStart time.Time, durationHours int) ([]*model.Auction, error) {
	if !caller.IsAdmin() {
		return nil, apperr.New(apperr.Forbidden, "only admins can start an auction week")
	}
	chores, err := e.chores.ListByFamily(caller.FamilyID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list chores")
	}
	if len(chores) == 0 {
		return nil, apperr.New(apperr.Invalid, "the family has no chores to auction")
	}
	ids := make([]int64, len(chores))
	for i, c := range chores {
		ids[i] = c.ID
	}

	// Owner check in CreateWeek is the stricter path; route through the
	// same validation with an elevated caller.
	elevated := caller
	elevated.Role = model.RoleOwner
	return e.CreateWeek(elevated, CreateWeekInput{
		WeekStart:     weekStart,
		DurationHours: durationHours,
		ChoreIDs:      ids,
	})
}

// PlaceBid records or replaces the caller's bid on an auction. Each
// member holds at most one bid per auction, and a replacement must beat
// the current lowest bid.
func (e *Engine) PlaceBid(caller auth.AuthContext, auctionID int64, points int) (*model.Bid, error) {
	a, err := e.auctions.GetByID(auctionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "load auction")
	}
	if a == nil || a.FamilyID != caller.FamilyID {
		return nil, apperr.New(apperr.NotFound, "auction not found")
	}

	if a.Status != model.AuctionActive || !e.now().Before(a.EndTime) {
		return nil, apperr.New(apperr.Conflict, "this auction is no longer open for bidding")
	}

	chore, err := e.chores.GetByID(a.ChoreID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "load chore")
	}
	if chore != nil && chore.MinAge > 0 {
		member, err := e.families.GetMember(caller.FamilyID, caller.UserID)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "load member")
		}
		if member == nil {
			return nil, apperr.New(apperr.Forbidden, "you are not a member of this family")
		}
		age := member.Age(e.now())
		if age < chore.MinAge {
			return nil, apperr.New(apperr.Invalid, "this chore requires a minimum age of %d", chore.MinAge)
		}
	}

	if points <= 0 {
		return nil, apperr.New(apperr.Invalid, "bid must be a positive number of points")
	}
	if points >= a.StartPoints {
		return nil, apperr.New(apperr.Invalid, "bid must be lower than the starting %d points", a.StartPoints)
	}

	lowest, err := e.auctions.LowestBid(auctionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "find lowest bid")
	}
	if lowest != nil && points >= lowest.Points {
		return nil, apperr.New(apperr.Invalid, "bid must be lower than the current lowest bid of %d points", lowest.Points)
	}

	bid, err := e.auctions.UpsertBid(auctionID, caller.UserID, points)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "save bid")
	}

	e.notify.Family(caller.FamilyID, caller.UserID, "auction", "bid_placed", auctionID, map[string]any{
		"points": points,
	})

	return bid, nil
}

// SettleStatus reports what happened to one auction during finalization.
type SettleStatus string

const (
	SettleAssigned SettleStatus = "assigned"
	SettleExtended SettleStatus = "extended"
	SettleFailed   SettleStatus = "failed"
)

// SettleResult is the per-auction outcome of FinalizeWeek.
type SettleResult struct {
	AuctionID  int64        `json:"auction_id"`
	ChoreID    int64        `json:"chore_id"`
	Status     SettleStatus `json:"status"`
	WinnerID   int64        `json:"winner_id,omitempty"`
	WinningBid int          `json:"winning_bid,omitempty"`
	NewPoints  int          `json:"new_points,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// FinalizeWeek settles every active auction in the week. Auctions with
// bids are awarded to the lowest bidder, who gets the chore assigned for
// all seven days. Auctions without bids have their points bumped and
// their deadline extended. Each auction settles independently so one
// failure does not block the rest.
func (e *Engine) FinalizeWeek(caller auth.AuthContext, weekStart time.Time) ([]SettleResult, error) {
	if !caller.IsAdmin() {
		return nil, apperr.New(apperr.Forbidden, "only admins can finalize an auction week")
	}

	family, err := e.families.GetByID(caller.FamilyID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "load family")
	}
	if family == nil {
		return nil, apperr.New(apperr.NotFound, "family not found")
	}
	weekStart = week.Start(weekStart, family.WeekStartsOn)

	active, err := e.auctions.ListActiveByFamilyWeek(caller.FamilyID, weekStart)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list auctions")
	}

	results := make([]SettleResult, 0, len(active))
	assigned, extended := 0, 0
	for i := range active {
		res := e.settleOne(&active[i], weekStart)
		switch res.Status {
		case SettleAssigned:
			assigned++
		case SettleExtended:
			extended++
		case SettleFailed:
			e.logger.Error("auction settlement failed",
				"auction_id", res.AuctionID, "chore_id", res.ChoreID, "error", res.Error)
		}
		results = append(results, res)
	}

	e.activity.Record(caller.FamilyID, &caller.UserID, "auction_week_finalized",
		fmt.Sprintf("%d assigned, %d extended for the week of %s",
			assigned, extended, weekStart.Format("2006-01-02")))
	e.notify.Family(caller.FamilyID, 0, "auction", "week_finalized", 0, map[string]any{
		"week_start": weekStart.Format("2006-01-02"),
		"assigned":   assigned,
		"extended":   extended,
	})

	return results, nil
}

func (e *Engine) settleOne(a *model.Auction, weekStart time.Time) SettleResult {
	res := SettleResult{AuctionID: a.ID, ChoreID: a.ChoreID}

	lowest, err := e.auctions.LowestBid(a.ID)
	if err != nil {
		res.Status = SettleFailed
		res.Error = err.Error()
		return res
	}

	if lowest == nil {
		newPoints := int(math.Round(float64(a.StartPoints) * unbidMultiplier))
		newEnd := a.EndTime.Add(unbidExtension)
		if err := e.auctions.ExtendUnbid(a.ID, a.ChoreID, newPoints, newEnd); err != nil {
			res.Status = SettleFailed
			res.Error = err.Error()
			return res
		}
		res.Status = SettleExtended
		res.NewPoints = newPoints
		return res
	}

	if err := e.auctions.Settle(a.ID, lowest.UserID, week.Days(weekStart)); err != nil {
		res.Status = SettleFailed
		res.Error = err.Error()
		return res
	}
	res.Status = SettleAssigned
	res.WinnerID = lowest.UserID
	res.WinningBid = lowest.Points
	return res
}

// StopWeek closes every active auction in the week without settling.
func (e *Engine) StopWeek(caller auth.AuthContext, weekStart time.Time) (int64, error) {
	if !caller.IsAdmin() {
		return 0, apperr.New(apperr.Forbidden, "only admins can stop an auction week")
	}
	family, err := e.families.GetByID(caller.FamilyID)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "load family")
	}
	if family == nil {
		return 0, apperr.New(apperr.NotFound, "family not found")
	}
	weekStart = week.Start(weekStart, family.WeekStartsOn)

	n, err := e.auctions.StopActiveByFamilyWeek(caller.FamilyID, weekStart)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "stop auctions")
	}
	if n > 0 {
		e.activity.Record(caller.FamilyID, &caller.UserID, "auction_week_stopped",
			fmt.Sprintf("%d auctions stopped for the week of %s", n, weekStart.Format("2006-01-02")))
		e.notify.Family(caller.FamilyID, 0, "auction", "week_stopped", 0, map[string]any{
			"week_start": weekStart.Format("2006-01-02"),
			"count":      n,
		})
	}
	return n, nil
}

// DeleteWeek removes the week's auctions and their bids. Completed
// auctions are kept since their assignments already exist.
func (e *Engine) DeleteWeek(caller auth.AuthContext, weekStart time.Time) (int64, error) {
	if !caller.IsAdmin() {
		return 0, apperr.New(apperr.Forbidden, "only admins can delete an auction week")
	}
	family, err := e.families.GetByID(caller.FamilyID)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "load family")
	}
	if family == nil {
		return 0, apperr.New(apperr.NotFound, "family not found")
	}
	weekStart = week.Start(weekStart, family.WeekStartsOn)

	n, err := e.auctions.DeleteNonCompletedByFamilyWeek(caller.FamilyID, weekStart)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "delete auctions")
	}
	if n > 0 {
		e.activity.Record(caller.FamilyID, &caller.UserID, "auction_week_deleted",
			fmt.Sprintf("%d auctions deleted for the week of %s", n, weekStart.Format("2006-01-02")))
	}
	return n, nil
}

// ListWeek returns the week's auctions with their bids attached.
func (e *Engine) ListWeek(caller auth.AuthContext, weekStart time.Time) ([]*AuctionView, error) {
	family, err := e.families.GetByID(caller.FamilyID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "load family")
	}
	if family == nil {
		return nil, apperr.New(apperr.NotFound, "family not found")
	}
	weekStart = week.Start(weekStart, family.WeekStartsOn)

	auctions, err := e.auctions.ListByFamilyWeek(caller.FamilyID, weekStart)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list auctions")
	}

	views := make([]*AuctionView, 0, len(auctions))
	for _, a := range auctions {
		bids, err := e.auctions.ListBids(a.ID)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "list bids")
		}
		chore, err := e.chores.GetByID(a.ChoreID)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "load chore")
		}
		v := &AuctionView{Auction: a, Bids: bids}
		if chore != nil {
			v.ChoreTitle = chore.Name
		}
		views = append(views, v)
	}
	return views, nil
}

// AuctionView bundles an auction with its chore title and bid history
// for API responses.
type AuctionView struct {
	model.Auction
	ChoreTitle string      `json:"chore_title"`
	Bids       []model.Bid `json:"bids"`
}

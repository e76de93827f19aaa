package auction

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hollyoak/chorebid/internal/activity"
	"github.com/hollyoak/chorebid/internal/apperr"
	"github.com/hollyoak/chorebid/internal/auth"
	"github.com/hollyoak/chorebid/internal/database"
	"github.com/hollyoak/chorebid/internal/model"
	"github.com/hollyoak/chorebid/internal/notify"
	"github.com/hollyoak/chorebid/internal/store"
)

type fixture struct {
	engine      *Engine
	auctions    *store.AuctionStore
	chores      *store.ChoreStore
	assignments *store.AssignmentStore
	families    *store.FamilyStore
	users       *store.UserStore

	family *model.Family
	owner  auth.AuthContext
	alice  auth.AuthContext
	bob    auth.AuthContext
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		auctions:    store.NewAuctionStore(db),
		chores:      store.NewChoreStore(db),
		assignments: store.NewAssignmentStore(db),
		families:    store.NewFamilyStore(db),
	}
	f.users = store.NewUserStore(db)

	family, err := f.families.Create("Hollyoak", "America/Los_Angeles", 1)
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	f.family = family

	addMember := func(email, name, role string, birthDate *time.Time) auth.AuthContext {
		u, err := f.users.Create(email, name, "hash")
		if err != nil {
			t.Fatalf("create user %s: %v", email, err)
		}
		if _, err := f.families.AddMember(family.ID, u.ID, role, birthDate); err != nil {
			t.Fatalf("add member %s: %v", email, err)
		}
		return auth.AuthContext{UserID: u.ID, FamilyID: family.ID, Role: role}
	}

	adult := time.Date(1990, 6, 1, 0, 0, 0, 0, time.UTC)
	f.owner = addMember("owner@example.com", "Owner", model.RoleOwner, &adult)
	f.alice = addMember("alice@example.com", "Alice", model.RoleMember, &adult)
	f.bob = addMember("bob@example.com", "Bob", model.RoleMember, &adult)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.engine = NewEngine(f.auctions, f.chores, f.families, activity.Nop{}, notify.Nop{}, logger)
	return f
}

func (f *fixture) createChore(t *testing.T, title string, points, minAge int) *model.Chore {
	t.Helper()
	c, err := f.chores.Create(f.family.ID, title, "", points, minAge, "medium", &f.owner.UserID)
	if err != nil {
		t.Fatalf("create chore %s: %v", title, err)
	}
	return c
}

var testWeek = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) // a Monday

func TestCreateWeek(t *testing.T) {
	f := newFixture(t)
	dishes := f.createChore(t, "Dishes", 50, 0)
	laundry := f.createChore(t, "Laundry", 30, 0)

	created, err := f.engine.CreateWeek(f.owner, CreateWeekInput{
		WeekStart:     testWeek,
		DurationHours: 48,
		ChoreIDs:      []int64{dishes.ID, laundry.ID},
	})
	if err != nil {
		t.Fatalf("CreateWeek: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created %d auctions, want 2", len(created))
	}
	for _, a := range created {
		if a.Status != model.AuctionActive {
			t.Errorf("auction %d status = %s, want active", a.ID, a.Status)
		}
	}
	if created[0].StartPoints != 50 {
		t.Errorf("start points = %d, want chore points 50", created[0].StartPoints)
	}
}

func TestCreateWeekNormalizesToWeekStart(t *testing.T) {
	f := newFixture(t)
	chore := f.createChore(t, "Dishes", 50, 0)

	// A Thursday inside the same week should land on the Monday.
	thursday := testWeek.AddDate(0, 0, 3)
	created, err := f.engine.CreateWeek(f.owner, CreateWeekInput{
		WeekStart:     thursday,
		DurationHours: 24,
		ChoreIDs:      []int64{chore.ID},
	})
	if err != nil {
		t.Fatalf("CreateWeek: %v", err)
	}
	if !created[0].WeekStart.Equal(testWeek) {
		t.Errorf("week start = %v, want %v", created[0].WeekStart, testWeek)
	}
}

func TestCreateWeekRejectsDuplicateWeek(t *testing.T) {
	f := newFixture(t)
	dishes := f.createChore(t, "Dishes", 50, 0)
	laundry := f.createChore(t, "Laundry", 30, 0)

	in := CreateWeekInput{WeekStart: testWeek, DurationHours: 24, ChoreIDs: []int64{dishes.ID}}
	if _, err := f.engine.CreateWeek(f.owner, in); err != nil {
		t.Fatalf("first CreateWeek: %v", err)
	}

	in.ChoreIDs = []int64{laundry.ID}
	_, err := f.engine.CreateWeek(f.owner, in)
	if apperr.KindOf(err) != apperr.Conflict {
		t.Fatalf("second CreateWeek error kind = %v, want Conflict", apperr.KindOf(err))
	}

	// The rejection must be wholesale, leaving only the first auction.
	count, err := f.auctions.CountByFamilyWeek(f.family.ID, testWeek)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("auction count = %d, want 1", count)
	}
}

func TestCreateWeekRequiresOwner(t *testing.T) {
	f := newFixture(t)
	chore := f.createChore(t, "Dishes", 50, 0)

	_, err := f.engine.CreateWeek(f.alice, CreateWeekInput{
		WeekStart: testWeek, DurationHours: 24, ChoreIDs: []int64{chore.ID},
	})
	if apperr.KindOf(err) != apperr.Forbidden {
		t.Fatalf("error kind = %v, want Forbidden", apperr.KindOf(err))
	}
}

func TestCreateWeekWithNewChores(t *testing.T) {
	f := newFixture(t)

	created, err := f.engine.CreateWeek(f.owner, CreateWeekInput{
		WeekStart:     testWeek,
		DurationHours: 24,
		NewChores:     []ChoreSpec{{Title: "Vacuum", Points: 40, Difficulty: "hard"}},
	})
	if err != nil {
		t.Fatalf("CreateWeek: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created %d auctions, want 1", len(created))
	}
	chore, err := f.chores.GetByID(created[0].ChoreID)
	if err != nil || chore == nil {
		t.Fatalf("load created chore: %v", err)
	}
	if chore.Name != "Vacuum" || chore.Points != 40 {
		t.Errorf("chore = %q/%d, want Vacuum/40", chore.Name, chore.Points)
	}
}

func TestPlaceBid(t *testing.T) {
	f := newFixture(t)
	chore := f.createChore(t, "Dishes", 50, 0)
	created, err := f.engine.CreateWeek(f.owner, CreateWeekInput{
		WeekStart: testWeek, DurationHours: 24, ChoreIDs: []int64{chore.ID},
	})
	if err != nil {
		t.Fatalf("CreateWeek: %v", err)
	}
	auctionID := created[0].ID

	bid, err := f.engine.PlaceBid(f.alice, auctionID, 40)
	if err != nil {
		t.Fatalf("PlaceBid: %v", err)
	}
	if bid.Points != 40 || bid.UserID != f.alice.UserID {
		t.Errorf("bid = %+v, want 40 points by alice", bid)
	}

	t.Run("must undercut lowest", func(t *testing.T) {
		_, err := f.engine.PlaceBid(f.bob, auctionID, 40)
		if apperr.KindOf(err) != apperr.Invalid {
			t.Fatalf("tie bid error kind = %v, want Invalid", apperr.KindOf(err))
		}
		_, err = f.engine.PlaceBid(f.bob, auctionID, 45)
		if apperr.KindOf(err) != apperr.Invalid {
			t.Fatalf("higher bid error kind = %v, want Invalid", apperr.KindOf(err))
		}
	})

	t.Run("replaces own bid", func(t *testing.T) {
		bid2, err := f.engine.PlaceBid(f.alice, auctionID, 35)
		if err != nil {
			t.Fatalf("rebid: %v", err)
		}
		if bid2.ID != bid.ID {
			t.Errorf("rebid created new row %d, want update of %d", bid2.ID, bid.ID)
		}
		n, err := f.auctions.CountBids(auctionID)
		if err != nil {
			t.Fatalf("count bids: %v", err)
		}
		if n != 1 {
			t.Errorf("bid count = %d, want 1", n)
		}
	})

	t.Run("rejects bid at start points", func(t *testing.T) {
		_, err := f.engine.PlaceBid(f.bob, auctionID, 50)
		if apperr.KindOf(err) != apperr.Invalid {
			t.Fatalf("error kind = %v, want Invalid", apperr.KindOf(err))
		}
	})

	t.Run("rejects non-positive bid", func(t *testing.T) {
		_, err := f.engine.PlaceBid(f.bob, auctionID, 0)
		if apperr.KindOf(err) != apperr.Invalid {
			t.Fatalf("error kind = %v, want Invalid", apperr.KindOf(err))
		}
	})
}

func TestPlaceBidClosedAuction(t *testing.T) {
	f := newFixture(t)
	chore := f.createChore(t, "Dishes", 50, 0)
	created, err := f.engine.CreateWeek(f.owner, CreateWeekInput{
		WeekStart: testWeek, DurationHours: 1, ChoreIDs: []int64{chore.ID},
	})
	if err != nil {
		t.Fatalf("CreateWeek: %v", err)
	}

	// Advance the clock past the end time.
	f.engine.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = f.engine.PlaceBid(f.alice, created[0].ID, 40)
	if apperr.KindOf(err) != apperr.Conflict {
		t.Fatalf("error kind = %v, want Conflict", apperr.KindOf(err))
	}
}

func TestPlaceBidMinAge(t *testing.T) {
	f := newFixture(t)
	chore := f.createChore(t, "Mow the lawn", 60, 14)
	created, err := f.engine.CreateWeek(f.owner, CreateWeekInput{
		WeekStart: testWeek, DurationHours: 24, ChoreIDs: []int64{chore.ID},
	})
	if err != nil {
		t.Fatalf("CreateWeek: %v", err)
	}
	auctionID := created[0].ID

	// A ten year old cannot bid.
	kid, err := f.users.Create("kid@example.com", "Kid", "hash")
	if err != nil {
		t.Fatalf("create kid: %v", err)
	}
	birth := time.Now().AddDate(-10, 0, 0)
	if _, err := f.families.AddMember(f.family.ID, kid.ID, model.RoleMember, &birth); err != nil {
		t.Fatalf("add kid: %v", err)
	}
	kidCtx := auth.AuthContext{UserID: kid.ID, FamilyID: f.family.ID, Role: model.RoleMember}

	_, err = f.engine.PlaceBid(kidCtx, auctionID, 40)
	if apperr.KindOf(err) != apperr.Invalid {
		t.Fatalf("underage bid error kind = %v, want Invalid", apperr.KindOf(err))
	}

	// A member with no recorded birth date is rejected too.
	noBirth, err := f.users.Create("nobirth@example.com", "NoBirth", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := f.families.AddMember(f.family.ID, noBirth.ID, model.RoleMember, nil); err != nil {
		t.Fatalf("add member: %v", err)
	}
	nbCtx := auth.AuthContext{UserID: noBirth.ID, FamilyID: f.family.ID, Role: model.RoleMember}
	_, err = f.engine.PlaceBid(nbCtx, auctionID, 40)
	if apperr.KindOf(err) != apperr.Invalid {
		t.Fatalf("no-birth-date bid error kind = %v, want Invalid", apperr.KindOf(err))
	}

	// An adult bids fine.
	if _, err := f.engine.PlaceBid(f.alice, auctionID, 40); err != nil {
		t.Fatalf("adult bid: %v", err)
	}
}

func TestPlaceBidOtherFamily(t *testing.T) {
	f := newFixture(t)
	chore := f.createChore(t, "Dishes", 50, 0)
	created, err := f.engine.CreateWeek(f.owner, CreateWeekInput{
		WeekStart: testWeek, DurationHours: 24, ChoreIDs: []int64{chore.ID},
	})
	if err != nil {
		t.Fatalf("CreateWeek: %v", err)
	}

	stranger := auth.AuthContext{UserID: 999, FamilyID: 999, Role: model.RoleMember}
	_, err = f.engine.PlaceBid(stranger, created[0].ID, 40)
	if apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("error kind = %v, want NotFound", apperr.KindOf(err))
	}
}

func TestFinalizeWeekAwardsLowestBidder(t *testing.T) {
	f := newFixture(t)
	chore := f.createChore(t, "Dishes", 50, 0)
	created, err := f.engine.CreateWeek(f.owner, CreateWeekInput{
		WeekStart: testWeek, DurationHours: 24, ChoreIDs: []int64{chore.ID},
	})
	if err != nil {
		t.Fatalf("CreateWeek: %v", err)
	}
	auctionID := created[0].ID

	if _, err := f.engine.PlaceBid(f.alice, auctionID, 40); err != nil {
		t.Fatalf("alice bid: %v", err)
	}
	if _, err := f.engine.PlaceBid(f.bob, auctionID, 30); err != nil {
		t.Fatalf("bob bid: %v", err)
	}

	results, err := f.engine.FinalizeWeek(f.owner, testWeek)
	if err != nil {
		t.Fatalf("FinalizeWeek: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.Status != SettleAssigned {
		t.Fatalf("status = %s, want assigned (%s)", r.Status, r.Error)
	}
	if r.WinnerID != f.bob.UserID || r.WinningBid != 30 {
		t.Errorf("winner = %d at %d points, want bob at 30", r.WinnerID, r.WinningBid)
	}

	a, err := f.auctions.GetByID(auctionID)
	if err != nil {
		t.Fatalf("load auction: %v", err)
	}
	if a.Status != model.AuctionCompleted {
		t.Errorf("auction status = %s, want completed", a.Status)
	}

	// Winner is on the hook every day of the week.
	got, err := f.assignments.ListByUser(f.bob.UserID)
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}
	if len(got) != 7 {
		t.Fatalf("bob has %d assignments, want 7", len(got))
	}
	for i, asg := range got {
		want := testWeek.AddDate(0, 0, i)
		if !asg.Date.Equal(want) {
			t.Errorf("assignment %d date = %v, want %v", i, asg.Date, want)
		}
		if asg.ChoreID != chore.ID {
			t.Errorf("assignment %d chore = %d, want %d", i, asg.ChoreID, chore.ID)
		}
	}
}

func TestFinalizeWeekExtendsUnbidAuction(t *testing.T) {
	f := newFixture(t)
	chore := f.createChore(t, "Clean gutters", 50, 0)
	created, err := f.engine.CreateWeek(f.owner, CreateWeekInput{
		WeekStart: testWeek, DurationHours: 24, ChoreIDs: []int64{chore.ID},
	})
	if err != nil {
		t.Fatalf("CreateWeek: %v", err)
	}
	origEnd := created[0].EndTime

	results, err := f.engine.FinalizeWeek(f.owner, testWeek)
	if err != nil {
		t.Fatalf("FinalizeWeek: %v", err)
	}
	r := results[0]
	if r.Status != SettleExtended {
		t.Fatalf("status = %s, want extended (%s)", r.Status, r.Error)
	}
	if r.NewPoints != 55 {
		t.Errorf("new points = %d, want 55 (50 * 1.10)", r.NewPoints)
	}

	a, err := f.auctions.GetByID(created[0].ID)
	if err != nil {
		t.Fatalf("load auction: %v", err)
	}
	if a.Status != model.AuctionActive {
		t.Errorf("auction status = %s, want still active", a.Status)
	}
	if a.StartPoints != 55 {
		t.Errorf("auction start points = %d, want 55", a.StartPoints)
	}
	wantEnd := origEnd.Add(24 * time.Hour)
	if !a.EndTime.Equal(wantEnd) {
		t.Errorf("end time = %v, want %v", a.EndTime, wantEnd)
	}

	updated, err := f.chores.GetByID(chore.ID)
	if err != nil {
		t.Fatalf("load chore: %v", err)
	}
	if updated.Points != 55 {
		t.Errorf("chore points = %d, want 55", updated.Points)
	}
}

func TestFinalizeWeekRounding(t *testing.T) {
	// 33 * 1.10 = 36.3 rounds down, 35 * 1.10 = 38.5 rounds up.
	cases := []struct{ points, want int }{
		{33, 36},
		{35, 39},
		{10, 11},
	}
	for _, tc := range cases {
		f := newFixture(t)
		chore := f.createChore(t, "Chore", tc.points, 0)
		if _, err := f.engine.CreateWeek(f.owner, CreateWeekInput{
			WeekStart: testWeek, DurationHours: 24, ChoreIDs: []int64{chore.ID},
		}); err != nil {
			t.Fatalf("CreateWeek: %v", err)
		}
		results, err := f.engine.FinalizeWeek(f.owner, testWeek)
		if err != nil {
			t.Fatalf("FinalizeWeek: %v", err)
		}
		if results[0].NewPoints != tc.want {
			t.Errorf("points %d bumped to %d, want %d", tc.points, results[0].NewPoints, tc.want)
		}
	}
}

func TestFinalizeWeekMixedOutcomes(t *testing.T) {
	f := newFixture(t)
	dishes := f.createChore(t, "Dishes", 50, 0)
	gutters := f.createChore(t, "Gutters", 40, 0)
	created, err := f.engine.CreateWeek(f.owner, CreateWeekInput{
		WeekStart: testWeek, DurationHours: 24, ChoreIDs: []int64{dishes.ID, gutters.ID},
	})
	if err != nil {
		t.Fatalf("CreateWeek: %v", err)
	}

	var dishesAuction int64
	for _, a := range created {
		if a.ChoreID == dishes.ID {
			dishesAuction = a.ID
		}
	}
	if _, err := f.engine.PlaceBid(f.alice, dishesAuction, 25); err != nil {
		t.Fatalf("bid: %v", err)
	}

	results, err := f.engine.FinalizeWeek(f.owner, testWeek)
	if err != nil {
		t.Fatalf("FinalizeWeek: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	byChore := map[int64]SettleResult{}
	for _, r := range results {
		byChore[r.ChoreID] = r
	}
	if byChore[dishes.ID].Status != SettleAssigned {
		t.Errorf("dishes status = %s, want assigned", byChore[dishes.ID].Status)
	}
	if byChore[gutters.ID].Status != SettleExtended {
		t.Errorf("gutters status = %s, want extended", byChore[gutters.ID].Status)
	}
}

func TestFinalizeWeekRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.FinalizeWeek(f.alice, testWeek)
	if apperr.KindOf(err) != apperr.Forbidden {
		t.Fatalf("error kind = %v, want Forbidden", apperr.KindOf(err))
	}
}

func TestStopWeek(t *testing.T) {
	f := newFixture(t)
	chore := f.createChore(t, "Dishes", 50, 0)
	created, err := f.engine.CreateWeek(f.owner, CreateWeekInput{
		WeekStart: testWeek, DurationHours: 24, ChoreIDs: []int64{chore.ID},
	})
	if err != nil {
		t.Fatalf("CreateWeek: %v", err)
	}

	n, err := f.engine.StopWeek(f.owner, testWeek)
	if err != nil {
		t.Fatalf("StopWeek: %v", err)
	}
	if n != 1 {
		t.Errorf("stopped %d auctions, want 1", n)
	}
	a, err := f.auctions.GetByID(created[0].ID)
	if err != nil {
		t.Fatalf("load auction: %v", err)
	}
	if a.Status != model.AuctionStopped {
		t.Errorf("status = %s, want stopped", a.Status)
	}
}

func TestDeleteWeekKeepsCompleted(t *testing.T) {
	f := newFixture(t)
	dishes := f.createChore(t, "Dishes", 50, 0)
	gutters := f.createChore(t, "Gutters", 40, 0)
	created, err := f.engine.CreateWeek(f.owner, CreateWeekInput{
		WeekStart: testWeek, DurationHours: 24, ChoreIDs: []int64{dishes.ID, gutters.ID},
	})
	if err != nil {
		t.Fatalf("CreateWeek: %v", err)
	}

	var dishesAuction int64
	for _, a := range created {
		if a.ChoreID == dishes.ID {
			dishesAuction = a.ID
		}
	}
	if _, err := f.engine.PlaceBid(f.alice, dishesAuction, 25); err != nil {
		t.Fatalf("bid: %v", err)
	}
	if _, err := f.engine.FinalizeWeek(f.owner, testWeek); err != nil {
		t.Fatalf("FinalizeWeek: %v", err)
	}

	// Delete removes the extended-but-unbid auction, not the settled one.
	n, err := f.engine.DeleteWeek(f.owner, testWeek)
	if err != nil {
		t.Fatalf("DeleteWeek: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d auctions, want 1", n)
	}
	remaining, err := f.auctions.GetByID(dishesAuction)
	if err != nil {
		t.Fatalf("load auction: %v", err)
	}
	if remaining == nil || remaining.Status != model.AuctionCompleted {
		t.Errorf("completed auction should survive deletion, got %+v", remaining)
	}
}

func TestListWeek(t *testing.T) {
	f := newFixture(t)
	chore := f.createChore(t, "Dishes", 50, 0)
	created, err := f.engine.CreateWeek(f.owner, CreateWeekInput{
		WeekStart: testWeek, DurationHours: 24, ChoreIDs: []int64{chore.ID},
	})
	if err != nil {
		t.Fatalf("CreateWeek: %v", err)
	}
	if _, err := f.engine.PlaceBid(f.alice, created[0].ID, 40); err != nil {
		t.Fatalf("bid: %v", err)
	}

	views, err := f.engine.ListWeek(f.alice, testWeek)
	if err != nil {
		t.Fatalf("ListWeek: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("got %d views, want 1", len(views))
	}
	if views[0].ChoreTitle != "Dishes" {
		t.Errorf("chore title = %q, want Dishes", views[0].ChoreTitle)
	}
	if len(views[0].Bids) != 1 || views[0].Bids[0].Points != 40 {
		t.Errorf("bids = %+v, want one bid of 40", views[0].Bids)
	}
}

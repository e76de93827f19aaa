package store

import (
	"testing"
	"time"

	"github.com/hollyoak/chorebid/internal/database"
	"github.com/hollyoak/chorebid/internal/model"
)

func setupFamilyTestDB(t *testing.T) (*FamilyStore, *UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewFamilyStore(db), NewUserStore(db)
}

func TestFamilyCreate(t *testing.T) {
	fs, _ := setupFamilyTestDB(t)

	fam, err := fs.Create("Hollyoak", "America/Los_Angeles", 1)
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	if fam.Name != "Hollyoak" {
		t.Errorf("name = %q, want Hollyoak", fam.Name)
	}
	if fam.Timezone != "America/Los_Angeles" {
		t.Errorf("timezone = %q", fam.Timezone)
	}
	if fam.WeekStartsOn != 1 {
		t.Errorf("week_starts_on = %d, want 1", fam.WeekStartsOn)
	}
	if fam.InviteCode == "" {
		t.Error("expected invite code")
	}

	byCode, err := fs.GetByInviteCode(fam.InviteCode)
	if err != nil {
		t.Fatalf("get by invite code: %v", err)
	}
	if byCode == nil || byCode.ID != fam.ID {
		t.Errorf("lookup by invite code got %+v", byCode)
	}

	missing, err := fs.GetByInviteCode("nope")
	if err != nil {
		t.Fatalf("get by invite code: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown code")
	}
}

func TestFamilyMembers(t *testing.T) {
	fs, us := setupFamilyTestDB(t)

	fam, _ := fs.Create("Hollyoak", "UTC", 1)
	owner, _ := us.Create("owner@example.com", "Owner", "hash")
	kid, _ := us.Create("kid@example.com", "Kid", "hash")

	if _, err := fs.AddMember(fam.ID, owner.ID, model.RoleOwner, nil); err != nil {
		t.Fatalf("add owner: %v", err)
	}
	birth := time.Date(2016, 5, 1, 0, 0, 0, 0, time.UTC)
	m, err := fs.AddMember(fam.ID, kid.ID, model.RoleMember, &birth)
	if err != nil {
		t.Fatalf("add kid: %v", err)
	}
	if m.BirthDate == nil || !m.BirthDate.Equal(birth) {
		t.Errorf("birth_date = %v, want %v", m.BirthDate, birth)
	}
	if m.TotalPoints != 0 {
		t.Errorf("total_points = %d, want 0", m.TotalPoints)
	}

	members, err := fs.ListMembers(fam.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %d, want 2", len(members))
	}

	got, err := fs.GetMember(fam.ID, kid.ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if got.Role != model.RoleMember {
		t.Errorf("role = %q, want member", got.Role)
	}

	updated, err := fs.UpdateMemberRole(fam.ID, kid.ID, model.RoleAdmin)
	if err != nil {
		t.Fatalf("update role: %v", err)
	}
	if updated.Role != model.RoleAdmin {
		t.Errorf("role = %q, want admin", updated.Role)
	}

	if err := fs.RemoveMember(fam.ID, kid.ID); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	gone, err := fs.GetMember(fam.ID, kid.ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if gone != nil {
		t.Error("expected nil after removal")
	}
}

func TestFamilyFirstMembership(t *testing.T) {
	fs, us := setupFamilyTestDB(t)

	u, _ := us.Create("alice@example.com", "Alice", "hash")

	none, err := fs.FirstMembership(u.ID)
	if err != nil {
		t.Fatalf("first membership: %v", err)
	}
	if none != nil {
		t.Error("expected nil with no memberships")
	}

	f1, _ := fs.Create("First", "UTC", 1)
	f2, _ := fs.Create("Second", "UTC", 1)
	if _, err := fs.AddMember(f1.ID, u.ID, model.RoleOwner, nil); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if _, err := fs.AddMember(f2.ID, u.ID, model.RoleMember, nil); err != nil {
		t.Fatalf("add member: %v", err)
	}

	m, err := fs.FirstMembership(u.ID)
	if err != nil {
		t.Fatalf("first membership: %v", err)
	}
	if m == nil || m.FamilyID != f1.ID {
		t.Errorf("membership = %+v, want family %d", m, f1.ID)
	}
}

func TestFamilyUpdate(t *testing.T) {
	fs, _ := setupFamilyTestDB(t)

	fam, _ := fs.Create("Hollyoak", "UTC", 1)
	updated, err := fs.Update(fam.ID, "Hollyoak Manor", "Europe/London", 0)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Hollyoak Manor" || updated.Timezone != "Europe/London" || updated.WeekStartsOn != 0 {
		t.Errorf("updated = %+v", updated)
	}
}

func TestUserDuplicateEmail(t *testing.T) {
	_, us := setupFamilyTestDB(t)

	if _, err := us.Create("alice@example.com", "Alice", "hash"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := us.Create("alice@example.com", "Other", "hash"); err == nil {
		t.Error("expected duplicate email error")
	}
}

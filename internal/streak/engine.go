// Package streak runs multi-day personal challenges. A streak binds N
// consecutive calendar days to a task list; the assignee must finish every
// required task each day or the whole streak fails. Day boundaries follow
// the family's configured timezone, never UTC or the server clock.
package streak

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hollyoak/chorebid/internal/activity"
	"github.com/hollyoak/chorebid/internal/apperr"
	"github.com/hollyoak/chorebid/internal/auth"
	"github.com/hollyoak/chorebid/internal/model"
	"github.com/hollyoak/chorebid/internal/notify"
	"github.com/hollyoak/chorebid/internal/store"
	"github.com/hollyoak/chorebid/internal/week"
)

type Engine struct {
	streaks  *store.StreakStore
	families *store.FamilyStore
	points   *store.PointsStore
	activity activity.Recorder
	notify   notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewEngine(
	streaks *store.StreakStore,
	families *store.FamilyStore,
	points *store.PointsStore,
	rec activity.Recorder,
	n notify.Notifier,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		streaks:  streaks,
		families: families,
		points:   points,
		activity: rec,
		notify:   n,
		logger:   logger.With("component", "streak"),
		now:      time.Now,
	}
}

type CreateInput struct {
	AssignedTo   int64             `json:"assigned_to"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	DurationDays int               `json:"duration_days"`
	PointsReward int               `json:"points_reward"`
	Tasks        []store.TaskInput `json:"tasks"`
}

// Create defines a new pending streak. Members may create streaks for
// themselves; assigning one to someone else takes admin.
func (e *Engine) Create(caller auth.AuthContext, in CreateInput) (*model.Streak, error) {
	if in.AssignedTo == 0 {
		in.AssignedTo = caller.UserID
	}
	if in.AssignedTo != caller.UserID && !caller.IsAdmin() {
		return nil, apperr.New(apperr.Forbidden, "only admins can assign a streak to someone else")
	}
	if in.Title == "" {
		return nil, apperr.New(apperr.Invalid, "streak title is required")
	}
	if in.DurationDays < 1 {
		return nil, apperr.New(apperr.Invalid, "streak duration must be at least one day")
	}
	if in.PointsReward < 0 {
		return nil, apperr.New(apperr.Invalid, "points reward cannot be negative")
	}
	if len(in.Tasks) == 0 {
		return nil, apperr.New(apperr.Invalid, "a streak needs at least one task")
	}
	for _, task := range in.Tasks {
		if task.Title == "" {
			return nil, apperr.New(apperr.Invalid, "every streak task needs a title")
		}
	}

	assignee, err := e.families.GetMember(caller.FamilyID, in.AssignedTo)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "load assignee")
	}
	if assignee == nil {
		return nil, apperr.New(apperr.NotFound, "assignee is not a member of this family")
	}

	s, err := e.streaks.Create(caller.FamilyID, caller.UserID, in.AssignedTo,
		in.Title, in.Description, in.DurationDays, in.PointsReward, in.Tasks)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "create streak")
	}

	e.activity.Record(caller.FamilyID, &caller.UserID, "streak_created", s.Title)
	e.notify.Family(caller.FamilyID, caller.UserID, "streak", "created", s.ID, nil)
	return s, nil
}

// Start activates a pending streak. Only the assignee may start their own
// streak. Day one begins on today's date in the family's timezone; all N
// day rows are bound to dates now, but task completions exist for day one
// only and later days are filled in as they are reached.
func (e *Engine) Start(caller auth.AuthContext, streakID int64) (*model.Streak, error) {
	s, family, err := e.load(caller, streakID)
	if err != nil {
		return nil, err
	}
	if s.AssignedTo != caller.UserID {
		return nil, apperr.New(apperr.Forbidden, "only the assignee can start this streak")
	}
	if s.Status != model.StreakPending {
		return nil, apperr.New(apperr.Conflict, "streak is %s, only a pending streak can start", s.Status)
	}

	now := e.now()
	dayOne := week.LocalDate(now, family.Timezone)
	for i := 0; i < s.DurationDays; i++ {
		day, err := e.streaks.CreateDay(s.ID, i+1, dayOne.AddDate(0, 0, i))
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "create streak day")
		}
		if i == 0 {
			if err := e.streaks.EnsureDayCompletions(s.ID, day.ID); err != nil {
				return nil, apperr.Wrap(apperr.Internal, err, "seed day one completions")
			}
		}
	}
	if err := e.streaks.Activate(s.ID, now); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "activate streak")
	}

	e.activity.Record(caller.FamilyID, &caller.UserID, "streak_started", s.Title)
	e.notify.Family(caller.FamilyID, caller.UserID, "streak", "started", s.ID, nil)

	return e.streaks.GetByID(s.ID)
}

type CompleteTaskInput struct {
	Completed bool   `json:"completed"`
	OptionID  *int64 `json:"option_id"`
}

// CompleteTask sets a task's completion on the streak's current day, then
// runs the advancement check. The assignee checks their own tasks; an
// admin or owner may uncheck someone else's, which is recorded for audit.
// Tasks cannot be checked before the day's date arrives in the family's
// timezone.
func (e *Engine) CompleteTask(caller auth.AuthContext, streakID, taskID int64, in CompleteTaskInput) (*model.Streak, error) {
	s, family, err := e.load(caller, streakID)
	if err != nil {
		return nil, err
	}
	if s.Status != model.StreakActive {
		return nil, apperr.New(apperr.Conflict, "streak is %s, tasks can only change while active", s.Status)
	}
	if s.AssignedTo != caller.UserID {
		if !caller.IsAdmin() || in.Completed {
			return nil, apperr.New(apperr.Forbidden, "only the assignee can complete streak tasks")
		}
	}

	day, err := e.streaks.GetDay(s.ID, s.CurrentDay)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "load current day")
	}
	if day == nil {
		return nil, apperr.New(apperr.Internal, "streak day %d missing", s.CurrentDay)
	}

	now := e.now()
	today := week.LocalDate(now, family.Timezone)
	if today.Before(day.Date) {
		return nil, apperr.New(apperr.Conflict,
			"day %d does not start until %s", s.CurrentDay, day.Date.Format("2006-01-02"))
	}

	if err := e.streaks.EnsureDayCompletions(s.ID, day.ID); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "ensure day completions")
	}
	completion, err := e.streaks.GetCompletion(day.ID, taskID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "load task completion")
	}
	if completion == nil {
		return nil, apperr.New(apperr.NotFound, "task not found on this streak")
	}

	var uncheckedBy *int64
	if !in.Completed && caller.UserID != s.AssignedTo {
		uncheckedBy = &caller.UserID
	}
	if err := e.streaks.SetCompletion(completion.ID, in.Completed, now, in.OptionID, uncheckedBy); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "save task completion")
	}

	remaining, err := e.streaks.RequiredRemaining(day.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "count remaining tasks")
	}
	if err := e.streaks.SetDayCompleted(day.ID, remaining == 0, now); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "update day completion")
	}

	e.notify.Family(caller.FamilyID, caller.UserID, "streak", "task_updated", s.ID, map[string]any{
		"day":       s.CurrentDay,
		"task_id":   taskID,
		"completed": in.Completed,
	})

	return e.CheckProgress(s.ID)
}

// CheckProgress is the single advancement routine behind both triggers:
// the synchronous call after a task completion and the periodic sweep. It
// loops until the streak reaches a stable state, so a streak that sat
// untouched for days settles in one call.
//
// Per pass over the current day:
//   - day complete and it was the final day: the streak completes and the
//     assignee is awarded the points.
//   - day complete and the next day's date has arrived: advance the
//     pointer and materialize the next day's task completions.
//   - day incomplete and its date has fully elapsed: the streak fails.
//   - otherwise nothing to do yet.
func (e *Engine) CheckProgress(streakID int64) (*model.Streak, error) {
	s, err := e.streaks.GetByID(streakID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "load streak")
	}
	if s == nil {
		return nil, apperr.New(apperr.NotFound, "streak not found")
	}
	if s.Status != model.StreakActive {
		return s, nil
	}

	family, err := e.families.GetByID(s.FamilyID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "load family")
	}
	if family == nil {
		return nil, apperr.New(apperr.NotFound, "family not found")
	}

	now := e.now()
	today := week.LocalDate(now, family.Timezone)

	for s.Status == model.StreakActive {
		day, err := e.streaks.GetDay(s.ID, s.CurrentDay)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "load current day")
		}
		if day == nil {
			return nil, apperr.New(apperr.Internal, "streak day %d missing", s.CurrentDay)
		}

		switch {
		case day.Completed && s.CurrentDay >= s.DurationDays:
			if err := e.complete(s, family, now, today); err != nil {
				return nil, err
			}
		case day.Completed && !today.Before(day.Date.AddDate(0, 0, 1)):
			if err := e.advance(s); err != nil {
				return nil, err
			}
		case !day.Completed && today.After(day.Date):
			if err := e.fail(s, now); err != nil {
				return nil, err
			}
		default:
			return s, nil
		}

		s, err = e.streaks.GetByID(s.ID)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "reload streak")
		}
	}
	return s, nil
}

func (e *Engine) advance(s *model.Streak) error {
	next, err := e.streaks.GetDay(s.ID, s.CurrentDay+1)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "load next day")
	}
	if next == nil {
		return apperr.New(apperr.Internal, "streak day %d missing", s.CurrentDay+1)
	}
	if err := e.streaks.EnsureDayCompletions(s.ID, next.ID); err != nil {
		return apperr.Wrap(apperr.Internal, err, "materialize next day")
	}
	if err := e.streaks.SetCurrentDay(s.ID, s.CurrentDay+1); err != nil {
		return apperr.Wrap(apperr.Internal, err, "advance streak")
	}
	e.notify.Family(s.FamilyID, 0, "streak", "day_advanced", s.ID, map[string]any{
		"day": s.CurrentDay + 1,
	})
	return nil
}

func (e *Engine) complete(s *model.Streak, family *model.Family, now, today time.Time) error {
	if err := e.streaks.Finish(s.ID, model.StreakCompleted, now); err != nil {
		return apperr.Wrap(apperr.Internal, err, "complete streak")
	}
	if s.PointsReward > 0 {
		weekStart := week.Start(today, family.WeekStartsOn)
		reason := fmt.Sprintf("Completed streak: %s", s.Title)
		if _, err := e.points.Grant(s.AssignedTo, s.FamilyID, nil, s.PointsReward, reason, today, weekStart); err != nil {
			return apperr.Wrap(apperr.Internal, err, "award streak points")
		}
	}
	e.logger.Info("streak completed", "streak_id", s.ID, "user_id", s.AssignedTo, "points", s.PointsReward)
	e.activity.Record(s.FamilyID, &s.AssignedTo, "streak_completed",
		fmt.Sprintf("%s (%d days, %d points)", s.Title, s.DurationDays, s.PointsReward))
	e.notify.Family(s.FamilyID, 0, "streak", "completed", s.ID, map[string]any{
		"points": s.PointsReward,
	})
	return nil
}

func (e *Engine) fail(s *model.Streak, now time.Time) error {
	if err := e.streaks.Finish(s.ID, model.StreakFailed, now); err != nil {
		return apperr.Wrap(apperr.Internal, err, "fail streak")
	}
	e.logger.Info("streak failed", "streak_id", s.ID, "missed_day", s.CurrentDay)
	e.activity.Record(s.FamilyID, nil, "streak_failed",
		fmt.Sprintf("%s missed day %d", s.Title, s.CurrentDay))
	e.notify.Family(s.FamilyID, 0, "streak", "failed", s.ID, map[string]any{
		"day": s.CurrentDay,
	})
	return nil
}

// Stop force-fails an active streak. Admin only.
func (e *Engine) Stop(caller auth.AuthContext, streakID int64) (*model.Streak, error) {
	if !caller.IsAdmin() {
		return nil, apperr.New(apperr.Forbidden, "only admins can stop a streak")
	}
	s, _, err := e.load(caller, streakID)
	if err != nil {
		return nil, err
	}
	if s.Status != model.StreakActive && s.Status != model.StreakPending {
		return nil, apperr.New(apperr.Conflict, "streak is already %s", s.Status)
	}
	if err := e.streaks.Finish(s.ID, model.StreakFailed, e.now()); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "stop streak")
	}
	e.activity.Record(caller.FamilyID, &caller.UserID, "streak_stopped", s.Title)
	e.notify.Family(caller.FamilyID, caller.UserID, "streak", "stopped", s.ID, nil)
	return e.streaks.GetByID(s.ID)
}

type UpdateInput struct {
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	DurationDays int               `json:"duration_days"`
	PointsReward int               `json:"points_reward"`
	Tasks        []store.TaskInput `json:"tasks"`
}

// Update edits a streak's definition in any status, replacing the task
// list wholesale when tasks are given. Editing never rewinds the current
// day or rewrites already-materialized days, so a mid-run edit can leave
// historical days referencing old tasks.
func (e *Engine) Update(caller auth.AuthContext, streakID int64, in UpdateInput) (*model.Streak, error) {
	if !caller.IsAdmin() {
		return nil, apperr.New(apperr.Forbidden, "only admins can edit a streak")
	}
	s, _, err := e.load(caller, streakID)
	if err != nil {
		return nil, err
	}
	if in.Title == "" {
		return nil, apperr.New(apperr.Invalid, "streak title is required")
	}
	if in.DurationDays < 1 {
		return nil, apperr.New(apperr.Invalid, "streak duration must be at least one day")
	}
	if in.DurationDays < s.CurrentDay && s.Status == model.StreakActive {
		return nil, apperr.New(apperr.Invalid,
			"duration cannot drop below the current day (%d)", s.CurrentDay)
	}

	updated, err := e.streaks.Update(s.ID, in.Title, in.Description, in.DurationDays, in.PointsReward)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "update streak")
	}
	if len(in.Tasks) > 0 {
		for _, task := range in.Tasks {
			if task.Title == "" {
				return nil, apperr.New(apperr.Invalid, "every streak task needs a title")
			}
		}
		if err := e.streaks.ReplaceTasks(s.ID, in.Tasks); err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "replace tasks")
		}
	}

	e.activity.Record(caller.FamilyID, &caller.UserID, "streak_updated", updated.Title)
	return updated, nil
}

// Delete removes a streak and all its days and completions. Admin only.
func (e *Engine) Delete(caller auth.AuthContext, streakID int64) error {
	if !caller.IsAdmin() {
		return apperr.New(apperr.Forbidden, "only admins can delete a streak")
	}
	s, _, err := e.load(caller, streakID)
	if err != nil {
		return err
	}
	if err := e.streaks.Delete(s.ID); err != nil {
		return apperr.Wrap(apperr.Internal, err, "delete streak")
	}
	e.activity.Record(caller.FamilyID, &caller.UserID, "streak_deleted", s.Title)
	return nil
}

// View bundles a streak with its task list and day-by-day progress.
type View struct {
	model.Streak
	Tasks []model.StreakTask `json:"tasks"`
	Days  []DayView          `json:"days"`
}

type DayView struct {
	model.StreakDay
	Completions []model.StreakTaskCompletion `json:"completions,omitempty"`
}

// Get returns a streak with tasks, days, and any materialized completions.
// The advancement check runs first so readers always see settled state.
func (e *Engine) Get(caller auth.AuthContext, streakID int64) (*View, error) {
	if _, _, err := e.load(caller, streakID); err != nil {
		return nil, err
	}
	s, err := e.CheckProgress(streakID)
	if err != nil {
		return nil, err
	}

	tasks, err := e.streaks.Tasks(s.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "load tasks")
	}
	days, err := e.streaks.ListDays(s.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "load days")
	}

	v := &View{Streak: *s, Tasks: tasks, Days: make([]DayView, 0, len(days))}
	for _, d := range days {
		dv := DayView{StreakDay: d}
		if d.DayNumber <= s.CurrentDay {
			completions, err := e.streaks.ListCompletionsByDay(d.ID)
			if err != nil {
				return nil, apperr.Wrap(apperr.Internal, err, "load completions")
			}
			dv.Completions = completions
		}
		v.Days = append(v.Days, dv)
	}
	return v, nil
}

// List returns the family's streaks, running the advancement check on
// each active one first.
func (e *Engine) List(caller auth.AuthContext) ([]model.Streak, error) {
	streaks, err := e.streaks.ListByFamily(caller.FamilyID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list streaks")
	}
	for i := range streaks {
		if streaks[i].Status != model.StreakActive {
			continue
		}
		settled, err := e.CheckProgress(streaks[i].ID)
		if err != nil {
			return nil, err
		}
		streaks[i] = *settled
	}
	return streaks, nil
}

// load fetches the streak and its family, enforcing family scoping.
func (e *Engine) load(caller auth.AuthContext, streakID int64) (*model.Streak, *model.Family, error) {
	s, err := e.streaks.GetByID(streakID)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, err, "load streak")
	}
	if s == nil || s.FamilyID != caller.FamilyID {
		return nil, nil, apperr.New(apperr.NotFound, "streak not found")
	}
	family, err := e.families.GetByID(s.FamilyID)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, err, "load family")
	}
	if family == nil {
		return nil, nil, apperr.New(apperr.NotFound, "family not found")
	}
	return s, family, nil
}

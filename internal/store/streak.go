package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hollyoak/chorebid/internal/model"
)

type StreakStore struct {
	db *sql.DB
}

func NewStreakStore(db *sql.DB) *StreakStore {
	return &StreakStore{db: db}
}

// TaskInput describes one task when creating or replacing a streak's task
// list.
type TaskInput struct {
	Title    string
	Required bool
	Options  []string
}

func scanStreak(scanner interface{ Scan(...any) error }) (*model.Streak, error) {
	var st model.Streak
	var startedAt, endedAt sql.NullTime

	err := scanner.Scan(
		&st.ID, &st.FamilyID, &st.CreatedBy, &st.AssignedTo, &st.Title,
		&st.Description, &st.DurationDays, &st.PointsReward, &st.Status,
		&st.CurrentDay, &startedAt, &endedAt, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if startedAt.Valid {
		st.StartedAt = &startedAt.Time
	}
	if endedAt.Valid {
		st.EndedAt = &endedAt.Time
	}
	return &st, nil
}

const streakCols = `id, family_id, created_by, assigned_to, title, description, duration_days, points_reward, status, current_day, started_at, ended_at, created_at, updated_at`

// Create inserts the streak and its task list in one transaction.
func (s *StreakStore) Create(familyID, createdBy, assignedTo int64, title, description string, durationDays, pointsReward int, tasks []TaskInput) (*model.Streak, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO streaks (family_id, created_by, assigned_to, title, description, duration_days, points_reward) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		familyID, createdBy, assignedTo, title, description, durationDays, pointsReward,
	)
	if err != nil {
		return nil, fmt.Errorf("insert streak: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := insertTasks(tx, id, tasks); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func insertTasks(tx *sql.Tx, streakID int64, tasks []TaskInput) error {
	for i, task := range tasks {
		var required int
		if task.Required {
			required = 1
		}
		result, err := tx.Exec(
			`INSERT INTO streak_tasks (streak_id, title, required, sort_order) VALUES (?, ?, ?, ?)`,
			streakID, task.Title, required, i,
		)
		if err != nil {
			return fmt.Errorf("insert streak task: %w", err)
		}
		taskID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		for j, label := range task.Options {
			if _, err := tx.Exec(
				`INSERT INTO streak_task_options (task_id, label, sort_order) VALUES (?, ?, ?)`,
				taskID, label, j,
			); err != nil {
				return fmt.Errorf("insert task option: %w", err)
			}
		}
	}
	return nil
}

// ReplaceTasks destructively swaps the task list. Day rows and their
// completed flags are untouched; per-task completion detail for old
// tasks cascades away with the tasks.
func (s *StreakStore) ReplaceTasks(streakID int64, tasks []TaskInput) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM streak_tasks WHERE streak_id = ?`, streakID); err != nil {
		return fmt.Errorf("delete streak tasks: %w", err)
	}
	if err := insertTasks(tx, streakID, tasks); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *StreakStore) GetByID(id int64) (*model.Streak, error) {
	row := s.db.QueryRow(`SELECT `+streakCols+` FROM streaks WHERE id = ?`, id)
	st, err := scanStreak(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get streak: %w", err)
	}
	return st, nil
}

func (s *StreakStore) ListByFamily(familyID int64) ([]model.Streak, error) {
	rows, err := s.db.Query(
		`SELECT `+streakCols+` FROM streaks WHERE family_id = ? ORDER BY created_at DESC, id DESC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list streaks: %w", err)
	}
	defer rows.Close()
	return collectStreaks(rows)
}

func (s *StreakStore) ListActiveByFamily(familyID int64) ([]model.Streak, error) {
	rows, err := s.db.Query(
		`SELECT `+streakCols+` FROM streaks WHERE family_id = ? AND status = ? ORDER BY id ASC`,
		familyID, model.StreakActive,
	)
	if err != nil {
		return nil, fmt.Errorf("list active streaks: %w", err)
	}
	defer rows.Close()
	return collectStreaks(rows)
}

func collectStreaks(rows *sql.Rows) ([]model.Streak, error) {
	var streaks []model.Streak
	for rows.Next() {
		st, err := scanStreak(rows)
		if err != nil {
			return nil, fmt.Errorf("scan streak: %w", err)
		}
		streaks = append(streaks, *st)
	}
	return streaks, rows.Err()
}

// FamilyIDsWithActive returns the families that currently have at least one
// active streak. Drives the periodic sweep.
func (s *StreakStore) FamilyIDsWithActive() ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT family_id FROM streaks WHERE status = ?`, model.StreakActive,
	)
	if err != nil {
		return nil, fmt.Errorf("list families with active streaks: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan family id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Activate flips a pending streak to active at day 1.
func (s *StreakStore) Activate(id int64, startedAt time.Time) error {
	_, err := s.db.Exec(
		`UPDATE streaks SET status = ?, current_day = 1, started_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		model.StreakActive, startedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("activate streak: %w", err)
	}
	return nil
}

// Finish moves the streak to a terminal status. CurrentDay is frozen from
// here on.
func (s *StreakStore) Finish(id int64, status string, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE streaks SET status = ?, ended_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("finish streak: %w", err)
	}
	return nil
}

func (s *StreakStore) SetCurrentDay(id int64, day int) error {
	_, err := s.db.Exec(
		`UPDATE streaks SET current_day = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		day, id,
	)
	if err != nil {
		return fmt.Errorf("set current day: %w", err)
	}
	return nil
}

func (s *StreakStore) Update(id int64, title, description string, durationDays, pointsReward int) (*model.Streak, error) {
	_, err := s.db.Exec(
		`UPDATE streaks SET title = ?, description = ?, duration_days = ?, points_reward = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		title, description, durationDays, pointsReward, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update streak: %w", err)
	}
	return s.GetByID(id)
}

func (s *StreakStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM streaks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete streak: %w", err)
	}
	return nil
}

// --- Task methods ---

func (s *StreakStore) Tasks(streakID int64) ([]model.StreakTask, error) {
	rows, err := s.db.Query(
		`SELECT id, streak_id, title, required, sort_order FROM streak_tasks WHERE streak_id = ? ORDER BY sort_order ASC, id ASC`,
		streakID,
	)
	if err != nil {
		return nil, fmt.Errorf("list streak tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.StreakTask
	for rows.Next() {
		var t model.StreakTask
		var required int
		if err := rows.Scan(&t.ID, &t.StreakID, &t.Title, &required, &t.SortOrder); err != nil {
			return nil, fmt.Errorf("scan streak task: %w", err)
		}
		t.Required = required != 0
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range tasks {
		opts, err := s.taskOptions(tasks[i].ID)
		if err != nil {
			return nil, err
		}
		tasks[i].Options = opts
	}
	return tasks, nil
}

func (s *StreakStore) taskOptions(taskID int64) ([]model.StreakTaskOption, error) {
	rows, err := s.db.Query(
		`SELECT id, task_id, label, sort_order FROM streak_task_options WHERE task_id = ? ORDER BY sort_order ASC, id ASC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list task options: %w", err)
	}
	defer rows.Close()

	var opts []model.StreakTaskOption
	for rows.Next() {
		var o model.StreakTaskOption
		if err := rows.Scan(&o.ID, &o.TaskID, &o.Label, &o.SortOrder); err != nil {
			return nil, fmt.Errorf("scan task option: %w", err)
		}
		opts = append(opts, o)
	}
	return opts, rows.Err()
}

// --- Day methods ---

func scanStreakDay(scanner interface{ Scan(...any) error }) (*model.StreakDay, error) {
	var d model.StreakDay
	var completed int
	var completedAt sql.NullTime

	err := scanner.Scan(&d.ID, &d.StreakID, &d.DayNumber, &d.Date, &completed, &completedAt)
	if err != nil {
		return nil, err
	}

	d.Completed = completed != 0
	if completedAt.Valid {
		d.CompletedAt = &completedAt.Time
	}
	return &d, nil
}

const streakDayCols = `id, streak_id, day_number, date, completed, completed_at`

func (s *StreakStore) CreateDay(streakID int64, dayNumber int, date time.Time) (*model.StreakDay, error) {
	result, err := s.db.Exec(
		`INSERT INTO streak_days (streak_id, day_number, date) VALUES (?, ?, ?)`,
		streakID, dayNumber, date.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert streak day: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+streakDayCols+` FROM streak_days WHERE id = ?`, id)
	return scanStreakDay(row)
}

func (s *StreakStore) GetDay(streakID int64, dayNumber int) (*model.StreakDay, error) {
	row := s.db.QueryRow(
		`SELECT `+streakDayCols+` FROM streak_days WHERE streak_id = ? AND day_number = ?`,
		streakID, dayNumber,
	)
	d, err := scanStreakDay(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get streak day: %w", err)
	}
	return d, nil
}

func (s *StreakStore) ListDays(streakID int64) ([]model.StreakDay, error) {
	rows, err := s.db.Query(
		`SELECT `+streakDayCols+` FROM streak_days WHERE streak_id = ? ORDER BY day_number ASC`,
		streakID,
	)
	if err != nil {
		return nil, fmt.Errorf("list streak days: %w", err)
	}
	defer rows.Close()

	var days []model.StreakDay
	for rows.Next() {
		d, err := scanStreakDay(rows)
		if err != nil {
			return nil, fmt.Errorf("scan streak day: %w", err)
		}
		days = append(days, *d)
	}
	return days, rows.Err()
}

func (s *StreakStore) SetDayCompleted(dayID int64, completed bool, at time.Time) error {
	if completed {
		_, err := s.db.Exec(
			`UPDATE streak_days SET completed = 1, completed_at = ? WHERE id = ?`,
			at.UTC(), dayID,
		)
		if err != nil {
			return fmt.Errorf("set day completed: %w", err)
		}
		return nil
	}
	_, err := s.db.Exec(`UPDATE streak_days SET completed = 0, completed_at = NULL WHERE id = ?`, dayID)
	if err != nil {
		return fmt.Errorf("set day incomplete: %w", err)
	}
	return nil
}

// --- Completion methods ---

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.StreakTaskCompletion, error) {
	var c model.StreakTaskCompletion
	var completed int
	var completedAt, uncheckedAt sql.NullTime
	var optionID, uncheckedBy sql.NullInt64

	err := scanner.Scan(
		&c.ID, &c.StreakID, &c.DayID, &c.TaskID, &completed,
		&completedAt, &optionID, &uncheckedBy, &uncheckedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Completed = completed != 0
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	if optionID.Valid {
		c.OptionID = &optionID.Int64
	}
	if uncheckedBy.Valid {
		c.UncheckedBy = &uncheckedBy.Int64
	}
	if uncheckedAt.Valid {
		c.UncheckedAt = &uncheckedAt.Time
	}
	return &c, nil
}

const completionCols = `id, streak_id, day_id, task_id, completed, completed_at, option_id, unchecked_by, unchecked_at`

// EnsureDayCompletions lazily materializes one completion row per current
// task for the given day. Idempotent: rows that already exist are left
// untouched, so calling it twice (or racing the sweep) is harmless.
func (s *StreakStore) EnsureDayCompletions(streakID, dayID int64) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO streak_task_completions (streak_id, day_id, task_id)
		 SELECT ?, ?, id FROM streak_tasks WHERE streak_id = ?`,
		streakID, dayID, streakID,
	)
	if err != nil {
		return fmt.Errorf("ensure day completions: %w", err)
	}
	return nil
}

func (s *StreakStore) GetCompletion(dayID, taskID int64) (*model.StreakTaskCompletion, error) {
	row := s.db.QueryRow(
		`SELECT `+completionCols+` FROM streak_task_completions WHERE day_id = ? AND task_id = ?`,
		dayID, taskID,
	)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

func (s *StreakStore) ListCompletionsByDay(dayID int64) ([]model.StreakTaskCompletion, error) {
	rows, err := s.db.Query(
		`SELECT `+completionCols+` FROM streak_task_completions WHERE day_id = ? ORDER BY task_id ASC`,
		dayID,
	)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var completions []model.StreakTaskCompletion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		completions = append(completions, *c)
	}
	return completions, rows.Err()
}

// SetCompletion records a check or an uncheck. uncheckedBy is only set when
// an admin reverts someone else's completion, for the audit trail.
func (s *StreakStore) SetCompletion(id int64, completed bool, at time.Time, optionID, uncheckedBy *int64) error {
	var oID, uBy sql.NullInt64
	if optionID != nil {
		oID = sql.NullInt64{Int64: *optionID, Valid: true}
	}
	if uncheckedBy != nil {
		uBy = sql.NullInt64{Int64: *uncheckedBy, Valid: true}
	}

	if completed {
		_, err := s.db.Exec(
			`UPDATE streak_task_completions SET completed = 1, completed_at = ?, option_id = ?, unchecked_by = NULL, unchecked_at = NULL WHERE id = ?`,
			at.UTC(), oID, id,
		)
		if err != nil {
			return fmt.Errorf("set completion: %w", err)
		}
		return nil
	}

	_, err := s.db.Exec(
		`UPDATE streak_task_completions SET completed = 0, completed_at = NULL, option_id = NULL, unchecked_by = ?, unchecked_at = ? WHERE id = ?`,
		uBy, at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("unset completion: %w", err)
	}
	return nil
}

// RequiredRemaining counts required tasks not yet completed for the day.
// Zero means the day is complete.
func (s *StreakStore) RequiredRemaining(dayID int64) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM streak_tasks t
		 JOIN streak_task_completions c ON c.task_id = t.id AND c.day_id = ?
		 WHERE t.required = 1 AND c.completed = 0`,
		dayID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count required remaining: %w", err)
	}
	return n, nil
}

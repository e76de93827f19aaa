package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hollyoak/chorebid/internal/model"
)

type AuctionStore struct {
	db *sql.DB
}

func NewAuctionStore(db *sql.DB) *AuctionStore {
	return &AuctionStore{db: db}
}

func scanAuction(scanner interface{ Scan(...any) error }) (*model.Auction, error) {
	var a model.Auction
	err := scanner.Scan(
		&a.ID, &a.ChoreID, &a.FamilyID, &a.WeekStart, &a.Status,
		&a.StartPoints, &a.EndTime, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const auctionCols = `id, chore_id, family_id, week_start, status, start_points, end_time, created_at`

func (s *AuctionStore) Create(choreID, familyID int64, weekStart time.Time, startPoints int, endTime time.Time) (*model.Auction, error) {
	result, err := s.db.Exec(
		`INSERT INTO auctions (chore_id, family_id, week_start, start_points, end_time) VALUES (?, ?, ?, ?, ?)`,
		choreID, familyID, weekStart.UTC(), startPoints, endTime.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert auction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *AuctionStore) GetByID(id int64) (*model.Auction, error) {
	row := s.db.QueryRow(`SELECT `+auctionCols+` FROM auctions WHERE id = ?`, id)
	a, err := scanAuction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get auction: %w", err)
	}
	return a, nil
}

// CountByFamilyWeek counts auctions for a (family, week) pair. Week
// creation refuses to run at all when any already exist.
func (s *AuctionStore) CountByFamilyWeek(familyID int64, weekStart time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM auctions WHERE family_id = ? AND week_start = ?`,
		familyID, weekStart.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count auctions: %w", err)
	}
	return n, nil
}

func (s *AuctionStore) ListByFamilyWeek(familyID int64, weekStart time.Time) ([]model.Auction, error) {
	rows, err := s.db.Query(
		`SELECT `+auctionCols+` FROM auctions WHERE family_id = ? AND week_start = ? ORDER BY id ASC`,
		familyID, weekStart.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	defer rows.Close()

	var auctions []model.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		auctions = append(auctions, *a)
	}
	return auctions, rows.Err()
}

// ListActiveByFamilyWeek returns the auctions still open for settlement.
func (s *AuctionStore) ListActiveByFamilyWeek(familyID int64, weekStart time.Time) ([]model.Auction, error) {
	rows, err := s.db.Query(
		`SELECT `+auctionCols+` FROM auctions WHERE family_id = ? AND week_start = ? AND status = ? ORDER BY id ASC`,
		familyID, weekStart.UTC(), model.AuctionActive,
	)
	if err != nil {
		return nil, fmt.Errorf("list active auctions: %w", err)
	}
	defer rows.Close()

	var auctions []model.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		auctions = append(auctions, *a)
	}
	return auctions, rows.Err()
}

func (s *AuctionStore) UpdateStatus(id int64, status string) error {
	_, err := s.db.Exec(`UPDATE auctions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update auction status: %w", err)
	}
	return nil
}

// StopActiveByFamilyWeek marks every active auction in the week stopped and
// returns the count. Completed auctions are untouched.
func (s *AuctionStore) StopActiveByFamilyWeek(familyID int64, weekStart time.Time) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE auctions SET status = ? WHERE family_id = ? AND week_start = ? AND status = ?`,
		model.AuctionStopped, familyID, weekStart.UTC(), model.AuctionActive,
	)
	if err != nil {
		return 0, fmt.Errorf("stop auctions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// DeleteNonCompletedByFamilyWeek removes all stopped/active auctions in the
// week; their bids go with them via cascade. Completed auctions survive:
// settlement is a one-way door.
func (s *AuctionStore) DeleteNonCompletedByFamilyWeek(familyID int64, weekStart time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM auctions WHERE family_id = ? AND week_start = ? AND status != ?`,
		familyID, weekStart.UTC(), model.AuctionCompleted,
	)
	if err != nil {
		return 0, fmt.Errorf("delete auctions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Settle marks the auction completed and creates the winner's seven
// assignments in one transaction, so a failure partway leaves the auction
// untouched.
func (s *AuctionStore) Settle(auctionID, winnerID int64, days []time.Time) error {
	a, err := s.GetByID(auctionID)
	if err != nil {
		return err
	}
	if a == nil {
		return fmt.Errorf("auction %d not found", auctionID)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE auctions SET status = ? WHERE id = ?`,
		model.AuctionCompleted, auctionID,
	); err != nil {
		return fmt.Errorf("complete auction: %w", err)
	}

	for _, day := range days {
		if _, err := tx.Exec(
			`INSERT INTO chore_assignments (chore_id, family_id, user_id, date) VALUES (?, ?, ?, ?)`,
			a.ChoreID, a.FamilyID, winnerID, day.UTC(),
		); err != nil {
			return fmt.Errorf("insert assignment for %s: %w", day.Format("2006-01-02"), err)
		}
	}

	return tx.Commit()
}

// ExtendUnbid bumps the chore's base points and pushes the auction's end
// time out, atomically. The round stays open.
func (s *AuctionStore) ExtendUnbid(auctionID, choreID int64, newPoints int, newEnd time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE chores SET points = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		newPoints, choreID,
	); err != nil {
		return fmt.Errorf("bump chore points: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE auctions SET start_points = ?, end_time = ? WHERE id = ?`,
		newPoints, newEnd.UTC(), auctionID,
	); err != nil {
		return fmt.Errorf("extend auction: %w", err)
	}

	return tx.Commit()
}

// --- Bid methods ---

func scanBid(scanner interface{ Scan(...any) error }) (*model.Bid, error) {
	var b model.Bid
	err := scanner.Scan(&b.ID, &b.AuctionID, &b.UserID, &b.Points, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

const bidCols = `id, auction_id, user_id, points, created_at, updated_at`

// UpsertBid creates the caller's bid or replaces their existing one. The
// (auction, user) uniqueness constraint makes the upsert race-safe for a
// user double-submitting.
func (s *AuctionStore) UpsertBid(auctionID, userID int64, points int) (*model.Bid, error) {
	_, err := s.db.Exec(
		`INSERT INTO bids (auction_id, user_id, points) VALUES (?, ?, ?)
		 ON CONFLICT (auction_id, user_id) DO UPDATE SET points = excluded.points, updated_at = CURRENT_TIMESTAMP`,
		auctionID, userID, points,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert bid: %w", err)
	}

	row := s.db.QueryRow(
		`SELECT `+bidCols+` FROM bids WHERE auction_id = ? AND user_id = ?`,
		auctionID, userID,
	)
	return scanBid(row)
}

// LowestBid returns the current leading bid, or nil when the auction has no
// bids. Ties (unreachable under strict improvement) break to the earliest
// created, then lowest id.
func (s *AuctionStore) LowestBid(auctionID int64) (*model.Bid, error) {
	row := s.db.QueryRow(
		`SELECT `+bidCols+` FROM bids WHERE auction_id = ? ORDER BY points ASC, created_at ASC, id ASC LIMIT 1`,
		auctionID,
	)
	b, err := scanBid(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lowest bid: %w", err)
	}
	return b, nil
}

func (s *AuctionStore) ListBids(auctionID int64) ([]model.Bid, error) {
	rows, err := s.db.Query(
		`SELECT `+bidCols+` FROM bids WHERE auction_id = ? ORDER BY points ASC, created_at ASC, id ASC`,
		auctionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()

	var bids []model.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		bids = append(bids, *b)
	}
	return bids, rows.Err()
}

func (s *AuctionStore) CountBids(auctionID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM bids WHERE auction_id = ?`, auctionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bids: %w", err)
	}
	return n, nil
}

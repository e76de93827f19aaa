package streak

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hollyoak/chorebid/internal/store"
)

// Sweeper periodically runs the advancement check over every family's
// active streaks. Each family is swept only during the midnight hour of
// its own timezone, which is when day boundaries actually move.
type Sweeper struct {
	mu       sync.RWMutex
	engine   *Engine
	streaks  *store.StreakStore
	families *store.FamilyStore
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewSweeper(engine *Engine, streaks *store.StreakStore, families *store.FamilyStore, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		engine:   engine,
		streaks:  streaks,
		families: families,
		logger:   logger.With("component", "streak_sweeper"),
		interval: 15 * time.Minute,
		now:      time.Now,
	}
}

// Start begins the sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Stop gracefully stops the sweep loop.
func (s *Sweeper) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Sweep runs one pass over every family that has active streaks.
func (s *Sweeper) Sweep() {
	familyIDs, err := s.streaks.FamilyIDsWithActive()
	if err != nil {
		s.logger.Error("list families with active streaks", "error", err)
		return
	}
	for _, id := range familyIDs {
		s.sweepFamily(id)
	}
}

func (s *Sweeper) sweepFamily(familyID int64) {
	family, err := s.families.GetByID(familyID)
	if err != nil {
		s.logger.Error("load family", "family_id", familyID, "error", err)
		return
	}
	if family == nil {
		return
	}
	if !s.inMidnightHour(family.Timezone) {
		return
	}

	active, err := s.streaks.ListActiveByFamily(familyID)
	if err != nil {
		s.logger.Error("list active streaks", "family_id", familyID, "error", err)
		return
	}
	for _, st := range active {
		if _, err := s.engine.CheckProgress(st.ID); err != nil {
			s.logger.Error("streak sweep", "streak_id", st.ID, "error", err)
		}
	}
}

func (s *Sweeper) inMidnightHour(tz string) bool {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return s.now().In(loc).Hour() == 0
}

// Package activity is the append-only audit side channel. Writes are
// best-effort: a failed insert is logged and dropped, never surfaced to the
// operation that triggered it.
package activity

import (
	"log/slog"

	"github.com/hollyoak/chorebid/internal/store"
)

// Recorder is the interface the engines write audit entries through.
type Recorder interface {
	Record(familyID int64, userID *int64, action, details string)
}

// Log records entries into the activity_log table.
type Log struct {
	store  *store.ActivityStore
	logger *slog.Logger
}

func NewLog(st *store.ActivityStore, logger *slog.Logger) *Log {
	return &Log{store: st, logger: logger}
}

func (l *Log) Record(familyID int64, userID *int64, action, details string) {
	if err := l.store.Create(familyID, userID, action, details); err != nil {
		l.logger.Error("record activity", "family_id", familyID, "action", action, "error", err)
	}
}

// Nop discards all entries. Used in tests.
type Nop struct{}

func (Nop) Record(int64, *int64, string, string) {}

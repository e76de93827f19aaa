// Package notify is the best-effort fan-out the engines announce events
// through. Delivery is never guaranteed and never blocks the primary
// operation.
package notify

import (
	"github.com/hollyoak/chorebid/internal/websocket"
)

// Notifier broadcasts an event to a family's connected members.
// excludeUserID skips the actor's own connections; pass 0 to reach
// everyone.
type Notifier interface {
	Family(familyID, excludeUserID int64, entity, action string, id int64, extra map[string]any)
}

// Service fans events out over the WebSocket hub.
type Service struct {
	hub *websocket.Hub
}

func NewService(hub *websocket.Hub) *Service {
	return &Service{hub: hub}
}

func (s *Service) Family(familyID, excludeUserID int64, entity, action string, id int64, extra map[string]any) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastFamily(familyID, excludeUserID, websocket.NewMessage(entity, action, id, extra))
}

// Nop discards all notifications. Used in tests.
type Nop struct{}

func (Nop) Family(int64, int64, string, string, int64, map[string]any) {}

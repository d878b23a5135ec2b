package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/theatre"
)

// TheatreNotifier fans theatre change events out to doctor, nurse and admin
// rooms. It implements theatre.Notifier. Failures are logged and swallowed:
// the mutation has already been persisted and clients re-fetch on reconnect.
type TheatreNotifier struct {
	hub    *Hub
	logger zerolog.Logger
}

func NewTheatreNotifier(hub *Hub, logger zerolog.Logger) *TheatreNotifier {
	return &TheatreNotifier{hub: hub, logger: logger}
}

func (n *TheatreNotifier) TheatrePublished(_ context.Context, event string, t *theatre.Theatre) {
	data, err := json.Marshal(t)
	if err != nil {
		n.logger.Error().Err(err).Str("event", event).Msg("failed to marshal theatre event")
		return
	}
	n.hub.Broadcast(StaffRooms(), Event{
		Type:      event,
		Timestamp: time.Now(),
		Data:      data,
	})
}

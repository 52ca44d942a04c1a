package app

import (
	"github.com/rs/zerolog/log"

	"github.com/visign/signaling/internal/core"
	"github.com/visign/signaling/internal/domain"
	"github.com/visign/signaling/internal/metrics"
)

// Broadcaster delivers room-wide events to every listed connection. The
// coordinator computes the all-but-actor target set and calls Notify under the
// room lock, so enqueue order here is the room's operation order; each send is
// a non-blocking handoff to the connection's write pump.
type Broadcaster struct {
	sender core.Sender
}

func NewBroadcaster(sender core.Sender) *Broadcaster {
	return &Broadcaster{sender: sender}
}

func (b *Broadcaster) Notify(targets []domain.ConnectionID, ev core.Event) {
	sent := 0
	for _, id := range targets {
		if err := b.sender.SendToConnection(id, ev.Name, ev.Payload); err != nil {
			// Dead or backpressured connection; its own lifecycle handling
			// will catch up with it.
			log.Debug().Err(err).Str("module", "app.presence").
				Str("event", ev.Name).Str("conn", string(id)).Msg("notify skipped")
			continue
		}
		sent++
	}
	metrics.EventsBroadcast(sent)
}

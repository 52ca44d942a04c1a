package core

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Reaper periodically evicts participants that dropped their transport and
// never came back. It runs on a fixed interval regardless of room activity.
type Reaper struct {
	coord    Coordinator
	interval time.Duration
	grace    time.Duration
}

func NewReaper(coord Coordinator, interval, grace time.Duration) *Reaper {
	return &Reaper{coord: coord, interval: interval, grace: grace}
}

// Run blocks until ctx is done. Start it in its own goroutine.
func (r *Reaper) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	log.Info().Str("module", "core.reaper").
		Dur("interval", r.interval).Dur("grace", r.grace).Msg("reaper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "core.reaper").Msg("reaper stopped")
			return
		case <-t.C:
			if n := r.coord.ReapStale(r.grace); n > 0 {
				log.Info().Str("module", "core.reaper").Int("reaped", n).Msg("sweep finished")
			}
		}
	}
}

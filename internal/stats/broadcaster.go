package stats

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Muhiddinjon/call-center-crm/internal/bus"
	"github.com/Muhiddinjon/call-center-crm/internal/metrics"
	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

// Broadcaster periodically publishes today's snapshot on the event bus so
// dashboards refresh without polling the stats endpoint.
type Broadcaster struct {
	service  *Service
	bus      *bus.Bus
	interval time.Duration
	logger   zerolog.Logger
}

func NewBroadcaster(service *Service, b *bus.Bus, interval time.Duration, logger zerolog.Logger) *Broadcaster {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Broadcaster{
		service:  service,
		bus:      b,
		interval: interval,
		logger:   logger.With().Str("component", "stats_broadcaster").Logger(),
	}
}

// Start runs the snapshot loop until the context is cancelled. Run it in
// its own goroutine.
func (b *Broadcaster) Start(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	m := metrics.Get()
	b.logger.Info().Dur("interval", b.interval).Msg("stats broadcaster started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("stats broadcaster stopped")
			return

		case <-ticker.C:
			cycleStart := time.Now()

			snap, err := b.service.Daily(ctx, "")
			if err != nil {
				b.logger.Error().Err(err).Msg("failed to build daily snapshot")
				m.RecordSnapshotError()
				continue
			}

			if _, err := b.bus.Publish(ctx, types.EventStatsSnapshot, snap); err != nil {
				b.logger.Error().Err(err).Msg("failed to publish snapshot")
				m.RecordSnapshotError()
				continue
			}

			m.RecordSnapshotCycle(time.Since(cycleStart))
			b.logger.Debug().
				Str("date", snap.Date).
				Int("total_calls", snap.TotalCalls).
				Msg("snapshot published")
		}
	}
}

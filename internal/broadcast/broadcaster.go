package broadcast

import (
	"context"
	"encoding/json"

	"github.com/pricewire/pricewire/internal/domain"
	"github.com/pricewire/pricewire/internal/logging"
	"github.com/pricewire/pricewire/internal/metrics"
	"github.com/pricewire/pricewire/internal/registry"
)

// Broadcaster fans a price update out to every session in the registry's
// current snapshot. Delivery runs synchronously in the loop that consumes
// the listener's update channel, so updates are delivered in the order the
// listener received them.
type Broadcaster struct {
	registry *registry.Registry
}

func NewBroadcaster(reg *registry.Registry) *Broadcaster {
	return &Broadcaster{registry: reg}
}

// Run consumes updates until the channel is closed or the context is
// cancelled. No delivery is attempted after cancellation.
func (b *Broadcaster) Run(ctx context.Context, updates <-chan domain.PriceUpdate) {
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.Deliver(update)
		case <-ctx.Done():
			return
		}
	}
}

// Deliver serializes the update once and attempts to write it to every
// session in the snapshot. A failure on one session never aborts delivery
// to the rest; each failed session is removed from the registry and closed.
func (b *Broadcaster) Deliver(update domain.PriceUpdate) {
	log := logging.WithTicker(update.Ticker)

	data, err := json.Marshal(update)
	if err != nil {
		log.Error("Failed to marshal price update", "error", err)
		return
	}

	snapshot := b.registry.Snapshot()
	metrics.BroadcastsTotal.Inc()

	var failed []*registry.Session
	for _, session := range snapshot {
		if err := session.Write(data); err != nil {
			failed = append(failed, session)
		}
	}

	for _, session := range failed {
		b.registry.Remove(session.ID())
		session.Close(1011, "delivery failed")
		metrics.DeliveryFailuresTotal.Inc()
		metrics.ConnectedClients.Set(float64(b.registry.Len()))
		log.Warn("Pruned session after delivery failure", "session_id", session.ID().String())
	}

	log.Debug("Broadcast delivered",
		"recipients", len(snapshot)-len(failed),
		"pruned", len(failed),
	)
}

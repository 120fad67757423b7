package hub

import (
	"time"

	"go.uber.org/zap"
)

// sweepLoop runs the fixed-interval liveness sweep. The protocol is two
// rounds: each sweep clears the alive flag and probes; a connection that
// still has the flag cleared on the next sweep missed a full round and
// is evicted.
func (h *Hub) sweepLoop() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

func (h *Hub) sweep() {
	dead, probe := h.registry.beginSweep()

	for _, id := range dead {
		h.log.Info("heartbeat missed twice, evicting connection",
			zap.String("connectionId", id))
		h.Disconnect(id)
	}

	deadline := time.Now().Add(h.pingTimeout)
	for _, c := range probe {
		if err := c.ping(deadline); err != nil {
			h.log.Info("heartbeat probe failed, evicting connection",
				zap.String("connectionId", c.id), zap.Error(err))
			h.Disconnect(c.id)
		}
	}
}

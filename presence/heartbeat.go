package presence

import (
	"context"
	"log"
	"time"
)

// Heartbeat posts a low-frequency liveness signal while the session is
// open, so the server can notice a client that vanished without firing any
// lifecycle event at all.
type Heartbeat struct {
	transport Transport
	interval  time.Duration
}

func NewHeartbeat(transport Transport, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Heartbeat{transport: transport, interval: interval}
}

// Run blocks, sending one beat per interval until the context is cancelled.
// Delivery failures are logged and the loop keeps going; a missed beat is
// exactly the condition the server is watching for.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sig := Signal{Trigger: "heartbeat", Timestamp: time.Now()}
			if err := h.transport.Deliver(ctx, sig); err != nil {
				log.Printf("presence: heartbeat failed: %v", err)
			}
		}
	}
}

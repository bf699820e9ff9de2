package relay

import (
	"github.com/rs/zerolog/log"
)

// Sweep evicts every endpoint that has been silent for longer than the
// liveness timeout and returns the evicted ids. Eviction follows the same
// path as a disconnect, so call attempts involving the endpoint are torn
// down, presence is re-broadcast, and the transport session is closed —
// otherwise an evicted client would sit on a live connection whose frames
// the relay silently ignores. Endpoints that sent anything within the
// timeout window are never touched.
//
// The scheduler in cmd/signaling runs this on a fixed period; tests call it
// directly with a fake clock.
func (r *Relay) Sweep() []string {
	r.mu.Lock()

	now := r.clock.Now()
	var evicted []string
	var senders []Sender
	for _, id := range r.order {
		if now.Sub(r.endpoints[id].lastActiveAt) > r.timeout {
			evicted = append(evicted, id)
			senders = append(senders, r.endpoints[id].sender)
		}
	}

	for _, id := range evicted {
		r.endCallLocked(id)
		r.removeLocked(id)
		log.Info().Str("endpoint_id", id).Msg("Endpoint evicted after liveness timeout")
	}
	if len(evicted) > 0 {
		r.broadcastPresenceLocked()
	}
	onEvict := r.onEvict
	r.mu.Unlock()

	for i, id := range evicted {
		if err := senders[i].Close(); err != nil {
			log.Debug().Err(err).Str("endpoint_id", id).Msg("Closing evicted session")
		}
		if onEvict != nil {
			onEvict(id)
		}
	}
	return evicted
}

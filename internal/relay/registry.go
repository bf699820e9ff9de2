package relay

import (
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/peercall/signaling/internal/models"
)

// Join registers a new endpoint, pushes its assigned id to it as your-id and
// broadcasts the updated presence snapshot to every connected session, the
// newcomer included. A rejected join delivers nothing: the connection never
// learns an id it does not hold.
func (r *Relay) Join(endpointID string, sender Sender) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.endpoints[endpointID]; exists {
		return ErrDuplicateEndpoint
	}

	ep := &endpoint{
		id:           endpointID,
		lastActiveAt: r.clock.Now(),
		sender:       sender,
	}
	r.endpoints[endpointID] = ep
	r.order = append(r.order, endpointID)

	log.Info().Str("endpoint_id", endpointID).Int("count", len(r.endpoints)).Msg("Endpoint joined")
	r.deliver(ep, models.SignalMessage{Type: models.SignalTypeYourID, To: endpointID})
	r.broadcastPresenceLocked()
	return nil
}

// Leave removes an endpoint, tearing down any call attempt it is part of
// first so no attempt ever references a departed endpoint. Leaving an
// already-absent id is a no-op.
func (r *Relay) Leave(endpointID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.endpoints[endpointID]; !exists {
		return
	}

	r.endCallLocked(endpointID)
	r.removeLocked(endpointID)

	log.Info().Str("endpoint_id", endpointID).Int("count", len(r.endpoints)).Msg("Endpoint left")
	r.broadcastPresenceLocked()
}

// Touch records inbound activity. A message that arrives after disconnect is
// a benign race and is ignored.
func (r *Relay) Touch(endpointID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ep, exists := r.endpoints[endpointID]; exists {
		ep.lastActiveAt = r.clock.Now()
	}
}

// SetInfo applies a partial metadata update. Empty fields are left unchanged.
// The external identity sticks once set; later attempts to change it are
// logged and ignored (the relay does not arbitrate identity). It returns the
// display name and external identity in effect after the update, so mirrors
// record exactly what the registry applied rather than what was requested.
func (r *Relay) SetInfo(endpointID, displayName, externalIdentity string) (string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ep, exists := r.endpoints[endpointID]
	if !exists {
		return "", ""
	}

	changed := false
	if displayName != "" && displayName != ep.displayName {
		ep.displayName = displayName
		changed = true
	}
	if externalIdentity != "" && externalIdentity != ep.externalIdentity {
		if ep.externalIdentity != "" {
			log.Warn().Str("endpoint_id", endpointID).Msg("Ignoring attempt to change an already-set external identity")
		} else {
			ep.externalIdentity = externalIdentity
			changed = true
		}
	}

	if changed {
		r.broadcastPresenceLocked()
	}
	return ep.displayName, ep.externalIdentity
}

// Snapshot returns a point-in-time, insertion-ordered copy of the presence
// set. It does not track later changes.
func (r *Relay) Snapshot() []models.EndpointSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Relay) snapshotLocked() []models.EndpointSummary {
	return lo.Map(r.order, func(id string, _ int) models.EndpointSummary {
		ep := r.endpoints[id]
		return models.EndpointSummary{
			ID:               ep.id,
			DisplayName:      ep.displayName,
			ExternalIdentity: ep.externalIdentity,
		}
	})
}

func (r *Relay) broadcastPresenceLocked() {
	msg := models.SignalMessage{
		Type:      models.SignalTypePresence,
		Endpoints: r.snapshotLocked(),
	}
	for _, id := range r.order {
		r.deliver(r.endpoints[id], msg)
	}
}

func (r *Relay) removeLocked(endpointID string) {
	delete(r.endpoints, endpointID)
	for i, id := range r.order {
		if id == endpointID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

package relay

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/peercall/signaling/internal/models"
)

// RequestCall starts a signaling handshake from caller to callee and forwards
// the opaque offer to the callee only. A caller gets one active attempt at a
// time: a new request implicitly ends its previous one (cancel-and-replace),
// with the abandoned party notified via call-ended. An attempt already held
// by the pair in the opposite direction is overwritten, since the incoming
// call supersedes it on the other side.
func (r *Relay) RequestCall(callerID, calleeID string, offer json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if callerID == calleeID {
		return ErrSelfCall
	}
	caller, ok := r.endpoints[callerID]
	if !ok {
		return ErrUnknownEndpoint
	}
	callee, ok := r.endpoints[calleeID]
	if !ok {
		return ErrUnknownEndpoint
	}

	if key, ok := r.byCaller[callerID]; ok {
		r.dropAttemptLocked(key, callerID, true)
	}

	key := pairKey(callerID, calleeID)
	if prev, ok := r.attempts[key]; ok {
		// The callee had called the caller first. Replace without a
		// call-ended: the incoming-call below resets the other side.
		delete(r.byCaller, prev.callerID)
		delete(r.attempts, key)
	}

	r.attempts[key] = &callAttempt{
		callerID:  callerID,
		calleeID:  calleeID,
		state:     callRequested,
		createdAt: r.clock.Now(),
	}
	r.byCaller[callerID] = key

	log.Debug().Str("caller_id", callerID).Str("callee_id", calleeID).Msg("Call requested")
	r.deliver(callee, models.SignalMessage{
		Type:    models.SignalTypeIncomingCall,
		From:    caller.id,
		Payload: offer,
	})
	return nil
}

// AcceptCall completes the handshake: the callee's answer is forwarded to the
// caller only, and the attempt moves to Accepted. Accepting a call that is no
// longer pending (cancelled, replaced, or never requested) fails with
// ErrNoPendingCall.
func (r *Relay) AcceptCall(calleeID, callerID string, answer json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempt, ok := r.attempts[pairKey(callerID, calleeID)]
	if !ok || attempt.state != callRequested ||
		attempt.callerID != callerID || attempt.calleeID != calleeID {
		return ErrNoPendingCall
	}

	caller, ok := r.endpoints[callerID]
	if !ok {
		// Leave cascades attempt teardown, so a live attempt always
		// references live endpoints. Worth noticing if it ever trips.
		log.Error().Str("caller_id", callerID).Msg("Call attempt references a missing caller")
		return ErrNoPendingCall
	}

	attempt.state = callAccepted

	log.Debug().Str("caller_id", callerID).Str("callee_id", calleeID).Msg("Call accepted")
	r.deliver(caller, models.SignalMessage{
		Type:    models.SignalTypeCallAccepted,
		Payload: answer,
	})
	return nil
}

// EndCall tears down every active attempt the endpoint is part of, notifying
// the other party so its waiting UI can reset. Idempotent: with nothing to
// tear down it does nothing.
func (r *Relay) EndCall(endpointID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endCallLocked(endpointID)
}

func (r *Relay) endCallLocked(endpointID string) {
	var keys []string
	for key, attempt := range r.attempts {
		if attempt.callerID == endpointID || attempt.calleeID == endpointID {
			keys = append(keys, key)
		}
	}
	for _, key := range keys {
		r.dropAttemptLocked(key, endpointID, true)
	}
}

// dropAttemptLocked removes one attempt; when notify is set the party other
// than endpointID receives call-ended.
func (r *Relay) dropAttemptLocked(key, endpointID string, notify bool) {
	attempt, ok := r.attempts[key]
	if !ok {
		return
	}
	delete(r.attempts, key)
	delete(r.byCaller, attempt.callerID)

	otherID := attempt.callerID
	if otherID == endpointID {
		otherID = attempt.calleeID
	}
	log.Debug().Str("caller_id", attempt.callerID).Str("callee_id", attempt.calleeID).Msg("Call ended")

	if !notify {
		return
	}
	if other, ok := r.endpoints[otherID]; ok {
		r.deliver(other, models.SignalMessage{
			Type: models.SignalTypeCallEnded,
			From: endpointID,
		})
	}
}

package relay

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/peercall/signaling/internal/models"
)

func rawOffer(s string) json.RawMessage {
	return json.RawMessage(`"` + s + `"`)
}

func TestRequestCall_DeliversOfferToCalleeOnly(t *testing.T) {
	r, _ := newTestRelay(t)
	s1 := mustJoin(t, r, "e1")
	s2 := mustJoin(t, r, "e2")
	s3 := mustJoin(t, r, "e3")

	if err := r.RequestCall("e1", "e2", rawOffer("O")); err != nil {
		t.Fatalf("RequestCall: %v", err)
	}

	got, ok := s2.lastOf(models.SignalTypeIncomingCall)
	if !ok {
		t.Fatal("callee received no incoming-call")
	}
	if got.From != "e1" || string(got.Payload) != `"O"` {
		t.Fatalf("unexpected incoming-call: %+v", got)
	}
	if s1.countOf(models.SignalTypeIncomingCall) != 0 || s3.countOf(models.SignalTypeIncomingCall) != 0 {
		t.Fatal("incoming-call leaked beyond the callee")
	}
}

func TestRequestCall_Preconditions(t *testing.T) {
	r, _ := newTestRelay(t)
	mustJoin(t, r, "e1")

	if err := r.RequestCall("e1", "e1", rawOffer("O")); !errors.Is(err, ErrSelfCall) {
		t.Fatalf("self-call: expected ErrSelfCall, got %v", err)
	}
	if err := r.RequestCall("e1", "ghost", rawOffer("O")); !errors.Is(err, ErrUnknownEndpoint) {
		t.Fatalf("absent callee: expected ErrUnknownEndpoint, got %v", err)
	}
	if err := r.RequestCall("ghost", "e1", rawOffer("O")); !errors.Is(err, ErrUnknownEndpoint) {
		t.Fatalf("absent caller: expected ErrUnknownEndpoint, got %v", err)
	}
	if len(r.attempts) != 0 {
		t.Fatalf("failed requests must not leave attempts behind, got %d", len(r.attempts))
	}
}

func TestAcceptCall_DeliversAnswerToCallerAndTransitions(t *testing.T) {
	r, _ := newTestRelay(t)
	s1 := mustJoin(t, r, "e1")
	mustJoin(t, r, "e2")

	if err := r.RequestCall("e1", "e2", rawOffer("O")); err != nil {
		t.Fatalf("RequestCall: %v", err)
	}
	if err := r.AcceptCall("e2", "e1", rawOffer("A")); err != nil {
		t.Fatalf("AcceptCall: %v", err)
	}

	got, ok := s1.lastOf(models.SignalTypeCallAccepted)
	if !ok {
		t.Fatal("caller received no call-accepted")
	}
	if string(got.Payload) != `"A"` {
		t.Fatalf("unexpected answer payload: %s", got.Payload)
	}

	attempt := r.attempts[pairKey("e1", "e2")]
	if attempt == nil || attempt.state != callAccepted {
		t.Fatalf("attempt not in Accepted state: %+v", attempt)
	}
}

func TestAcceptCall_NoPendingCall(t *testing.T) {
	r, _ := newTestRelay(t)
	mustJoin(t, r, "e1")
	mustJoin(t, r, "e2")

	if err := r.AcceptCall("e2", "e1", rawOffer("A")); !errors.Is(err, ErrNoPendingCall) {
		t.Fatalf("expected ErrNoPendingCall, got %v", err)
	}

	// Wrong orientation: the callee cannot be accepted by the caller.
	if err := r.RequestCall("e1", "e2", rawOffer("O")); err != nil {
		t.Fatalf("RequestCall: %v", err)
	}
	if err := r.AcceptCall("e1", "e2", rawOffer("A")); !errors.Is(err, ErrNoPendingCall) {
		t.Fatalf("reversed accept: expected ErrNoPendingCall, got %v", err)
	}

	// Replayed accept after the attempt already moved on.
	if err := r.AcceptCall("e2", "e1", rawOffer("A")); err != nil {
		t.Fatalf("AcceptCall: %v", err)
	}
	if err := r.AcceptCall("e2", "e1", rawOffer("A")); !errors.Is(err, ErrNoPendingCall) {
		t.Fatalf("replayed accept: expected ErrNoPendingCall, got %v", err)
	}
}

func TestRequestCall_CancelAndReplace(t *testing.T) {
	// A second request from the same caller before the first was accepted
	// must end the first attempt.
	r, _ := newTestRelay(t)
	mustJoin(t, r, "e1")
	s2 := mustJoin(t, r, "e2")
	s3 := mustJoin(t, r, "e3")

	if err := r.RequestCall("e1", "e2", rawOffer("O1")); err != nil {
		t.Fatalf("RequestCall e2: %v", err)
	}
	if err := r.RequestCall("e1", "e3", rawOffer("O2")); err != nil {
		t.Fatalf("RequestCall e3: %v", err)
	}

	ended, ok := s2.lastOf(models.SignalTypeCallEnded)
	if !ok {
		t.Fatal("abandoned callee received no call-ended")
	}
	if ended.From != "e1" {
		t.Fatalf("call-ended from %s, want e1", ended.From)
	}

	if _, ok := r.attempts[pairKey("e1", "e2")]; ok {
		t.Fatal("replaced attempt still present")
	}
	attempt := r.attempts[pairKey("e1", "e3")]
	if attempt == nil || attempt.state != callRequested {
		t.Fatalf("new attempt not Requested: %+v", attempt)
	}
	if s3.countOf(models.SignalTypeIncomingCall) != 1 {
		t.Fatal("new callee missed the incoming-call")
	}
}

func TestRequestCall_OverwritesOppositeDirectionAttempt(t *testing.T) {
	r, _ := newTestRelay(t)
	mustJoin(t, r, "e1")
	mustJoin(t, r, "e2")

	if err := r.RequestCall("e2", "e1", rawOffer("O1")); err != nil {
		t.Fatalf("RequestCall: %v", err)
	}
	if err := r.RequestCall("e1", "e2", rawOffer("O2")); err != nil {
		t.Fatalf("counter-request: %v", err)
	}

	if len(r.attempts) != 1 {
		t.Fatalf("expected single attempt per pair, got %d", len(r.attempts))
	}
	attempt := r.attempts[pairKey("e1", "e2")]
	if attempt.callerID != "e1" || attempt.calleeID != "e2" || attempt.state != callRequested {
		t.Fatalf("unexpected attempt after overwrite: %+v", attempt)
	}
	// e2's stale caller slot must be freed.
	if _, ok := r.byCaller["e2"]; ok {
		t.Fatal("overwritten caller still indexed")
	}
}

func TestEndCall_NotifiesOtherPartyAndIsIdempotent(t *testing.T) {
	r, _ := newTestRelay(t)
	mustJoin(t, r, "e1")
	s2 := mustJoin(t, r, "e2")

	if err := r.RequestCall("e1", "e2", rawOffer("O")); err != nil {
		t.Fatalf("RequestCall: %v", err)
	}

	r.EndCall("e1")
	if got := s2.countOf(models.SignalTypeCallEnded); got != 1 {
		t.Fatalf("call-ended count = %d, want 1", got)
	}

	r.EndCall("e1") // nothing left to end
	if got := s2.countOf(models.SignalTypeCallEnded); got != 1 {
		t.Fatalf("second EndCall emitted a duplicate call-ended (count %d)", got)
	}
	if len(r.attempts) != 0 || len(r.byCaller) != 0 {
		t.Fatal("attempt table not empty after EndCall")
	}
}

func TestEndCall_ByCalleeEndsAllItsAttempts(t *testing.T) {
	r, _ := newTestRelay(t)
	s1 := mustJoin(t, r, "e1")
	mustJoin(t, r, "e2")
	s3 := mustJoin(t, r, "e3")

	// Two callers ringing the same callee.
	if err := r.RequestCall("e1", "e2", rawOffer("O1")); err != nil {
		t.Fatalf("RequestCall: %v", err)
	}
	if err := r.RequestCall("e3", "e2", rawOffer("O2")); err != nil {
		t.Fatalf("RequestCall: %v", err)
	}

	r.EndCall("e2")
	if s1.countOf(models.SignalTypeCallEnded) != 1 || s3.countOf(models.SignalTypeCallEnded) != 1 {
		t.Fatal("both callers should learn their call ended")
	}
	if len(r.attempts) != 0 {
		t.Fatalf("attempt table not empty, got %d", len(r.attempts))
	}
}

func TestLeave_CascadesCallTeardown(t *testing.T) {
	// e2 disconnects while the e1-e2 attempt is Accepted.
	r, _ := newTestRelay(t)
	s1 := mustJoin(t, r, "e1")
	mustJoin(t, r, "e2")

	if err := r.RequestCall("e1", "e2", rawOffer("O")); err != nil {
		t.Fatalf("RequestCall: %v", err)
	}
	if err := r.AcceptCall("e2", "e1", rawOffer("A")); err != nil {
		t.Fatalf("AcceptCall: %v", err)
	}

	r.Leave("e2")

	if got := s1.countOf(models.SignalTypeCallEnded); got != 1 {
		t.Fatalf("caller call-ended count = %d, want 1", got)
	}
	for _, ep := range r.Snapshot() {
		if ep.ID == "e2" {
			t.Fatal("registry still lists e2")
		}
	}
	for _, attempt := range r.attempts {
		if attempt.callerID == "e2" || attempt.calleeID == "e2" {
			t.Fatalf("dangling attempt references e2: %+v", attempt)
		}
	}
}

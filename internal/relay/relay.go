// Package relay owns the presence registry and the call-signaling state
// machine. All state lives behind a single mutex: a registry operation, a
// call transition or a sweep pass never observes another one half-applied.
package relay

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/peercall/signaling/internal/models"
)

// Sender delivers one message to a connected transport session. Send must
// not block: a slow or dead recipient drops the message and returns false.
// Close tears the session down; the relay closes evicted endpoints so a
// swept client is not left on a live connection it can no longer signal on.
type Sender interface {
	Send(msg models.SignalMessage) bool
	Close() error
}

// Clock abstracts time.Now so the sweeper can be tested deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

const DefaultLivenessTimeout = 10 * time.Second

// Options configures a Relay. Zero values fall back to defaults.
type Options struct {
	// LivenessTimeout is how long an endpoint may stay silent before a
	// sweep evicts it.
	LivenessTimeout time.Duration

	// Clock defaults to the system clock.
	Clock Clock

	// OnEvict is invoked (outside the relay lock) for every endpoint the
	// sweeper removes, so external bookkeeping such as the redis presence
	// mirror can catch up. May be nil.
	OnEvict func(endpointID string)
}

// endpoint is one connected session. Owned exclusively by the relay; the
// transport layer only ever sees ids and summaries.
type endpoint struct {
	id               string
	displayName      string
	externalIdentity string
	lastActiveAt     time.Time
	sender           Sender
}

type callState int

const (
	callRequested callState = iota
	callAccepted
)

// callAttempt is the ephemeral record of one signaling handshake. There is
// at most one per unordered endpoint pair; absence means no active call.
type callAttempt struct {
	callerID  string
	calleeID  string
	state     callState
	createdAt time.Time
}

// Relay is the single serialization point for presence and call state.
type Relay struct {
	mu        sync.Mutex
	endpoints map[string]*endpoint
	order     []string // insertion order for snapshots
	attempts  map[string]*callAttempt
	byCaller  map[string]string // caller id -> pair key of its active attempt

	timeout time.Duration
	clock   Clock
	onEvict func(string)
}

func New(opts Options) *Relay {
	if opts.LivenessTimeout <= 0 {
		opts.LivenessTimeout = DefaultLivenessTimeout
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	return &Relay{
		endpoints: make(map[string]*endpoint),
		attempts:  make(map[string]*callAttempt),
		byCaller:  make(map[string]string),
		timeout:   opts.LivenessTimeout,
		clock:     opts.Clock,
		onEvict:   opts.OnEvict,
	}
}

// pairKey builds the unordered-pair key for the call attempt table.
func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

// deliver sends to one endpoint, fire-and-forget.
func (r *Relay) deliver(ep *endpoint, msg models.SignalMessage) {
	if !ep.sender.Send(msg) {
		log.Warn().Str("endpoint_id", ep.id).Str("type", string(msg.Type)).Msg("Send buffer full, dropping message")
	}
}

package models

import "encoding/json"

// SignalType represents the type of a relay signaling message
type SignalType string

const (
	// Inbound (client -> relay)
	SignalTypeSetInfo     SignalType = "set-info"
	SignalTypeCallRequest SignalType = "call-request"
	SignalTypeCallAccept  SignalType = "call-accept"
	SignalTypeCallEnd     SignalType = "call-end"

	// Outbound (relay -> client)
	SignalTypeYourID       SignalType = "your-id"
	SignalTypePresence     SignalType = "presence"
	SignalTypeIncomingCall SignalType = "incoming-call"
	SignalTypeCallAccepted SignalType = "call-accepted"
	SignalTypeCallEnded    SignalType = "call-ended"
	SignalTypeUnavailable  SignalType = "unavailable"
)

// SignalMessage is the wire format for every frame exchanged with a client.
// Payload carries the opaque offer/answer blobs for call messages; the relay
// never interprets their contents.
type SignalMessage struct {
	Type      SignalType        `json:"type"`
	From      string            `json:"from,omitempty"`
	To        string            `json:"to,omitempty"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
	Endpoints []EndpointSummary `json:"endpoints,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// SetInfoPayload is the payload of a set-info message. Token carries a signed
// identity token verified at the transport edge; the extracted subject becomes
// the endpoint's external identity.
type SetInfoPayload struct {
	DisplayName string `json:"displayName,omitempty"`
	Token       string `json:"token,omitempty"`
}

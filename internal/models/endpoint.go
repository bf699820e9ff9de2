package models

// EndpointSummary is the broadcast-safe view of one connected endpoint, as it
// appears in presence snapshots.
type EndpointSummary struct {
	ID               string `json:"id"`
	DisplayName      string `json:"displayName,omitempty"`
	ExternalIdentity string `json:"externalIdentity,omitempty"`
}

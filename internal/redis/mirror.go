package redis

import (
	"time"

	"github.com/rs/zerolog/log"
)

// The presence mirror copies the in-memory presence set into redis so other
// tooling can observe who is connected. It is best-effort: the in-memory
// registry stays the source of truth and a redis failure only logs. The TTL
// bounds leftovers if the process dies without cleaning up.

const (
	presenceSetKey = "presence:endpoints"
	mirrorTTL      = 24 * time.Hour
)

// MirrorJoin records a newly connected endpoint.
func MirrorJoin(endpointID string) {
	if client == nil {
		return
	}
	go func() {
		if err := client.SAdd(ctx, presenceSetKey, endpointID).Err(); err != nil {
			log.Warn().Err(err).Str("endpoint_id", endpointID).Msg("Failed to mirror join to redis")
			return
		}
		client.Expire(ctx, presenceSetKey, mirrorTTL)
	}()
}

// MirrorLeave removes a departed or evicted endpoint and its metadata.
func MirrorLeave(endpointID string) {
	if client == nil {
		return
	}
	go func() {
		if err := client.SRem(ctx, presenceSetKey, endpointID).Err(); err != nil {
			log.Warn().Err(err).Str("endpoint_id", endpointID).Msg("Failed to mirror leave to redis")
		}
		client.Del(ctx, endpointKey(endpointID))
	}()
}

// MirrorInfo records endpoint metadata updates. Empty fields are skipped.
func MirrorInfo(endpointID, displayName, externalIdentity string) {
	if client == nil {
		return
	}
	fields := map[string]interface{}{}
	if displayName != "" {
		fields["display_name"] = displayName
	}
	if externalIdentity != "" {
		fields["external_identity"] = externalIdentity
	}
	if len(fields) == 0 {
		return
	}
	go func() {
		key := endpointKey(endpointID)
		if err := client.HSet(ctx, key, fields).Err(); err != nil {
			log.Warn().Err(err).Str("endpoint_id", endpointID).Msg("Failed to mirror endpoint info to redis")
			return
		}
		client.Expire(ctx, key, mirrorTTL)
	}()
}

func endpointKey(endpointID string) string {
	return "presence:endpoint:" + endpointID
}

package redis

import "strings"

const (
	keyNamespace      = "cs"
	idempotencyPrefix = "idempotency"
	statePrefix       = "state"
	syncPrefix        = "sync"
)

// Key parts are joined with ':'. A ':' inside a part would alias another
// key, so it is replaced; empty parts are dropped.
var partEscaper = strings.NewReplacer(":", "_")

// IdempotencyKey returns a namespaced key for idempotency storage.
func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey(idempotencyPrefix, scope, id)
}

// StateKey returns the key holding one persisted value of a scope.
func (c *Client) StateKey(scope, key string) string {
	return buildKey(statePrefix, scope, key)
}

// SyncChannel returns the pub/sub channel shared by a restaurant's devices.
func (c *Client) SyncChannel(restaurant string) string {
	return buildKey(syncPrefix, restaurant)
}

func buildKey(parts ...string) string {
	clean := make([]string, 0, len(parts)+1)
	clean = append(clean, keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		clean = append(clean, partEscaper.Replace(part))
	}
	return strings.Join(clean, ":")
}

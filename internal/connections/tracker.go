// Package connections tracks which users currently hold a live card feed,
// for operational visibility. The memory tracker serves a single instance;
// the redis tracker shares presence across instances.
package connections

import "context"

// Connection describes one connected feed client.
type Connection struct {
	ClientID string   `json:"clientId"`
	Login    string   `json:"login"`
	Groups   []string `json:"groups,omitempty"`
	Entities []string `json:"entitiesConnected,omitempty"`
}

// Tracker records feed connections and disconnections.
type Tracker interface {
	Connected(ctx context.Context, conn Connection) error
	Disconnected(ctx context.Context, clientID string) error
	List(ctx context.Context) ([]Connection, error)
}

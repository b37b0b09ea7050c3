package api

import "time"

// State is the daemon's last successfully applied forwarding state.
type State struct {
	Address  string    `json:"address"`
	Ports    []uint16  `json:"ports"`
	SyncedAt time.Time `json:"syncedAt"`
}

type ErrorJSON struct {
	Message string `json:"message"`
}

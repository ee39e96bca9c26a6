// Package wireguard talks to the WireGuard daemon: key material, interface
// lifecycle, hot reload of the peer set and live peer status.
package wireguard

import (
	"context"
	"time"
)

// Driver is everything the registry needs from the daemon.
type Driver interface {
	GenerateKey(ctx context.Context) (string, error)
	PublicKey(ctx context.Context, privateKey string) (string, error)
	GeneratePresharedKey(ctx context.Context) (string, error)

	Up(ctx context.Context) error
	Down(ctx context.Context) error
	// Sync reconciles the running interface with the config on disk
	// (hooks stripped), without dropping established sessions.
	Sync(ctx context.Context) error
	// Dump returns the daemon's current view of its peers.
	Dump(ctx context.Context) ([]PeerStatus, error)
}

// PeerStatus is one row of the live status dump.
type PeerStatus struct {
	PublicKey           string
	PresharedKey        string
	Endpoint            string
	AllowedIPs          string
	LatestHandshakeAt   *time.Time // nil: never handshaked
	TransferRx          int64
	TransferTx          int64
	PersistentKeepalive *int // nil: off
}

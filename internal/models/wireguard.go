package models

import (
	"sort"
	"time"
)

// Server is the local end of the tunnel. One per deployment.
type Server struct {
	PrivateKey string `json:"privateKey"`
	PublicKey  string `json:"publicKey"`
	Address    string `json:"address"` // "10.8.0.1", the /24 is implied
}

// Peer is a registered client as persisted in the state document.
type Peer struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	PrivateKey   string    `json:"privateKey,omitempty"` // empty: the client keeps its own key
	PublicKey    string    `json:"publicKey"`
	PreSharedKey string    `json:"preSharedKey,omitempty"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// State is the whole persisted document: {server, clients}.
type State struct {
	Server  Server           `json:"server"`
	Clients map[string]*Peer `json:"clients"`
}

// SortedPeers returns the stored peers ordered by creation time, then id.
func (s *State) SortedPeers() []*Peer {
	out := make([]*Peer, 0, len(s.Clients))
	for _, p := range s.Clients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// PeerView is a Peer enriched with live status from the daemon.
// Built at read time only, never persisted.
type PeerView struct {
	Peer

	LatestHandshakeAt   *time.Time `json:"latestHandshakeAt"`
	TransferRx          *int64     `json:"transferRx"`
	TransferTx          *int64     `json:"transferTx"`
	PersistentKeepalive *int       `json:"persistentKeepalive"` // seconds; nil when off
}

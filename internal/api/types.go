package api

import (
	"context"
	"time"

	"wgpanel/internal/models"
	"wgpanel/internal/registry"
)

// Registry is the part of *registry.Registry the handlers use.
type Registry interface {
	Server(ctx context.Context) (registry.ServerInfo, error)
	ListPeers(ctx context.Context) ([]models.PeerView, error)
	GetPeer(ctx context.Context, id string) (*models.Peer, error)
	PeerConfig(ctx context.Context, id string) (string, error)
	PeerQRCode(ctx context.Context, id string) (string, error)
	CreatePeer(ctx context.Context, name string) (*models.Peer, error)
	DeletePeer(ctx context.Context, id string) error
	EnablePeer(ctx context.Context, id string) error
	DisablePeer(ctx context.Context, id string) error
	RenamePeer(ctx context.Context, id, name string) error
	UpdatePeerAddress(ctx context.Context, id, address string) error
	ExportConfigs(ctx context.Context) ([]registry.PeerConfigFile, error)
}

// PeerDTO is a peer as the API shows it. Key material other than the
// public key never leaves the server this way; DownloadableConfig tells
// whether the configuration endpoint can produce a complete file.
type PeerDTO struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Enabled            bool      `json:"enabled"`
	Address            string    `json:"address"`
	PublicKey          string    `json:"publicKey"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
	DownloadableConfig bool      `json:"downloadableConfig"`

	LatestHandshakeAt   *time.Time `json:"latestHandshakeAt"`
	TransferRx          *int64     `json:"transferRx"`
	TransferTx          *int64     `json:"transferTx"`
	PersistentKeepalive *int       `json:"persistentKeepalive"`
}

func peerDTO(p models.Peer) PeerDTO {
	return PeerDTO{
		ID:                 p.ID,
		Name:               p.Name,
		Enabled:            p.Enabled,
		Address:            p.Address,
		PublicKey:          p.PublicKey,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
		DownloadableConfig: p.PrivateKey != "",
	}
}

func peerViewDTO(v models.PeerView) PeerDTO {
	d := peerDTO(v.Peer)
	d.LatestHandshakeAt = v.LatestHandshakeAt
	d.TransferRx = v.TransferRx
	d.TransferTx = v.TransferTx
	d.PersistentKeepalive = v.PersistentKeepalive
	return d
}

type nameRequest struct {
	Name string `json:"name"`
}

type addressRequest struct {
	Address string `json:"address"`
}

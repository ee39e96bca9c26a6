// Package registry owns the tunnel's peer list. It persists the state
// document, renders it into the daemon's config and keeps the running
// interface in line with it.
//
// All operations are serialized by one mutex, so a mutation's persist and
// sync steps never interleave with another operation.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"wgpanel/internal/logs"
	"wgpanel/internal/models"
	"wgpanel/internal/qr"
	"wgpanel/internal/render/wgconf"
	"wgpanel/internal/repo"
	"wgpanel/internal/wireguard"
)

// Options is the tunnel configuration the registry renders from.
type Options struct {
	Host       string // public host peers connect to
	Port       int    // ListenPort of the interface
	ConfigPort int    // port written into client Endpoint; 0 means Port
	ConfigPath string // rendered daemon config, e.g. /etc/wireguard/wg0.conf

	DefaultAddress      string // "10.8.0.x"
	DNS                 string
	MTU                 int
	AllowedIPs          string
	PersistentKeepalive int

	PreUp    string
	PostUp   string
	PreDown  string
	PostDown string
}

// Endpoint is host:port as written into client configs.
func (o Options) Endpoint() string {
	port := o.ConfigPort
	if port == 0 {
		port = o.Port
	}
	return net.JoinHostPort(o.Host, strconv.Itoa(port))
}

type Registry struct {
	mu     sync.Mutex
	opts   Options
	store  repo.StateStore
	driver wireguard.Driver
	state  *models.State

	now   func() time.Time
	newID func() string
	log   *logrus.Entry
}

func New(opts Options, store repo.StateStore, driver wireguard.Driver) *Registry {
	return &Registry{
		opts:   opts,
		store:  store,
		driver: driver,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		log:    logs.Component("registry"),
	}
}

// Loaded reports whether State has completed successfully.
func (r *Registry) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state != nil
}

// State returns the in-memory state, loading or bootstrapping it on first
// use. The result is cached; later calls return the same object, which
// callers must treat as read-only.
func (r *Registry) State(ctx context.Context) (*models.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

func (r *Registry) load(ctx context.Context) (*models.State, error) {
	if r.state != nil {
		return r.state, nil
	}
	if strings.TrimSpace(r.opts.Host) == "" {
		return nil, ErrHostRequired
	}

	st, err := r.store.Load(ctx)
	if err != nil {
		if errors.Is(err, repo.ErrNoState) {
			r.log.Info("no saved state, generating a new server")
		} else {
			r.log.WithError(err).Warn("saved state unreadable, generating a new server")
		}
		if st, err = r.bootstrap(ctx); err != nil {
			return nil, err
		}
	}

	if err := r.persist(ctx, st); err != nil {
		return nil, err
	}
	if err := r.driver.Down(ctx); err != nil {
		r.log.WithError(err).Debug("interface down failed, ignoring")
	}
	if err := r.driver.Up(ctx); err != nil {
		return nil, upError(err)
	}
	if err := r.driver.Sync(ctx); err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}

	r.state = st
	r.log.WithField("peers", len(st.Clients)).Info("interface up")
	return st, nil
}

func (r *Registry) bootstrap(ctx context.Context) (*models.State, error) {
	addr, err := serverAddress(r.opts.DefaultAddress)
	if err != nil {
		return nil, err
	}
	priv, err := r.driver.GenerateKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate server key: %w", err)
	}
	pub, err := r.driver.PublicKey(ctx, priv)
	if err != nil {
		return nil, fmt.Errorf("derive server public key: %w", err)
	}
	return &models.State{
		Server:  models.Server{PrivateKey: priv, PublicKey: pub, Address: addr},
		Clients: map[string]*models.Peer{},
	}, nil
}

// persist writes the state document and the daemon config together.
func (r *Registry) persist(ctx context.Context, st *models.State) error {
	if err := r.store.Save(ctx, st); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	text := wgconf.Server(st, wgconf.ServerOptions{
		ListenPort: r.opts.Port,
		PreUp:      r.opts.PreUp,
		PostUp:     r.opts.PostUp,
		PreDown:    r.opts.PreDown,
		PostDown:   r.opts.PostDown,
	})
	if err := repo.WriteConfigFile(r.opts.ConfigPath, text); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// commit is the tail of every mutation: persist, then hot-reload the daemon.
func (r *Registry) commit(ctx context.Context, st *models.State) error {
	if err := r.persist(ctx, st); err != nil {
		return err
	}
	if err := r.driver.Sync(ctx); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

// Shutdown brings the interface down. Failure is logged, never returned.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.driver.Down(ctx); err != nil {
		r.log.WithError(err).Debug("interface down failed, ignoring")
	}
}

// ServerInfo is the public part of the server record.
type ServerInfo struct {
	PublicKey string `json:"publicKey"`
	Address   string `json:"address"`
	Endpoint  string `json:"endpoint"`
}

func (r *Registry) Server(ctx context.Context) (ServerInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, err := r.load(ctx)
	if err != nil {
		return ServerInfo{}, err
	}
	return ServerInfo{PublicKey: st.Server.PublicKey, Address: st.Server.Address, Endpoint: r.opts.Endpoint()}, nil
}

// ---- peers ----

// ListPeers returns every stored peer, disabled ones included, merged with
// the daemon's live status. Dump rows for unknown keys are ignored.
func (r *Registry) ListPeers(ctx context.Context) ([]models.PeerView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	peers := st.SortedPeers()
	views := make([]models.PeerView, len(peers))
	byKey := make(map[string]*models.PeerView, len(peers))
	for i, p := range peers {
		views[i] = models.PeerView{Peer: *p}
		byKey[p.PublicKey] = &views[i]
	}

	live, err := r.driver.Dump(ctx)
	if err != nil {
		return nil, fmt.Errorf("dump: %w", err)
	}
	for _, s := range live {
		v, ok := byKey[s.PublicKey]
		if !ok {
			continue
		}
		rx, tx := s.TransferRx, s.TransferTx
		v.LatestHandshakeAt = s.LatestHandshakeAt
		v.TransferRx = &rx
		v.TransferTx = &tx
		v.PersistentKeepalive = s.PersistentKeepalive
	}
	return views, nil
}

// GetPeer returns a copy of the stored peer.
func (r *Registry) GetPeer(ctx context.Context, id string) (*models.Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.peer(ctx, id)
	if err != nil {
		return nil, err
	}
	cp := *p
	return &cp, nil
}

func (r *Registry) peer(ctx context.Context, id string) (*models.Peer, error) {
	st, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := st.Clients[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPeerNotFound, id)
	}
	return p, nil
}

// PeerConfig renders the wg-quick config for the peer's device.
func (r *Registry) PeerConfig(ctx context.Context, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.peer(ctx, id)
	if err != nil {
		return "", err
	}
	return r.clientConfig(p), nil
}

func (r *Registry) clientConfig(p *models.Peer) string {
	return wgconf.Client(r.state.Server, p, wgconf.ClientOptions{
		DNS:                 r.opts.DNS,
		MTU:                 r.opts.MTU,
		AllowedIPs:          r.opts.AllowedIPs,
		PersistentKeepalive: r.opts.PersistentKeepalive,
		Endpoint:            r.opts.Endpoint(),
	})
}

// PeerConfigFile is one peer's rendered client config.
type PeerConfigFile struct {
	Peer models.Peer
	Text string
}

// ExportConfigs renders every peer's client config from one consistent
// snapshot, in listing order.
func (r *Registry) ExportConfigs(ctx context.Context) ([]PeerConfigFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	peers := st.SortedPeers()
	out := make([]PeerConfigFile, 0, len(peers))
	for _, p := range peers {
		out = append(out, PeerConfigFile{Peer: *p, Text: r.clientConfig(p)})
	}
	return out, nil
}

// PeerQRCode renders PeerConfig as an SVG QR code.
func (r *Registry) PeerQRCode(ctx context.Context, id string) (string, error) {
	text, err := r.PeerConfig(ctx, id)
	if err != nil {
		return "", err
	}
	return qr.SVG(text)
}

// CreatePeer registers a new peer with fresh keys and the first free address.
func (r *Registry) CreatePeer(ctx context.Context, name string) (*models.Peer, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrNameRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	st, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	addr, err := nextFreeAddress(st)
	if err != nil {
		return nil, err
	}
	priv, err := r.driver.GenerateKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	pub, err := r.driver.PublicKey(ctx, priv)
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	psk, err := r.driver.GeneratePresharedKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate preshared key: %w", err)
	}

	now := r.now()
	p := &models.Peer{
		ID:           r.newID(),
		Name:         name,
		Address:      addr,
		PrivateKey:   priv,
		PublicKey:    pub,
		PreSharedKey: psk,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	st.Clients[p.ID] = p
	if err := r.commit(ctx, st); err != nil {
		return nil, err
	}
	r.log.WithFields(logrus.Fields{"peer": p.ID, "address": p.Address}).Info("peer created")
	cp := *p
	return &cp, nil
}

// DeletePeer removes the peer. Unknown ids are not an error.
func (r *Registry) DeletePeer(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, err := r.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := st.Clients[id]; ok {
		delete(st.Clients, id)
		r.log.WithField("peer", id).Info("peer deleted")
	}
	return r.commit(ctx, st)
}

func (r *Registry) EnablePeer(ctx context.Context, id string) error {
	return r.update(ctx, id, func(p *models.Peer) error {
		p.Enabled = true
		return nil
	})
}

func (r *Registry) DisablePeer(ctx context.Context, id string) error {
	return r.update(ctx, id, func(p *models.Peer) error {
		p.Enabled = false
		return nil
	})
}

func (r *Registry) RenamePeer(ctx context.Context, id, name string) error {
	return r.update(ctx, id, func(p *models.Peer) error {
		p.Name = name
		return nil
	})
}

// UpdatePeerAddress accepts dotted-quad IPv4 only.
func (r *Registry) UpdatePeerAddress(ctx context.Context, id, address string) error {
	return r.update(ctx, id, func(p *models.Peer) error {
		if !validIPv4(address) {
			return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
		}
		p.Address = address
		return nil
	})
}

// update looks the peer up, applies fn, stamps UpdatedAt and commits.
// Nothing is changed if fn fails.
func (r *Registry) update(ctx context.Context, id string, fn func(p *models.Peer) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.peer(ctx, id)
	if err != nil {
		return err
	}
	next := *p
	if err := fn(&next); err != nil {
		return err
	}
	next.UpdatedAt = r.now()
	*p = next
	return r.commit(ctx, r.state)
}

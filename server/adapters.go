package server

import (
	"fmt"

	"gorm.io/gorm"

	"wgpanel/config"
	"wgpanel/internal/db"
	"wgpanel/internal/registry"
	"wgpanel/internal/repo"
	"wgpanel/internal/wireguard"
)

// Backend is everything built from the configuration that the HTTP app and
// the CLI commands share.
type Backend struct {
	Registry *registry.Registry
	DB       *gorm.DB // nil with the JSON file store
}

// Close releases the database connection, if any.
func (b *Backend) Close() {
	if b.DB == nil {
		return
	}
	if sqlDB, err := b.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// NewBackend opens storage, picks the WireGuard driver and builds the
// registry. Nothing touches the interface until the registry is first used.
func NewBackend(cfg *config.Config) (*Backend, error) {
	b := &Backend{}

	var store repo.StateStore
	if drv := cfg.Storage.Driver; drv != "" {
		d, err := db.Open(drv, cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		if err := db.Migrate(d); err != nil {
			b.DB = d
			b.Close()
			return nil, fmt.Errorf("db migrate: %w", err)
		}
		b.DB = d
		store = repo.NewDBStore(d, cfg.WireGuard.Interface)
	} else {
		store = repo.NewFileStore(cfg.WireGuard.StatePath())
	}

	b.Registry = registry.New(registryOptions(cfg.WireGuard), store, newDriver(cfg.WireGuard))
	return b, nil
}

func newDriver(wg config.WireGuard) wireguard.Driver {
	if wg.Driver == "native" {
		return wireguard.NewNativeDriver(wg.Interface, wireguard.OSRunner{})
	}
	return wireguard.NewExecDriver(wg.Interface, wireguard.OSRunner{})
}

func registryOptions(wg config.WireGuard) registry.Options {
	return registry.Options{
		Host:                wg.Host,
		Port:                wg.Port,
		ConfigPort:          wg.ConfigPort,
		ConfigPath:          wg.ConfigPath(),
		DefaultAddress:      wg.DefaultAddress,
		DNS:                 wg.DefaultDNS,
		MTU:                 wg.MTU,
		AllowedIPs:          wg.AllowedIPs,
		PersistentKeepalive: wg.PersistentKeepalive,
		PreUp:               wg.PreUp,
		PostUp:              wg.PostUp,
		PreDown:             wg.PreDown,
		PostDown:            wg.PostDown,
	}
}

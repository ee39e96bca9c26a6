package wireguard

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDump parses `wg show <iface> dump`. The first line describes the
// interface itself and is skipped; every other line is a tab separated peer:
//
//	public-key preshared-key endpoint allowed-ips latest-handshake rx tx keepalive
func ParseDump(out string) ([]PeerStatus, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) <= 1 {
		return nil, nil
	}
	peers := make([]PeerStatus, 0, len(lines)-1)
	for i, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		f := strings.Split(line, "\t")
		if len(f) < 8 {
			return nil, fmt.Errorf("dump line %d: want 8 fields, got %d", i+2, len(f))
		}
		ps := PeerStatus{
			PublicKey:    f[0],
			PresharedKey: f[1],
			Endpoint:     f[2],
			AllowedIPs:   f[3],
		}
		if f[4] != "0" {
			sec, err := strconv.ParseInt(f[4], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("dump line %d: latest handshake: %w", i+2, err)
			}
			at := time.Unix(sec, 0).UTC()
			ps.LatestHandshakeAt = &at
		}
		var err error
		if ps.TransferRx, err = strconv.ParseInt(f[5], 10, 64); err != nil {
			return nil, fmt.Errorf("dump line %d: rx: %w", i+2, err)
		}
		if ps.TransferTx, err = strconv.ParseInt(f[6], 10, 64); err != nil {
			return nil, fmt.Errorf("dump line %d: tx: %w", i+2, err)
		}
		if f[7] != "off" {
			ka, err := strconv.Atoi(f[7])
			if err != nil {
				return nil, fmt.Errorf("dump line %d: keepalive: %w", i+2, err)
			}
			ps.PersistentKeepalive = &ka
		}
		peers = append(peers, ps)
	}
	return peers, nil
}

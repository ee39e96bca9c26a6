package registry

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"wgpanel/internal/models"
)

const (
	firstPeerHost = 2
	lastPeerHost  = 254
)

// serverAddress turns the configured default block ("10.8.0.x") into the
// server's own address by forcing the last octet to 1.
func serverAddress(defaultAddress string) (string, error) {
	parts := strings.Split(strings.TrimSpace(defaultAddress), ".")
	if len(parts) != 4 {
		return "", fmt.Errorf("default address %q: want four dotted octets", defaultAddress)
	}
	parts[3] = "1"
	addr := strings.Join(parts, ".")
	if !validIPv4(addr) {
		return "", fmt.Errorf("default address %q: not an IPv4 block", defaultAddress)
	}
	return addr, nil
}

func validIPv4(s string) bool {
	a, err := netip.ParseAddr(s)
	return err == nil && a.Is4()
}

// subnetPrefix returns "a.b.c." for "a.b.c.d".
func subnetPrefix(addr string) string {
	i := strings.LastIndexByte(addr, '.')
	if i < 0 {
		return addr + "."
	}
	return addr[:i+1]
}

// nextFreeAddress picks the smallest host suffix in [2,254] that no peer in
// the server's /24 uses yet. Disabled peers keep their address reserved.
func nextFreeAddress(st *models.State) (string, error) {
	prefix := subnetPrefix(st.Server.Address)
	used := make(map[int]bool, len(st.Clients))
	for _, p := range st.Clients {
		if !strings.HasPrefix(p.Address, prefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(p.Address, prefix)); err == nil {
			used[n] = true
		}
	}
	for h := firstPeerHost; h <= lastPeerHost; h++ {
		if !used[h] {
			return prefix + strconv.Itoa(h), nil
		}
	}
	return "", fmt.Errorf("%w: %s0/24", ErrAddressExhausted, prefix)
}

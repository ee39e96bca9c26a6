// Package wgconf renders wg-quick configuration files.
package wgconf

import (
	"fmt"
	"strings"
	"unicode"

	"wgpanel/internal/models"
)

// PrivateKeyPlaceholder is written when the registry does not hold the
// peer's private key; the user pastes their own.
const PrivateKeyPlaceholder = "REPLACE_ME"

// SubnetBits is the prefix length of the tunnel network.
const SubnetBits = 24

type ServerOptions struct {
	ListenPort int
	PreUp      string
	PostUp     string
	PreDown    string
	PostDown   string
}

// Server renders the daemon's own config. Disabled peers are left out.
func Server(st *models.State, o ServerOptions) string {
	var b strings.Builder
	b.WriteString("# Note: Do not edit this file directly.\n")
	b.WriteString("# Your changes will be overwritten!\n\n")

	b.WriteString("# Server\n[Interface]\n")
	fmt.Fprintf(&b, "PrivateKey = %s\n", st.Server.PrivateKey)
	fmt.Fprintf(&b, "Address = %s/%d\n", st.Server.Address, SubnetBits)
	fmt.Fprintf(&b, "ListenPort = %d\n", o.ListenPort)
	fmt.Fprintf(&b, "PreUp = %s\n", o.PreUp)
	fmt.Fprintf(&b, "PostUp = %s\n", o.PostUp)
	fmt.Fprintf(&b, "PreDown = %s\n", o.PreDown)
	fmt.Fprintf(&b, "PostDown = %s\n", o.PostDown)

	for _, p := range st.SortedPeers() {
		if !p.Enabled {
			continue
		}
		fmt.Fprintf(&b, "\n# Client: %s (%s)\n[Peer]\n", commentText(p.Name), commentText(p.ID))
		fmt.Fprintf(&b, "PublicKey = %s\n", p.PublicKey)
		if p.PreSharedKey != "" {
			fmt.Fprintf(&b, "PresharedKey = %s\n", p.PreSharedKey)
		}
		fmt.Fprintf(&b, "AllowedIPs = %s/32\n", p.Address)
	}
	return b.String()
}

// commentText keeps user text on its comment line: wg-quick reads the file
// line by line, so control characters become spaces.
func commentText(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == '\u2028' || r == '\u2029' {
			return ' '
		}
		return r
	}, s)
}

type ClientOptions struct {
	DNS                 string
	MTU                 int
	AllowedIPs          string
	PersistentKeepalive int
	Endpoint            string // host:port
}

// Client renders the config a peer imports into its own WireGuard app.
func Client(srv models.Server, p *models.Peer, o ClientOptions) string {
	priv := p.PrivateKey
	if priv == "" {
		priv = PrivateKeyPlaceholder
	}

	var b strings.Builder
	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "PrivateKey = %s\n", priv)
	fmt.Fprintf(&b, "Address = %s/%d\n", p.Address, SubnetBits)
	if o.DNS != "" {
		fmt.Fprintf(&b, "DNS = %s\n", o.DNS)
	}
	if o.MTU > 0 {
		fmt.Fprintf(&b, "MTU = %d\n", o.MTU)
	}

	b.WriteString("\n[Peer]\n")
	fmt.Fprintf(&b, "PublicKey = %s\n", srv.PublicKey)
	if p.PreSharedKey != "" {
		fmt.Fprintf(&b, "PresharedKey = %s\n", p.PreSharedKey)
	}
	fmt.Fprintf(&b, "AllowedIPs = %s\n", o.AllowedIPs)
	fmt.Fprintf(&b, "PersistentKeepalive = %d\n", o.PersistentKeepalive)
	fmt.Fprintf(&b, "Endpoint = %s\n", o.Endpoint)
	return b.String()
}

package wireguard

import (
	"context"
	"fmt"
	"strings"

	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// NativeDriver generates keys in-process and reads live status over the
// kernel's generic netlink API. Interface lifecycle still goes through
// wg-quick so the PreUp/PostUp hooks run.
type NativeDriver struct {
	*ExecDriver
}

func NewNativeDriver(iface string, r Runner) *NativeDriver {
	return &NativeDriver{ExecDriver: NewExecDriver(iface, r)}
}

func (d *NativeDriver) GenerateKey(context.Context) (string, error) {
	k, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return "", err
	}
	return k.String(), nil
}

func (d *NativeDriver) PublicKey(_ context.Context, privateKey string) (string, error) {
	k, err := wgtypes.ParseKey(privateKey)
	if err != nil {
		return "", fmt.Errorf("invalid private key: %w", err)
	}
	return k.PublicKey().String(), nil
}

func (d *NativeDriver) GeneratePresharedKey(context.Context) (string, error) {
	k, err := wgtypes.GenerateKey()
	if err != nil {
		return "", err
	}
	return k.String(), nil
}

func (d *NativeDriver) Dump(context.Context) ([]PeerStatus, error) {
	client, err := wgctrl.New()
	if err != nil {
		return nil, fmt.Errorf("failed to open wgctrl client: %w", err)
	}
	defer client.Close()

	dev, err := client.Device(d.iface)
	if err != nil {
		return nil, fmt.Errorf("failed to read device %s: %w", d.iface, err)
	}
	out := make([]PeerStatus, 0, len(dev.Peers))
	for _, p := range dev.Peers {
		out = append(out, peerStatus(p))
	}
	return out, nil
}

func peerStatus(p wgtypes.Peer) PeerStatus {
	ps := PeerStatus{
		PublicKey:  p.PublicKey.String(),
		Endpoint:   "(none)",
		TransferRx: p.ReceiveBytes,
		TransferTx: p.TransmitBytes,
	}
	var zero wgtypes.Key
	if p.PresharedKey != zero {
		ps.PresharedKey = p.PresharedKey.String()
	} else {
		ps.PresharedKey = "(none)"
	}
	if p.Endpoint != nil {
		ps.Endpoint = p.Endpoint.String()
	}
	ips := make([]string, 0, len(p.AllowedIPs))
	for _, n := range p.AllowedIPs {
		ips = append(ips, n.String())
	}
	ps.AllowedIPs = strings.Join(ips, ",")
	if !p.LastHandshakeTime.IsZero() {
		at := p.LastHandshakeTime.UTC()
		ps.LatestHandshakeAt = &at
	}
	if secs := int(p.PersistentKeepaliveInterval.Seconds()); secs > 0 {
		ps.PersistentKeepalive = &secs
	}
	return ps
}

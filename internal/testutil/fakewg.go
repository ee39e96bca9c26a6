// Package testutil holds test doubles shared across packages.
package testutil

import (
	"context"
	"strings"
	"sync"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"wgpanel/internal/wireguard"
)

// FakeDriver is an in-memory wireguard.Driver. Keys are real Curve25519
// keys; the status dump is parsed from DumpOutput.
type FakeDriver struct {
	mu    sync.Mutex
	calls []string

	DumpOutput string
	UpErr      error
	DownErr    error
	SyncErr    error
	DumpErr    error
	KeyErr     error
}

func NewFakeDriver() *FakeDriver { return &FakeDriver{} }

func (f *FakeDriver) record(c string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

// Calls returns the driver operations invoked so far, in order.
func (f *FakeDriver) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Count returns how many times op was invoked.
func (f *FakeDriver) Count(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == op {
			n++
		}
	}
	return n
}

func (f *FakeDriver) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *FakeDriver) GenerateKey(context.Context) (string, error) {
	f.record("genkey")
	if f.KeyErr != nil {
		return "", f.KeyErr
	}
	k, err := wgtypes.GeneratePrivateKey()
	return k.String(), err
}

func (f *FakeDriver) PublicKey(_ context.Context, priv string) (string, error) {
	f.record("pubkey")
	k, err := wgtypes.ParseKey(strings.TrimSpace(priv))
	if err != nil {
		return "", err
	}
	return k.PublicKey().String(), nil
}

func (f *FakeDriver) GeneratePresharedKey(context.Context) (string, error) {
	f.record("genpsk")
	k, err := wgtypes.GenerateKey()
	return k.String(), err
}

func (f *FakeDriver) Up(context.Context) error {
	f.record("up")
	return f.UpErr
}

func (f *FakeDriver) Down(context.Context) error {
	f.record("down")
	return f.DownErr
}

func (f *FakeDriver) Sync(context.Context) error {
	f.record("sync")
	return f.SyncErr
}

func (f *FakeDriver) Dump(context.Context) ([]wireguard.PeerStatus, error) {
	f.record("dump")
	if f.DumpErr != nil {
		return nil, f.DumpErr
	}
	return wireguard.ParseDump(f.DumpOutput)
}

var _ wireguard.Driver = (*FakeDriver)(nil)

package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"wgpanel/internal/models"
	"wgpanel/internal/repo"
	"wgpanel/internal/testutil"
)

type fixture struct {
	reg   *Registry
	drv   *testutil.FakeDriver
	store *repo.FileStore
	dir   string
	opts  Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		drv:   testutil.NewFakeDriver(),
		store: repo.NewFileStore(filepath.Join(dir, "wg0.json")),
		dir:   dir,
		opts: Options{
			Host:                "vpn.example.com",
			Port:                51820,
			ConfigPath:          filepath.Join(dir, "wg0.conf"),
			DefaultAddress:      "10.8.0.x",
			DNS:                 "1.1.1.1",
			AllowedIPs:          "0.0.0.0/0, ::/0",
			PersistentKeepalive: 25,
			PostUp:              "iptables -A FORWARD -i wg0 -j ACCEPT",
		},
	}
	f.reg = f.build()
	return f
}

// build creates a registry over the fixture's directory with a stepping
// clock and predictable ids.
func (f *fixture) build() *Registry {
	r := New(f.opts, f.store, f.drv)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	n := 0
	r.newID = func() string {
		n++
		return fmt.Sprintf("peer-%d", n)
	}
	return r
}

func (f *fixture) conf(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile(f.opts.ConfigPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	return string(b)
}

func TestState_Bootstrap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.reg.State(ctx)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if st.Server.Address != "10.8.0.1" {
		t.Errorf("server address = %s, want 10.8.0.1", st.Server.Address)
	}
	if st.Server.PrivateKey == "" || st.Server.PublicKey == "" {
		t.Errorf("server keys not generated: %+v", st.Server)
	}
	if len(st.Clients) != 0 {
		t.Errorf("clients = %d, want 0", len(st.Clients))
	}

	want := []string{"genkey", "pubkey", "down", "up", "sync"}
	if got := f.drv.Calls(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("driver calls = %v, want %v", got, want)
	}

	fi, err := os.Stat(f.store.Path())
	if err != nil {
		t.Fatalf("state file: %v", err)
	}
	if fi.Mode().Perm() != repo.StateFileMode {
		t.Errorf("state file mode = %v", fi.Mode().Perm())
	}
	fi, err = os.Stat(f.opts.ConfigPath)
	if err != nil {
		t.Fatalf("config file: %v", err)
	}
	if fi.Mode().Perm() != repo.ConfigFileMode {
		t.Errorf("config file mode = %v", fi.Mode().Perm())
	}
	if !strings.Contains(f.conf(t), "Address = 10.8.0.1/24") {
		t.Errorf("config:\n%s", f.conf(t))
	}
}

func TestState_Cached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.reg.State(ctx)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	f.drv.Reset()
	b, err := f.reg.State(ctx)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if a != b {
		t.Fatal("second State returned a different object")
	}
	if calls := f.drv.Calls(); len(calls) != 0 {
		t.Errorf("cached State hit the driver: %v", calls)
	}
	if !f.reg.Loaded() {
		t.Error("Loaded() = false after State")
	}
}

func TestState_ConcurrentFirstCallersShareBootstrap(t *testing.T) {
	f := newFixture(t)
	var wg sync.WaitGroup
	results := make([]*models.State, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st, err := f.reg.State(context.Background())
			if err != nil {
				t.Errorf("State: %v", err)
			}
			results[i] = st
		}(i)
	}
	wg.Wait()

	if n := f.drv.Count("genkey"); n != 1 {
		t.Errorf("genkey called %d times, want 1", n)
	}
	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatalf("caller %d got a different state", i)
		}
	}
}

func TestState_HostRequired(t *testing.T) {
	f := newFixture(t)
	f.opts.Host = "  "
	r := f.build()

	_, err := r.State(context.Background())
	if !errors.Is(err, ErrHostRequired) {
		t.Fatalf("err = %v, want ErrHostRequired", err)
	}
	if calls := f.drv.Calls(); len(calls) != 0 {
		t.Errorf("driver touched without host: %v", calls)
	}
}

func TestState_LoadsExisting(t *testing.T) {
	f := newFixture(t)
	saved := &models.State{
		Server: models.Server{PrivateKey: "priv=", PublicKey: "pub=", Address: "10.9.0.1"},
		Clients: map[string]*models.Peer{
			"x": {ID: "x", Name: "old", Address: "10.9.0.2", PublicKey: "px=", Enabled: true},
		},
	}
	if err := f.store.Save(context.Background(), saved); err != nil {
		t.Fatal(err)
	}

	st, err := f.reg.State(context.Background())
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if st.Server != saved.Server || st.Clients["x"] == nil {
		t.Fatalf("state = %+v", st)
	}
	if n := f.drv.Count("genkey"); n != 0 {
		t.Errorf("genkey called %d times for existing state", n)
	}
	if !strings.Contains(f.conf(t), "# Client: old (x)") {
		t.Errorf("config not re-rendered:\n%s", f.conf(t))
	}
}

func TestState_CorruptDocumentBootstraps(t *testing.T) {
	f := newFixture(t)
	if err := os.WriteFile(f.store.Path(), []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	st, err := f.reg.State(context.Background())
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if st.Server.Address != "10.8.0.1" || f.drv.Count("genkey") != 1 {
		t.Fatalf("expected fresh bootstrap, got %+v", st.Server)
	}
}

func TestState_DownFailureTolerated(t *testing.T) {
	f := newFixture(t)
	f.drv.DownErr = errors.New(`wg-quick: "wg0" is not a WireGuard interface`)
	if _, err := f.reg.State(context.Background()); err != nil {
		t.Fatalf("State: %v", err)
	}
}

func TestState_UpFailure(t *testing.T) {
	t.Run("missing device", func(t *testing.T) {
		f := newFixture(t)
		upErr := errors.New(`Cannot find device "wg0"`)
		f.drv.UpErr = upErr

		_, err := f.reg.State(context.Background())
		if !errors.Is(err, ErrKernelUnsupported) {
			t.Fatalf("err = %v, want ErrKernelUnsupported", err)
		}
		if !errors.Is(err, upErr) || !strings.Contains(err.Error(), "kernel") {
			t.Errorf("diagnostic lost the cause: %v", err)
		}
		if f.reg.Loaded() {
			t.Error("failed load was cached")
		}
	})

	t.Run("other failure unchanged", func(t *testing.T) {
		f := newFixture(t)
		upErr := errors.New("RTNETLINK answers: Operation not permitted")
		f.drv.UpErr = upErr

		_, err := f.reg.State(context.Background())
		if err != upErr {
			t.Fatalf("err = %v, want the wrapped driver error", err)
		}
	})

	t.Run("retry after failure", func(t *testing.T) {
		f := newFixture(t)
		f.drv.UpErr = errors.New("boom")
		if _, err := f.reg.State(context.Background()); err == nil {
			t.Fatal("expected error")
		}
		f.drv.UpErr = nil
		if _, err := f.reg.State(context.Background()); err != nil {
			t.Fatalf("retry: %v", err)
		}
	})
}

func TestPersist_ReloadEqual(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.reg.CreatePeer(ctx, "laptop"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.reg.CreatePeer(ctx, "phone"); err != nil {
		t.Fatal(err)
	}
	if err := f.reg.DisablePeer(ctx, "peer-2"); err != nil {
		t.Fatal(err)
	}
	orig, _ := f.reg.State(ctx)

	reloaded, err := f.build().State(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Server != orig.Server {
		t.Errorf("server = %+v, want %+v", reloaded.Server, orig.Server)
	}
	if len(reloaded.Clients) != len(orig.Clients) {
		t.Fatalf("clients = %d, want %d", len(reloaded.Clients), len(orig.Clients))
	}
	for id, want := range orig.Clients {
		got := reloaded.Clients[id]
		if got == nil {
			t.Fatalf("peer %s lost", id)
		}
		if !got.CreatedAt.Equal(want.CreatedAt) || !got.UpdatedAt.Equal(want.UpdatedAt) {
			t.Errorf("peer %s timestamps differ", id)
		}
		g, w := *got, *want
		g.CreatedAt, g.UpdatedAt = w.CreatedAt, w.UpdatedAt
		if g != w {
			t.Errorf("peer %s = %+v, want %+v", id, g, w)
		}
	}
}

func TestCreatePeer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.reg.CreatePeer(ctx, "laptop")
	if err != nil {
		t.Fatalf("CreatePeer: %v", err)
	}
	if p.ID != "peer-1" || p.Name != "laptop" || p.Address != "10.8.0.2" || !p.Enabled {
		t.Errorf("peer = %+v", p)
	}
	if p.PrivateKey == "" || p.PublicKey == "" || p.PreSharedKey == "" {
		t.Errorf("keys missing: %+v", p)
	}
	if p.CreatedAt.IsZero() || !p.CreatedAt.Equal(p.UpdatedAt) {
		t.Errorf("timestamps = %v / %v", p.CreatedAt, p.UpdatedAt)
	}
	conf := f.conf(t)
	if !strings.Contains(conf, "PublicKey = "+p.PublicKey) || !strings.Contains(conf, "AllowedIPs = 10.8.0.2/32") {
		t.Errorf("peer missing from config:\n%s", conf)
	}
	if calls := f.drv.Calls(); calls[len(calls)-1] != "sync" {
		t.Errorf("last driver call = %s, want sync", calls[len(calls)-1])
	}

	p2, err := f.reg.CreatePeer(ctx, "phone")
	if err != nil {
		t.Fatal(err)
	}
	if p2.Address != "10.8.0.3" {
		t.Errorf("second address = %s, want 10.8.0.3", p2.Address)
	}
}

func TestCreatePeer_EmptyName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st, _ := f.reg.State(ctx)
	f.drv.Reset()

	for _, name := range []string{"", "   "} {
		_, err := f.reg.CreatePeer(ctx, name)
		if !errors.Is(err, ErrNameRequired) || StatusCode(err) != 400 {
			t.Fatalf("CreatePeer(%q) err = %v", name, err)
		}
	}
	if len(st.Clients) != 0 {
		t.Errorf("collection mutated: %d peers", len(st.Clients))
	}
	if calls := f.drv.Calls(); len(calls) != 0 {
		t.Errorf("driver touched: %v", calls)
	}
}

func TestCreatePeer_ReusesFreedAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, n := range []string{"a", "b", "c"} {
		if _, err := f.reg.CreatePeer(ctx, n); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.reg.DisablePeer(ctx, "peer-3"); err != nil {
		t.Fatal(err)
	}
	if err := f.reg.DeletePeer(ctx, "peer-1"); err != nil {
		t.Fatal(err)
	}

	p, err := f.reg.CreatePeer(ctx, "d")
	if err != nil {
		t.Fatal(err)
	}
	if p.Address != "10.8.0.2" {
		t.Errorf("address = %s, want freed 10.8.0.2", p.Address)
	}
	p, err = f.reg.CreatePeer(ctx, "e")
	if err != nil {
		t.Fatal(err)
	}
	if p.Address != "10.8.0.5" {
		t.Errorf("address = %s, want 10.8.0.5 (.4 held by disabled peer)", p.Address)
	}
}

func TestCreatePeer_SubnetExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st, err := f.reg.State(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for h := 2; h <= 254; h++ {
		id := fmt.Sprintf("fill-%d", h)
		st.Clients[id] = &models.Peer{ID: id, Address: fmt.Sprintf("10.8.0.%d", h)}
	}

	_, err = f.reg.CreatePeer(ctx, "one-too-many")
	if !errors.Is(err, ErrAddressExhausted) || StatusCode(err) != 409 {
		t.Fatalf("err = %v, want ErrAddressExhausted/409", err)
	}
	if len(st.Clients) != 253 {
		t.Errorf("clients = %d, want 253", len(st.Clients))
	}
}

func TestDisabledPeer_OnlyInListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.reg.CreatePeer(ctx, "phone")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.reg.DisablePeer(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(f.conf(t), p.PublicKey) {
		t.Errorf("disabled peer rendered:\n%s", f.conf(t))
	}

	views, err := f.reg.ListPeers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 || views[0].ID != p.ID || views[0].Enabled {
		t.Fatalf("views = %+v", views)
	}

	if err := f.reg.EnablePeer(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(f.conf(t), p.PublicKey) {
		t.Errorf("re-enabled peer missing:\n%s", f.conf(t))
	}
}

func TestGetPeer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, _ := f.reg.CreatePeer(ctx, "laptop")

	p, err := f.reg.GetPeer(ctx, created.ID)
	if err != nil || p.Name != "laptop" {
		t.Fatalf("GetPeer = %+v, %v", p, err)
	}
	p.Name = "mutated"
	again, _ := f.reg.GetPeer(ctx, created.ID)
	if again.Name != "laptop" {
		t.Error("GetPeer exposed the stored record")
	}

	_, err = f.reg.GetPeer(ctx, "nope")
	if !errors.Is(err, ErrPeerNotFound) || StatusCode(err) != 404 {
		t.Fatalf("unknown id err = %v", err)
	}
}

func TestMutations_UnknownPeer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ops := map[string]func() error{
		"enable":  func() error { return f.reg.EnablePeer(ctx, "nope") },
		"disable": func() error { return f.reg.DisablePeer(ctx, "nope") },
		"rename":  func() error { return f.reg.RenamePeer(ctx, "nope", "x") },
		"address": func() error { return f.reg.UpdatePeerAddress(ctx, "nope", "10.8.0.9") },
	}
	for name, op := range ops {
		if err := op(); StatusCode(err) != 404 {
			t.Errorf("%s: err = %v, want 404", name, err)
		}
	}
	if _, err := f.reg.PeerConfig(ctx, "nope"); StatusCode(err) != 404 {
		t.Errorf("PeerConfig: err = %v, want 404", err)
	}
}

func TestUpdatePeerAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, _ := f.reg.CreatePeer(ctx, "laptop")

	for _, bad := range []string{"999.1.1.1", "10.8.0", "fd00::1", "", "10.8.0.5/32"} {
		err := f.reg.UpdatePeerAddress(ctx, p.ID, bad)
		if !errors.Is(err, ErrInvalidAddress) || StatusCode(err) != 400 {
			t.Errorf("address %q: err = %v, want 400", bad, err)
		}
	}
	unchanged, _ := f.reg.GetPeer(ctx, p.ID)
	if unchanged.Address != "10.8.0.2" || !unchanged.UpdatedAt.Equal(p.UpdatedAt) {
		t.Errorf("failed update mutated peer: %+v", unchanged)
	}

	if err := f.reg.UpdatePeerAddress(ctx, p.ID, "10.8.0.5"); err != nil {
		t.Fatalf("UpdatePeerAddress: %v", err)
	}
	got, _ := f.reg.GetPeer(ctx, p.ID)
	if got.Address != "10.8.0.5" {
		t.Errorf("address = %s", got.Address)
	}
	if !got.UpdatedAt.After(p.UpdatedAt) {
		t.Errorf("updatedAt not refreshed: %v -> %v", p.UpdatedAt, got.UpdatedAt)
	}
	if !strings.Contains(f.conf(t), "AllowedIPs = 10.8.0.5/32") {
		t.Errorf("config not re-rendered:\n%s", f.conf(t))
	}
}

func TestRenamePeer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, _ := f.reg.CreatePeer(ctx, "laptop")
	if err := f.reg.RenamePeer(ctx, p.ID, "work laptop"); err != nil {
		t.Fatal(err)
	}
	got, _ := f.reg.GetPeer(ctx, p.ID)
	if got.Name != "work laptop" || !got.UpdatedAt.After(p.UpdatedAt) {
		t.Errorf("peer = %+v", got)
	}
}

func TestRenamePeer_MultilineNameStaysInComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, _ := f.reg.CreatePeer(ctx, "laptop")
	if err := f.reg.RenamePeer(ctx, p.ID, "x\n[Interface]\nPostUp = touch /tmp/owned\n#"); err != nil {
		t.Fatal(err)
	}
	got, _ := f.reg.GetPeer(ctx, p.ID)
	if !strings.Contains(got.Name, "\n") {
		t.Fatalf("stored name should be kept verbatim, got %q", got.Name)
	}
	conf := f.conf(t)
	for _, line := range strings.Split(conf, "\n") {
		if strings.HasPrefix(line, "PostUp = touch") {
			t.Fatalf("peer name injected a directive:\n%s", conf)
		}
	}
	if n := strings.Count(conf, "\n[Interface]\n"); n != 1 {
		t.Fatalf("[Interface] sections = %d:\n%s", n, conf)
	}
}

func TestDeletePeer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, _ := f.reg.CreatePeer(ctx, "laptop")
	st, _ := f.reg.State(ctx)

	if err := f.reg.DeletePeer(ctx, "does-not-exist"); err != nil {
		t.Fatalf("delete unknown: %v", err)
	}
	if len(st.Clients) != 1 {
		t.Fatalf("unknown delete changed collection: %d", len(st.Clients))
	}

	if err := f.reg.DeletePeer(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if len(st.Clients) != 0 {
		t.Errorf("peer not removed")
	}
	if strings.Contains(f.conf(t), p.PublicKey) {
		t.Errorf("deleted peer still rendered")
	}
}

func TestListPeers_MergesLiveStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.reg.CreatePeer(ctx, "a")
	b, _ := f.reg.CreatePeer(ctx, "b")
	c, _ := f.reg.CreatePeer(ctx, "c")

	f.drv.DumpOutput = "srvpriv\tsrvpub\t51820\toff\n" +
		a.PublicKey + "\t(none)\t1.2.3.4:5555\t10.8.0.2/32\t1690000000\t100\t200\t25\n" +
		b.PublicKey + "\t(none)\t(none)\t10.8.0.3/32\t0\t0\t0\toff\n" +
		"stranger=\t(none)\t(none)\t10.8.0.99/32\t1690000000\t1\t1\toff\n"

	views, err := f.reg.ListPeers(ctx)
	if err != nil {
		t.Fatalf("ListPeers: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("views = %d, want 3", len(views))
	}
	byID := map[string]models.PeerView{}
	for _, v := range views {
		byID[v.ID] = v
	}

	va := byID[a.ID]
	if va.LatestHandshakeAt == nil || !va.LatestHandshakeAt.Equal(time.Unix(1690000000, 0)) {
		t.Errorf("a handshake = %v", va.LatestHandshakeAt)
	}
	if va.TransferRx == nil || *va.TransferRx != 100 || va.TransferTx == nil || *va.TransferTx != 200 {
		t.Errorf("a transfer = %v/%v", va.TransferRx, va.TransferTx)
	}
	if va.PersistentKeepalive == nil || *va.PersistentKeepalive != 25 {
		t.Errorf("a keepalive = %v", va.PersistentKeepalive)
	}

	vb := byID[b.ID]
	if vb.LatestHandshakeAt != nil {
		t.Errorf("b handshake = %v, want nil", vb.LatestHandshakeAt)
	}

	vc := byID[c.ID]
	if vc.LatestHandshakeAt != nil || vc.TransferRx != nil || vc.PersistentKeepalive != nil {
		t.Errorf("c should have no live status: %+v", vc)
	}

	st, _ := f.reg.State(ctx)
	if len(st.Clients) != 3 {
		t.Errorf("listing changed storage")
	}
}

func TestListPeers_DumpError(t *testing.T) {
	f := newFixture(t)
	f.drv.DumpErr = errors.New("wg: unable to access interface")
	if _, err := f.reg.ListPeers(context.Background()); err == nil {
		t.Fatal("expected dump error to propagate")
	}
}

func TestPeerConfig(t *testing.T) {
	f := newFixture(t)
	f.opts.ConfigPort = 443
	f.opts.MTU = 1420
	f.reg = f.build()
	ctx := context.Background()

	p, _ := f.reg.CreatePeer(ctx, "laptop")
	st, _ := f.reg.State(ctx)

	text, err := f.reg.PeerConfig(ctx, p.ID)
	if err != nil {
		t.Fatalf("PeerConfig: %v", err)
	}
	for _, want := range []string{
		"PrivateKey = " + p.PrivateKey,
		"Address = 10.8.0.2/24",
		"DNS = 1.1.1.1",
		"MTU = 1420",
		"PublicKey = " + st.Server.PublicKey,
		"PresharedKey = " + p.PreSharedKey,
		"AllowedIPs = 0.0.0.0/0, ::/0",
		"PersistentKeepalive = 25",
		"Endpoint = vpn.example.com:443",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}

	// a peer whose key the registry never held
	st.Clients[p.ID].PrivateKey = ""
	text, _ = f.reg.PeerConfig(ctx, p.ID)
	if !strings.Contains(text, "PrivateKey = REPLACE_ME") {
		t.Errorf("placeholder missing:\n%s", text)
	}
	if strings.Count(text, "[Interface]") != 1 || strings.Count(text, "[Peer]") != 1 {
		t.Errorf("sections:\n%s", text)
	}
}

func TestPeerQRCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, _ := f.reg.CreatePeer(ctx, "laptop")
	svg, err := f.reg.PeerQRCode(ctx, p.ID)
	if err != nil {
		t.Fatalf("PeerQRCode: %v", err)
	}
	if !strings.HasPrefix(svg, "<svg") {
		t.Errorf("not svg: %.40s", svg)
	}
	if _, err := f.reg.PeerQRCode(ctx, "nope"); StatusCode(err) != 404 {
		t.Errorf("unknown id err = %v", err)
	}
}

func TestMutation_SyncFailurePropagates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.reg.State(ctx); err != nil {
		t.Fatal(err)
	}
	f.drv.SyncErr = errors.New("syncconf failed")
	if _, err := f.reg.CreatePeer(ctx, "x"); err == nil || StatusCode(err) != 500 {
		t.Fatalf("err = %v, want unclassified failure", err)
	}
}

func TestShutdown_IgnoresDownFailure(t *testing.T) {
	f := newFixture(t)
	f.drv.DownErr = errors.New("not running")
	f.reg.Shutdown(context.Background())
	if f.drv.Count("down") != 1 {
		t.Errorf("down not attempted: %v", f.drv.Calls())
	}
}

func TestServer(t *testing.T) {
	f := newFixture(t)
	info, err := f.reg.Server(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.Address != "10.8.0.1" || info.Endpoint != "vpn.example.com:51820" || info.PublicKey == "" {
		t.Errorf("info = %+v", info)
	}
}

func TestExportConfigs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, name := range []string{"a", "b"} {
		if _, err := f.reg.CreatePeer(ctx, name); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.reg.DisablePeer(ctx, "peer-2"); err != nil {
		t.Fatal(err)
	}

	files, err := f.reg.ExportConfigs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0].Peer.ID != "peer-1" || files[1].Peer.ID != "peer-2" {
		t.Fatalf("files = %+v", files)
	}
	for _, fc := range files {
		want, err := f.reg.PeerConfig(ctx, fc.Peer.ID)
		if err != nil {
			t.Fatal(err)
		}
		if fc.Text != want {
			t.Errorf("%s: export differs from PeerConfig", fc.Peer.ID)
		}
	}
}

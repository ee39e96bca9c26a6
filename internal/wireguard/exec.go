package wireguard

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"wgpanel/internal/logs"
)

// Runner executes one external command and returns its trimmed stdout.
type Runner interface {
	Run(ctx context.Context, stdin, name string, args ...string) (string, error)
}

// CommandError is a command that exited non-zero.
type CommandError struct {
	Cmd    string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %s", e.Cmd, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Cmd, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// OSRunner runs commands with os/exec.
type OSRunner struct{}

func (OSRunner) Run(ctx context.Context, stdin, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &CommandError{
			Cmd:    strings.Join(append([]string{name}, args...), " "),
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// ExecDriver drives the daemon through the wg and wg-quick tools.
type ExecDriver struct {
	iface  string
	runner Runner
	log    *logrus.Entry
}

func NewExecDriver(iface string, r Runner) *ExecDriver {
	if r == nil {
		r = OSRunner{}
	}
	return &ExecDriver{iface: iface, runner: r, log: logs.Component("wireguard").WithField("iface", iface)}
}

func (d *ExecDriver) run(ctx context.Context, stdin, name string, args ...string) (string, error) {
	d.log.Debugf("exec: %s %s", name, strings.Join(args, " "))
	return d.runner.Run(ctx, stdin, name, args...)
}

func (d *ExecDriver) GenerateKey(ctx context.Context) (string, error) {
	out, err := d.run(ctx, "", "wg", "genkey")
	if err != nil {
		return "", err
	}
	return checkKey("private key", out)
}

func (d *ExecDriver) PublicKey(ctx context.Context, privateKey string) (string, error) {
	out, err := d.run(ctx, privateKey+"\n", "wg", "pubkey")
	if err != nil {
		return "", err
	}
	return checkKey("public key", out)
}

func (d *ExecDriver) GeneratePresharedKey(ctx context.Context) (string, error) {
	out, err := d.run(ctx, "", "wg", "genpsk")
	if err != nil {
		return "", err
	}
	return checkKey("preshared key", out)
}

func (d *ExecDriver) Up(ctx context.Context) error {
	_, err := d.run(ctx, "", "wg-quick", "up", d.iface)
	return err
}

func (d *ExecDriver) Down(ctx context.Context) error {
	_, err := d.run(ctx, "", "wg-quick", "down", d.iface)
	return err
}

func (d *ExecDriver) Sync(ctx context.Context) error {
	script := fmt.Sprintf("wg syncconf %s <(wg-quick strip %s)", d.iface, d.iface)
	_, err := d.run(ctx, "", "bash", "-c", script)
	return err
}

func (d *ExecDriver) Dump(ctx context.Context) ([]PeerStatus, error) {
	out, err := d.run(ctx, "", "wg", "show", d.iface, "dump")
	if err != nil {
		return nil, err
	}
	return ParseDump(out)
}

// checkKey rejects tool output that is not a base64 Curve25519 key.
func checkKey(what, s string) (string, error) {
	k, err := wgtypes.ParseKey(s)
	if err != nil {
		return "", fmt.Errorf("invalid %s from wg: %w", what, err)
	}
	return k.String(), nil
}

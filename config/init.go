package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"wgpanel/internal/secrets"
)

// Config is the whole application configuration. Every key can be set from
// the environment with dots replaced by underscores (wg.host -> WG_HOST).
type Config struct {
	Server struct {
		Address      string `mapstructure:"address"`
		HTTPPort     string `mapstructure:"http_port"`
		Password     string `mapstructure:"password"`      // empty (with no hash) disables API auth
		PasswordHash string `mapstructure:"password_hash"` // argon2id, see `wgpanel hash-password`
	} `mapstructure:"server"`

	Logging struct {
		Level  string `mapstructure:"level"`  // trace|debug|info|warning|error|fatal
		Format string `mapstructure:"format"` // text|json
		File   string `mapstructure:"file"`
	} `mapstructure:"logs"`

	Storage struct {
		Driver string `mapstructure:"driver"` // "" (JSON file) | "postgres" | "mysql"
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"storage"`

	WireGuard WireGuard `mapstructure:"wg"`
}

type WireGuard struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	ConfigPort int    `mapstructure:"config_port"`
	Path       string `mapstructure:"path"`
	Interface  string `mapstructure:"interface"`
	Device     string `mapstructure:"device"`
	Driver     string `mapstructure:"driver"` // exec | native

	DefaultAddress      string `mapstructure:"default_address"`
	DefaultDNS          string `mapstructure:"default_dns"`
	MTU                 int    `mapstructure:"mtu"`
	AllowedIPs          string `mapstructure:"allowed_ips"`
	PersistentKeepalive int    `mapstructure:"persistent_keepalive"`

	PreUp    string `mapstructure:"pre_up"`
	PostUp   string `mapstructure:"post_up"`
	PreDown  string `mapstructure:"pre_down"`
	PostDown string `mapstructure:"post_down"`
}

// StatePath is the JSON state document, e.g. /etc/wireguard/wg0.json.
func (w WireGuard) StatePath() string { return filepath.Join(w.Path, w.Interface+".json") }

// ConfigPath is the rendered daemon config, e.g. /etc/wireguard/wg0.conf.
func (w WireGuard) ConfigPath() string { return filepath.Join(w.Path, w.Interface+".conf") }

// Subnet is the tunnel network in CIDR form, e.g. 10.8.0.0/24.
func (w WireGuard) Subnet() string {
	parts := strings.Split(w.DefaultAddress, ".")
	if len(parts) != 4 {
		return w.DefaultAddress
	}
	parts[3] = "0"
	return strings.Join(parts, ".") + "/24"
}

// Load reads the config file (if any) and the environment. file overrides
// CONFIG_FILE; with neither set the usual locations are searched.
func Load(file string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.http_port", "51821")
	v.SetDefault("server.password", "")
	v.SetDefault("server.password_hash", "")

	v.SetDefault("logs.level", "info")
	v.SetDefault("logs.format", "text")
	v.SetDefault("logs.file", "")

	v.SetDefault("storage.driver", "")
	v.SetDefault("storage.dsn", "")

	v.SetDefault("wg.host", "")
	v.SetDefault("wg.port", 51820)
	v.SetDefault("wg.config_port", 0)
	v.SetDefault("wg.path", "/etc/wireguard")
	v.SetDefault("wg.interface", "wg0")
	v.SetDefault("wg.device", "eth0")
	v.SetDefault("wg.driver", "exec")
	v.SetDefault("wg.default_address", "10.8.0.x")
	v.SetDefault("wg.default_dns", "1.1.1.1")
	v.SetDefault("wg.mtu", 0)
	v.SetDefault("wg.allowed_ips", "0.0.0.0/0, ::/0")
	v.SetDefault("wg.persistent_keepalive", 0)
	v.SetDefault("wg.pre_up", "")
	v.SetDefault("wg.post_up", "")
	v.SetDefault("wg.pre_down", "")
	v.SetDefault("wg.post_down", "")

	if file == "" {
		file = os.Getenv("CONFIG_FILE")
	}
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "wgpanel"))
		}
		v.AddConfigPath("/etc/wgpanel")
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	applyHookDefaults(&cfg.WireGuard)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad(file string) *Config {
	cfg, err := Load(file)
	if err != nil {
		panic(err)
	}
	return cfg
}

// applyHookDefaults fills PostUp/PostDown with NAT and forwarding rules for
// the tunnel subnet unless they were configured explicitly.
func applyHookDefaults(w *WireGuard) {
	if w.PostUp == "" {
		w.PostUp = strings.Join([]string{
			fmt.Sprintf("iptables -t nat -A POSTROUTING -s %s -o %s -j MASQUERADE", w.Subnet(), w.Device),
			fmt.Sprintf("iptables -A INPUT -p udp -m udp --dport %d -j ACCEPT", w.Port),
			fmt.Sprintf("iptables -A FORWARD -i %s -j ACCEPT", w.Interface),
			fmt.Sprintf("iptables -A FORWARD -o %s -j ACCEPT", w.Interface),
		}, "; ")
	}
	if w.PostDown == "" {
		w.PostDown = strings.Join([]string{
			fmt.Sprintf("iptables -t nat -D POSTROUTING -s %s -o %s -j MASQUERADE", w.Subnet(), w.Device),
			fmt.Sprintf("iptables -D INPUT -p udp -m udp --dport %d -j ACCEPT", w.Port),
			fmt.Sprintf("iptables -D FORWARD -i %s -j ACCEPT", w.Interface),
			fmt.Sprintf("iptables -D FORWARD -o %s -j ACCEPT", w.Interface),
		}, "; ")
	}
}

// ifaceName is what Linux accepts for a link name and what wg-quick accepts
// for a config name. The interface is passed to shell hooks unquoted.
var ifaceName = regexp.MustCompile(`^[a-zA-Z0-9_=+.-]{1,15}$`)

func validate(c *Config) error {
	if strings.TrimSpace(c.Server.Address) == "" {
		return errors.New("server.address must not be empty")
	}
	if strings.TrimSpace(c.Server.HTTPPort) == "" {
		return errors.New("server.http_port must not be empty")
	}
	if err := (secrets.Password{Hash: c.Server.PasswordHash}).Validate(); err != nil {
		return fmt.Errorf("server.password_hash: %w", err)
	}
	switch c.Storage.Driver {
	case "":
	case "postgres", "mysql":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("storage.dsn must be set for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unsupported storage.driver %q", c.Storage.Driver)
	}
	switch c.WireGuard.Driver {
	case "exec", "native":
	default:
		return fmt.Errorf("unsupported wg.driver %q (exec|native)", c.WireGuard.Driver)
	}
	if c.WireGuard.Port <= 0 || c.WireGuard.Port > 65535 {
		return fmt.Errorf("wg.port %d out of range", c.WireGuard.Port)
	}
	if !ifaceName.MatchString(c.WireGuard.Interface) {
		return fmt.Errorf("wg.interface %q is not a valid interface name", c.WireGuard.Interface)
	}
	return nil
}

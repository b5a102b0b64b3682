package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kirsle/configdir"
)

const appName = "relaychat"

// Duration reads and writes durations as strings such as "10s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

type Config struct {
	// ListenAddr is the TCP address of the broker.
	ListenAddr string `json:"listenAddr"`
	// WebSocketAddr enables the /ws ingress when set.
	WebSocketAddr string `json:"webSocketAddr,omitempty"`
	// Advertise publishes the broker over mDNS.
	Advertise   bool   `json:"advertise"`
	ServiceName string `json:"serviceName"`

	ChunkSize        int      `json:"chunkSize"`
	HandshakeTimeout Duration `json:"handshakeTimeout"`
	WriteTimeout     Duration `json:"writeTimeout"`
	DialTimeout      Duration `json:"dialTimeout"`
	RelayIdleTimeout Duration `json:"relayIdleTimeout"`
}

func Default() Config {
	return Config{
		ListenAddr:       ":8080",
		ServiceName:      "_relaychat._tcp",
		ChunkSize:        1500,
		HandshakeTimeout: Duration(10 * time.Second),
		WriteTimeout:     Duration(10 * time.Second),
		DialTimeout:      Duration(5 * time.Second),
		RelayIdleTimeout: Duration(30 * time.Second),
	}
}

// DefaultPath is the per-user location of the broker settings file.
func DefaultPath() string {
	return filepath.Join(configdir.LocalConfig(appName), "broker.json")
}

// Load returns the defaults overlaid with the settings in path. A missing
// file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	} else if err != nil {
		return cfg, err
	}

	if err := json.Unmarshal(contents, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Save writes cfg to path, creating the config directory if needed.
func Save(path string, cfg Config) error {
	if err := configdir.MakePath(filepath.Dir(path)); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listenAddr must be set")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunkSize must be positive, got %d", c.ChunkSize)
	}
	for name, d := range map[string]Duration{
		"handshakeTimeout": c.HandshakeTimeout,
		"writeTimeout":     c.WriteTimeout,
		"dialTimeout":      c.DialTimeout,
		"relayIdleTimeout": c.RelayIdleTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

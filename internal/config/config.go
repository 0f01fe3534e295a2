package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server ServerConfig `toml:"server"`
	Room   RoomConfig   `toml:"room"`
	WebRTC WebRTCConfig `toml:"webrtc"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type RoomConfig struct {
	// IdleTimeoutMinutes is how long an empty room survives before the sweep
	// collects it.
	IdleTimeoutMinutes int `toml:"idle_timeout_minutes"`
	// SweepIntervalMinutes is how often the sweep runs.
	SweepIntervalMinutes int `toml:"sweep_interval_minutes"`
}

type WebRTCConfig struct {
	ICEServers []ICEServerConfig `toml:"iceserver"`
	MDNS       bool              `toml:"mdns"`
}

type ICEServerConfig struct {
	URLs       []string `toml:"urls"`
	Username   string   `toml:"username"`
	Credential string   `toml:"credential"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Room: RoomConfig{
			IdleTimeoutMinutes:   30,
			SweepIntervalMinutes: 5,
		},
		WebRTC: WebRTCConfig{
			ICEServers: []ICEServerConfig{
				{URLs: []string{"stun:stun.l.google.com:19302"}},
			},
		},
	}
}

// Load reads a toml file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

func (c RoomConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMinutes) * time.Minute
}

func (c RoomConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	exeDirCache string
)

// getExecutableDir returns the directory where the executable is located
func getExecutableDir() string {
	if exeDirCache != "" {
		return exeDirCache
	}
	execPath, err := os.Executable()
	if err != nil {
		exeDirCache = "."
		return exeDirCache
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		exeDirCache = "."
		return exeDirCache
	}
	exeDirCache = filepath.Dir(execPath)
	return exeDirCache
}

type Config struct {
	Discord     DiscordConfig         `yaml:"discord"`
	Pterodactyl PterodactylConfig     `yaml:"pterodactyl"`
	Provision   ProvisionConfig       `yaml:"provision"`
	Quota       QuotaConfig           `yaml:"quota"`
	Logging     LoggingConfig         `yaml:"logging"`
	ServerTypes map[string]ServerType `yaml:"server_types"`
}

type DiscordConfig struct {
	Token     string `yaml:"token,omitempty"`
	ChannelID string `yaml:"channel_id,omitempty"` // server-creation channel
	RoleID    string `yaml:"role_id,omitempty"`    // granted after a successful creation
}

type PterodactylConfig struct {
	APIURL string `yaml:"api_url,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
}

type ProvisionConfig struct {
	LocationID        int `yaml:"location_id,omitempty"`
	MaxServersPerUser int `yaml:"max_servers_per_user,omitempty"`
	SessionTTLMinutes int `yaml:"session_ttl_minutes,omitempty"`
}

// SessionTTL returns how long an idle session survives before the
// janitor expires it.
func (p ProvisionConfig) SessionTTL() time.Duration {
	return time.Duration(p.SessionTTLMinutes) * time.Minute
}

type QuotaConfig struct {
	Backend string `yaml:"backend,omitempty"` // "sqlite" or "json"
	Path    string `yaml:"path,omitempty"`
}

// ResolvedPath returns the configured store path, defaulting next to
// the executable with an extension matching the backend.
func (q QuotaConfig) ResolvedPath() string {
	if q.Path != "" {
		return q.Path
	}
	name := "server_limits.db"
	if q.Backend == "json" {
		name = "server_limits.json"
	}
	return filepath.Join(getExecutableDir(), name)
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ServerType describes one selectable server flavor.
type ServerType struct {
	Name        string            `yaml:"name"`
	EggID       int               `yaml:"egg_id"`
	Memory      int               `yaml:"memory"` // MB
	DockerImage string            `yaml:"docker_image"`
	Startup     string            `yaml:"startup,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Provision: ProvisionConfig{
			MaxServersPerUser: 1,
			SessionTTLMinutes: 15,
		},
		Quota: QuotaConfig{
			Backend: "sqlite",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		ServerTypes: map[string]ServerType{
			"minecraft": {
				Name:        "Minecraft Server",
				Memory:      1024,
				DockerImage: "ghcr.io/pterodactyl/yolks:java_17",
			},
			"nodejs": {
				Name:        "Node.js Server",
				Memory:      256,
				DockerImage: "ghcr.io/pterodactyl/yolks:nodejs_18",
				Startup:     "npm start",
				Environment: map[string]string{
					"STARTUP_CMD":  "npm start",
					"NODE_VERSION": "18",
				},
			},
			"teamspeak": {
				Name:        "TeamSpeak Server",
				Memory:      256,
				DockerImage: "ghcr.io/pterodactyl/yolks:teamspeak",
			},
			"database": {
				Name:        "MySQL Datenbank",
				Memory:      256,
				DockerImage: "ghcr.io/pterodactyl/yolks:mysql",
			},
			"debian": {
				Name:        "Debian Server",
				Memory:      1024,
				DockerImage: "ghcr.io/pterodactyl/yolks:debian",
			},
			"python": {
				Name:        "Python Server",
				Memory:      512,
				DockerImage: "ghcr.io/pterodactyl/yolks:python_3.10",
			},
		},
	}
}

func ConfigPath() string {
	return filepath.Join(getExecutableDir(), ".hostingclub.yaml")
}

// Load reads the config from the default path, falling back to defaults
// and environment variables when the file is absent.
func Load() (*Config, error) {
	return LoadFromPath(ConfigPath())
}

// LoadFromPath reads the config from an explicit path. Environment
// variables fill any field the file leaves empty.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(ConfigPath(), data, 0600)
}

// applyEnv fills string fields left empty by the file from the
// environment. MAX_SERVERS_PER_USER keeps its original env-first
// behavior and wins whenever set.
func (c *Config) applyEnv() {
	setString(&c.Discord.Token, "DISCORD_TOKEN")
	setString(&c.Discord.ChannelID, "SERVER_CREATION_CHANNEL_ID")
	setString(&c.Discord.RoleID, "SERVER_CREATOR_ROLE_ID")
	setString(&c.Pterodactyl.APIURL, "PTERODACTYL_API_URL")
	setString(&c.Pterodactyl.APIKey, "PTERODACTYL_API_KEY")

	if c.Provision.LocationID == 0 {
		if v, err := strconv.Atoi(os.Getenv("LOCATION_ID")); err == nil {
			c.Provision.LocationID = v
		}
	}
	if v, err := strconv.Atoi(os.Getenv("MAX_SERVERS_PER_USER")); err == nil && v > 0 {
		c.Provision.MaxServersPerUser = v
	}

	for key, st := range c.ServerTypes {
		if st.EggID != 0 {
			continue
		}
		env := strings.ToUpper(key) + "_EGG_ID"
		if v, err := strconv.Atoi(os.Getenv(env)); err == nil {
			st.EggID = v
			c.ServerTypes[key] = st
		}
	}
}

func setString(dst *string, env string) {
	if *dst == "" {
		*dst = os.Getenv(env)
	}
}

// Validate checks that everything the bot cannot run without is present.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord token is required (discord.token or DISCORD_TOKEN)")
	}
	if c.Pterodactyl.APIURL == "" {
		return fmt.Errorf("panel API URL is required (pterodactyl.api_url or PTERODACTYL_API_URL)")
	}
	if c.Pterodactyl.APIKey == "" {
		return fmt.Errorf("panel API key is required (pterodactyl.api_key or PTERODACTYL_API_KEY)")
	}
	if len(c.ServerTypes) == 0 {
		return fmt.Errorf("at least one server type must be configured")
	}
	if c.Provision.MaxServersPerUser < 1 {
		return fmt.Errorf("max_servers_per_user must be at least 1")
	}
	if c.Provision.SessionTTLMinutes < 1 {
		return fmt.Errorf("session_ttl_minutes must be at least 1")
	}
	switch c.Quota.Backend {
	case "sqlite", "json":
	default:
		return fmt.Errorf("unknown quota backend: %q", c.Quota.Backend)
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the match server configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	NATS     NATSConfig     `yaml:"nats"`
	Log      LogConfig      `yaml:"log"`
	Game     GameConfig     `yaml:"game"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// AdvertiseAddr is the stable address stored on claimed rooms.
	AdvertiseAddr string `yaml:"advertise_addr"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	SecretKey     string        `yaml:"secret_key"`
	TokenDuration time.Duration `yaml:"token_duration"`
}

// NATSConfig selects the lifecycle bus. An empty URL means the in-process bus.
type NATSConfig struct {
	URL string `yaml:"url"`
}

type LogConfig struct {
	Development bool   `yaml:"development"`
	Level       string `yaml:"level"`
}

// GameConfig holds the room and combat tunables
type GameConfig struct {
	SeatCapacity   int           `yaml:"seat_capacity"`
	MaxHealth      int           `yaml:"max_health"`
	HealAmount     int           `yaml:"heal_amount"`
	OffensivePower int           `yaml:"offensive_power"`
	FlightDelay    time.Duration `yaml:"flight_delay"`
	EndGrace       time.Duration `yaml:"end_grace"`
	LeaveBan       time.Duration `yaml:"leave_ban"`
	VictoryDelta   int           `yaml:"victory_delta"`
	DefeatDelta    int           `yaml:"defeat_delta"`
}

// Load reads configuration from an optional YAML file, then applies FW_*
// environment overrides (after loading envFile if it exists) and defaults.
func Load(path, envFile string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString("FW_LISTEN_ADDR", &c.Server.ListenAddr)
	setString("FW_ADVERTISE_ADDR", &c.Server.AdvertiseAddr)
	setString("FW_DB_URL", &c.Database.URL)
	setString("FW_SECRET_KEY", &c.Auth.SecretKey)
	setString("FW_NATS_URL", &c.NATS.URL)
	setString("FW_LOG_LEVEL", &c.Log.Level)

	if v, ok := os.LookupEnv("FW_DEV"); ok {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing FW_DEV: %w", err)
		}
		c.Log.Development = dev
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.AdvertiseAddr == "" {
		c.Server.AdvertiseAddr = "ws://localhost" + c.Server.ListenAddr
	}
	if c.Auth.TokenDuration == 0 {
		c.Auth.TokenDuration = 24 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	g := &c.Game
	if g.SeatCapacity == 0 {
		g.SeatCapacity = 16
	}
	if g.MaxHealth == 0 {
		g.MaxHealth = 100
	}
	if g.HealAmount == 0 {
		g.HealAmount = 20
	}
	if g.OffensivePower == 0 {
		g.OffensivePower = 16
	}
	if g.FlightDelay == 0 {
		g.FlightDelay = time.Second
	}
	if g.EndGrace == 0 {
		g.EndGrace = 10 * time.Second
	}
	if g.LeaveBan == 0 {
		g.LeaveBan = 4 * time.Minute
	}
	if g.VictoryDelta == 0 {
		g.VictoryDelta = 25
	}
	if g.DefeatDelta == 0 {
		g.DefeatDelta = 15
	}
}

func (c *Config) Validate() error {
	g := c.Game
	switch {
	case c.Auth.SecretKey == "":
		return errors.New("config: auth.secret_key (FW_SECRET_KEY) is required")
	case g.SeatCapacity <= 0 || g.SeatCapacity%2 != 0:
		return fmt.Errorf("config: game.seat_capacity must be a positive even number, got %d", g.SeatCapacity)
	case g.MaxHealth <= 0 || g.HealAmount < 0 || g.OffensivePower < 0:
		return errors.New("config: game health values must be positive")
	case g.FlightDelay < 0 || g.EndGrace < 0 || g.LeaveBan < 0:
		return errors.New("config: game delays must not be negative")
	case g.VictoryDelta < 0 || g.DefeatDelta < 0:
		return errors.New("config: rating deltas are magnitudes and must not be negative")
	}
	return nil
}

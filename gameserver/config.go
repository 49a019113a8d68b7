package gameserver

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/amirrezam75/coinrace/game"
	"github.com/amirrezam75/coinrace/pkg/logx"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config contains all configuration options for the game server
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Game      game.Config     `toml:"game"`
	Loop      LoopConfig      `toml:"loop"`
	Publisher PublisherConfig `toml:"publisher"`
	Logging   logx.Config     `toml:"logging"`
}

type ServerConfig struct {
	Address         string        `toml:"address"`
	AllowedOrigins  []string      `toml:"allowed_origins"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// LoopConfig sizes the tick loop and the queues around it.
type LoopConfig struct {
	TickRate time.Duration `toml:"tick_rate"`
	// Controls how many messages can be queued for dispatch before the
	// loop starts dropping frames.
	DispatchBufferSize int `toml:"dispatch_buffer_size"`
	// Per-connection outgoing queue. A client that falls this many frames
	// behind misses snapshots until it catches up.
	SendBufferSize    int `toml:"send_buffer_size"`
	CommandBufferSize int `toml:"command_buffer_size"`
	EventBufferSize   int `toml:"event_buffer_size"`
}

// PublisherConfig contains configuration for the publisher service
type PublisherConfig struct {
	Redis RedisConfig `toml:"redis"`
}

// RedisConfig contains Redis connection configuration. An empty Host
// disables publishing.
type RedisConfig struct {
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	Password string `toml:"password"`
	Channel  string `toml:"channel"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":3000",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Game: game.DefaultConfig(),
		Loop: LoopConfig{
			TickRate:           time.Second / 60,
			DispatchBufferSize: 500,
			SendBufferSize:     32,
			CommandBufferSize:  256,
			EventBufferSize:    64,
		},
		Publisher: PublisherConfig{
			Redis: RedisConfig{
				Port:    "6379",
				Channel: "coinrace",
			},
		},
		Logging: logx.Config{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig overlays the TOML file at path onto DefaultConfig.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("parse config %s: %w", path, err)
	}

	return config, config.Validate()
}

// ApplyEnv lets the usual deployment variables override the file.
func (c *Config) ApplyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Address = net.JoinHostPort("", port)
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		c.Publisher.Redis.Host = host
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		c.Publisher.Redis.Password = password
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

func (c Config) Validate() error {
	g := c.Game

	switch {
	case g.Width <= 0 || g.Height <= 0:
		return fmt.Errorf("%w: game area must be positive, got %vx%v", ErrInvalidConfig, g.Width, g.Height)
	case g.PlayerWidth <= 0 || g.PlayerHeight <= 0 || g.PlayerWidth > g.Width || g.PlayerHeight > g.Height:
		return fmt.Errorf("%w: player size %vx%v does not fit the game area", ErrInvalidConfig, g.PlayerWidth, g.PlayerHeight)
	case g.CollectibleWidth <= 0 || g.CollectibleHeight <= 0 || g.CollectibleWidth > g.Width || g.CollectibleHeight > g.Height:
		return fmt.Errorf("%w: collectible size %vx%v does not fit the game area", ErrInvalidConfig, g.CollectibleWidth, g.CollectibleHeight)
	case g.Speed < 0:
		return fmt.Errorf("%w: speed must not be negative", ErrInvalidConfig)
	case c.Loop.TickRate <= 0:
		return fmt.Errorf("%w: tick rate must be positive", ErrInvalidConfig)
	case c.Server.Address == "":
		return fmt.Errorf("%w: server address is empty", ErrInvalidConfig)
	}

	return nil
}

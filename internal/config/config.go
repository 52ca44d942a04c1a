package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type RoomConfig struct {
	MaxParticipants int           `mapstructure:"max_participants"`
	ReapInterval    time.Duration `mapstructure:"reap_interval"`
	DisconnectGrace time.Duration `mapstructure:"disconnect_grace"`
}

type ICEServerConfig struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

// TurnConfig enables minted time-limited TURN credentials when Secret is set;
// it must match the TURN server's static-auth-secret.
type TurnConfig struct {
	URLs          []string      `mapstructure:"urls"`
	Secret        string        `mapstructure:"secret"`
	CredentialTTL time.Duration `mapstructure:"credential_ttl"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	// AllowedOrigins restricts websocket upgrades to the listed Origin values.
	// Empty means any origin, which is fine behind a reverse proxy that
	// enforces its own policy.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	Room       RoomConfig        `mapstructure:"room"`
	ICEServers []ICEServerConfig `mapstructure:"ice_servers"`
	Turn       TurnConfig        `mapstructure:"turn"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("room.max_participants", 16)
	v.SetDefault("room.reap_interval", "60s")
	v.SetDefault("room.disconnect_grace", "30s")
	v.SetDefault("turn.credential_ttl", "1h")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(cfg.ICEServers) == 0 {
		cfg.ICEServers = []ICEServerConfig{{URLs: []string{"stun:stun.l.google.com:19302"}}}
	}
	log.Info().Str("mode", cfg.Mode).Int("port", cfg.Port).Msg("config ready")
	return &cfg, nil
}

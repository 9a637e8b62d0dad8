// Package config loads layered settings for the server and the participant
// CLI: defaults, then config/config.<CONFIG_ENV>.yaml, then CONSULT_* env.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const EnvPrefix = "CONSULT"

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	LogLevel   string        `mapstructure:"log_level"`

	ReadyLimit    int           `mapstructure:"ready_limit"`
	ReadyInterval time.Duration `mapstructure:"ready_interval"`

	Signal SignalConfig `mapstructure:"signal"`
	MQTT   MQTTConfig   `mapstructure:"mqtt"`
	ICE    ICEConfig    `mapstructure:"ice"`
	Media  MediaConfig  `mapstructure:"media"`
}

type SignalConfig struct {
	URL       string `mapstructure:"url"`
	Transport string `mapstructure:"transport"`
}

type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

type ICEConfig struct {
	STUNURLs            []string      `mapstructure:"stun_urls"`
	CandidatePoolSize   uint8         `mapstructure:"candidate_pool_size"`
	DisconnectedTimeout time.Duration `mapstructure:"disconnected_timeout"`
	FailedTimeout       time.Duration `mapstructure:"failed_timeout"`
	KeepaliveInterval   time.Duration `mapstructure:"keepalive_interval"`
}

type MediaConfig struct {
	VideoFile string `mapstructure:"video_file"`
	AudioFile string `mapstructure:"audio_file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "")
	v.SetDefault("token_ttl", "12h")
	v.SetDefault("log_level", "info")
	v.SetDefault("ready_limit", 5)
	v.SetDefault("ready_interval", "10s")

	v.SetDefault("signal.url", "http://localhost:8080")
	v.SetDefault("signal.transport", "ws")
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic_prefix", "consult")

	v.SetDefault("ice.stun_urls", []string{"stun:stun1.l.google.com:19302", "stun:stun2.l.google.com:19302"})
	v.SetDefault("ice.candidate_pool_size", 10)
	v.SetDefault("ice.disconnected_timeout", "30s")
	v.SetDefault("ice.failed_timeout", "120s")
	v.SetDefault("ice.keepalive_interval", "2s")

	v.SetDefault("media.video_file", "")
	v.SetDefault("media.audio_file", "")
}

// Load reads config/config.<CONFIG_ENV>.yaml, "dev" when unset.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile is Load with an explicit file. A missing file is not an error.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}

// Level is the zerolog level for LogLevel, info when it does not parse.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (c *Config) Debug() bool { return c.Mode == "debug" }

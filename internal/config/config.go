package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string           `mapstructure:"mode"`
	Port       int              `mapstructure:"port"`
	StaticPath string           `mapstructure:"static_path"`
	PrefsPath  string           `mapstructure:"prefs_path"`
	Signal     SignalConfig     `mapstructure:"signal"`
	Rendezvous RendezvousConfig `mapstructure:"rendezvous"`
	Call       CallConfig       `mapstructure:"call"`
}

// SignalConfig describes the matchmaking channel.
type SignalConfig struct {
	URL          string        `mapstructure:"url"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	BackoffMin   time.Duration `mapstructure:"backoff_min"`
	BackoffMax   time.Duration `mapstructure:"backoff_max"`
	TextLimit    int           `mapstructure:"text_limit"`
	TextInterval time.Duration `mapstructure:"text_interval"`
}

// RendezvousConfig describes the direct-transport network.
type RendezvousConfig struct {
	URL               string        `mapstructure:"url"`
	Key               string        `mapstructure:"key"`
	Heartbeat         time.Duration `mapstructure:"heartbeat"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
	HardErrorLimit    int           `mapstructure:"hard_error_limit"`
	ICEServers        []string      `mapstructure:"ice_servers"`
}

// CallConfig holds every user-visible time budget of the call flow.
type CallConfig struct {
	ReadinessInterval time.Duration `mapstructure:"readiness_interval"`
	ReadinessAttempts int           `mapstructure:"readiness_attempts"`
	DialInterval      time.Duration `mapstructure:"dial_interval"`
	DialAttempts      int           `mapstructure:"dial_attempts"`
	DialDelay         time.Duration `mapstructure:"dial_delay"`
	ConnectDeadline   time.Duration `mapstructure:"connect_deadline"`
	ConnectAttempts   int           `mapstructure:"connect_attempts"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	PreflightDelay    time.Duration `mapstructure:"preflight_delay"`
	PreflightLinger   time.Duration `mapstructure:"preflight_linger"`
	PreflightTimeout  time.Duration `mapstructure:"preflight_timeout"`
	NotificationTTL   time.Duration `mapstructure:"notification_ttl"`
}

// DefaultCallConfig returns the budgets the client ships with.
func DefaultCallConfig() CallConfig {
	return CallConfig{
		ReadinessInterval: 250 * time.Millisecond,
		ReadinessAttempts: 12,
		DialInterval:      300 * time.Millisecond,
		DialAttempts:      10,
		DialDelay:         150 * time.Millisecond,
		ConnectDeadline:   5 * time.Second,
		ConnectAttempts:   2,
		ReconnectDelay:    1500 * time.Millisecond,
		PreflightDelay:    50 * time.Millisecond,
		PreflightLinger:   200 * time.Millisecond,
		PreflightTimeout:  500 * time.Millisecond,
		NotificationTTL:   2 * time.Second,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("prefs_path", "./data/prefs.yaml")

	v.SetDefault("signal.url", "ws://localhost:3001/ws")
	v.SetDefault("signal.read_limit", 32768)
	v.SetDefault("signal.ping_period", "54s")
	v.SetDefault("signal.backoff_min", "500ms")
	v.SetDefault("signal.backoff_max", "10s")
	v.SetDefault("signal.text_limit", 5)
	v.SetDefault("signal.text_interval", "3s")

	v.SetDefault("rendezvous.url", "ws://localhost:9000/peerjs/myapp/peerjs")
	v.SetDefault("rendezvous.key", "peerjs")
	v.SetDefault("rendezvous.heartbeat", "5s")
	v.SetDefault("rendezvous.reconnect_attempts", 3)
	v.SetDefault("rendezvous.hard_error_limit", 3)
	v.SetDefault("rendezvous.ice_servers", []string{"stun:stun.l.google.com:19302"})

	d := DefaultCallConfig()
	v.SetDefault("call.readiness_interval", d.ReadinessInterval)
	v.SetDefault("call.readiness_attempts", d.ReadinessAttempts)
	v.SetDefault("call.dial_interval", d.DialInterval)
	v.SetDefault("call.dial_attempts", d.DialAttempts)
	v.SetDefault("call.dial_delay", d.DialDelay)
	v.SetDefault("call.connect_deadline", d.ConnectDeadline)
	v.SetDefault("call.connect_attempts", d.ConnectAttempts)
	v.SetDefault("call.reconnect_delay", d.ReconnectDelay)
	v.SetDefault("call.preflight_delay", d.PreflightDelay)
	v.SetDefault("call.preflight_linger", d.PreflightLinger)
	v.SetDefault("call.preflight_timeout", d.PreflightTimeout)
	v.SetDefault("call.notification_ttl", d.NotificationTTL)
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
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Call.ConnectAttempts < 1 {
		return nil, fmt.Errorf("call.connect_attempts must be at least 1, got %d", cfg.Call.ConnectAttempts)
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("signal", cfg.Signal.URL).
		Str("rendezvous", cfg.Rendezvous.URL).
		Msg("config ready")
	return &cfg, nil
}

// Package config loads runtime settings from the environment and an optional
// TOML file. Environment variables win over the file; the file wins over
// defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Prescott-Data/nexus-presence/gateway"
	"github.com/Prescott-Data/nexus-presence/internal/account"
)

// FileEnv names the variable holding the optional config file path.
const FileEnv = "NEXUS_PRESENCE_CONFIG"

type Config struct {
	Token    string         `toml:"token"`
	Presence PresenceConfig `toml:"presence"`
	Gateway  GatewayConfig  `toml:"gateway"`
	Backoff  BackoffConfig  `toml:"backoff"`
	State    StateConfig    `toml:"state"`
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
}

type PresenceConfig struct {
	Status        string `toml:"status"`
	CustomStatus  string `toml:"custom_status"`
	EmojiName     string `toml:"emoji_name"`
	EmojiID       string `toml:"emoji_id"`
	EmojiAnimated bool   `toml:"emoji_animated"`
	Device        string `toml:"device"`
}

type GatewayConfig struct {
	URL                        string   `toml:"url"`
	APIURL                     string   `toml:"api_url"`
	HeartbeatTimeoutMultiplier float64  `toml:"heartbeat_timeout_multiplier"`
	ConnectTimeout             Duration `toml:"connect_timeout"`
	ReceiveTimeout             Duration `toml:"recv_timeout"`
	SendTimeout                Duration `toml:"send_timeout"`
	IdentifySettleDelay        Duration `toml:"identify_settle_delay"`
}

type BackoffConfig struct {
	Base   Duration `toml:"base"`
	Max    Duration `toml:"max"`
	Jitter bool     `toml:"jitter"`
}

type StateConfig struct {
	Path     string `toml:"path"`
	RedisURL string `toml:"redis_url"`
	RedisKey string `toml:"redis_key"`
}

type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Port    string `toml:"port"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	t := gateway.DefaultTimeouts()
	b := gateway.DefaultBackoffPolicy()
	return &Config{
		Presence: PresenceConfig{
			Status: "online",
			Device: gateway.DefaultDevice,
		},
		Gateway: GatewayConfig{
			URL:                        gateway.DefaultGatewayURL,
			APIURL:                     account.DefaultAPIURL,
			HeartbeatTimeoutMultiplier: gateway.DefaultHeartbeatTimeoutMultiplier,
			ConnectTimeout:             Duration{t.Connect},
			ReceiveTimeout:             Duration{t.Receive},
			SendTimeout:                Duration{t.Send},
			IdentifySettleDelay:        Duration{t.Settle},
		},
		Backoff: BackoffConfig{
			Base:   Duration{b.Base},
			Max:    Duration{b.Max},
			Jitter: b.Jitter,
		},
		State: StateConfig{
			Path: "/tmp/neveroff_state.json",
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    "8080",
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// LoadFromEnv is Load with the process environment, reading the file named
// by NEXUS_PRESENCE_CONFIG when set.
func LoadFromEnv() (*Config, error) {
	return Load(os.Getenv(FileEnv), os.LookupEnv)
}

// Load builds a Config from defaults, then the TOML file at path (skipped
// when path is empty), then the variables returned by lookup. The result is
// validated.
func Load(path string, lookup func(string) (string, bool)) (*Config, error) {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		expanded := expandEnvVars(string(data), lookup)
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the looked-up value.
func expandEnvVars(s string, lookup func(string) (string, bool)) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		v, _ := lookup(strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}"))
		return v
	})
}

// applyEnv overrides fields from the environment. Variable names match the
// historical deployment, hence the mixed case.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	strs := map[string]*string{
		"token":              &c.Token,
		"status":             &c.Presence.Status,
		"custom_status":      &c.Presence.CustomStatus,
		"emoji_name":         &c.Presence.EmojiName,
		"emoji_id":           &c.Presence.EmojiID,
		"DEVICE_TYPE":        &c.Presence.Device,
		"gateway_url":        &c.Gateway.URL,
		"api_url":            &c.Gateway.APIURL,
		"PERSIST_STATE_PATH": &c.State.Path,
		"STATE_REDIS_URL":    &c.State.RedisURL,
		"STATE_REDIS_KEY":    &c.State.RedisKey,
		"LOG_LEVEL":          &c.Logging.Level,
		"PORT":               &c.Server.Port,
	}
	for key, dst := range strs {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"emoji_animated":    &c.Presence.EmojiAnimated,
		"RECONNECT_JITTER":  &c.Backoff.Jitter,
		"KEEPALIVE_ENABLED": &c.Server.Enabled,
	}
	// Flags are on only for a recognised true value; anything else is off.
	for key, dst := range bools {
		if v, ok := get(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			*dst = err == nil && b
		}
	}

	durations := map[string]*Duration{
		"RECONNECT_BASE_BACKOFF": &c.Backoff.Base,
		"RECONNECT_MAX_BACKOFF":  &c.Backoff.Max,
		"RECV_TIMEOUT":           &c.Gateway.ReceiveTimeout,
		"SEND_TIMEOUT":           &c.Gateway.SendTimeout,
		"CONNECT_TIMEOUT":        &c.Gateway.ConnectTimeout,
		"IDENTIFY_SETTLE_DELAY":  &c.Gateway.IdentifySettleDelay,
	}
	for key, dst := range durations {
		if v, ok := get(key); ok {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}

	if v, ok := get("HEARTBEAT_TIMEOUT_MULTIPLIER"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("HEARTBEAT_TIMEOUT_MULTIPLIER: invalid number %q", v)
		}
		c.Gateway.HeartbeatTimeoutMultiplier = f
	}
	return nil
}

// Validate checks that required config fields are present and valid.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Token) == "" {
		errs = append(errs, errors.New("token is required"))
	}
	if c.Gateway.HeartbeatTimeoutMultiplier < gateway.MinHeartbeatTimeoutMultiplier {
		errs = append(errs, fmt.Errorf("heartbeat timeout multiplier must be at least %g, got %g", gateway.MinHeartbeatTimeoutMultiplier, c.Gateway.HeartbeatTimeoutMultiplier))
	}
	if c.Backoff.Base.Duration <= 0 {
		errs = append(errs, errors.New("backoff base must be positive"))
	}
	if c.Backoff.Max.Duration < c.Backoff.Base.Duration {
		errs = append(errs, fmt.Errorf("backoff max %s is below base %s", c.Backoff.Max, c.Backoff.Base))
	}
	if c.Gateway.URL == "" {
		errs = append(errs, errors.New("gateway url is required"))
	}
	return errors.Join(errs...)
}

// Identity builds the gateway identity. An emoji is attached only when it
// has a name.
func (c *Config) Identity() gateway.Identity {
	p := gateway.Presence{
		Status:     c.Presence.Status,
		CustomText: c.Presence.CustomStatus,
	}
	if c.Presence.EmojiName != "" {
		p.Emoji = &gateway.Emoji{
			Name:     c.Presence.EmojiName,
			ID:       c.Presence.EmojiID,
			Animated: c.Presence.EmojiAnimated,
		}
	}
	return gateway.Identity{
		Token:      c.Token,
		Presence:   p,
		Properties: gateway.DeviceProperties(c.Presence.Device),
	}
}

// BackoffPolicy maps the backoff section onto the gateway policy.
func (c *Config) BackoffPolicy() gateway.BackoffPolicy {
	p := gateway.DefaultBackoffPolicy()
	p.Base = c.Backoff.Base.Duration
	p.Max = c.Backoff.Max.Duration
	p.Jitter = c.Backoff.Jitter
	return p
}

// Timeouts maps the gateway section onto the transport timeouts.
func (c *Config) Timeouts() gateway.Timeouts {
	t := gateway.DefaultTimeouts()
	t.Connect = c.Gateway.ConnectTimeout.Duration
	t.Receive = c.Gateway.ReceiveTimeout.Duration
	t.Send = c.Gateway.SendTimeout.Duration
	t.Settle = c.Gateway.IdentifySettleDelay.Duration
	return t
}

// Duration accepts Go duration strings ("1m30s") or bare seconds ("15",
// 2.5).
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		d.Duration = time.Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	d.Duration = v
	return nil
}

// UnmarshalTOML lets TOML numbers mean seconds.
func (d *Duration) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case string:
		return d.UnmarshalText([]byte(x))
	case int64:
		d.Duration = time.Duration(x) * time.Second
	case float64:
		d.Duration = time.Duration(x * float64(time.Second))
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Ananth-NQI/sessiongate/internal/models"
)

// DefaultConfigPath is read when CONFIG_PATH is not set; a missing file is fine
const DefaultConfigPath = "sessiongate.yaml"

// DefaultStorePath is where the session document lives unless configured
const DefaultStorePath = "~/.sessiongate/sessions.json"

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid config")

// Store drivers
const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the full runtime configuration
type Config struct {
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Session  SessionConfig  `yaml:"session"`
	Routing  RoutingConfig  `yaml:"routing"`
	Commands CommandsConfig `yaml:"commands"`
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
}

// WhatsAppConfig holds the WhatsApp owner allow-list
type WhatsAppConfig struct {
	AllowFrom []string `yaml:"allowFrom"` // "*" allows everybody
}

// SessionConfig mirrors the session section of the config file
type SessionConfig struct {
	MainKey       string   `yaml:"mainKey"`
	ResetTriggers []string `yaml:"resetTriggers"`
	IdleMinutes   *int     `yaml:"idleMinutes"`
	Scope         string   `yaml:"scope"`
	Store         string   `yaml:"store"` // path of the session document
}

// RoutingConfig holds group chat routing options
type RoutingConfig struct {
	GroupChat GroupChatConfig `yaml:"groupChat"`
}

// GroupChatConfig configures how the bot is addressed in groups
type GroupChatConfig struct {
	MentionPatterns []string `yaml:"mentionPatterns"` // case-insensitive regexps
}

// CommandsConfig holds the platform-level command gate
type CommandsConfig struct {
	Authorized *bool `yaml:"authorized"`
}

// ServerConfig configures the webhook server
type ServerConfig struct {
	Port                     string `yaml:"port"`
	Environment              string `yaml:"environment"`
	DisableWebhookValidation bool   `yaml:"disableWebhookValidation"`
	TwilioAuthToken          string `yaml:"-"` // env only
}

// StoreConfig selects the session store backend
type StoreConfig struct {
	Driver string `yaml:"driver"`
}

// CommandsAuthorized reports the platform-level gate, defaulting to true
func (c *Config) CommandsAuthorized() bool {
	if c.Commands.Authorized == nil {
		return true
	}
	return *c.Commands.Authorized
}

// StorePath returns the configured session document path with ~ expanded
func (c *Config) StorePath() string {
	return ResolveStorePath(c.Session.Store)
}

// ValidateWebhooks reports whether Twilio signatures must be checked
func (c *Config) ValidateWebhooks() bool {
	return c.Server.Environment != "development" && !c.Server.DisableWebhookValidation
}

// ResolveStorePath expands ~ and falls back to DefaultStorePath
func ResolveStorePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		p = DefaultStorePath
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
		}
	}
	return p
}

// LoadEnvFiles loads .env files the same way local development always has.
// Missing files are only logged.
func LoadEnvFiles(files ...string) {
	if len(files) == 0 {
		files = []string{".env", "environments/.env.development"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err == nil {
			log.Printf("🔧 Loaded environment from %s", f)
			return
		}
	}
	log.Println("⚠️  No .env file found - checking environment variables")
}

// ConfigFile resolves which file Load reads: path, then CONFIG_PATH, then DefaultConfigPath
func ConfigFile(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return DefaultConfigPath
}

// Load reads the YAML file at path (if present), applies env overrides and validates.
// An empty path means CONFIG_PATH or DefaultConfigPath.
func Load(path string) (*Config, error) {
	explicit := path != "" || os.Getenv("CONFIG_PATH") != ""
	path = ConfigFile(path)

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// running on env vars only
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that would otherwise be silently ignored
func (c *Config) Validate() error {
	if _, err := models.ParseSessionScope(c.Session.Scope); err != nil {
		return fmt.Errorf("%w: session.scope: %v", ErrInvalid, err)
	}
	switch c.Store.Driver {
	case "", DriverFile, DriverMemory, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("%w: store.driver: unknown driver %q", ErrInvalid, c.Store.Driver)
	}
	if c.Session.IdleMinutes != nil && *c.Session.IdleMinutes < 0 {
		return fmt.Errorf("%w: session.idleMinutes must not be negative", ErrInvalid)
	}
	return nil
}

func applyEnv(c *Config) {
	if v, ok := os.LookupEnv("WHATSAPP_ALLOW_FROM"); ok {
		c.WhatsApp.AllowFrom = splitList(v)
	}
	if v := os.Getenv("SESSION_STORE"); v != "" {
		c.Session.Store = v
	}
	if v := os.Getenv("SESSION_SCOPE"); v != "" {
		c.Session.Scope = v
	}
	if v := os.Getenv("SESSION_MAIN_KEY"); v != "" {
		c.Session.MainKey = v
	}
	if v := os.Getenv("SESSION_RESET_TRIGGERS"); v != "" {
		c.Session.ResetTriggers = splitList(v)
	}
	if v := os.Getenv("SESSION_IDLE_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Session.IdleMinutes = &n
		} else {
			log.Printf("⚠️  Ignoring SESSION_IDLE_MINUTES=%q: %v", v, err)
		}
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		c.Store.Driver = strings.ToLower(v)
	}
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		c.Store.Driver = DriverMemory
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Server.Environment = v
	}
	if os.Getenv("DISABLE_WEBHOOK_VALIDATION") == "true" {
		c.Server.DisableWebhookValidation = true
	}
	c.Server.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Holder publishes the current config to concurrent readers
type Holder struct {
	p atomic.Pointer[Config]
}

// NewHolder wraps an initial config
func NewHolder(cfg *Config) *Holder {
	h := &Holder{}
	h.Set(cfg)
	return h
}

// Current returns the config in effect right now
func (h *Holder) Current() *Config {
	return h.p.Load()
}

// Set swaps in a new config
func (h *Holder) Set(cfg *Config) {
	if cfg == nil {
		cfg = &Config{}
	}
	h.p.Store(cfg)
}

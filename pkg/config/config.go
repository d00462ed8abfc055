// Package config handles configuration for roku-driver.
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

// Defaults
const (
	DefaultECPPort          = 8060
	DefaultWebPort          = 80
	DefaultUser             = "rokudev"
	DefaultWebCooldown      = 500 * time.Millisecond
	DefaultMaxFocusSteps    = 20
	DefaultElementCacheSize = 1024
	DefaultListen           = "127.0.0.1:4723"
)

// DefaultEqualityAttributes are the attributes compared when deciding whether
// two snapshot nodes are the same element. Volatile state such as focused is
// left out.
var DefaultEqualityAttributes = []string{"extends", "name", "rcid", "text", "uiElementId"}

// Config represents the driver configuration (config.yaml).
type Config struct {
	// Device connection
	Host     string `yaml:"host"`     // Device host or IP
	ECPPort  int    `yaml:"ecpPort"`  // External control protocol port
	WebPort  int    `yaml:"webPort"`  // Developer web server port
	User     string `yaml:"user"`     // Developer web server user
	Password string `yaml:"password"` // Developer web server password

	// Session settings
	App                string        `yaml:"app"`                // Channel archive sideloaded at session start
	KeyCooldown        time.Duration `yaml:"keyCooldown"`        // Pause after every key press
	WebCooldown        time.Duration `yaml:"webCooldown"`        // Pause before every web server request
	TypeIndividualKeys bool          `yaml:"typeIndividualKeys"` // Type via the on-screen keyboard

	// Element handling
	MaxFocusSteps      int      `yaml:"maxFocusSteps"`
	ElementCacheSize   int      `yaml:"elementCacheSize"`
	EqualityAttributes []string `yaml:"equalityAttributes"`

	// Server
	Listen string `yaml:"listen"`

	Log LogConfig `yaml:"log"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.ECPPort == 0 {
		c.ECPPort = DefaultECPPort
	}
	if c.WebPort == 0 {
		c.WebPort = DefaultWebPort
	}
	if c.User == "" {
		c.User = DefaultUser
	}
	if c.WebCooldown == 0 {
		c.WebCooldown = DefaultWebCooldown
	}
	if c.MaxFocusSteps == 0 {
		c.MaxFocusSteps = DefaultMaxFocusSteps
	}
	if c.ElementCacheSize == 0 {
		c.ElementCacheSize = DefaultElementCacheSize
	}
	if len(c.EqualityAttributes) == 0 {
		c.EqualityAttributes = append([]string(nil), DefaultEqualityAttributes...)
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return defaults
	return Default(), nil
}

// Validate checks that the configuration can drive a device.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.ECPPort <= 0 || c.ECPPort > 65535 {
		return fmt.Errorf("invalid ecpPort %d", c.ECPPort)
	}
	if c.WebPort <= 0 || c.WebPort > 65535 {
		return fmt.Errorf("invalid webPort %d", c.WebPort)
	}
	if c.MaxFocusSteps < 1 {
		return fmt.Errorf("maxFocusSteps must be positive, got %d", c.MaxFocusSteps)
	}
	if c.ElementCacheSize < 1 {
		return fmt.Errorf("elementCacheSize must be positive, got %d", c.ElementCacheSize)
	}
	if c.KeyCooldown < 0 || c.WebCooldown < 0 {
		return fmt.Errorf("cooldowns must not be negative")
	}
	return nil
}

// ECPURL returns the base URL of the external control protocol.
func (c *Config) ECPURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.ECPPort)
}

// WebURL returns the base URL of the developer web server.
func (c *Config) WebURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.WebPort)
}

// ApplyCapabilities overlays session capabilities on the configuration.
// Keys may carry the "appium:" vendor prefix. Cooldowns are milliseconds.
func (c *Config) ApplyCapabilities(caps map[string]interface{}) error {
	for rawKey, v := range caps {
		key := strings.TrimPrefix(rawKey, "appium:")
		var err error
		switch key {
		case "rokuHost":
			c.Host, err = capString(v)
		case "rokuEcpPort":
			c.ECPPort, err = capInt(v)
		case "rokuWebPort":
			c.WebPort, err = capInt(v)
		case "rokuUser":
			c.User, err = capString(v)
		case "rokuPass":
			c.Password, err = capString(v)
		case "app":
			c.App, err = capString(v)
		case "keyCooldown":
			var ms int
			ms, err = capInt(v)
			c.KeyCooldown = time.Duration(ms) * time.Millisecond
		case "rokuWebCooldown":
			var ms int
			ms, err = capInt(v)
			c.WebCooldown = time.Duration(ms) * time.Millisecond
		case "typeIndividualKeys":
			c.TypeIndividualKeys, err = capBool(v)
		default:
			continue
		}
		if err != nil {
			return fmt.Errorf("capability %s: %w", rawKey, err)
		}
	}
	return nil
}

func capString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

func capInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func capBool(v interface{}) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(b)
	default:
		return false, fmt.Errorf("expected bool, got %T", v)
	}
}

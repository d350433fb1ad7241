package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "clientpilot.yml"

// Config models clientpilot.yml.
type Config struct {
	Server struct {
		Addr        string   `yaml:"addr"`
		BasePath    string   `yaml:"base_path"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret string        `yaml:"jwt_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`
	AI        AIConfig  `yaml:"ai"`
	Log       LogConfig `yaml:"log"`
	Telemetry struct {
		OTLPEndpoint string `yaml:"otlp_endpoint"`
		Insecure     bool   `yaml:"insecure"`
		ServiceName  string `yaml:"service_name"`
	} `yaml:"telemetry"`
}

type AIConfig struct {
	// Provider is auto, gemini, openai, ollama or mock.
	Provider     string        `yaml:"provider"`
	Model        string        `yaml:"model"`
	Timeout      time.Duration `yaml:"timeout"`
	GeminiAPIKey string        `yaml:"gemini_api_key"`
	OpenAIAPIKey string        `yaml:"openai_api_key"`
	OllamaURL    string        `yaml:"ollama_url"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var validProviders = map[string]bool{"auto": true, "gemini": true, "openai": true, "ollama": true, "mock": true}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("config.database.path is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("config.auth.token_ttl must be positive")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("config.ai.provider %q is not one of auto, gemini, openai, ollama, mock", c.AI.Provider)
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("config.ai.timeout must be positive")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config.log.format must be json or text")
	}
	return nil
}

// ParseLevel maps debug/info/warn/error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return slog.LevelInfo, fmt.Errorf("config.log.level %q is invalid", s)
	}
	return lvl, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Load reads and validates config from path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with clientpilot config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults when the file does not exist.
func LoadOptional(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses YAML on top of the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays well-known environment variables. lookup is usually
// os.LookupEnv; the CLI passes a viper-backed lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("CLIENTPILOT_ADDR", &c.Server.Addr)
	str("CLIENTPILOT_BASE_PATH", &c.Server.BasePath)
	str("CLIENTPILOT_DB", &c.Database.Path)
	str("CLIENTPILOT_JWT_SECRET", &c.Auth.JWTSecret)
	str("CLIENTPILOT_AI_PROVIDER", &c.AI.Provider)
	str("CLIENTPILOT_AI_MODEL", &c.AI.Model)
	str("GEMINI_API_KEY", &c.AI.GeminiAPIKey)
	str("OPENAI_API_KEY", &c.AI.OpenAIAPIKey)
	str("OLLAMA_URL", &c.AI.OllamaURL)
	str("LOG_LEVEL", &c.Log.Level)
	str("CLIENTPILOT_LOG_FORMAT", &c.Log.Format)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Telemetry.OTLPEndpoint)
	if v, ok := lookup("CLIENTPILOT_TOKEN_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CLIENTPILOT_TOKEN_TTL: %w", err)
		}
		c.Auth.TokenTTL = d
	}
	if v, ok := lookup("CLIENTPILOT_AI_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CLIENTPILOT_AI_TIMEOUT: %w", err)
		}
		c.AI.Timeout = d
	}
	if v, ok := lookup("OTEL_EXPORTER_OTLP_INSECURE"); ok {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	return c.Validate()
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /api
  cors_origins: ["*"]

database:
  path: .clientpilot/clientpilot.db

auth:
  # required for serve; prefer CLIENTPILOT_JWT_SECRET
  jwt_secret: ""
  token_ttl: 24h

ai:
  # auto picks gemini, then openai, then mock, based on which key is set
  provider: auto
  model: ""
  timeout: 30s
  gemini_api_key: ""
  openai_api_key: ""
  ollama_url: ""

log:
  level: info
  format: json

telemetry:
  otlp_endpoint: ""
  insecure: false
  service_name: clientpilot
`

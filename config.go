package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServerPort      string
	ProfileID       string
	StorageBackend  string
	SQLitePath      string
	DynamoEndpoint  string
	DynamoTableName string
	AWSRegion       string
	JWTSecret       string
	JWTIssuer       string
	CORSAllowOrigin string
	LogLevel        slog.Level
	DevBypassAuth   bool

	Mode         string
	PageSource   string
	MainCSSURL   string
	BrandCSSURL  string
	FetchTimeout time.Duration

	ResizeDebounce      time.Duration
	ColorReextractDelay time.Duration
	WriteInterval       time.Duration

	WelcomeURL        string
	SitePatterns      []string
	BrowserControlURL string
}

// LoadConfig reads settings from the environment, falling back to the YAML
// file at path (keys are the lower-cased variable names) and then to defaults.
func LoadConfig(path string) (Config, error) {
	src, err := newSource(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ServerPort:      src.get("SERVER_PORT", "8080"),
		ProfileID:       src.get("PROFILE_ID", "default"),
		StorageBackend:  strings.ToLower(src.get("STORAGE_BACKEND", "sqlite")),
		SQLitePath:      src.get("SQLITE_PATH", "minimal-x.db"),
		DynamoEndpoint:  src.get("DYNAMODB_ENDPOINT", ""),
		DynamoTableName: src.get("DYNAMODB_TABLE_NAME", "user-preferences"),
		AWSRegion:       src.get("AWS_REGION", "us-east-1"),
		JWTSecret:       src.get("JWT_SECRET", ""),
		JWTIssuer:       src.get("JWT_ISSUER", ""),
		CORSAllowOrigin: src.get("CORS_ALLOW_ORIGIN", "*"),
		LogLevel:        parseLogLevel(src.get("LOG_LEVEL", "")),
		DevBypassAuth:   strings.EqualFold(src.get("DEV_BYPASS_AUTH", ""), "true"),

		Mode:        strings.ToLower(src.get("MODE", "production")),
		PageSource:  src.get("PAGE_SOURCE", ""),
		MainCSSURL:  src.get("REMOTE_MAIN_CSS_URL", "https://raw.githubusercontent.com/typefully/minimal-twitter/main/css/main.css"),
		BrandCSSURL: src.get("REMOTE_BRAND_CSS_URL", "https://raw.githubusercontent.com/typefully/minimal-twitter/main/css/typefully.css"),

		WelcomeURL:        src.get("WELCOME_URL", "https://typefully.com/minimal-twitter/welcome"),
		SitePatterns:      splitList(src.get("SITE_PATTERNS", "*://twitter.com/*,*://x.com/*")),
		BrowserControlURL: src.get("BROWSER_CONTROL_URL", ""),
	}

	durations := []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"FETCH_TIMEOUT", "5s", &cfg.FetchTimeout},
		{"RESIZE_DEBOUNCE", "50ms", &cfg.ResizeDebounce},
		{"COLOR_REEXTRACT_DELAY", "3s", &cfg.ColorReextractDelay},
		{"WRITE_INTERVAL", "500ms", &cfg.WriteInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(src.get(d.key, d.fallback))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	switch cfg.StorageBackend {
	case "sqlite", "dynamodb", "memory":
	default:
		return Config{}, fmt.Errorf("invalid STORAGE_BACKEND %q: want sqlite, dynamodb or memory", cfg.StorageBackend)
	}
	switch cfg.Mode {
	case "production", "development":
	default:
		return Config{}, fmt.Errorf("invalid MODE %q: want production or development", cfg.Mode)
	}

	return cfg, nil
}

// ValidateServe checks the settings only the options API needs.
func (c Config) ValidateServe() error {
	if c.JWTSecret == "" && !c.DevBypassAuth {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	return nil
}

type source struct {
	file map[string]string
}

func newSource(path string) (source, error) {
	src := source{file: make(map[string]string)}
	if path == "" {
		return src, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return src, fmt.Errorf("reading config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return src, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	for k, v := range raw {
		switch v := v.(type) {
		case nil:
		case []any:
			parts := make([]string, len(v))
			for i, p := range v {
				parts[i] = fmt.Sprint(p)
			}
			src.file[strings.ToLower(k)] = strings.Join(parts, ",")
		default:
			src.file[strings.ToLower(k)] = fmt.Sprint(v)
		}
	}
	return src, nil
}

func (s source) get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if v := s.file[strings.ToLower(key)]; v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

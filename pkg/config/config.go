package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the recruit CLI and client.
type Config struct {
	APIBaseURL  string        `env:"RECRUIT_API_URL, default=https://iv1201-vt24-backend.vercel.app"`
	HTTPTimeout time.Duration `env:"RECRUIT_HTTP_TIMEOUT"`
	SessionFile string        `env:"RECRUIT_SESSION_FILE"`
	TokenSecret string        `env:"RECRUIT_TOKEN_SECRET"`
	LogLevel    string        `env:"LOG_LEVEL, default=warn"`
}

// Load reads configuration from environment variables.
func Load(ctx context.Context) (Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration through l. A missing session file path is
// filled in with DefaultSessionFile.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.HTTPTimeout < 0 {
		return Config{}, fmt.Errorf("config: RECRUIT_HTTP_TIMEOUT must not be negative")
	}
	if cfg.SessionFile == "" {
		path, err := DefaultSessionFile()
		if err != nil {
			return Config{}, err
		}
		cfg.SessionFile = path
	}
	return cfg, nil
}

// DefaultSessionFile is <UserConfigDir>/recruit/session.json.
func DefaultSessionFile() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: locate user config dir: %w", err)
	}
	return filepath.Join(base, "recruit", "session.json"), nil
}

package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Session     SessionConfig     `toml:"session"`
	Playlist    PlaylistConfig    `toml:"playlist"`
	Search      SearchConfig      `toml:"search"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify     SpotifyConfig     `toml:"spotify"`
	MyAnimeList MyAnimeListConfig `toml:"myanimelist"`
}

// SpotifyConfig contains Spotify API credentials and the CLI's cached tokens.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	AccessToken  string    `toml:"access_token"`
	RefreshToken string    `toml:"refresh_token"`
	TokenExpiry  time.Time `toml:"token_expiry"`
}

// MyAnimeListConfig contains MyAnimeList API credentials.
type MyAnimeListConfig struct {
	ClientID string `toml:"client_id"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	BaseURL string `toml:"base_url"`
}

// SessionConfig selects and configures the web session store.
type SessionConfig struct {
	Backend   string `toml:"backend"` // sqlite or redis
	RedisAddr string `toml:"redis_addr"`
	Secret    string `toml:"secret"`
	TTLHours  int    `toml:"ttl_hours"`
}

// PlaylistConfig holds defaults for generated playlists.
type PlaylistConfig struct {
	DefaultName        string `toml:"default_name"`
	DefaultDescription string `toml:"default_description"`
	MaxImageKB         int    `toml:"max_image_kb"`
}

// SearchConfig tunes song resolution against the catalog.
type SearchConfig struct {
	Workers           int     `toml:"workers"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// LogConfig configures logging and the rotated log file.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// SessionTTL returns the session lifetime, defaulting to one day.
func (s SessionConfig) SessionTTL() time.Duration {
	if s.TTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.TTLHours) * time.Hour
}

// Map returns the credentials in the map form accepted by services.NewSpotifyService.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// Token returns the cached token, or nil when none has been stored.
func (s SpotifyConfig) Token() *oauth2.Token {
	if s.AccessToken == "" && s.RefreshToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.TokenExpiry,
	}
}

// Update stores a freshly issued token.
//
// Spotify omits the refresh token on refresh responses, so an empty one keeps the previous value.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidCredentials)
	}

	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	s.TokenExpiry = token.Expiry
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes the config to path while holding an exclusive lock on path.lock.
func SaveConfig(path string, config *Config) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock config file: %w", err)
	}
	defer lock.Unlock()

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv overlays values from a .env file (when present) and the process environment.
//
// Only non-empty variables override the file config.
func (c *Config) ApplyEnv(files ...string) {
	_ = godotenv.Load(files...)

	overrides := []struct {
		key    string
		target *string
	}{
		{"SPOTIFY_CLIENT_ID", &c.Credentials.Spotify.ClientID},
		{"SPOTIFY_CLIENT_SECRET", &c.Credentials.Spotify.ClientSecret},
		{"SPOTIFY_REDIRECT_URI", &c.Credentials.Spotify.RedirectURI},
		{"MAL_CLIENT_ID", &c.Credentials.MyAnimeList.ClientID},
		{"SESSION_SECRET", &c.Session.Secret},
		{"REDIS_ADDRESS", &c.Session.RedisAddr},
		{"DJWAIFU_SESSION_BACKEND", &c.Session.Backend},
		{"DJWAIFU_LOG_LEVEL", &c.Log.Level},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.key); v != "" {
			*o.target = v
		}
	}

	if v := os.Getenv("DJWAIFU_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	switch c.Session.Backend {
	case "", "sqlite":
	case "redis":
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("%w: session.redis_addr is required for the redis backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown session backend %q", ErrInvalidConfig, c.Session.Backend)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	return nil
}

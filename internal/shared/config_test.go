package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./djwaifu.db" {
			t.Errorf("expected database path ./djwaifu.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Playlist.DefaultName != "My Anime Playlist" {
			t.Errorf("expected default playlist name, got %s", config.Playlist.DefaultName)
		}

		if config.Session.Backend != "sqlite" {
			t.Errorf("expected sqlite session backend, got %s", config.Session.Backend)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:3000/callback"

[credentials.myanimelist]
client_id = "mal_id"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Credentials.MyAnimeList.ClientID != "mal_id" {
			t.Errorf("expected mal client_id mal_id, got %s", config.Credentials.MyAnimeList.ClientID)
		}

		if config.Search.Workers != 1 {
			t.Errorf("unset sections should keep defaults, got workers=%d", config.Search.Workers)
		}
	})

	t.Run("SaveConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		expiry := time.Now().Add(time.Hour).Truncate(time.Second)
		if err := config.Credentials.Spotify.Update(&oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: expiry}); err != nil {
			t.Fatalf("update: %v", err)
		}

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to reload config: %v", err)
		}

		tok := loaded.Credentials.Spotify.Token()
		if tok == nil || tok.AccessToken != "a" || tok.RefreshToken != "r" {
			t.Fatalf("token not persisted: %+v", tok)
		}
		if !tok.Expiry.Equal(expiry) {
			t.Errorf("expected expiry %v, got %v", expiry, tok.Expiry)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv("MAL_CLIENT_ID", "from-env")
		t.Setenv("DJWAIFU_PORT", "4000")
		t.Setenv("SPOTIFY_CLIENT_ID", "")

		config := DefaultConfig()
		config.ApplyEnv(filepath.Join(t.TempDir(), "missing.env"))

		if config.Credentials.MyAnimeList.ClientID != "from-env" {
			t.Errorf("expected env override, got %s", config.Credentials.MyAnimeList.ClientID)
		}
		if config.Server.Port != 4000 {
			t.Errorf("expected port 4000, got %d", config.Server.Port)
		}
		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("empty env var should not override, got %s", config.Credentials.Spotify.ClientID)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name    string
			mutate  func(*Config)
			wantErr bool
		}{
			{name: "redis without address", mutate: func(c *Config) { c.Session.Backend = "redis"; c.Session.RedisAddr = "" }, wantErr: true},
			{name: "redis with address", mutate: func(c *Config) { c.Session.Backend = "redis" }},
			{name: "unknown backend", mutate: func(c *Config) { c.Session.Backend = "memcached" }, wantErr: true},
			{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				err := config.Validate()
				if tt.wantErr && !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
				if !tt.wantErr && err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			})
		}
	})
}

func TestSpotifyConfigToken(t *testing.T) {
	t.Run("empty config has no token", func(t *testing.T) {
		if tok := (SpotifyConfig{}).Token(); tok != nil {
			t.Errorf("expected nil token, got %+v", tok)
		}
	})

	t.Run("refresh keeps previous refresh token", func(t *testing.T) {
		conf := SpotifyConfig{AccessToken: "old", RefreshToken: "keep"}
		if err := conf.Update(&oauth2.Token{AccessToken: "new"}); err != nil {
			t.Fatalf("update: %v", err)
		}
		if conf.AccessToken != "new" || conf.RefreshToken != "keep" {
			t.Errorf("unexpected credentials: %+v", conf)
		}
	})

	t.Run("rejects empty token", func(t *testing.T) {
		var conf SpotifyConfig
		if err := conf.Update(&oauth2.Token{}); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

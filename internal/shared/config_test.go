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

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Credentials.YouTube.ProxyURL != "http://127.0.0.1:8080" {
			t.Errorf("expected youtube proxy URL http://127.0.0.1:8080, got %s", config.Credentials.YouTube.ProxyURL)
		}

		if config.Credentials.Spotify.ClientID != "" || config.Credentials.Spotify.ClientSecret != "" {
			t.Errorf("expected template credentials to be blank, got %q / %q",
				config.Credentials.Spotify.ClientID, config.Credentials.Spotify.ClientSecret)
		}

		if config.Transcoder.Strategy != StrategyLocal {
			t.Errorf("expected strategy %s, got %s", StrategyLocal, config.Transcoder.Strategy)
		}

		if config.Transcoder.PollInterval != 2*time.Second {
			t.Errorf("expected poll interval 2s, got %v", config.Transcoder.PollInterval)
		}

		if config.Transcoder.MaxPolls != 30 {
			t.Errorf("expected max polls 30, got %d", config.Transcoder.MaxPolls)
		}

		if config.Download.BulkDelay != 300*time.Millisecond {
			t.Errorf("expected bulk delay 300ms, got %v", config.Download.BulkDelay)
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
		if config.Download.OutputDir != defaultConfig.Download.OutputDir {
			t.Errorf("created config output dir doesn't match default")
		}

		if config.Credentials.Spotify.ClientID != "" {
			t.Errorf("expected template client_id to read as unset, got %s", config.Credentials.Spotify.ClientID)
		}
		if err := config.Validate(); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials for an unedited template, got %v", err)
		}

		err = CreateConfigFile(configPath)
		if err == nil {
			t.Fatal("creating config file again should fail")
		}
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
refresh_token = "test_refresh"

[transcoder]
strategy = "remote"
poll_interval = "500ms"

[credentials.cloudconvert]
api_key = "cc_key"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Transcoder.PollInterval != 500*time.Millisecond {
			t.Errorf("expected poll interval 500ms, got %v", config.Transcoder.PollInterval)
		}

		if config.Transcoder.MaxPolls != 30 {
			t.Errorf("expected default max polls to survive, got %d", config.Transcoder.MaxPolls)
		}

		if config.Credentials.Spotify.TokenURL != "https://accounts.spotify.com/api/token" {
			t.Errorf("expected default token URL, got %s", config.Credentials.Spotify.TokenURL)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv("SPOTIFY_CLIENT_ID", "env_id")
		t.Setenv("SPOTIFY_REFRESH_TOKEN", "env_refresh")
		t.Setenv("CLOUDCONVERT_API_KEY", "")

		config := DefaultConfig()
		config.ApplyEnv()

		if config.Credentials.Spotify.ClientID != "env_id" {
			t.Errorf("expected env client id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Spotify.RefreshToken != "env_refresh" {
			t.Errorf("expected env refresh token, got %s", config.Credentials.Spotify.RefreshToken)
		}
		if config.Credentials.CloudConvert.APIKey != "" {
			t.Errorf("empty env var should not override, got %s", config.Credentials.CloudConvert.APIKey)
		}
	})

	t.Run("ReadConfigFile ignores the environment", func(t *testing.T) {
		t.Setenv("SPOTIFY_CLIENT_SECRET", "env_secret")
		t.Setenv("CLOUDCONVERT_API_KEY", "env_key")

		configPath := filepath.Join(t.TempDir(), "config.toml")
		conf := "[credentials.spotify]\nclient_id = \"file_id\"\nclient_secret = \"file_secret\"\n"
		if err := os.WriteFile(configPath, []byte(conf), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		raw, err := ReadConfigFile(configPath)
		if err != nil {
			t.Fatalf("failed to read config: %v", err)
		}
		if raw.Credentials.Spotify.ClientSecret != "file_secret" || raw.Credentials.CloudConvert.APIKey != "" {
			t.Errorf("expected file values only, got %q / %q",
				raw.Credentials.Spotify.ClientSecret, raw.Credentials.CloudConvert.APIKey)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}
		if loaded.Credentials.Spotify.ClientSecret != "env_secret" || loaded.Credentials.CloudConvert.APIKey != "env_key" {
			t.Errorf("expected env overrides, got %q / %q",
				loaded.Credentials.Spotify.ClientSecret, loaded.Credentials.CloudConvert.APIKey)
		}
	})

	t.Run("SaveConfig round trip", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Credentials.Spotify.RefreshToken = "saved_refresh"

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}
		if loaded.Credentials.Spotify.RefreshToken != "saved_refresh" {
			t.Errorf("expected saved refresh token, got %s", loaded.Credentials.Spotify.RefreshToken)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.Credentials.Spotify.ClientID = "id"
		c.Credentials.Spotify.ClientSecret = "secret"
		c.Credentials.Spotify.RefreshToken = "refresh"
		return c
	}

	tc := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{name: "valid local", mutate: func(c *Config) {}},
		{
			name:   "missing refresh token",
			mutate: func(c *Config) { c.Credentials.Spotify.RefreshToken = "" },
			want:   ErrMissingCredentials,
		},
		{
			name:   "missing client id",
			mutate: func(c *Config) { c.Credentials.Spotify.ClientID = "" },
			want:   ErrMissingCredentials,
		},
		{
			name:   "remote without api key",
			mutate: func(c *Config) { c.Transcoder.Strategy = StrategyRemote },
			want:   ErrMissingCredentials,
		},
		{
			name: "remote with api key",
			mutate: func(c *Config) {
				c.Transcoder.Strategy = StrategyRemote
				c.Credentials.CloudConvert.APIKey = "key"
			},
		},
		{
			name:   "unknown strategy",
			mutate: func(c *Config) { c.Transcoder.Strategy = "cloud" },
			want:   ErrInvalidConfig,
		},
		{
			name:   "zero poll budget",
			mutate: func(c *Config) { c.Transcoder.MaxPolls = 0 },
			want:   ErrInvalidConfig,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSpotifyConfigUpdate(t *testing.T) {
	t.Run("stores refresh token", func(t *testing.T) {
		var sc SpotifyConfig
		if err := sc.Update(&oauth2.Token{AccessToken: "a", RefreshToken: "r"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sc.RefreshToken != "r" {
			t.Errorf("expected refresh token r, got %s", sc.RefreshToken)
		}
	})

	t.Run("nil token", func(t *testing.T) {
		var sc SpotifyConfig
		if err := sc.Update(nil); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("token without refresh", func(t *testing.T) {
		var sc SpotifyConfig
		if err := sc.Update(&oauth2.Token{AccessToken: "a"}); !errors.Is(err, ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
	})
}

func TestDownloadConfigTempPath(t *testing.T) {
	if got := (DownloadConfig{}).TempPath(); got != os.TempDir() {
		t.Errorf("expected %s, got %s", os.TempDir(), got)
	}
	if got := (DownloadConfig{TempDir: "/scratch"}).TempPath(); got != "/scratch" {
		t.Errorf("expected /scratch, got %s", got)
	}
}

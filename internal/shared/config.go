package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// placeholders are the template values `spotdown setup` writes for the user to replace.
var placeholders = map[string]bool{
	"your_spotify_client_id":     true,
	"your_spotify_client_secret": true,
}

const (
	StrategyLocal  = "local"
	StrategyRemote = "remote"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Transcoder  TranscoderConfig  `toml:"transcoder"`
	Download    DownloadConfig    `toml:"download"`
	Server      ServerConfig      `toml:"server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify      SpotifyConfig      `toml:"spotify"`
	YouTube      YouTubeConfig      `toml:"youtube"`
	CloudConvert CloudConvertConfig `toml:"cloudconvert"`
}

// SpotifyConfig contains Spotify API credentials.
//
// RefreshToken is obtained once through `spotdown spotify auth` and is exchanged for an access token on every catalog lookup.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	RefreshToken string `toml:"refresh_token"`
	TokenURL     string `toml:"token_url"`
	APIURL       string `toml:"api_url"`
}

// YouTubeConfig points at the YouTube Music proxy used for searching.
type YouTubeConfig struct {
	ProxyURL string `toml:"proxy_url"`
}

// CloudConvertConfig contains the remote conversion service settings.
type CloudConvertConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// TranscoderConfig selects exactly one transcoding strategy for the deployment.
type TranscoderConfig struct {
	Strategy     string        `toml:"strategy"`
	FFmpegPath   string        `toml:"ffmpeg_path"`
	PollInterval time.Duration `toml:"poll_interval"`
	MaxPolls     int           `toml:"max_polls"`
}

// DownloadConfig contains settings for transient artifacts and saved files.
type DownloadConfig struct {
	TempDir   string        `toml:"temp_dir"`
	OutputDir string        `toml:"output_dir"`
	BulkDelay time.Duration `toml:"bulk_delay"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Map returns the credentials in the form expected by [services.NewSpotifyService].
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
		"refresh_token": s.RefreshToken,
		"token_url":     s.TokenURL,
		"api_url":       s.APIURL,
	}
}

// Update stores the refresh token from a completed authorization flow.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: nil token", ErrInvalidCredentials)
	}
	if token.RefreshToken == "" {
		return ErrNoRefreshToken
	}
	s.RefreshToken = token.RefreshToken
	return nil
}

// TempPath returns the directory for transient artifacts, defaulting to [os.TempDir].
func (d DownloadConfig) TempPath() string {
	if d.TempDir == "" {
		return os.TempDir()
	}
	return d.TempDir
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep their defaults and secrets may be overridden from the environment.
func LoadConfig(path string) (*Config, error) {
	config, err := ReadConfigFile(path)
	if err != nil {
		return nil, err
	}

	config.ApplyEnv()
	return config, nil
}

// ReadConfigFile parses path over the defaults without environment overrides.
// Use it for configurations that will be written back with [SaveConfig].
func ReadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.clearPlaceholders()
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
//
// Template credentials are left blank.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.clearPlaceholders()
	return &config
}

func (c *Config) clearPlaceholders() {
	for _, v := range []*string{&c.Credentials.Spotify.ClientID, &c.Credentials.Spotify.ClientSecret} {
		if placeholders[*v] {
			*v = ""
		}
	}
}

// ApplyEnv overrides credentials with SPOTIFY_* and CLOUDCONVERT_API_KEY environment variables when set.
func (c *Config) ApplyEnv() {
	overrides := []struct {
		key    string
		target *string
	}{
		{"SPOTIFY_CLIENT_ID", &c.Credentials.Spotify.ClientID},
		{"SPOTIFY_CLIENT_SECRET", &c.Credentials.Spotify.ClientSecret},
		{"SPOTIFY_REFRESH_TOKEN", &c.Credentials.Spotify.RefreshToken},
		{"CLOUDCONVERT_API_KEY", &c.Credentials.CloudConvert.APIKey},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.key); v != "" {
			*o.target = v
		}
	}
}

// Validate checks that the configuration can drive the download pipeline.
func (c *Config) Validate() error {
	sp := c.Credentials.Spotify
	if sp.ClientID == "" || sp.ClientSecret == "" || sp.RefreshToken == "" {
		return fmt.Errorf("%w: spotify client_id, client_secret and refresh_token are required", ErrMissingCredentials)
	}

	switch c.Transcoder.Strategy {
	case StrategyLocal:
	case StrategyRemote:
		if c.Credentials.CloudConvert.APIKey == "" {
			return fmt.Errorf("%w: cloudconvert api_key is required for the remote strategy", ErrMissingCredentials)
		}
	default:
		return fmt.Errorf("%w: unknown transcoder strategy %q", ErrInvalidConfig, c.Transcoder.Strategy)
	}

	if c.Transcoder.MaxPolls <= 0 {
		return fmt.Errorf("%w: transcoder max_polls must be positive", ErrInvalidConfig)
	}
	return nil
}

// SaveConfig writes the configuration to path as TOML.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: config file already exists at %s", ErrInvalidArgument, path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

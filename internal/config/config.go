package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultListen   = "127.0.0.1:8080"
	defaultRefresh  = "*/30 * * * *"
	defaultCacheDir = "/var/lib/blocktimeline/feed-cache"
	defaultLogLevel = "info"

	defaultSnapshotWidth  = 1920
	defaultSnapshotHeight = 1080

	envPrefix = "BLOCKTIMELINE_"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// SnapshotConfig controls the periodic PNG capture of the rendered timeline.
type SnapshotConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// URL is the renderer page to capture.
	URL string `yaml:"url" json:"url"`
	// Output is where the PNG is written.
	Output string `yaml:"output" json:"output"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// BlocksURL locates blocks.json: http(s) URL, file:// URL or path.
	BlocksURL string `yaml:"blocks_url" json:"blocks_url"`

	// DescriptionsURL locates the program description table. Optional.
	DescriptionsURL string `yaml:"descriptions_url" json:"descriptions_url"`

	// CacheDir keeps the last good copy of each fetched payload.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// RefreshCron is a cron-style schedule for reloading the inputs.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// ExtensionMonths pads the day axis into the future.
	ExtensionMonths int `yaml:"extension_months" json:"extension_months"`

	// CORSOrigins lists origins allowed to call the API from a browser.
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	// StaticDir, if set, is served at / for the external renderer.
	StaticDir string `yaml:"static_dir" json:"static_dir"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          defaultListen,
		BlocksURL:       "blocks.json",
		DescriptionsURL: "",
		CacheDir:        defaultCacheDir,
		RefreshCron:     defaultRefresh,
		ExtensionMonths: 0,
		CORSOrigins:     []string{"*"},
		LogLevel:        defaultLogLevel,
		Snapshot: SnapshotConfig{
			Width:  defaultSnapshotWidth,
			Height: defaultSnapshotHeight,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.ExtensionMonths < 0 {
		c.ExtensionMonths = 0
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = []string{"*"}
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = defaultLogLevel
	}
	if c.Snapshot.Width <= 0 {
		c.Snapshot.Width = defaultSnapshotWidth
	}
	if c.Snapshot.Height <= 0 {
		c.Snapshot.Height = defaultSnapshotHeight
	}
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	if c.BlocksURL == "" {
		return errors.New("config: blocks_url is empty")
	}
	if c.Snapshot.Enabled && (c.Snapshot.URL == "" || c.Snapshot.Output == "") {
		return errors.New("config: snapshot enabled without url and output")
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// into the process environment. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

// ApplyEnv overrides fields from BLOCKTIMELINE_* environment variables.
func (c *Config) ApplyEnv() {
	if v, ok := lookupEnv("LISTEN"); ok {
		c.Listen = v
	}
	if v, ok := lookupEnv("BLOCKS_URL"); ok {
		c.BlocksURL = v
	}
	if v, ok := lookupEnv("DESCRIPTIONS_URL"); ok {
		c.DescriptionsURL = v
	}
	if v, ok := lookupEnv("CACHE_DIR"); ok {
		c.CacheDir = v
	}
	if v, ok := lookupEnv("REFRESH"); ok {
		c.RefreshCron = v
	}
	if v, ok := lookupEnv("EXTENSION_MONTHS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.ExtensionMonths = n
		}
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookupEnv("STATIC_DIR"); ok {
		c.StaticDir = v
	}
	c.Normalize()
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, write a default config with 0600 perms
//     and return it.
//   - Otherwise read YAML, unmarshal into Config and normalize defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".blocktimeline-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

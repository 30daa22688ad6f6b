// Package config assembles symboldb's runtime configuration from three
// layered sources, lowest precedence first: an optional YAML file, the
// ambient environment (spec §6's "connection parameters read from the
// ambient environment"), then command-line flags. It generalizes
// cmd/cctool/main.go's commonConfig-plus-flag.FlagSet shell into a
// reusable struct the CLI front end populates before dispatching a
// subcommand.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds every setting spec §6 lists as a global CLI option, plus
// the database connection parameters spec §6 says are "read from the
// ambient environment."
type Config struct {
	// Database connection parameters (spec §6).
	DBHost     string `yaml:"db_host"`
	DBPort     int    `yaml:"db_port"`
	DBName     string `yaml:"db_name"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`

	// Cache is the file-cache directory (spec §6's `--cache`),
	// defaulting to `$HOME/.cache/symboldb/rpms/`.
	Cache string `yaml:"cache"`
	// NoNet holds spec §6's `--no-net` option. No subcommand reads it:
	// the downloader is built without it and still uses the network.
	NoNet bool `yaml:"no_net"`
	// SetName names the package set a subcommand operates against
	// (spec §6's `--set`).
	SetName string `yaml:"set"`
	// ExcludeName is an optional regexp of package names to skip
	// during a repository download (spec §6's `--exclude-name`).
	ExcludeName string `yaml:"exclude_name"`
	// IgnoreDownloadErrors keeps `download-repo` going after a package
	// exhausts its retries instead of failing the whole run.
	IgnoreDownloadErrors bool `yaml:"ignore_download_errors"`
	// Verbose and Quiet select the log verbosity (spec §6's `-v`/`-q`).
	Verbose bool `yaml:"verbose"`
	Quiet   bool `yaml:"quiet"`
}

// defaultCacheDir returns `$HOME/.cache/symboldb/rpms/` (spec §6).
func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cache/symboldb/rpms"
	}
	return home + "/.cache/symboldb/rpms"
}

// Defaults returns a Config populated with spec §6's documented
// defaults, before any file, environment, or flag layer is applied.
func Defaults() Config {
	return Config{
		DBHost: "localhost",
		DBPort: 5432,
		DBName: "symboldb",
		Cache:  defaultCacheDir(),
	}
}

// loadFile layers path's YAML content over cfg, when path is non-empty
// and exists; a missing file at the default path is not an error.
func loadFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// loadEnv layers the ambient environment over cfg (spec §6: "Connection
// parameters read from the ambient environment (host, port, database
// name)"), following libpq's PGHOST/PGPORT/PGDATABASE/PGUSER/PGPASSWORD
// convention.
func loadEnv(cfg *Config) error {
	if v := os.Getenv("PGHOST"); v != "" {
		cfg.DBHost = v
	}
	if v := os.Getenv("PGPORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err != nil {
			return fmt.Errorf("config: parsing PGPORT=%q: %w", v, err)
		}
		cfg.DBPort = port
	}
	if v := os.Getenv("PGDATABASE"); v != "" {
		cfg.DBName = v
	}
	if v := os.Getenv("PGUSER"); v != "" {
		cfg.DBUser = v
	}
	if v := os.Getenv("PGPASSWORD"); v != "" {
		cfg.DBPassword = v
	}
	if v := os.Getenv("SYMBOLDB_CACHE"); v != "" {
		cfg.Cache = v
	}
	return nil
}

// Flags binds spec §6's global CLI options onto fs, backed by cfg so
// that calling fs.Parse after Flags overrides the file/env layers with
// whatever the user passed on the command line.
func Flags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Cache, "cache", cfg.Cache, "file cache directory")
	fs.BoolVar(&cfg.NoNet, "no-net", cfg.NoNet, "disable network access (not consulted by any subcommand)")
	fs.StringVar(&cfg.SetName, "set", cfg.SetName, "package set name")
	fs.StringVar(&cfg.ExcludeName, "exclude-name", cfg.ExcludeName, "regexp of package names to exclude")
	fs.BoolVar(&cfg.IgnoreDownloadErrors, "ignore-download-errors", cfg.IgnoreDownloadErrors, "keep going after a package's downloads are exhausted")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "verbose logging")
	fs.BoolVarP(&cfg.Quiet, "quiet", "q", cfg.Quiet, "quiet logging")
}

// Load builds a Config from defaults, an optional YAML file at
// yamlPath (ignored if absent, unless yamlPath was explicitly set by
// the caller), then the ambient environment. Flags are bound
// separately via Flags/pflag.Parse so the CLI entry point controls
// when argument parsing happens.
func Load(yamlPath string) (Config, error) {
	cfg := Defaults()
	explicit := yamlPath != ""
	if !explicit {
		home, err := os.UserHomeDir()
		if err == nil {
			yamlPath = home + "/.config/symboldb.yaml"
		}
	}
	if yamlPath != "" {
		if err := loadFile(&cfg, yamlPath, explicit); err != nil {
			return cfg, err
		}
	}
	if err := loadEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ConnString renders cfg's database parameters as a libpq connection
// string suitable for internal/db.Connect.
func (c Config) ConnString() string {
	s := fmt.Sprintf("host=%s port=%d dbname=%s", c.DBHost, c.DBPort, c.DBName)
	if c.DBUser != "" {
		s += " user=" + c.DBUser
	}
	if c.DBPassword != "" {
		s += " password=" + c.DBPassword
	}
	return s
}

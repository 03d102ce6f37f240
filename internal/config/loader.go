package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/partsdesk/importer/internal/db"
	"github.com/partsdesk/importer/internal/domain"
	"github.com/partsdesk/importer/internal/remote"
)

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig
	Database db.Config
	Log      LogConfig
	Import   ImportConfig
	Remote   RemoteConfig
	Search   SearchConfig
}

type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type ImportConfig struct {
	ChunkSize         int
	ProgressRetention time.Duration
}

type RemoteConfig struct {
	Enabled  bool
	BaseURL  string
	Token    string
	Timeout  time.Duration
	Schedule string
	Folders  FolderIDs
}

// FolderIDs holds the remote folder identifier per entity feed. An empty
// identifier disables that feed.
type FolderIDs struct {
	Products    string
	Superseded  string
	Backorder   string
	OrderStatus string
	Dealers     string
}

type SearchConfig struct {
	Enabled bool
	BaseURL string
	APIKey  string
	Alias   string
	Timeout time.Duration
}

// Load reads config.yaml from the given directory, with environment
// overrides prefixed IMPORTER_ (e.g. IMPORTER_DATABASE_HOST).
func Load(configPath string) (Config, error) {
	cfg := defaults()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("IMPORTER")

	v.BindEnv("server.port")
	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("log.level")
	v.BindEnv("log.file")
	v.BindEnv("remote.base_url")
	v.BindEnv("remote.token")
	v.BindEnv("search.base_url")
	v.BindEnv("search.api_key")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config.yaml: defaults plus env vars.
	}

	if v.IsSet("server.port") {
		cfg.Server.Port = v.GetInt("server.port")
	}
	if v.IsSet("server.shutdown_timeout") {
		cfg.Server.ShutdownTimeout = v.GetDuration("server.shutdown_timeout")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	if v.IsSet("log.level") {
		cfg.Log.Level = v.GetString("log.level")
	}
	if v.IsSet("log.file") {
		cfg.Log.File = v.GetString("log.file")
	}
	if v.IsSet("log.max_size_mb") {
		cfg.Log.MaxSizeMB = v.GetInt("log.max_size_mb")
	}
	if v.IsSet("log.max_backups") {
		cfg.Log.MaxBackups = v.GetInt("log.max_backups")
	}
	if v.IsSet("log.max_age_days") {
		cfg.Log.MaxAgeDays = v.GetInt("log.max_age_days")
	}

	if v.IsSet("import.chunk_size") {
		cfg.Import.ChunkSize = v.GetInt("import.chunk_size")
	}
	if v.IsSet("import.progress_retention") {
		cfg.Import.ProgressRetention = v.GetDuration("import.progress_retention")
	}

	if v.IsSet("remote.enabled") {
		cfg.Remote.Enabled = v.GetBool("remote.enabled")
	}
	if v.IsSet("remote.base_url") {
		cfg.Remote.BaseURL = v.GetString("remote.base_url")
	}
	if v.IsSet("remote.token") {
		cfg.Remote.Token = v.GetString("remote.token")
	}
	if v.IsSet("remote.timeout") {
		cfg.Remote.Timeout = v.GetDuration("remote.timeout")
	}
	if v.IsSet("remote.schedule") {
		cfg.Remote.Schedule = v.GetString("remote.schedule")
	}
	cfg.Remote.Folders.Products = v.GetString("remote.folders.products")
	cfg.Remote.Folders.Superseded = v.GetString("remote.folders.superseded")
	cfg.Remote.Folders.Backorder = v.GetString("remote.folders.backorder")
	cfg.Remote.Folders.OrderStatus = v.GetString("remote.folders.order_status")
	cfg.Remote.Folders.Dealers = v.GetString("remote.folders.dealers")

	if v.IsSet("search.enabled") {
		cfg.Search.Enabled = v.GetBool("search.enabled")
	}
	if v.IsSet("search.base_url") {
		cfg.Search.BaseURL = v.GetString("search.base_url")
	}
	if v.IsSet("search.api_key") {
		cfg.Search.APIKey = v.GetString("search.api_key")
	}
	if v.IsSet("search.alias") {
		cfg.Search.Alias = v.GetString("search.alias")
	}
	if v.IsSet("search.timeout") {
		cfg.Search.Timeout = v.GetDuration("search.timeout")
	}

	return cfg, nil
}

// FolderConfigs translates configured folder identifiers into the
// orchestrator's prioritized scan order. Catalog first, then mappings
// that reference it, then fulfillment, then accounts.
func (c RemoteConfig) FolderConfigs() []remote.FolderConfig {
	return []remote.FolderConfig{
		{EntityType: domain.EntityTypeProducts, FolderID: c.Folders.Products, Priority: 1},
		{EntityType: domain.EntityTypeSupersededMapping, FolderID: c.Folders.Superseded, Priority: 2},
		{EntityType: domain.EntityTypeBackorder, FolderID: c.Folders.Backorder, Priority: 3},
		{EntityType: domain.EntityTypeOrderStatus, FolderID: c.Folders.OrderStatus, Priority: 4},
		{EntityType: domain.EntityTypeDealers, FolderID: c.Folders.Dealers, Priority: 5},
	}
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: db.DefaultConfig(),
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Import: ImportConfig{
			ChunkSize:         10_000,
			ProgressRetention: 30 * time.Minute,
		},
		Remote: RemoteConfig{
			Timeout:  60 * time.Second,
			Schedule: "0 */4 * * *",
		},
		Search: SearchConfig{
			Alias:   "parts",
			Timeout: 30 * time.Second,
		},
	}
}
